package models

import (
	"time"
)

type DemandStatus int16

const (
	DemandActive DemandStatus = iota
	DemandInactive
	DemandTaken
	DemandClosed
)

func (s DemandStatus) String() string {
	switch s {
	case DemandActive:
		return "active"
	case DemandInactive:
		return "inactive"
	case DemandTaken:
		return "taken"
	case DemandClosed:
		return "closed"
	}
	return "unknown"
}

func (s DemandStatus) Valid() bool {
	return s >= DemandActive && s <= DemandClosed
}

const (
	SexNotRequired = "n"
	SexFemale      = "f"
	SexMale        = "m"
)

// Demand is a student's request for tutoring.
// TakenBy is set exactly when Status is DemandTaken.
type Demand struct {
	ID                 int64        `json:"id" db:"id"`
	Slug               string       `json:"-" db:"slug"`
	Status             DemandStatus `json:"status" db:"status"`
	SubjectID          int64        `json:"subjectId" db:"subject_id"`
	LevelID            int64        `json:"levelId" db:"level_id"`
	Lessons            int          `json:"lessons" db:"lessons"`   // tier 0..3
	Students           int          `json:"students" db:"students"` // tier 0..3
	Towns              []int64      `json:"towns"`
	Targets            []int64      `json:"targets,omitempty"`
	FirstName          string       `json:"firstName" db:"first_name"`
	LastName           string       `json:"lastName" db:"last_name"`
	Email              string       `json:"email" db:"email"`
	SubjectDescription string       `json:"subjectDescription" db:"subject_description"`
	TimeDescription    string       `json:"timeDescription" db:"time_description"`
	Commute            bool         `json:"commute" db:"commute"`
	SexRequired        string       `json:"sexRequired" db:"sex_required"`
	Slovak             bool         `json:"slovak" db:"slovak"`
	Discount           int          `json:"discount" db:"discount"`
	TakenBy            *int64       `json:"takenBy,omitempty" db:"taken_by"`
	TakenAt            *time.Time   `json:"takenAt,omitempty" db:"taken_at"`
	PostedAt           time.Time    `json:"postedAt" db:"posted_at"`
	UpdatedAt          time.Time    `json:"updatedAt" db:"updated_at"`
}

// IsAimed reports whether the demand targets a fixed set of tutors.
func (d *Demand) IsAimed() bool {
	return len(d.Targets) > 0
}

func (d *Demand) IsTaken() bool {
	return d.TakenBy != nil
}

func (d *Demand) VisibleTo(tutorID int64) bool {
	if !d.IsAimed() {
		return true
	}
	for _, id := range d.Targets {
		if id == tutorID {
			return true
		}
	}
	return false
}

// SuitsTutor reports a full subject, level and town match.
func (d *Demand) SuitsTutor(t *Tutor) bool {
	return t.TeachesLevel(d.SubjectID, d.LevelID) && t.ServesAnyTown(d.Towns)
}
