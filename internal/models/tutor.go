package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NoticeMode says how a tutor wants to hear about a class of new demands.
type NoticeMode int16

const (
	NoticeNone NoticeMode = iota
	NoticeEmailDigest
	NoticeEmailNow
	NoticeEmailNowAndDigest
	NoticeSMSNow
	NoticeSMSNowAndEmailNow
	NoticeSMSNowAndEmailDigest
)

func (m NoticeMode) Valid() bool {
	return m >= NoticeNone && m <= NoticeSMSNowAndEmailDigest
}

func (m NoticeMode) EmailNow() bool {
	return m == NoticeEmailNow || m == NoticeEmailNowAndDigest || m == NoticeSMSNowAndEmailNow
}

func (m NoticeMode) EmailDigest() bool {
	return m == NoticeEmailDigest || m == NoticeEmailNowAndDigest || m == NoticeSMSNowAndEmailDigest
}

func (m NoticeMode) SMSNow() bool {
	return m >= NoticeSMSNow
}

// NoticePreferences holds one mode per demand class.
type NoticePreferences struct {
	Any    NoticeMode `json:"any" db:"notice_any" validate:"gte=0,lte=6"`
	Suited NoticeMode `json:"suited" db:"notice_suited" validate:"gte=0,lte=6"`
	Aimed  NoticeMode `json:"aimed" db:"notice_aimed" validate:"gte=0,lte=6"`
}

func DefaultNoticePreferences() NoticePreferences {
	return NoticePreferences{Any: NoticeNone, Suited: NoticeEmailDigest, Aimed: NoticeEmailNow}
}

// Capability is one (subject, level) pair a tutor teaches, with the price
// quoted for aimed demands.
type Capability struct {
	SubjectID int64 `json:"subjectId" db:"subject_id" validate:"required,gt=0"`
	LevelID   int64 `json:"levelId" db:"level_id" validate:"required,gt=0"`
	Price     int   `json:"price" db:"price" validate:"gte=0"`
}

type Tutor struct {
	ID               int64             `json:"id" db:"id"`
	UserID           int64             `json:"userId" db:"user_id"`
	Email            string            `json:"email" db:"email"`
	TitlesBefore     string            `json:"titlesBefore" db:"titles_before"`
	FirstName        string            `json:"firstName" db:"first_name"`
	LastName         string            `json:"lastName" db:"last_name"`
	TitlesAfter      string            `json:"titlesAfter" db:"titles_after"`
	Intro            string            `json:"intro" db:"intro"`
	Sex              string            `json:"sex" db:"sex"`
	Slovak           bool              `json:"slovak" db:"slovak"`
	Home             bool              `json:"home" db:"home"`
	Commute          bool              `json:"commute" db:"commute"`
	Towns            []int64           `json:"towns"`
	Teaches          []Capability      `json:"teaches"`
	Phone            string            `json:"phone,omitempty" db:"phone"`
	PhoneVerified    bool              `json:"phoneVerified" db:"phone_verified"`
	Notices          NoticePreferences `json:"notices"`
	Active           bool              `json:"active" db:"is_active"`
	Credit           decimal.Decimal   `json:"credit" db:"credit"`
	ReferenceCode    int64             `json:"referenceCode" db:"reference_code"`
	PayLaterDemandID *int64            `json:"payLaterDemandId,omitempty" db:"pay_later_demand_id"`
	PayLaterSince    *time.Time        `json:"payLaterSince,omitempty" db:"pay_later_since"`
	Version          int               `json:"-" db:"version"` // for optimistic locking
	CreatedAt        time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time         `json:"updatedAt" db:"updated_at"`
}

func (t *Tutor) FullName() string {
	parts := []string{t.TitlesBefore, t.FirstName, t.LastName, t.TitlesAfter}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func (t *Tutor) HasCompleteProfile() bool {
	return strings.TrimSpace(t.FirstName) != "" &&
		strings.TrimSpace(t.LastName) != "" &&
		len(t.Towns) > 0 &&
		len(t.Teaches) > 0
}

func (t *Tutor) HasVerifiedContact() bool {
	return t.Phone != "" && t.PhoneVerified
}

func (t *Tutor) ServesAnyTown(towns []int64) bool {
	for _, a := range t.Towns {
		for _, b := range towns {
			if a == b {
				return true
			}
		}
	}
	return false
}

func (t *Tutor) TeachesSubject(subjectID int64) bool {
	for _, c := range t.Teaches {
		if c.SubjectID == subjectID {
			return true
		}
	}
	return false
}

func (t *Tutor) TeachesLevel(subjectID, levelID int64) bool {
	for _, c := range t.Teaches {
		if c.SubjectID == subjectID && c.LevelID == levelID {
			return true
		}
	}
	return false
}

// HasPayLaterDebt reports whether a pay-later take is still waiting for a top-up.
func (t *Tutor) HasPayLaterDebt() bool {
	return t.PayLaterDemandID != nil
}
