package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
)

var ErrInvalidProfile = errors.New("invalid profile")

// ProfileUpdate is the tutor-editable part of the profile.
type ProfileUpdate struct {
	TitlesBefore string              `json:"titlesBefore" validate:"max=20"`
	FirstName    string              `json:"firstName" validate:"required,min=2,max=20"`
	LastName     string              `json:"lastName" validate:"required,min=2,max=20"`
	TitlesAfter  string              `json:"titlesAfter" validate:"max=20"`
	Intro        string              `json:"intro" validate:"max=200"`
	Sex          string              `json:"sex" validate:"omitempty,oneof=f m"`
	Slovak       bool                `json:"slovak"`
	Home         bool                `json:"home"`
	Commute      bool                `json:"commute"`
	Towns        []int64             `json:"towns" validate:"dive,gt=0"`
	Teaches      []models.Capability `json:"teaches" validate:"dive"`
}

type TutorService struct {
	store repository.Store
}

func NewTutorService(store repository.Store) *TutorService {
	return &TutorService{store: store}
}

func (s *TutorService) GetProfile(ctx context.Context, tutorID int64) (*models.Tutor, error) {
	return s.store.GetTutor(ctx, tutorID)
}

// UpdateProfile replaces the profile, towns and capabilities. Every
// capability level must come from its subject's level scheme.
func (s *TutorService) UpdateProfile(ctx context.Context, tutorID int64, upd ProfileUpdate) (*models.Tutor, error) {
	seen := make(map[[2]int64]bool, len(upd.Teaches))
	for _, c := range upd.Teaches {
		key := [2]int64{c.SubjectID, c.LevelID}
		if seen[key] {
			return nil, fmt.Errorf("%w: subject %d level %d listed twice", ErrInvalidProfile, c.SubjectID, c.LevelID)
		}
		seen[key] = true
		if err := checkScheme(ctx, s.store, c.SubjectID, c.LevelID); err != nil {
			return nil, err
		}
	}

	tutor, err := s.store.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	tutor.TitlesBefore = strings.TrimSpace(upd.TitlesBefore)
	tutor.FirstName = strings.TrimSpace(upd.FirstName)
	tutor.LastName = strings.TrimSpace(upd.LastName)
	tutor.TitlesAfter = strings.TrimSpace(upd.TitlesAfter)
	tutor.Intro = strings.TrimSpace(upd.Intro)
	tutor.Sex = upd.Sex
	tutor.Slovak = upd.Slovak
	tutor.Home = upd.Home
	tutor.Commute = upd.Commute
	tutor.Towns = dedupe(upd.Towns)
	tutor.Teaches = upd.Teaches

	if err := s.store.UpdateTutorProfile(ctx, tutor); err != nil {
		return nil, err
	}
	log.Printf("[TUTOR] Tutor %d updated profile (%d towns, %d capabilities)", tutorID, len(tutor.Towns), len(tutor.Teaches))
	return tutor, nil
}

func (s *TutorService) UpdateNotices(ctx context.Context, tutorID int64, prefs models.NoticePreferences) error {
	if !prefs.Any.Valid() || !prefs.Suited.Valid() || !prefs.Aimed.Valid() {
		return fmt.Errorf("%w: notice mode out of range", ErrInvalidProfile)
	}
	return s.store.UpdateNoticePreferences(ctx, tutorID, prefs)
}

func (s *TutorService) SetActive(ctx context.Context, tutorID int64, active bool) error {
	if err := s.store.SetTutorActive(ctx, tutorID, active); err != nil {
		return err
	}
	log.Printf("[TUTOR] Tutor %d active=%t", tutorID, active)
	return nil
}

func (s *TutorService) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	return s.store.ListSubjects(ctx)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
