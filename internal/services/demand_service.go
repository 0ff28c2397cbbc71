package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDemand           = errors.New("invalid demand")
	ErrDemandNotVisible        = errors.New("demand is not available to this tutor")
	ErrInvalidStatusTransition = errors.New("invalid demand status transition")
	ErrSlugExhausted           = errors.New("could not generate a unique demand slug")
	ErrUnknownCatalogItem      = errors.New("unknown subject or level")
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Syncer is the part of the bank sync the allocator triggers before showing
// a demand, so a fresh top-up is visible to the take check.
type Syncer interface {
	Sync(ctx context.Context) (*SyncResult, error)
}

// TakeCheck is the preview shown on the demand detail page.
type TakeCheck struct {
	Demand   *models.Demand           `json:"demand"`
	Charge   decimal.Decimal          `json:"charge"`
	Suitable bool                     `json:"suitable"`
	CanTake  bool                     `json:"canTake"`
	PayLater bool                     `json:"payLater"`
	Reason   models.EligibilityReason `json:"reason"`
	Message  string                   `json:"message"`
}

// DemandView is a demand in a tutor's listing.
type DemandView struct {
	*models.Demand
	Charge   decimal.Decimal `json:"charge"`
	Suitable bool            `json:"suitable"`
}

type DemandService struct {
	store    repository.Store
	ledger   *LedgerService
	notifier *NotificationService
	syncer   Syncer
	cfg      *config.Config
	now      func() time.Time
	slugFn   func(n int) (string, error)
}

func NewDemandService(store repository.Store, ledger *LedgerService, notifier *NotificationService, syncer Syncer, cfg *config.Config) *DemandService {
	return &DemandService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		syncer:   syncer,
		cfg:      cfg,
		now:      time.Now,
		slugFn:   randomSlug,
	}
}

func randomSlug(n int) (string, error) {
	limit := big.NewInt(int64(len(slugAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = slugAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// ComputeCharge returns base - floor(base*discount/100) for the demand's tiers.
func ComputeCharge(table config.ChargeTable, d *models.Demand) (decimal.Decimal, error) {
	if d.Students < 0 || d.Students > 3 || d.Lessons < 0 || d.Lessons > 3 {
		return decimal.Zero, fmt.Errorf("%w: tier out of range", ErrInvalidDemand)
	}
	if d.Discount < 0 || d.Discount > 100 {
		return decimal.Zero, fmt.Errorf("%w: discount out of range", ErrInvalidDemand)
	}
	base := table[d.Students][d.Lessons]
	return decimal.NewFromInt(int64(base - base*d.Discount/100)), nil
}

// CanTake runs the eligibility checks in order and returns the first one
// that fails.
func CanTake(t *models.Tutor, d *models.Demand) models.EligibilityReason {
	switch {
	case !t.HasCompleteProfile():
		return models.ReasonIncompleteProfile
	case !t.HasVerifiedContact():
		return models.ReasonUnverifiedContact
	case !t.ServesAnyTown(d.Towns):
		return models.ReasonNoSharedLocation
	case !t.TeachesSubject(d.SubjectID):
		return models.ReasonSubjectNotTaught
	case !t.TeachesLevel(d.SubjectID, d.LevelID):
		return models.ReasonLevelNotTaught
	case !t.Active:
		return models.ReasonInactiveAccount
	}
	return models.ReasonEligible
}

// CheckAffordability reports whether the take needs the pay-later allowance.
// A tutor may owe for at most one pay-later take at a time.
func CheckAffordability(t *models.Tutor, charge decimal.Decimal) (payLater bool, err error) {
	if charge.LessThanOrEqual(t.Credit) {
		return false, nil
	}
	if !t.HasPayLaterDebt() {
		return true, nil
	}
	return false, &models.EligibilityError{Reason: models.ReasonInsufficientCredit}
}

func (s *DemandService) check(t *models.Tutor, d *models.Demand) (*TakeCheck, error) {
	charge, err := ComputeCharge(s.cfg.Charges, d)
	if err != nil {
		return nil, err
	}
	tc := &TakeCheck{
		Demand:   d,
		Charge:   charge,
		Suitable: d.SuitsTutor(t),
	}
	switch {
	case d.IsTaken():
		tc.Reason = models.ReasonAlreadyTaken
	case d.Status != models.DemandActive:
		tc.Reason = models.ReasonNotActive
	default:
		tc.Reason = CanTake(t, d)
	}
	if tc.Reason == models.ReasonEligible {
		payLater, err := CheckAffordability(t, charge)
		if err != nil {
			tc.Reason = models.ReasonInsufficientCredit
		}
		tc.PayLater = payLater
	}
	tc.CanTake = tc.Reason == models.ReasonEligible
	tc.Message = tc.Reason.Message()
	return tc, nil
}

// GetDemandForTutor shows one demand with its take preview. A bank sync is
// attempted first so a payment that just arrived counts; its failure does
// not block the page.
func (s *DemandService) GetDemandForTutor(ctx context.Context, tutorID, demandID int64) (*TakeCheck, error) {
	if s.syncer != nil {
		syncCtx, cancel := context.WithTimeout(ctx, s.cfg.Bank.DetailSyncTimeout)
		if _, err := s.syncer.Sync(syncCtx); err != nil {
			log.Printf("[DEMAND] Opportunistic bank sync failed: %v", err)
		}
		cancel()
	}

	tutor, err := s.store.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDemand(ctx, demandID)
	if err != nil {
		return nil, err
	}
	if !d.VisibleTo(tutorID) && !(d.TakenBy != nil && *d.TakenBy == tutorID) {
		return nil, ErrDemandNotVisible
	}
	return s.check(tutor, d)
}

// TakeDemand debits the tutor and assigns the demand. Eligibility and
// affordability are decided again on the locked rows.
func (s *DemandService) TakeDemand(ctx context.Context, tutorID, demandID int64) (*models.LedgerEntry, error) {
	var (
		taken      *models.Demand
		takenTutor *models.Tutor
	)
	entry, err := s.ledger.RecordEntry(ctx, EntryRequest{
		Type:     models.EntryDebitDemand,
		TutorID:  tutorID,
		DemandID: &demandID,
		Authorize: func(entry *models.LedgerEntry, t *models.Tutor, d *models.Demand) error {
			if !d.VisibleTo(t.ID) {
				return ErrDemandNotVisible
			}
			if reason := CanTake(t, d); reason != models.ReasonEligible {
				return &models.EligibilityError{Reason: reason}
			}
			charge, err := ComputeCharge(s.cfg.Charges, d)
			if err != nil {
				return err
			}
			payLater, err := CheckAffordability(t, charge)
			if err != nil {
				return err
			}
			entry.Amount = charge.Neg()
			entry.PayLater = payLater
			taken, takenTutor = d, t
			return nil
		},
	})
	if err != nil {
		log.Printf("[DEMAND] Tutor %d failed to take demand %d: %v", tutorID, demandID, err)
		return nil, err
	}

	log.Printf("[DEMAND] Tutor %d took demand %d for %s (pay later: %t)", tutorID, demandID, entry.Amount.Neg(), entry.PayLater)
	if s.notifier != nil {
		s.notifier.DemandTaken(ctx, taken, takenTutor)
	}
	return entry, nil
}

func (s *DemandService) validate(ctx context.Context, d *models.Demand) error {
	if _, err := ComputeCharge(s.cfg.Charges, d); err != nil {
		return err
	}
	if len(d.Towns) == 0 {
		return fmt.Errorf("%w: at least one town is required", ErrInvalidDemand)
	}
	switch d.SexRequired {
	case "":
		d.SexRequired = models.SexNotRequired
	case models.SexNotRequired, models.SexFemale, models.SexMale:
	default:
		return fmt.Errorf("%w: unknown sex requirement %q", ErrInvalidDemand, d.SexRequired)
	}
	return checkScheme(ctx, s.store, d.SubjectID, d.LevelID)
}

// checkScheme verifies that the level belongs to the subject's level scheme.
func checkScheme(ctx context.Context, store repository.Store, subjectID, levelID int64) error {
	subject, err := store.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: subject %d", ErrUnknownCatalogItem, subjectID)
		}
		return err
	}
	level, err := store.GetLevel(ctx, levelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: level %d", ErrUnknownCatalogItem, levelID)
		}
		return err
	}
	if level.SchemeID != subject.SchemeID {
		return models.ErrSchemeMismatch
	}
	return nil
}

// CreateDemand stores a new active demand under a fresh random slug and
// sends the notifications.
func (s *DemandService) CreateDemand(ctx context.Context, d *models.Demand) (*models.Demand, error) {
	d.Status = models.DemandActive
	d.TakenBy, d.TakenAt = nil, nil
	d.Email = strings.TrimSpace(strings.ToLower(d.Email))
	if err := s.validate(ctx, d); err != nil {
		return nil, err
	}
	d.PostedAt = s.now()

	var lastErr error
	for attempt := 0; attempt < s.cfg.SlugRetries; attempt++ {
		slug, err := s.slugFn(s.cfg.SlugLength)
		if err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}
		d.Slug = slug
		lastErr = s.store.CreateDemand(ctx, d)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, repository.ErrDuplicate) {
			return nil, lastErr
		}
		log.Printf("[DEMAND] Slug collision on attempt %d, retrying", attempt+1)
	}
	if lastErr != nil {
		return nil, ErrSlugExhausted
	}

	log.Printf("[DEMAND] Created demand %d (aimed at %d tutors)", d.ID, len(d.Targets))
	if s.notifier != nil {
		s.notifier.DemandCreated(ctx, d)
	}
	return d, nil
}

func (s *DemandService) GetDemandBySlug(ctx context.Context, slug string) (*models.Demand, error) {
	return s.store.GetDemandBySlug(ctx, slug)
}

// UpdateDemandBySlug applies the student's edits. Taken demands are frozen.
func (s *DemandService) UpdateDemandBySlug(ctx context.Context, slug string, upd *models.Demand) (*models.Demand, error) {
	d, err := s.store.GetDemandBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if d.IsTaken() {
		return nil, models.ErrDemandAlreadyTaken
	}

	d.SubjectID = upd.SubjectID
	d.LevelID = upd.LevelID
	d.Lessons = upd.Lessons
	d.Students = upd.Students
	d.Towns = upd.Towns
	d.FirstName = upd.FirstName
	d.LastName = upd.LastName
	d.Email = strings.TrimSpace(strings.ToLower(upd.Email))
	d.SubjectDescription = upd.SubjectDescription
	d.TimeDescription = upd.TimeDescription
	d.Commute = upd.Commute
	d.SexRequired = upd.SexRequired
	d.Slovak = upd.Slovak
	if err := s.validate(ctx, d); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now()

	if err := s.store.UpdateDemandDetails(ctx, d); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrDemandAlreadyTaken
		}
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.DemandUpdated(ctx, d)
	}
	return d, nil
}

// SetDemandStatus moves a demand between active, inactive and closed.
// Taken is entered only through TakeDemand and never left.
func (s *DemandService) SetDemandStatus(ctx context.Context, id int64, status models.DemandStatus) (*models.Demand, error) {
	if !status.Valid() || status == models.DemandTaken {
		return nil, ErrInvalidStatusTransition
	}
	d, err := s.store.GetDemand(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsTaken() {
		return nil, models.ErrDemandAlreadyTaken
	}
	now := s.now()
	if err := s.store.SetDemandStatus(ctx, id, status, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrDemandAlreadyTaken
		}
		return nil, err
	}
	log.Printf("[DEMAND] Demand %d status %s -> %s", id, d.Status, status)
	d.Status, d.UpdatedAt = status, now
	return d, nil
}

func (s *DemandService) SetDiscount(ctx context.Context, id int64, discount int) (*models.Demand, error) {
	if discount < 0 || discount > 100 {
		return nil, fmt.Errorf("%w: discount out of range", ErrInvalidDemand)
	}
	d, err := s.store.GetDemand(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsTaken() {
		return nil, models.ErrDemandAlreadyTaken
	}
	now := s.now()
	if err := s.store.SetDemandDiscount(ctx, id, discount, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrDemandAlreadyTaken
		}
		return nil, err
	}
	d.Discount, d.UpdatedAt = discount, now
	return d, nil
}

// ListVisibleDemands lists the active demands a tutor may see, the ones
// matching the tutor's subjects, levels and towns first.
func (s *DemandService) ListVisibleDemands(ctx context.Context, tutorID int64) ([]*DemandView, error) {
	tutor, err := s.store.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	demands, err := s.store.ListDemands(ctx, repository.DemandFilter{
		Statuses: []models.DemandStatus{models.DemandActive},
	})
	if err != nil {
		return nil, err
	}

	var suitable, other []*DemandView
	for _, d := range demands {
		if !d.VisibleTo(tutorID) {
			continue
		}
		charge, err := ComputeCharge(s.cfg.Charges, d)
		if err != nil {
			log.Printf("[DEMAND] Skipping demand %d: %v", d.ID, err)
			continue
		}
		v := &DemandView{Demand: d, Charge: charge, Suitable: d.SuitsTutor(tutor)}
		if v.Suitable {
			suitable = append(suitable, v)
		} else {
			other = append(other, v)
		}
	}
	return append(suitable, other...), nil
}

func (s *DemandService) ListTakenDemands(ctx context.Context, tutorID int64) ([]*models.Demand, error) {
	return s.store.ListDemands(ctx, repository.DemandFilter{TakenBy: tutorID})
}
