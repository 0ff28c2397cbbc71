package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/doucovani/backend/internal/audit"
	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
	"github.com/shopspring/decimal"
)

var ErrBankTransactionCredited = errors.New("bank transaction already credited")

// Authorizer runs inside the entry's transaction against the freshly locked
// tutor and, for demand debits, the locked demand. It may set the final
// amount and the pay-later flag of the entry.
type Authorizer func(entry *models.LedgerEntry, tutor *models.Tutor, demand *models.Demand) error

type EntryRequest struct {
	Type              models.EntryType
	TutorID           int64
	Amount            decimal.Decimal
	BankTransactionID *int64
	DemandID          *int64
	Reason            string
	Comment           string
	Authorize         Authorizer
}

// LedgerReport compares a tutor's stored balance with the fold of the entry log.
type LedgerReport struct {
	TutorID          int64           `json:"tutorId"`
	Entries          int             `json:"entries"`
	StoredBalance    decimal.Decimal `json:"storedBalance"`
	ProjectedBalance decimal.Decimal `json:"projectedBalance"`
	Consistent       bool            `json:"consistent"`
	Problems         []string        `json:"problems,omitempty"`
}

type LedgerService struct {
	store repository.Store
	audit *audit.Logger
	now   func() time.Time
}

func NewLedgerService(store repository.Store, auditLogger *audit.Logger) *LedgerService {
	return &LedgerService{
		store: store,
		audit: auditLogger,
		now:   time.Now,
	}
}

// RecordEntry appends one entry and applies it to the tutor balance in a
// single transaction. Demand debits also move the demand to taken.
func (s *LedgerService) RecordEntry(ctx context.Context, req EntryRequest) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		Type:              req.Type,
		TutorID:           req.TutorID,
		Amount:            req.Amount,
		BankTransactionID: req.BankTransactionID,
		DemandID:          req.DemandID,
		Reason:            strings.TrimSpace(req.Reason),
		Comment:           req.Comment,
	}

	if req.Authorize == nil {
		if err := entry.Validate(); err != nil {
			s.audit.LogRejected(entry.Type, entry.TutorID, entry.Amount, err)
			return nil, err
		}
	}

	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		tutor, err := tx.LockTutor(ctx, entry.TutorID)
		if err != nil {
			return fmt.Errorf("lock tutor %d: %w", entry.TutorID, err)
		}

		var demand *models.Demand
		if entry.Type == models.EntryDebitDemand && entry.DemandID != nil {
			demand, err = tx.LockDemand(ctx, *entry.DemandID)
			if err != nil {
				return fmt.Errorf("lock demand %d: %w", *entry.DemandID, err)
			}
			if demand.IsTaken() || demand.Status == models.DemandTaken {
				return models.ErrDemandAlreadyTaken
			}
			if demand.Status != models.DemandActive {
				return models.ErrDemandNotActive
			}
		}

		if req.Authorize != nil {
			if err := req.Authorize(entry, tutor, demand); err != nil {
				return err
			}
			if err := entry.Validate(); err != nil {
				return err
			}
		}

		now := s.now()
		entry.OpeningBalance = tutor.Credit
		entry.ClosingBalance = tutor.Credit.Add(entry.Amount)
		entry.CreatedAt = now

		if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				if entry.Type == models.EntryDebitDemand {
					return models.ErrDemandAlreadyTaken
				}
				return ErrBankTransactionCredited
			}
			return err
		}

		if entry.Type == models.EntryDebitDemand {
			if err := tx.MarkDemandTaken(ctx, demand.ID, tutor.ID, now); err != nil {
				return err
			}
			if entry.PayLater {
				demandID := demand.ID
				tutor.PayLaterDemandID = &demandID
				tutor.PayLaterSince = &now
			}
		} else if tutor.HasPayLaterDebt() && !entry.ClosingBalance.IsNegative() {
			tutor.PayLaterDemandID = nil
			tutor.PayLaterSince = nil
		}

		tutor.Credit = entry.ClosingBalance
		return tx.UpdateTutorCredit(ctx, tutor)
	})
	if err != nil {
		s.audit.LogRejected(entry.Type, entry.TutorID, entry.Amount, err)
		return nil, err
	}

	log.Printf("[LEDGER] %s entry %d for tutor %d: %s -> %s",
		entry.Type, entry.ID, entry.TutorID, entry.OpeningBalance, entry.ClosingBalance)
	s.audit.LogEntry(entry)
	return entry, nil
}

// ManualReturn gives credit back to a tutor outside the bank flow.
func (s *LedgerService) ManualReturn(ctx context.Context, tutorID int64, amount decimal.Decimal, reason, comment string) (*models.LedgerEntry, error) {
	return s.RecordEntry(ctx, EntryRequest{
		Type:    models.EntryManualReturn,
		TutorID: tutorID,
		Amount:  amount,
		Reason:  reason,
		Comment: comment,
	})
}

func (s *LedgerService) Entries(ctx context.Context, tutorID int64) ([]*models.LedgerEntry, error) {
	return s.store.ListLedgerEntries(ctx, tutorID)
}

// VerifyTutor replays the entry log of one tutor and reports any drift.
func (s *LedgerService) VerifyTutor(ctx context.Context, tutorID int64) (*LedgerReport, error) {
	tutor, err := s.store.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListLedgerEntries(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	report := &LedgerReport{
		TutorID:          tutorID,
		Entries:          len(entries),
		StoredBalance:    tutor.Credit,
		ProjectedBalance: ProjectBalance(entries),
		Problems:         CheckChain(entries),
	}
	if !report.ProjectedBalance.Equal(report.StoredBalance) {
		report.Problems = append(report.Problems, fmt.Sprintf("stored balance %s differs from projected %s",
			report.StoredBalance, report.ProjectedBalance))
	}
	report.Consistent = len(report.Problems) == 0
	if !report.Consistent {
		log.Printf("[LEDGER] Tutor %d ledger inconsistent: %v", tutorID, report.Problems)
	}
	return report, nil
}

// ProjectBalance folds the entry amounts into a balance.
func ProjectBalance(entries []*models.LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Amount)
	}
	return balance
}

// CheckChain reports broken links between consecutive balance snapshots.
func CheckChain(entries []*models.LedgerEntry) []string {
	var problems []string
	previous := decimal.Zero
	for _, e := range entries {
		if !e.OpeningBalance.Equal(previous) {
			problems = append(problems, fmt.Sprintf("entry %d opens at %s, expected %s", e.ID, e.OpeningBalance, previous))
		}
		if !e.OpeningBalance.Add(e.Amount).Equal(e.ClosingBalance) {
			problems = append(problems, fmt.Sprintf("entry %d closes at %s, expected %s", e.ID, e.ClosingBalance, e.OpeningBalance.Add(e.Amount)))
		}
		previous = e.ClosingBalance
	}
	return problems
}
