package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/database"
	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
	"github.com/doucovani/backend/pkg/fioclient"
	"github.com/go-redis/redis/v8"
)

const syncLeaseKey = "bank_sync:lease"

// StatementFetcher is the bank API as seen by the sync.
type StatementFetcher interface {
	LastTransactions(ctx context.Context) (*fioclient.Statement, error)
	SetLastID(ctx context.Context, id int64) error
}

type SyncOutcome string

const (
	SyncSkipped   SyncOutcome = "skipped"   // inside the minimum interval
	SyncLocked    SyncOutcome = "locked"    // another process holds the lease
	SyncReplay    SyncOutcome = "replay"    // batch already processed
	SyncEmpty     SyncOutcome = "empty"     // no new movements
	SyncSynced    SyncOutcome = "synced"    // batch stored
	SyncDuplicate SyncOutcome = "duplicate" // batch rolled back on a known movement id
)

type SyncResult struct {
	Outcome  SyncOutcome `json:"outcome"`
	Fetched  int         `json:"fetched"`
	Stored   int         `json:"stored"`
	Credited int         `json:"credited"`
	LastID   int64       `json:"lastId"`
}

var errDuplicateBatch = errors.New("bank statement batch contains a stored movement")

type SyncService struct {
	store    repository.Store
	fetcher  StatementFetcher
	ledger   *LedgerService
	notifier *NotificationService
	redis    *redis.Client
	cfg      config.BankConfig
	holder   string
	now      func() time.Time
}

// NewSyncService builds the statement poller. rdb may be nil.
func NewSyncService(store repository.Store, fetcher StatementFetcher, ledger *LedgerService, notifier *NotificationService, rdb *redis.Client, cfg *config.Config) *SyncService {
	host, _ := os.Hostname()
	return &SyncService{
		store:    store,
		fetcher:  fetcher,
		ledger:   ledger,
		notifier: notifier,
		redis:    rdb,
		cfg:      cfg.Bank,
		holder:   fmt.Sprintf("%s:%d", host, os.Getpid()),
		now:      time.Now,
	}
}

func (s *SyncService) cursor(ctx context.Context) (*models.SyncCursor, error) {
	c, err := s.store.GetSyncCursor(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.SyncCursor{LastID: s.cfg.InitialLastID}, nil
	}
	return c, err
}

// Sync polls the bank once if the minimum interval has passed, stores the new
// movements and credits the ones that carry a tutor's variable symbol.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	cur, err := s.cursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sync cursor: %w", err)
	}
	now := s.now()
	if now.Sub(cur.LastPollAt) < s.cfg.MinRequestInterval {
		return &SyncResult{Outcome: SyncSkipped, LastID: cur.LastID}, nil
	}

	if s.redis != nil {
		ok, err := database.TryLease(ctx, s.redis, syncLeaseKey, s.holder, s.cfg.MinRequestInterval)
		if err != nil {
			log.Printf("[BANK_SYNC] Lease unavailable, continuing without it: %v", err)
		} else if !ok {
			return &SyncResult{Outcome: SyncLocked, LastID: cur.LastID}, nil
		}
	}

	claimed, err := s.claimPoll(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("claim poll slot: %w", err)
	}
	if !claimed {
		return &SyncResult{Outcome: SyncSkipped, LastID: cur.LastID}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	stmt, err := s.fetcher.LastTransactions(fetchCtx)
	cancel()
	if err != nil {
		log.Printf("[BANK_SYNC] Fetch failed: %v", err)
		return nil, fmt.Errorf("fetch statement: %w", err)
	}

	result := &SyncResult{Fetched: len(stmt.Transactions)}
	var stored []*models.BankTransaction

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		stored = nil
		c, err := tx.LockSyncCursor(ctx, s.cfg.InitialLastID)
		if err != nil {
			return err
		}
		c.LastPollAt = now
		result.LastID = c.LastID

		switch {
		case stmt.Info.IDTo == nil:
			result.Outcome = SyncEmpty
			return tx.SaveSyncCursor(ctx, c)
		case *stmt.Info.IDTo <= c.LastID:
			result.Outcome = SyncReplay
			return tx.SaveSyncCursor(ctx, c)
		}

		req := accountRequestFrom(stmt, now)
		if err := tx.InsertAccountRequest(ctx, req); err != nil {
			return fmt.Errorf("insert account request: %w", err)
		}
		for i := range stmt.Transactions {
			bt := bankTransactionFrom(&stmt.Transactions[i], req.ID, now)
			if bt.ID <= c.LastID {
				continue
			}
			if err := tx.InsertBankTransaction(ctx, bt); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return fmt.Errorf("%w: movement %d", errDuplicateBatch, bt.ID)
				}
				return fmt.Errorf("insert bank transaction %d: %w", bt.ID, err)
			}
			stored = append(stored, bt)
		}

		c.LastID = *stmt.Info.IDTo
		result.Outcome = SyncSynced
		result.LastID = c.LastID
		return tx.SaveSyncCursor(ctx, c)
	})
	if err != nil {
		if errors.Is(err, errDuplicateBatch) {
			log.Printf("[BANK_SYNC] Batch rolled back: %v", err)
			return &SyncResult{Outcome: SyncDuplicate, Fetched: result.Fetched, LastID: cur.LastID}, nil
		}
		return nil, fmt.Errorf("store statement: %w", err)
	}

	result.Stored = len(stored)
	for _, bt := range stored {
		if s.credit(ctx, bt) {
			result.Credited++
		}
	}
	log.Printf("[BANK_SYNC] %s: fetched=%d stored=%d credited=%d last_id=%d",
		result.Outcome, result.Fetched, result.Stored, result.Credited, result.LastID)
	return result, nil
}

// claimPoll records the poll time under the cursor row lock so that only one
// caller per interval reaches the bank, with or without the Redis lease. A
// failed fetch still counts as a poll.
func (s *SyncService) claimPoll(ctx context.Context, now time.Time) (bool, error) {
	claimed := false
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		c, err := tx.LockSyncCursor(ctx, s.cfg.InitialLastID)
		if err != nil {
			return err
		}
		claimed = now.Sub(c.LastPollAt) >= s.cfg.MinRequestInterval
		if !claimed {
			return nil
		}
		c.LastPollAt = now
		return tx.SaveSyncCursor(ctx, c)
	})
	return claimed, err
}

// Reconcile retries the matching of stored incoming payments that never
// produced a top-up, for example because the tutor registered afterwards.
func (s *SyncService) Reconcile(ctx context.Context) (int, error) {
	pending, err := s.store.ListUnlinkedBankTransactions(ctx, 500)
	if err != nil {
		return 0, fmt.Errorf("list unlinked transactions: %w", err)
	}
	credited := 0
	for _, bt := range pending {
		if s.credit(ctx, bt) {
			credited++
		}
	}
	if len(pending) > 0 {
		log.Printf("[BANK_SYNC] Reconcile: %d pending, %d credited", len(pending), credited)
	}
	return credited, nil
}

// SetLastID moves the bank-side download marker. Zero means the local cursor.
func (s *SyncService) SetLastID(ctx context.Context, id int64) (int64, error) {
	if id == 0 {
		cur, err := s.cursor(ctx)
		if err != nil {
			return 0, err
		}
		id = cur.LastID
	}
	if id < 0 {
		return 0, fmt.Errorf("invalid movement id %d", id)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	if err := s.fetcher.SetLastID(callCtx, id); err != nil {
		return 0, fmt.Errorf("set last id: %w", err)
	}
	log.Printf("[BANK_SYNC] Bank download marker set to %d", id)
	return id, nil
}

// credit records a top-up for an incoming payment. Failures are logged and
// left for Reconcile.
func (s *SyncService) credit(ctx context.Context, bt *models.BankTransaction) bool {
	if !bt.Amount.IsPositive() || bt.VariableSymbol == "" {
		return false
	}
	if s.cfg.Currency != "" && bt.Currency != "" && !strings.EqualFold(bt.Currency, s.cfg.Currency) {
		log.Printf("[BANK_SYNC] Movement %d in %s ignored", bt.ID, bt.Currency)
		return false
	}
	code, err := strconv.ParseInt(strings.TrimLeft(bt.VariableSymbol, "0"), 10, 64)
	if err != nil {
		log.Printf("[BANK_SYNC] Movement %d has unusable variable symbol %q", bt.ID, bt.VariableSymbol)
		return false
	}
	tutor, err := s.store.FindTutorByReferenceCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[BANK_SYNC] No tutor for variable symbol %d (movement %d)", code, bt.ID)
		} else {
			log.Printf("[BANK_SYNC] Tutor lookup for movement %d failed: %v", bt.ID, err)
		}
		return false
	}

	btID := bt.ID
	entry, err := s.ledger.RecordEntry(ctx, EntryRequest{
		Type:              models.EntryCreditTopup,
		TutorID:           tutor.ID,
		Amount:            bt.Amount,
		BankTransactionID: &btID,
		Comment:           bt.Message,
	})
	if err != nil {
		if !errors.Is(err, ErrBankTransactionCredited) {
			log.Printf("[BANK_SYNC] Crediting movement %d to tutor %d failed: %v", bt.ID, tutor.ID, err)
		}
		return false
	}
	if s.notifier != nil {
		s.notifier.CreditToppedUp(ctx, tutor, entry.Amount, entry.ClosingBalance)
	}
	return true
}

func accountRequestFrom(stmt *fioclient.Statement, now time.Time) *models.AccountRequest {
	info := stmt.Info
	return &models.AccountRequest{
		AccountID:      info.AccountID,
		OpeningBalance: info.OpeningBalance,
		ClosingBalance: info.ClosingBalance,
		DateStart:      info.DateStart,
		DateEnd:        info.DateEnd,
		IDFrom:         info.IDFrom,
		IDTo:           info.IDTo,
		IDLastDownload: info.IDLastDownload,
		CreatedAt:      now,
	}
}

func bankTransactionFrom(t *fioclient.Transaction, requestID int64, now time.Time) *models.BankTransaction {
	return &models.BankTransaction{
		ID:                 t.ID,
		AccountRequestID:   requestID,
		Date:               t.Date,
		Amount:             t.Amount,
		Currency:           t.Currency,
		Counterparty:       t.Counterparty,
		CounterpartyName:   t.CounterpartyName,
		BankCode:           t.BankCode,
		BankName:           t.BankName,
		ConstantSymbol:     t.ConstantSymbol,
		VariableSymbol:     t.VariableSymbol,
		SpecificSymbol:     t.SpecificSymbol,
		UserIdentification: t.UserIdentification,
		Message:            t.Message,
		Type:               t.Type,
		Author:             t.Author,
		Specification:      t.Specification,
		Comment:            t.Comment,
		BIC:                t.BIC,
		CommandID:          t.CommandID,
		CreatedAt:          now,
	}
}
