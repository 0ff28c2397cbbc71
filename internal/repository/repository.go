package repository

import (
	"context"
	"errors"
	"time"

	"github.com/doucovani/backend/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrVersionConflict = errors.New("optimistic lock failed")
)

// DemandFilter narrows ListDemands. Zero values mean no restriction.
type DemandFilter struct {
	Statuses    []models.DemandStatus
	TakenBy     int64
	PostedSince time.Time
	Limit       int
}

// Store is the persistence boundary of the services. Reads outside RunInTx
// see committed data only; anything that decides on a balance, a demand
// status or the sync cursor must go through Tx.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetTutor(ctx context.Context, id int64) (*models.Tutor, error)
	FindTutorByReferenceCode(ctx context.Context, code int64) (*models.Tutor, error)
	GetCredentials(ctx context.Context, email string) (tutorID int64, passwordHash string, err error)
	ListActiveTutors(ctx context.Context) ([]*models.Tutor, error)
	ListPayLaterDebtors(ctx context.Context, since time.Time) ([]*models.Tutor, error)
	UpdateTutorProfile(ctx context.Context, t *models.Tutor) error
	UpdateNoticePreferences(ctx context.Context, tutorID int64, prefs models.NoticePreferences) error
	SetTutorPhone(ctx context.Context, tutorID int64, phone string, verified bool) error
	SetTutorActive(ctx context.Context, tutorID int64, active bool) error

	GetSubject(ctx context.Context, id int64) (*models.Subject, error)
	GetLevel(ctx context.Context, id int64) (*models.Level, error)
	ListSubjects(ctx context.Context) ([]*models.Subject, error)

	CreateDemand(ctx context.Context, d *models.Demand) error
	GetDemand(ctx context.Context, id int64) (*models.Demand, error)
	GetDemandBySlug(ctx context.Context, slug string) (*models.Demand, error)
	UpdateDemandDetails(ctx context.Context, d *models.Demand) error
	SetDemandStatus(ctx context.Context, id int64, status models.DemandStatus, at time.Time) error
	SetDemandDiscount(ctx context.Context, id int64, discount int, at time.Time) error
	ListDemands(ctx context.Context, filter DemandFilter) ([]*models.Demand, error)

	ListLedgerEntries(ctx context.Context, tutorID int64) ([]*models.LedgerEntry, error)

	GetSyncCursor(ctx context.Context) (*models.SyncCursor, error)
	ListUnlinkedBankTransactions(ctx context.Context, limit int) ([]*models.BankTransaction, error)
}

// Tx is a unit of work. Lock* methods take row locks held until the
// surrounding RunInTx returns.
type Tx interface {
	InsertUser(ctx context.Context, email, passwordHash string) (int64, error)
	InsertTutor(ctx context.Context, t *models.Tutor) error
	SetReferenceCode(ctx context.Context, tutorID, code int64) error

	LockTutor(ctx context.Context, id int64) (*models.Tutor, error)
	UpdateTutorCredit(ctx context.Context, t *models.Tutor) error

	LockDemand(ctx context.Context, id int64) (*models.Demand, error)
	MarkDemandTaken(ctx context.Context, demandID, tutorID int64, at time.Time) error

	InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error

	LockSyncCursor(ctx context.Context, initialLastID int64) (*models.SyncCursor, error)
	SaveSyncCursor(ctx context.Context, c *models.SyncCursor) error
	InsertAccountRequest(ctx context.Context, r *models.AccountRequest) error
	InsertBankTransaction(ctx context.Context, t *models.BankTransaction) error
}
