package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/doucovani/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Event struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	TutorID   int64           `json:"tutor_id,omitempty"`
	EntryID   int64           `json:"entry_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Details   any             `json:"details,omitempty"`
}

// Logger writes one JSON line per credit movement or rejected attempt.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogEntry(e *models.LedgerEntry) {
	details := map[string]any{
		"opening_balance": e.OpeningBalance,
		"closing_balance": e.ClosingBalance,
	}
	if e.DemandID != nil {
		details["demand_id"] = *e.DemandID
	}
	if e.BankTransactionID != nil {
		details["bank_transaction_id"] = *e.BankTransactionID
	}
	if e.Reason != "" {
		details["reason"] = e.Reason
	}
	if e.PayLater {
		details["pay_later"] = true
	}

	a.log(Event{
		EventType: string(e.Type),
		TutorID:   e.TutorID,
		EntryID:   e.ID,
		Amount:    e.Amount,
		Status:    "SUCCESS",
		Details:   details,
	})
}

func (a *Logger) LogRejected(entryType models.EntryType, tutorID int64, amount decimal.Decimal, err error) {
	a.log(Event{
		EventType: string(entryType),
		TutorID:   tutorID,
		Amount:    amount,
		Status:    "REJECTED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(operation string, tutorID int64, details map[string]any) {
	a.log(Event{
		EventType: operation,
		TutorID:   tutorID,
		Status:    "SUCCESS",
		Details:   details,
	})
}

func (a *Logger) log(event Event) {
	event.ID = uuid.New()
	event.Timestamp = time.Now()
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
