package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryCreditTopup  EntryType = "credit_topup"
	EntryDebitDemand  EntryType = "debit_demand"
	EntryManualReturn EntryType = "manual_return"
)

// LedgerEntry is one immutable movement of a tutor's credit.
// ClosingBalance always equals OpeningBalance + Amount.
type LedgerEntry struct {
	ID                int64           `json:"id" db:"id"`
	Type              EntryType       `json:"type" db:"entry_type"`
	TutorID           int64           `json:"tutorId" db:"tutor_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	OpeningBalance    decimal.Decimal `json:"openingBalance" db:"opening_balance"`
	ClosingBalance    decimal.Decimal `json:"closingBalance" db:"closing_balance"`
	BankTransactionID *int64          `json:"bankTransactionId,omitempty" db:"bank_transaction_id"`
	DemandID          *int64          `json:"demandId,omitempty" db:"demand_id"`
	Reason            string          `json:"reason,omitempty" db:"reason"`
	Comment           string          `json:"comment,omitempty" db:"comment"`
	PayLater          bool            `json:"payLater,omitempty" db:"pay_later"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

// Validate checks the per-type link and sign rules.
func (e *LedgerEntry) Validate() error {
	if e.TutorID <= 0 {
		return fmt.Errorf("%w: missing tutor", ErrInvalidLedgerEntry)
	}
	switch e.Type {
	case EntryCreditTopup:
		if e.BankTransactionID == nil || e.DemandID != nil {
			return fmt.Errorf("%w: credit top-up must link a bank transaction only", ErrInvalidLedgerEntry)
		}
		if !e.Amount.IsPositive() {
			return fmt.Errorf("%w: credit top-up amount must be positive", ErrInvalidLedgerEntry)
		}
	case EntryDebitDemand:
		if e.DemandID == nil || e.BankTransactionID != nil {
			return fmt.Errorf("%w: demand debit must link a demand only", ErrInvalidLedgerEntry)
		}
		if e.Amount.IsPositive() {
			return fmt.Errorf("%w: demand debit amount cannot be positive", ErrInvalidLedgerEntry)
		}
	case EntryManualReturn:
		if strings.TrimSpace(e.Reason) == "" {
			return fmt.Errorf("%w: manual return needs a reason", ErrInvalidLedgerEntry)
		}
		if e.DemandID != nil || e.BankTransactionID != nil {
			return fmt.Errorf("%w: manual return cannot carry links", ErrInvalidLedgerEntry)
		}
		if !e.Amount.IsPositive() {
			return fmt.Errorf("%w: manual return amount must be positive", ErrInvalidLedgerEntry)
		}
	default:
		return fmt.Errorf("%w: unknown entry type %q", ErrInvalidLedgerEntry, e.Type)
	}
	return nil
}
