package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one movement read from the bank statement. ID is the
// bank's own movement id.
type BankTransaction struct {
	ID                 int64           `json:"id" db:"id"`
	AccountRequestID   int64           `json:"accountRequestId" db:"account_request_id"`
	Date               time.Time       `json:"date" db:"date"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	Currency           string          `json:"currency" db:"currency"`
	Counterparty       string          `json:"counterparty,omitempty" db:"counterparty"`
	CounterpartyName   string          `json:"counterpartyName,omitempty" db:"counterparty_name"`
	BankCode           string          `json:"bankCode,omitempty" db:"bank_code"`
	BankName           string          `json:"bankName,omitempty" db:"bank_name"`
	ConstantSymbol     string          `json:"constantSymbol,omitempty" db:"constant_symbol"`
	VariableSymbol     string          `json:"variableSymbol,omitempty" db:"variable_symbol"`
	SpecificSymbol     string          `json:"specificSymbol,omitempty" db:"specific_symbol"`
	UserIdentification string          `json:"userIdentification,omitempty" db:"user_identification"`
	Message            string          `json:"message,omitempty" db:"message"`
	Type               string          `json:"type,omitempty" db:"transaction_type"`
	Author             string          `json:"author,omitempty" db:"author"`
	Specification      string          `json:"specification,omitempty" db:"specification"`
	Comment            string          `json:"comment,omitempty" db:"comment"`
	BIC                string          `json:"bic,omitempty" db:"bic"`
	CommandID          *int64          `json:"commandId,omitempty" db:"command_id"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
}

// AccountRequest records the metadata of one downloaded statement batch.
type AccountRequest struct {
	ID             int64           `json:"id" db:"id"`
	AccountID      string          `json:"accountId" db:"account_id"`
	OpeningBalance decimal.Decimal `json:"openingBalance" db:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closingBalance" db:"closing_balance"`
	DateStart      *time.Time      `json:"dateStart,omitempty" db:"date_start"`
	DateEnd        *time.Time      `json:"dateEnd,omitempty" db:"date_end"`
	IDFrom         *int64          `json:"idFrom,omitempty" db:"id_from"`
	IDTo           *int64          `json:"idTo,omitempty" db:"id_to"`
	IDLastDownload *int64          `json:"idLastDownload,omitempty" db:"id_last_download"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

// SyncCursor is the persisted high-water mark of the statement poller.
type SyncCursor struct {
	LastID     int64     `json:"lastId" db:"last_id"`
	LastPollAt time.Time `json:"lastPollAt" db:"last_poll_at"`
}
