/**
 * @description
 * Client for the Fio bank statement API. It downloads the movements since the
 * last download marker and can move that marker explicitly.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact amounts and balances.
 */
package fioclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTooFrequent is returned when the bank rejects a call made inside its
	// own minimum request interval.
	ErrTooFrequent = errors.New("fio api: request interval too short")
	// ErrMalformedStatement is returned when the payload cannot be decoded.
	ErrMalformedStatement = errors.New("fio api: malformed statement")
)

// StatusError is returned for any other non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fio api: unexpected status %d: %s", e.Code, e.Body)
}

// Client is a client for the Fio API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new Fio API client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Info is the statement header.
type Info struct {
	AccountID      string
	BankID         string
	Currency       string
	IBAN           string
	BIC            string
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	DateStart      *time.Time
	DateEnd        *time.Time
	IDFrom         *int64
	IDTo           *int64
	IDLastDownload *int64
}

// Transaction is one decoded statement movement.
type Transaction struct {
	ID                 int64
	Date               time.Time
	Amount             decimal.Decimal
	Currency           string
	Counterparty       string
	CounterpartyName   string
	BankCode           string
	BankName           string
	ConstantSymbol     string
	VariableSymbol     string
	SpecificSymbol     string
	UserIdentification string
	Message            string
	Type               string
	Author             string
	Specification      string
	Comment            string
	BIC                string
	CommandID          *int64
}

type Statement struct {
	Info         Info
	Transactions []Transaction
}

type column struct {
	Value json.RawMessage `json:"value"`
	Name  string          `json:"name"`
	ID    int             `json:"id"`
}

type rawInfo struct {
	AccountID      json.RawMessage `json:"accountId"`
	BankID         json.RawMessage `json:"bankId"`
	Currency       string          `json:"currency"`
	IBAN           string          `json:"iban"`
	BIC            string          `json:"bic"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
	DateStart      string          `json:"dateStart"`
	DateEnd        string          `json:"dateEnd"`
	IDFrom         *int64          `json:"idFrom"`
	IDTo           *int64          `json:"idTo"`
	IDLastDownload *int64          `json:"idLastDownload"`
}

type envelope struct {
	AccountStatement struct {
		Info            rawInfo `json:"info"`
		TransactionList struct {
			Transaction []map[string]*column `json:"transaction"`
		} `json:"transactionList"`
	} `json:"accountStatement"`
}

// LastTransactions downloads the movements since the last download marker.
func (c *Client) LastTransactions(ctx context.Context) (*Statement, error) {
	url := fmt.Sprintf("%s/last/%s/transactions.json", c.BaseURL, c.Token)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseStatement(body)
}

// SetLastID moves the bank-side download marker so the next LastTransactions
// call starts after id.
func (c *Client) SetLastID(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/set-last-id/%s/%d/", c.BaseURL, c.Token, id)
	_, err := c.get(ctx, url)
	return err
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrTooFrequent
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// ParseStatement decodes a transactions.json payload.
func ParseStatement(body []byte) (*Statement, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStatement, err)
	}

	raw := env.AccountStatement.Info
	stmt := &Statement{
		Info: Info{
			AccountID:      rawString(raw.AccountID),
			BankID:         rawString(raw.BankID),
			Currency:       raw.Currency,
			IBAN:           raw.IBAN,
			BIC:            raw.BIC,
			OpeningBalance: raw.OpeningBalance,
			ClosingBalance: raw.ClosingBalance,
			DateStart:      parseDate(raw.DateStart),
			DateEnd:        parseDate(raw.DateEnd),
			IDFrom:         raw.IDFrom,
			IDTo:           raw.IDTo,
			IDLastDownload: raw.IDLastDownload,
		},
	}

	for i, cols := range env.AccountStatement.TransactionList.Transaction {
		tx, err := parseTransaction(cols)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", ErrMalformedStatement, i, err)
		}
		stmt.Transactions = append(stmt.Transactions, tx)
	}
	return stmt, nil
}

func parseTransaction(cols map[string]*column) (Transaction, error) {
	str := func(key string) string {
		if c := cols[key]; c != nil {
			return rawString(c.Value)
		}
		return ""
	}

	var tx Transaction
	id, err := rawInt64(cols["column22"])
	if err != nil || id == nil {
		return tx, fmt.Errorf("missing movement id")
	}
	tx.ID = *id

	amount := cols["column1"]
	if amount == nil {
		return tx, fmt.Errorf("missing amount")
	}
	if err := tx.Amount.UnmarshalJSON(amount.Value); err != nil {
		return tx, fmt.Errorf("bad amount: %v", err)
	}

	if d := parseDate(str("column0")); d != nil {
		tx.Date = *d
	}
	tx.Currency = str("column14")
	tx.Counterparty = str("column2")
	tx.CounterpartyName = str("column10")
	tx.BankCode = str("column3")
	tx.BankName = str("column12")
	tx.ConstantSymbol = str("column4")
	tx.VariableSymbol = str("column5")
	tx.SpecificSymbol = str("column6")
	tx.UserIdentification = str("column7")
	tx.Message = str("column16")
	tx.Type = str("column8")
	tx.Author = str("column9")
	tx.Specification = str("column18")
	tx.Comment = str("column25")
	tx.BIC = str("column26")

	if tx.CommandID, err = rawInt64(cols["column17"]); err != nil {
		return tx, fmt.Errorf("bad command id: %v", err)
	}
	return tx, nil
}

// rawString accepts either a JSON string or a bare number.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func rawInt64(c *column) (*int64, error) {
	if c == nil {
		return nil, nil
	}
	s := rawString(c.Value)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	v := d.IntPart()
	return &v, nil
}

// parseDate reads the leading yyyy-mm-dd of values like "2012-07-27+0200".
func parseDate(s string) *time.Time {
	if len(s) < 10 {
		return nil
	}
	d, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return nil
	}
	return &d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
