package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// TopupInstructions tells a tutor how to pay credit in.
type TopupInstructions struct {
	AccountNumber  string          `json:"accountNumber"`
	IBAN           string          `json:"iban,omitempty"`
	VariableSymbol int64           `json:"variableSymbol"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Credit         decimal.Decimal `json:"credit"`
	PaymentString  string          `json:"paymentString,omitempty"`
	QRImage        string          `json:"qrImage,omitempty"`
}

type TopupService struct {
	store repository.Store
	bank  config.BankConfig
}

func NewTopupService(store repository.Store, cfg *config.Config) *TopupService {
	return &TopupService{store: store, bank: cfg.Bank}
}

// Instructions returns the payment details for a top-up. When the tutor owes
// money the suggested amount covers the debt.
func (s *TopupService) Instructions(ctx context.Context, tutorID int64, amount decimal.Decimal) (*TopupInstructions, error) {
	tutor, err := s.store.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if tutor.ReferenceCode == 0 {
		return nil, fmt.Errorf("tutor %d has no reference code", tutorID)
	}
	if !amount.IsPositive() && tutor.Credit.IsNegative() {
		amount = tutor.Credit.Neg()
	}

	out := &TopupInstructions{
		AccountNumber:  s.bank.AccountNumber,
		IBAN:           s.bank.IBAN,
		VariableSymbol: tutor.ReferenceCode,
		Currency:       s.bank.Currency,
		Amount:         amount,
		Credit:         tutor.Credit,
	}
	if s.bank.IBAN == "" {
		return out, nil
	}

	out.PaymentString = PaymentString(s.bank.IBAN, amount, s.bank.Currency, tutor.ReferenceCode, "Kredit "+tutor.FullName())
	qr, err := qrcode.New(out.PaymentString, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}
	out.QRImage = base64.StdEncoding.EncodeToString(buf.Bytes())
	return out, nil
}

// PaymentString builds a Czech "QR Platba" (SPD 1.0) string.
func PaymentString(iban string, amount decimal.Decimal, currency string, variableSymbol int64, message string) string {
	parts := []string{"SPD", "1.0", "ACC:" + strings.ReplaceAll(iban, " ", "")}
	if amount.IsPositive() {
		parts = append(parts, "AM:"+amount.StringFixed(2))
	}
	if currency != "" {
		parts = append(parts, "CC:"+strings.ToUpper(currency))
	}
	parts = append(parts, fmt.Sprintf("X-VS:%d", variableSymbol))
	if message = spdSanitize(message); message != "" {
		if r := []rune(message); len(r) > 60 {
			message = string(r[:60])
		}
		parts = append(parts, "MSG:"+message)
	}
	return strings.Join(parts, "*")
}

// spdSanitize drops the field separator, which SPD does not allow in values.
func spdSanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "*", ""))
}
