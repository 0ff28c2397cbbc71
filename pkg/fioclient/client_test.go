package fioclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementJSON = `{
  "accountStatement": {
    "info": {
      "accountId": "2000000000",
      "bankId": "2010",
      "currency": "CZK",
      "iban": "CZ1000000000002000000000",
      "bic": "FIOBCZPPXXX",
      "openingBalance": 1500.50,
      "closingBalance": 2100.50,
      "dateStart": "2024-03-01+0100",
      "dateEnd": "2024-03-02+0100",
      "idFrom": 14462590268,
      "idTo": 14462590269,
      "idLastDownload": 14462590267
    },
    "transactionList": {
      "transaction": [
        {
          "column22": {"value": 14462590268, "name": "ID pohybu", "id": 22},
          "column0": {"value": "2024-03-01+0100", "name": "Datum", "id": 0},
          "column1": {"value": 500.0, "name": "Objem", "id": 1},
          "column14": {"value": "CZK", "name": "Měna", "id": 14},
          "column2": {"value": "123456789", "name": "Protiúčet", "id": 2},
          "column10": {"value": "Jan Novak", "name": "Název protiúčtu", "id": 10},
          "column3": {"value": "0800", "name": "Kód banky", "id": 3},
          "column5": {"value": "510", "name": "VS", "id": 5},
          "column16": {"value": "kredit", "name": "Zpráva pro příjemce", "id": 16},
          "column8": {"value": "Příjem převodem uvnitř banky", "name": "Typ", "id": 8},
          "column17": {"value": 2105685816, "name": "ID pokynu", "id": 17},
          "column4": null,
          "column25": null
        },
        {
          "column22": {"value": 14462590269, "name": "ID pohybu", "id": 22},
          "column0": {"value": "2024-03-02+0100", "name": "Datum", "id": 0},
          "column1": {"value": 100, "name": "Objem", "id": 1},
          "column14": {"value": "CZK", "name": "Měna", "id": 14}
        }
      ]
    }
  }
}`

func TestLastTransactions(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(statementJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret-token", 5*time.Second)
	stmt, err := client.LastTransactions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/last/secret-token/transactions.json", gotPath)
	assert.Equal(t, "2000000000", stmt.Info.AccountID)
	assert.True(t, stmt.Info.OpeningBalance.Equal(decimal.RequireFromString("1500.5")))
	require.NotNil(t, stmt.Info.IDTo)
	assert.Equal(t, int64(14462590269), *stmt.Info.IDTo)
	require.NotNil(t, stmt.Info.DateStart)
	assert.Equal(t, "2024-03-01", stmt.Info.DateStart.Format("2006-01-02"))

	require.Len(t, stmt.Transactions, 2)
	first := stmt.Transactions[0]
	assert.Equal(t, int64(14462590268), first.ID)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "510", first.VariableSymbol)
	assert.Equal(t, "kredit", first.Message)
	assert.Equal(t, "Jan Novak", first.CounterpartyName)
	assert.Empty(t, first.ConstantSymbol)
	require.NotNil(t, first.CommandID)
	assert.Equal(t, int64(2105685816), *first.CommandID)

	second := stmt.Transactions[1]
	assert.Empty(t, second.VariableSymbol)
	assert.Nil(t, second.CommandID)
}

func TestLastTransactions_EmptyStatement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accountStatement":{"info":{"accountId":"2000000000","idFrom":null,"idTo":null,"idLastDownload":14462590267},"transactionList":{"transaction":[]}}}`))
	}))
	defer server.Close()

	stmt, err := NewClient(server.URL, "t", time.Second).LastTransactions(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stmt.Info.IDTo)
	assert.Empty(t, stmt.Transactions)
}

func TestLastTransactions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"too frequent", http.StatusConflict, "", ErrTooFrequent},
		{"malformed", http.StatusOK, "{not json", ErrMalformedStatement},
		{"missing id", http.StatusOK, `{"accountStatement":{"transactionList":{"transaction":[{"column1":{"value":1}}]}}}`, ErrMalformedStatement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "t", time.Second).LastTransactions(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLastTransactions_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "t", time.Second).LastTransactions(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestSetLastID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer server.Close()

	err := NewClient(server.URL, "tok", time.Second).SetLastID(context.Background(), 14462590267)
	require.NoError(t, err)
	assert.Equal(t, "/set-last-id/tok/14462590267/", gotPath)
}
