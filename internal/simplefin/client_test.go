package simplefin

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsJSON = `{
  "errors": [],
  "accounts": [
    {
      "id": "ACT-1",
      "name": "Everyday Checking",
      "currency": "USD",
      "balance": "1024.50",
      "transactions": [
        {"id": "TX-1", "posted": 1743681600, "amount": "-4.50", "description": "STARBUCKS STORE 1234", "payee": "Starbucks"},
        {"id": "TX-2", "posted": 1743768000, "amount": "2500.00", "description": "PAYROLL ACME", "payee": "Acme"},
        {"id": "TX-3", "posted": 1743768000, "amount": "-12.00", "description": "PENDING CHARGE", "pending": true},
        {"id": "TX-4", "posted": 1743768000, "amount": "abc", "description": "BROKEN"},
        {"id": "TX-5", "posted": 1735732800, "amount": "-1.00", "description": "TOO OLD"}
      ]
    },
    {
      "id": "ACT-2",
      "currency": "https://example.com/points",
      "transactions": [
        {"id": "TX-9", "posted": 1743681600, "amount": "10", "description": "INTEREST"}
      ]
    }
  ]
}`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type bridge struct {
	server   *httptest.Server
	claims   atomic.Int32
	requests atomic.Int32
	status   int
}

func newBridge(t *testing.T) *bridge {
	t.Helper()
	b := &bridge{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/claim", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b.claims.Add(1)
		_, _ = fmt.Fprint(w, b.server.URL+"/access\n")
	})
	mux.HandleFunc("/access/accounts", func(w http.ResponseWriter, _ *http.Request) {
		b.requests.Add(1)
		if b.status != http.StatusOK {
			w.WriteHeader(b.status)
			_, _ = fmt.Fprint(w, "nope")
			return
		}
		_, _ = fmt.Fprint(w, accountsJSON)
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *bridge) token() string {
	return base64.StdEncoding.EncodeToString([]byte(b.server.URL + "/claim"))
}

func newTestClient(t *testing.T, b *bridge) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), &Config{
		Token:       b.token(),
		StateFile:   filepath.Join(t.TempDir(), "simplefin.json"),
		BankAccount: "Checking",
		Accounts:    map[string]string{"act-2": "Savings"},
	}, discard())
	require.NoError(t, err)
	client.retryOpts = common.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return client
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		wantErr error
		cfg     Config
		name    string
	}{
		{name: "bank account", cfg: Config{StateFile: "s.json", BankAccount: "Checking"}},
		{name: "account map", cfg: Config{StateFile: "s.json", Accounts: map[string]string{"a": "b"}}},
		{name: "no state file", cfg: Config{BankAccount: "Checking"}, wantErr: common.ErrMissingConfig},
		{name: "no bank account", cfg: Config{StateFile: "s.json"}, wantErr: common.ErrMissingConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewClient(context.Background(), nil, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestLoadOrClaimAuth(t *testing.T) {
	b := newBridge(t)
	state := filepath.Join(t.TempDir(), "nested", "simplefin.json")
	ctx := context.Background()

	auth, err := LoadOrClaimAuth(ctx, http.DefaultClient, b.token(), state, discard())
	require.NoError(t, err)
	assert.Equal(t, b.server.URL+"/access", auth.AccessURL)
	assert.NotContains(t, auth.TokenHint, b.server.URL)

	again, err := LoadOrClaimAuth(ctx, http.DefaultClient, "", state, discard())
	require.NoError(t, err)
	assert.Equal(t, auth.AccessURL, again.AccessURL)
	assert.Equal(t, int32(1), b.claims.Load(), "saved state is reused")

	_, err = LoadOrClaimAuth(ctx, http.DefaultClient, "", filepath.Join(t.TempDir(), "none.json"), discard())
	assert.Error(t, err)
}

func TestClaimToken_Invalid(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%"},
		{name: "not a url", token: base64.StdEncoding.EncodeToString([]byte("ftp://x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := claimToken(ctx, http.DefaultClient, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestClient_GetTransactions(t *testing.T) {
	b := newBridge(t)
	client := newTestClient(t, b)

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
	txns, err := client.GetTransactions(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	byID := make(map[string]model.BankTransaction, len(txns))
	for _, txn := range txns {
		byID[txn.ID] = txn
	}

	coffee := byID["SIMPLEFIN-ACT-1_TX-1"]
	assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), coffee.Date)
	assert.Equal(t, "STARBUCKS STORE 1234", coffee.Description)
	assert.Equal(t, "Starbucks", coffee.PartyName)
	assert.Equal(t, "Checking", coffee.BankAccount)
	assert.True(t, decimal.RequireFromString("4.50").Equal(coffee.Withdrawal))
	assert.True(t, coffee.Deposit.IsZero())
	assert.Equal(t, model.StatusPending, coffee.Status)
	assert.Equal(t, coffee.GenerateHash(), coffee.Hash)

	payroll := byID["SIMPLEFIN-ACT-1_TX-2"]
	assert.True(t, decimal.RequireFromString("2500").Equal(payroll.Deposit))
	assert.Equal(t, model.TransactionCredit, payroll.Type())

	interest := byID["SIMPLEFIN-ACT-2_TX-9"]
	assert.Equal(t, "Savings", interest.BankAccount)
	assert.Equal(t, "USD", interest.Currency)

	_, err = client.GetTransactions(context.Background(), end, start)
	assert.Error(t, err)
}

func TestClient_GetAccounts(t *testing.T) {
	b := newBridge(t)
	client := newTestClient(t, b)

	ids, err := client.GetAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACT-1", "ACT-2"}, ids)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantRequests int32
	}{
		{name: "forbidden is final", status: http.StatusForbidden, wantRequests: 1},
		{name: "server error is retried", status: http.StatusBadGateway, wantRequests: 2},
		{name: "rate limit is retried", status: http.StatusTooManyRequests, wantRequests: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBridge(t)
			client := newTestClient(t, b)
			b.status = tt.status

			_, err := client.GetAccounts(context.Background())
			assert.ErrorIs(t, err, common.ErrFeedUnavailable)
			assert.Equal(t, tt.wantRequests, b.requests.Load())
		})
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryAfter("5"))
	assert.Equal(t, 5*time.Second, retryAfter(" 5 "))
	assert.Zero(t, retryAfter(""))
	assert.Zero(t, retryAfter("-1"))
	assert.Zero(t, retryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
}
