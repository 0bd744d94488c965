package sheets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func testRules() []model.BankRule {
	debit := model.TransactionDebit
	matched := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	return []model.BankRule{
		{
			ID: 3, Name: "Rent", Priority: 20, IsActive: true,
			MatchField: model.MatchFieldDescription, MatchType: model.MatchContains, MatchValue: "rent",
			ActionType: model.ActionCreateJournalEntry, Account: "Rent Expense",
			TimesMatched: 2, LastMatched: &matched, TotalAmountMatched: decimal.RequireFromString("3000"),
		},
		{
			ID: 1, Name: "Coffee", Priority: 10, IsActive: true, BankAccount: "Checking",
			MatchField: model.MatchFieldPartyName, MatchType: model.MatchExact, MatchValue: "starbucks",
			TransactionType: &debit,
			ActionType:      model.ActionCategorize, Account: "Meals",
			TimesMatched: 5, TotalAmountMatched: decimal.RequireFromString("22.75"),
		},
		{
			ID: 2, Name: "Disabled", Priority: 20, IsActive: false,
			MatchField: model.MatchFieldReferenceNumber, MatchType: model.MatchRegex, MatchValue: `^CHK\d+`,
			ActionType: model.ActionLinkToParty,
		},
	}
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2025, 4, 5, 12, 0, 0, 0, time.UTC)
	runs := []model.BulkRun{
		{Source: "cli", StartedAt: now.Add(-48 * time.Hour), Summary: model.BulkSummary{TotalTransactions: 4}},
		{Source: "scheduler", StartedAt: now.Add(-time.Hour), BankAccount: "Checking", Summary: model.BulkSummary{TotalTransactions: 9, RulesApplied: 6, Errors: 1}},
	}

	report := BuildReport(testRules(), runs, now)

	assert.Equal(t, now, report.GeneratedAt)
	assert.Equal(t, 7, report.TotalMatches)
	assert.True(t, decimal.RequireFromString("3022.75").Equal(report.TotalMatched))

	require.Len(t, report.Rules, 3)
	names := []string{report.Rules[0].Name, report.Rules[1].Name, report.Rules[2].Name}
	assert.Equal(t, []string{"Coffee", "Disabled", "Rent"}, names, "priority then id")
	assert.Equal(t, `Party Name Exact Match "starbucks" (Debit)`, report.Rules[0].Match)
	assert.Equal(t, "Categorize", report.Rules[0].Action)
	assert.False(t, report.Rules[1].Active)

	require.Len(t, report.Runs, 2)
	assert.Equal(t, "scheduler", report.Runs[0].Source, "newest run first")
	assert.Equal(t, 6, report.Runs[0].Applied)
	assert.Equal(t, 1, report.Runs[0].Errors)
}

func TestPrepareReportData(t *testing.T) {
	now := time.Date(2025, 4, 5, 12, 0, 0, 0, time.UTC)

	t.Run("rules only", func(t *testing.T) {
		values := prepareReportData(BuildReport(testRules(), nil, now))

		assert.Equal(t, "Bank Rule Statistics", values[0][0])
		assert.Equal(t, "Apr 5, 2025 12:00", values[0][1])
		assert.Equal(t, []any{"Total Matches", 7}, values[3])
		assert.Equal(t, "Name", values[rulesHeaderRow][0])
		assert.Len(t, values[rulesHeaderRow], ruleColumns)
		require.Len(t, values, rulesHeaderRow+1+3)

		coffee := values[rulesHeaderRow+1]
		assert.Equal(t, "Coffee", coffee[0])
		assert.Equal(t, 10, coffee[1])
		assert.Equal(t, "Checking", coffee[3])
		assert.Equal(t, 5, coffee[7])
		assert.Equal(t, "", coffee[8], "never matched by time")
		assert.InDelta(t, 22.75, coffee[9], 0.001)

		rent := values[rulesHeaderRow+3]
		assert.Equal(t, "2025-04-02 09:30", rent[8])
	})

	t.Run("with bulk runs", func(t *testing.T) {
		runs := []model.BulkRun{{Source: "api", StartedAt: now, Summary: model.BulkSummary{TotalTransactions: 2, RulesApplied: 1}}}
		values := prepareReportData(BuildReport(testRules(), runs, now))

		require.Len(t, values, rulesHeaderRow+1+3+4)
		assert.Equal(t, "Bulk Runs", values[len(values)-3][0])
		assert.Equal(t, []any{"2025-04-05 12:00", "api", "", 2, 1, 0}, values[len(values)-1])
	})
}

func TestFormattingRequests(t *testing.T) {
	requests := formattingRequests(3)
	require.Len(t, requests, 5)

	currency := requests[2].RepeatCell
	require.NotNil(t, currency)
	assert.Equal(t, int64(rulesHeaderRow+1), currency.Range.StartRowIndex)
	assert.Equal(t, int64(rulesHeaderRow+4), currency.Range.EndRowIndex)
	assert.Equal(t, "CURRENCY", currency.Cell.UserEnteredFormat.NumberFormat.Type)

	assert.Equal(t, int64(rulesHeaderRow+1), requests[4].UpdateSheetProperties.Properties.GridProperties.FrozenRowCount)
}

// fakeSheetsAPI records the calls the writer makes against the Sheets REST API.
type fakeSheetsAPI struct {
	updates  [][][]any
	requests []string
	mu       sync.Mutex
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Method == http.MethodPut {
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.updates = append(f.updates, body.Values)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
}

func (f *fakeSheetsAPI) count(fragment string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, req := range f.requests {
		if strings.Contains(req, fragment) {
			n++
		}
	}
	return n
}

func TestWriter_Write(t *testing.T) {
	api := &fakeSheetsAPI{}
	server := httptest.NewServer(api)
	defer server.Close()

	ctx := context.Background()
	svc, err := sheets.NewService(ctx,
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	config := DefaultConfig()
	config.SpreadsheetID = "sheet-1"
	config.BatchSize = 5
	writer := &Writer{
		service: svc,
		config:  config,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	report := BuildReport(testRules(), nil, time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, writer.Write(ctx, report))

	assert.Equal(t, 1, api.count("GET /v4/spreadsheets/sheet-1"))
	assert.Equal(t, 1, api.count(":clear"))
	assert.Equal(t, 2, api.count("PUT "), "ten rows in batches of five")
	assert.Equal(t, 1, api.count(":batchUpdate"))

	require.Len(t, api.updates, 2)
	assert.Len(t, api.updates[0], 5)
	assert.Len(t, api.updates[1], 5)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.EnableFormatting)
	assert.Equal(t, "Bank Rule Statistics", config.SpreadsheetName)
	assert.Equal(t, "UTC", config.TimeZone)
	assert.Equal(t, 500, config.BatchSize)
	assert.Equal(t, 3, config.RetryAttempts)
	assert.Equal(t, time.Second, config.RetryDelay)
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	handler := callbackHandler(codes, errs)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", <-codes)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Error(t, <-errs)
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	require.NoError(t, saveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.Equal(t, "access", loaded.AccessToken)

	got, err := GetOrCreateToken(context.Background(), OAuth2Config{TokenFile: path})
	require.NoError(t, err)
	assert.Equal(t, "refresh", got.RefreshToken)

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMockWriter(t *testing.T) {
	mock := NewMockWriter()
	report := Report{TotalMatches: 3}

	require.NoError(t, mock.Write(context.Background(), report))
	mock.SetWriteError(assert.AnError)
	assert.ErrorIs(t, mock.Write(context.Background(), report), assert.AnError)

	calls := mock.GetWriteCalls()
	require.Len(t, calls, 2)
	assert.NoError(t, calls[0].Error)
	assert.Equal(t, 3, calls[1].Report.TotalMatches)
	assert.Equal(t, 2, mock.WriteCallCount)
}
