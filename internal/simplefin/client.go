// Package simplefin fetches posted transactions from a SimpleFIN bridge and
// maps them onto bank transactions.
package simplefin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
)

// Config holds SimpleFIN settings.
type Config struct {
	// Accounts maps SimpleFIN account ids onto ledger bank account names.
	Accounts map[string]string
	// Token is the one-time setup token; only needed until it is claimed.
	Token     string
	StateFile string
	// BankAccount is used for accounts missing from Accounts.
	BankAccount string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.StateFile == "" {
		return fmt.Errorf("%w: simplefin state file is required", common.ErrMissingConfig)
	}
	if c.BankAccount == "" && len(c.Accounts) == 0 {
		return fmt.Errorf("%w: simplefin bank account is required", common.ErrMissingConfig)
	}
	return nil
}

// Client fetches transactions from the SimpleFIN access URL.
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	accounts    map[string]string
	accessURL   string
	bankAccount string
	retryOpts   common.RetryOptions
}

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Balance      string        `json:"balance"`
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// NewClient loads or claims the access URL and returns a client for it.
func NewClient(ctx context.Context, cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: simplefin config", common.ErrMissingConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "simplefin")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	auth, err := LoadOrClaimAuth(ctx, httpClient, cfg.Token, cfg.StateFile, logger)
	if err != nil {
		return nil, fmt.Errorf("simplefin auth: %w", err)
	}

	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		accounts:    cfg.Accounts,
		accessURL:   strings.TrimSuffix(auth.AccessURL, "/"),
		bankAccount: cfg.BankAccount,
		retryOpts:   common.DefaultRetryOptions(),
	}, nil
}

// GetTransactions fetches posted transactions dated within [startDate, endDate].
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.BankTransaction, error) {
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	q := url.Values{}
	q.Set("start-date", strconv.FormatInt(startDate.Unix(), 10))
	// end-date is exclusive.
	q.Set("end-date", strconv.FormatInt(endDate.AddDate(0, 0, 1).Unix(), 10))

	set, err := c.fetchAccounts(ctx, q)
	if err != nil {
		return nil, err
	}

	var txns []model.BankTransaction
	for _, acct := range set.Accounts {
		for _, tx := range acct.Transactions {
			if tx.Pending {
				continue
			}
			txn, mapErr := c.mapTransaction(acct, tx)
			if mapErr != nil {
				c.logger.Warn("Skipping unmappable transaction",
					"account_id", acct.ID,
					"transaction_id", tx.ID,
					"error", mapErr)
				continue
			}
			if txn.Date.Before(startDate) || txn.Date.After(endDate) {
				continue
			}
			txns = append(txns, txn)
		}
	}

	c.logger.Info("Fetched SimpleFIN transactions", "count", len(txns))
	return txns, nil
}

// GetAccounts returns the SimpleFIN account ids.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("balances-only", "1")
	set, err := c.fetchAccounts(ctx, q)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(set.Accounts))
	for _, acct := range set.Accounts {
		ids = append(ids, acct.ID)
	}
	return ids, nil
}

func (c *Client) fetchAccounts(ctx context.Context, q url.Values) (*accountSet, error) {
	u, err := url.Parse(c.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to parse access URL: %w", err)
	}
	u.RawQuery = q.Encode()

	var set accountSet
	err = common.WithRetry(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if reqErr != nil {
			return common.Permanent(reqErr)
		}

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return fmt.Errorf("%w: simplefin: %w", common.ErrFeedUnavailable, doErr)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests:
			return &common.RetryableError{
				Err:        fmt.Errorf("%w: simplefin: %w", common.ErrFeedUnavailable, common.ErrRateLimit),
				Retryable:  true,
				RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			}
		case resp.StatusCode >= 500:
			return common.Transient("%w: simplefin returned %d", common.ErrFeedUnavailable, resp.StatusCode)
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return common.Permanent(fmt.Errorf("%w: simplefin returned %d - %s",
				common.ErrFeedUnavailable, resp.StatusCode, strings.TrimSpace(string(body))))
		}

		set = accountSet{}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&set); decodeErr != nil {
			return common.Permanent(fmt.Errorf("failed to decode simplefin response: %w", decodeErr))
		}
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN reported an error", "message", msg)
	}
	return &set, nil
}

// mapTransaction converts a posted SimpleFIN transaction. Amounts are signed
// decimal strings with money out negative.
func (c *Client) mapTransaction(acct account, tx transaction) (model.BankTransaction, error) {
	bankAccount := c.bankAccount
	if mapped, ok := c.accounts[acct.ID]; ok {
		bankAccount = mapped
	} else if mapped, ok := c.accounts[strings.ToLower(acct.ID)]; ok {
		// Keys read through viper arrive lowercased.
		bankAccount = mapped
	}
	if bankAccount == "" {
		return model.BankTransaction{}, errors.New("no bank account configured for simplefin account " + acct.ID)
	}

	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("invalid amount %q: %w", tx.Amount, err)
	}
	if tx.Posted == 0 {
		return model.BankTransaction{}, errors.New("missing posted date")
	}

	posted := time.Unix(tx.Posted, 0).UTC()
	currency := acct.Currency
	if currency == "" || isHTTPURL(currency) {
		// Custom currencies are URLs; treat them as unknown.
		currency = "USD"
	}

	txn := model.BankTransaction{
		ID:          "SIMPLEFIN-" + acct.ID + "_" + tx.ID,
		Date:        time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC),
		Description: tx.Description,
		PartyName:   strings.TrimSpace(tx.Payee),
		BankAccount: bankAccount,
		Currency:    currency,
		Status:      model.StatusPending,
	}
	if amount.IsNegative() {
		txn.Withdrawal = amount.Abs()
	} else {
		txn.Deposit = amount
	}
	txn.Hash = txn.GenerateHash()

	return txn, nil
}

// retryAfter reads a Retry-After header given in seconds. Dates and junk are ignored.
func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
