// Package plaid fetches bank transactions from the Plaid API and maps them
// onto bank transactions ready for rule evaluation.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Config holds Plaid API configuration.
type Config struct {
	// Accounts maps Plaid account ids onto ledger bank account names.
	Accounts    map[string]string
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
	// BankAccount is used for Plaid accounts missing from Accounts.
	BankAccount string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	}
	if c.BankAccount == "" && len(c.Accounts) == 0 {
		return fmt.Errorf("%w: plaid bank account is required", common.ErrMissingConfig)
	}

	switch c.Environment {
	case "sandbox", "production":
	case "":
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	default:
		return fmt.Errorf("%w: invalid Plaid environment: must be sandbox or production", common.ErrInvalidConfig)
	}

	return nil
}

// Client fetches transactions for the configured accounts from Plaid.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	accounts    map[string]string
	retryOpts   common.RetryOptions
	accessToken string
	bankAccount string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: plaid config", common.ErrMissingConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		accounts:    cfg.Accounts,
		bankAccount: cfg.BankAccount,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts:   common.DefaultRetryOptions(),
	}, nil
}

// GetTransactions fetches transactions from Plaid within the specified date range.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.BankTransaction, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", startDate.Format(dateLayout),
		"end_date", endDate.Format(dateLayout))

	var allTransactions []plaid.Transaction
	offset := int32(0)
	const pageSize = int32(500) // Plaid's max page size

	for {
		var page []plaid.Transaction

		retryErr := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format(dateLayout),
				endDate.Format(dateLayout),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.classifyError(err, "failed to fetch transactions")
			}

			page = resp.GetTransactions()
			c.logger.Debug("Fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())
			return nil
		}, c.retryOpts)
		if retryErr != nil {
			return nil, retryErr
		}

		allTransactions = append(allTransactions, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	c.logger.Info("Fetched all transactions", "count", len(allTransactions))

	transactions := make([]model.BankTransaction, 0, len(allTransactions))
	for _, pt := range allTransactions {
		txn, err := c.mapPlaidTransaction(pt)
		if err != nil {
			c.logger.Warn("Skipping unmappable transaction",
				"transaction_id", pt.GetTransactionId(),
				"error", err)
			continue
		}
		transactions = append(transactions, txn)
	}

	return transactions, nil
}

// GetAccounts fetches account IDs from Plaid.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	var accounts []plaid.AccountBase
	retryErr := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return c.classifyError(err, "failed to fetch accounts")
		}
		accounts = resp.GetAccounts()
		return nil
	}, c.retryOpts)
	if retryErr != nil {
		return nil, retryErr
	}

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.GetAccountId())
	}
	return accountIDs, nil
}

// classifyError marks rate limits retryable and everything else final.
func (c *Client) classifyError(err error, msg string) error {
	if plaidError := extractPlaidError(err); plaidError != nil {
		if plaidError.ErrorCode == "RATE_LIMIT_EXCEEDED" {
			c.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
			return common.Transient("%w: %s", common.ErrRateLimit, plaidError.ErrorMessage)
		}
		return common.Permanent(fmt.Errorf("%w: plaid %s - %s", common.ErrFeedUnavailable, plaidError.ErrorCode, plaidError.ErrorMessage))
	}
	return fmt.Errorf("%w: plaid: %s: %w", common.ErrFeedUnavailable, msg, err)
}

// mapPlaidTransaction converts a Plaid transaction to a pending bank
// transaction. Plaid reports money out as positive amounts.
func (c *Client) mapPlaidTransaction(pt plaid.Transaction) (model.BankTransaction, error) {
	date, err := time.Parse(dateLayout, pt.GetDate())
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("invalid transaction date %q: %w", pt.GetDate(), err)
	}

	bankAccount := c.bankAccount
	if mapped, ok := c.accounts[pt.GetAccountId()]; ok {
		bankAccount = mapped
	} else if mapped, ok := c.accounts[strings.ToLower(pt.GetAccountId())]; ok {
		// Keys read through viper arrive lowercased.
		bankAccount = mapped
	}
	if bankAccount == "" {
		return model.BankTransaction{}, errors.New("no bank account configured for plaid account " + pt.GetAccountId())
	}

	partyName := pt.GetMerchantName()
	if partyName == "" {
		partyName = pt.GetName()
	}

	amount := decimal.NewFromFloat(pt.GetAmount()).Round(2)

	txn := model.BankTransaction{
		ID:              "PLAID-" + pt.GetTransactionId(),
		Date:            date,
		Description:     pt.GetName(),
		ReferenceNumber: pt.GetCheckNumber(),
		PartyName:       cleanPartyName(partyName),
		BankAccount:     bankAccount,
		Currency:        pt.GetIsoCurrencyCode(),
		Status:          model.StatusPending,
	}
	if amount.IsNegative() {
		txn.Deposit = amount.Abs()
	} else {
		txn.Withdrawal = amount
	}
	txn.Hash = txn.GenerateHash()

	return txn, nil
}

// cleanPartyName standardizes merchant names by removing trailing
// transaction ids and corporate suffixes.
func cleanPartyName(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, word := range words {
		runes := []rune(word)
		for j := range runes {
			if j == 0 || !isLetter(runes[j-1]) {
				runes[j] = toUpper(runes[j])
			}
		}
		words[i] = string(runes)
	}

	// "MERCHANT 123456789": a long all-digit tail is a transaction id.
	if len(words) > 1 {
		last := words[len(words)-1]
		if len(last) > 5 && isAllDigits(last) {
			words = words[:len(words)-1]
		}
	}
	name = strings.Join(words, " ")

	suffixes := []string{" Llc", " Inc", " Corp", " Corporation", " Company", " Co", " Ltd", " Limited"}
	for changed := true; changed; {
		changed = false
		for _, suffix := range suffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				changed = true
			}
		}
	}

	return strings.TrimSpace(name)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 32
	}
	return r
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

