// Package ofx parses OFX/QFX bank and credit card statements into bank
// transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// An SGML opening tag alone on a line with its closing bracket missing.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
	// accounts maps OFX account ids onto ledger bank account names.
	accounts    map[string]string
	bankAccount string
}

// NewParser creates a parser that books every statement to bankAccount
// unless accounts maps the statement's account id elsewhere. With neither
// set, the OFX account id itself is used.
func NewParser(bankAccount string, accounts map[string]string) *Parser {
	return &Parser{
		bankAccount: bankAccount,
		accounts:    accounts,
		logger:      slog.Default().With("component", "ofx"),
	}
}

func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file into pending bank transactions.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.BankTransaction, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var transactions []model.BankTransaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			transactions = append(transactions,
				p.convertList(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID), stmt.CurDef.String())...)
		}
	}

	for _, msg := range resp.CreditCard {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			transactions = append(transactions,
				p.convertList(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID), stmt.CurDef.String())...)
		}
	}

	p.logger.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, accountID, currency string) []model.BankTransaction {
	if list == nil {
		return nil
	}

	transactions := make([]model.BankTransaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		txn, err := p.convertTransaction(ofxTx, accountID, currency)
		if err != nil {
			p.logger.Warn("Skipping OFX transaction",
				"fitid", ofxTx.FiTID,
				"account", accountID,
				"error", err)
			continue
		}
		transactions = append(transactions, txn)
	}
	return transactions
}

func (p *Parser) bankAccountFor(accountID string) string {
	if mapped, ok := p.accounts[accountID]; ok && mapped != "" {
		return mapped
	}
	if p.bankAccount != "" {
		return p.bankAccount
	}
	return accountID
}

// convertTransaction maps one OFX transaction. OFX signs debits negative.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID, currency string) (model.BankTransaction, error) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		return model.BankTransaction{}, fmt.Errorf("invalid amount: %w", err)
	}
	if ofxTx.DtPosted.IsZero() {
		return model.BankTransaction{}, fmt.Errorf("missing posted date")
	}

	posted := ofxTx.DtPosted.Time
	description := strings.TrimSpace(string(ofxTx.Name))
	if description == "" {
		description = strings.TrimSpace(string(ofxTx.Memo))
	}

	reference := string(ofxTx.CheckNum)
	if reference == "" {
		reference = string(ofxTx.RefNum)
	}

	txn := model.BankTransaction{
		ID:              "OFX-" + string(ofxTx.FiTID),
		Date:            time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC),
		Description:     description,
		ReferenceNumber: reference,
		PartyName:       p.extractMerchantName(ofxTx),
		BankAccount:     p.bankAccountFor(accountID),
		Currency:        currency,
		Status:          model.StatusPending,
	}
	if amount.IsNegative() {
		txn.Withdrawal = amount.Neg()
	} else {
		txn.Deposit = amount
	}
	txn.Hash = txn.GenerateHash()

	return txn, nil
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"ACH CREDIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " date stamps some banks prepend.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "DEPOSIT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// GetAccounts extracts unique account IDs from the OFX file, in file order.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			accounts = append(accounts, id)
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(string(stmt.BankAcctFrom.AcctID))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(string(stmt.CCAcctFrom.AcctID))
		}
	}

	return accounts, nil
}
