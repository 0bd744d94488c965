package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/shopspring/decimal"
)

var errNotFound = errors.New("not found")

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	transactions   map[string]*model.BankTransaction
	failCategorize map[string]error
	paymentErr     error
	journalErr     error
	statsErr       error
	payments       []model.PaymentEntry
	journals       []model.JournalEntry
	rules          []model.BankRule
	statsSaved     []model.BankRule
	mu             sync.Mutex
}

func newFakeStore(rules ...model.BankRule) *fakeStore {
	return &fakeStore{
		transactions:   make(map[string]*model.BankTransaction),
		failCategorize: make(map[string]error),
		rules:          rules,
	}
}

func (s *fakeStore) addTransaction(txn model.BankTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[txn.ID] = &txn
}

func (s *fakeStore) rule(id int) model.BankRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r
		}
	}
	return model.BankRule{}
}

func (s *fakeStore) GetActiveBankRules(_ context.Context) ([]model.BankRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []model.BankRule
	for _, r := range s.rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})
	return active, nil
}

func (s *fakeStore) RecordBankRuleMatch(_ context.Context, ruleID int, amount decimal.Decimal, at time.Time) (*model.BankRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	for i := range s.rules {
		if s.rules[i].ID == ruleID {
			s.rules[i].RecordMatch(amount, at)
			s.statsSaved = append(s.statsSaved, s.rules[i])
			cp := s.rules[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("bank rule %d: %w", ruleID, errNotFound)
}

func (s *fakeStore) GetBankTransaction(_ context.Context, id string) (*model.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, errNotFound)
	}
	cp := *txn
	return &cp, nil
}

func (s *fakeStore) UpdateCategorization(_ context.Context, id string, c model.Categorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCategorize[id]; err != nil {
		return err
	}
	txn, ok := s.transactions[id]
	if !ok {
		return errNotFound
	}
	c.ApplyTo(txn)
	return nil
}

func (s *fakeStore) GetPendingBankTransactions(_ context.Context, filter model.BulkFilter) ([]model.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BankTransaction
	for _, txn := range s.transactions {
		if txn.Status != model.StatusPending && txn.Status != model.StatusUnreconciled {
			continue
		}
		if filter.BankAccount != "" && txn.BankAccount != filter.BankAccount {
			continue
		}
		if filter.FromDate != nil && txn.Date.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && txn.Date.After(*filter.ToDate) {
			continue
		}
		out = append(out, *txn)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fakeStore) CreatePaymentEntry(_ context.Context, entry *model.PaymentEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentErr != nil {
		return "", s.paymentErr
	}
	entry.ID = fmt.Sprintf("PE-%d", len(s.payments)+1)
	s.payments = append(s.payments, *entry)
	return entry.ID, nil
}

func (s *fakeStore) CreateJournalEntry(_ context.Context, entry *model.JournalEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalErr != nil {
		return "", s.journalErr
	}
	entry.ID = fmt.Sprintf("JE-%d", len(s.journals)+1)
	s.journals = append(s.journals, *entry)
	return entry.ID, nil
}

func (s *fakeStore) FindArtifact(_ context.Context, transactionID string, kind model.ArtifactKind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case model.ArtifactPaymentEntry:
		for _, p := range s.payments {
			if p.BankTransaction == transactionID {
				return p.ID, nil
			}
		}
	case model.ArtifactJournalEntry:
		for _, j := range s.journals {
			if j.BankTransaction == transactionID {
				return j.ID, nil
			}
		}
	}
	return "", nil
}
