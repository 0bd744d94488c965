package rules

import (
	"regexp"
	"strings"
	"sync"

	"github.com/Veraticus/bankrules/internal/model"
)

// Matcher evaluates rule predicates against transaction snapshots. Compiled
// regular expressions are cached per rule id and pattern.
type Matcher struct {
	compiled map[int]compiledPattern
	mu       sync.RWMutex
}

type compiledPattern struct {
	re      *regexp.Regexp
	pattern string
}

// NewMatcher creates a matcher with an empty regex cache.
func NewMatcher() *Matcher {
	return &Matcher{compiled: make(map[int]compiledPattern)}
}

// Matches reports whether the rule matches the transaction snapshot.
// It never panics or errors; a pattern that fails to compile does not match.
func Matches(rule model.BankRule, txn model.Snapshot) bool {
	return matchWith(rule, txn, func(pattern string) *regexp.Regexp {
		re, err := compileSearch(pattern)
		if err != nil {
			return nil
		}
		return re
	})
}

// Match is Matches with regex compilation cached on the matcher.
func (m *Matcher) Match(rule model.BankRule, txn model.Snapshot) bool {
	return matchWith(rule, txn, func(pattern string) *regexp.Regexp {
		return m.regexFor(rule.ID, pattern)
	})
}

func matchWith(rule model.BankRule, txn model.Snapshot, regexFor func(string) *regexp.Regexp) bool {
	if rule.TransactionType != nil && *rule.TransactionType != txn.TransactionType {
		return false
	}

	amount := txn.Amount.Abs()
	if rule.MinAmount != nil && amount.LessThan(*rule.MinAmount) {
		return false
	}
	if rule.MaxAmount != nil && amount.GreaterThan(*rule.MaxAmount) {
		return false
	}

	fieldValue := strings.ToLower(fieldFor(rule.MatchField, txn))
	matchValue := strings.ToLower(rule.MatchValue)

	switch rule.MatchType {
	case model.MatchContains:
		return strings.Contains(fieldValue, matchValue)
	case model.MatchStartsWith:
		return strings.HasPrefix(fieldValue, matchValue)
	case model.MatchEndsWith:
		return strings.HasSuffix(fieldValue, matchValue)
	case model.MatchExact:
		return fieldValue == matchValue
	case model.MatchRegex:
		re := regexFor(rule.MatchValue)
		if re == nil {
			return false
		}
		return re.MatchString(fieldValue)
	}

	return false
}

// fieldFor resolves the attribute named by the match field, defaulting to
// the description.
func fieldFor(field model.MatchField, txn model.Snapshot) string {
	switch field {
	case model.MatchFieldReferenceNumber:
		return txn.ReferenceNumber
	case model.MatchFieldPartyName:
		return txn.PartyName
	default:
		return txn.Description
	}
}

func (m *Matcher) regexFor(ruleID int, pattern string) *regexp.Regexp {
	m.mu.RLock()
	cached, ok := m.compiled[ruleID]
	m.mu.RUnlock()
	if ok && cached.pattern == pattern {
		return cached.re
	}

	// A nil entry is cached too so a broken pattern is not recompiled per transaction.
	re, err := compileSearch(pattern)
	if err != nil {
		re = nil
	}

	m.mu.Lock()
	m.compiled[ruleID] = compiledPattern{re: re, pattern: pattern}
	m.mu.Unlock()

	return re
}

// compileSearch compiles a case-insensitive, unanchored pattern.
func compileSearch(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}
