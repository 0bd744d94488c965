package model

import (
	"errors"
	"fmt"
	"time"
)

// Action failure sentinels, matched with errors.Is against an *ActionError.
var (
	ErrMissingAccount   = errors.New("missing account")
	ErrMissingParty     = errors.New("missing party")
	ErrDownstreamCreate = errors.New("downstream create failed")
)

// ActionErrorKind classifies why a rule action could not be carried out.
type ActionErrorKind string

// Action error kinds.
const (
	MissingAccount         ActionErrorKind = "MissingAccount"
	MissingParty           ActionErrorKind = "MissingParty"
	DownstreamCreateFailed ActionErrorKind = "DownstreamCreateFailed"
)

// ActionError is a caught failure of a rule action. It never aborts
// evaluation; it is reported on the ApplyResult instead.
type ActionError struct {
	Err    error
	Kind   ActionErrorKind
	Detail string
}

// NewActionError builds an ActionError of the given kind.
func NewActionError(kind ActionErrorKind, detail string, err error) *ActionError {
	return &ActionError{Kind: kind, Detail: detail, Err: err}
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *ActionError) Is(target error) bool {
	switch e.Kind {
	case MissingAccount:
		return target == ErrMissingAccount
	case MissingParty:
		return target == ErrMissingParty
	case DownstreamCreateFailed:
		return target == ErrDownstreamCreate
	}
	return false
}

// ApplyResult is the outcome of applying one rule to one transaction.
type ApplyResult struct {
	Err        *ActionError `json:"-"`
	RuleName   string       `json:"rule_name"`
	ActionType ActionType   `json:"action_type"`
	ArtifactID string       `json:"artifact_id,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	RuleID     int          `json:"rule_id"`
	Applied    bool         `json:"applied"`
}

// EvaluationResult is the outcome of running the rule list against one transaction.
type EvaluationResult struct {
	TransactionID string        `json:"transaction_id"`
	Results       []ApplyResult `json:"results"`
	RulesChecked  int           `json:"rules_checked"`
}

// Applied reports whether any rule action took effect.
func (r EvaluationResult) Applied() bool {
	for _, res := range r.Results {
		if res.Applied {
			return true
		}
	}
	return false
}

// BulkFilter narrows the transactions considered by a bulk run.
// Zero values mean no filter.
type BulkFilter struct {
	FromDate    *time.Time `json:"from_date,omitempty"`
	ToDate      *time.Time `json:"to_date,omitempty"`
	BankAccount string     `json:"bank_account,omitempty"`
}

// BulkSummary reports aggregate counts of a bulk run.
type BulkSummary struct {
	TotalTransactions int `json:"total_transactions"`
	RulesApplied      int `json:"rules_applied"`
	Errors            int `json:"errors"`
}

// BulkRun records one completed bulk application, whether started from the
// CLI, the API or the scheduler.
type BulkRun struct {
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Source      string      `json:"source"`
	BankAccount string      `json:"bank_account,omitempty"`
	Summary     BulkSummary `json:"summary"`
	ID          int         `json:"id"`
}
