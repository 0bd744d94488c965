package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/Veraticus/bankrules/internal/rules"
	"github.com/gorilla/mux"
)

const dateLayout = "2006-01-02"

// ErrBadRequest marks malformed request input.
var ErrBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// bulkApplyRequest is the POST /api/bank-rules/bulk-apply body. Dates use
// the YYYY-MM-DD layout.
type bulkApplyRequest struct {
	FromDate    string `json:"from_date,omitempty"`
	ToDate      string `json:"to_date,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
}

type bulkApplyResponse struct {
	model.BulkSummary
	RunID int `json:"run_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, rules.ErrInvalidRule),
		errors.Is(err, rules.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func ruleID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid rule id", ErrBadRequest)
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}

func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrBadRequest, field)
	}
	return &t, nil
}

func (s *Server) applyRules(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ApplyRulesToTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) suggestRule(w http.ResponseWriter, r *http.Request) {
	draft, err := s.engine.SuggestRule(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) bulkApply(w http.ResponseWriter, r *http.Request) {
	var req bulkApplyRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	from, err := parseDate(req.FromDate, "from_date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseDate(req.ToDate, "to_date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	run := model.BulkRun{Source: SourceAPI, BankAccount: req.BankAccount, StartedAt: s.now()}
	summary, applyErr := s.engine.BulkApply(r.Context(), model.BulkFilter{
		FromDate:    from,
		ToDate:      to,
		BankAccount: req.BankAccount,
	})
	if errors.Is(applyErr, rules.ErrInvalidFilter) {
		s.writeError(w, r, applyErr)
		return
	}
	run.Summary = summary
	run.FinishedAt = s.now()

	// Failed and canceled passes are recorded too, with what they counted.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
	defer cancel()
	if err := s.store.RecordBulkRun(recordCtx, &run); err != nil {
		s.logger.Warn("failed to record bulk run", "error", err)
	}

	if applyErr != nil {
		s.writeError(w, r, applyErr)
		return
	}
	writeJSON(w, http.StatusOK, bulkApplyResponse{BulkSummary: summary, RunID: run.ID})
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	bankRules, err := s.store.ListBankRules(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bankRules == nil {
		bankRules = []model.BankRule{}
	}
	writeJSON(w, http.StatusOK, bankRules)
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rule, err := s.store.GetBankRule(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule model.BankRule
	if err := decodeBody(r, &rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	rule.ID = 0
	if err := rules.ValidateRule(&rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.CreateBankRule(r.Context(), &rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var rule model.BankRule
	if err := decodeBody(r, &rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	rule.ID = id
	if err := rules.ValidateRule(&rule); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.UpdateBankRule(r.Context(), &rule); err != nil {
		s.writeError(w, r, err)
		return
	}

	stored, err := s.store.GetBankRule(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteBankRule(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listBulkRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}

	runs, err := s.store.ListBulkRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.BulkRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
