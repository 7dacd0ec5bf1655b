package http

import (
	"net/http"
	"strings"

	"welth/internal/core"
	"welth/internal/log"
)

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, userID string) {
	accountID := strings.TrimSpace(r.URL.Query().Get("accountId"))
	if accountID == "" {
		writeError(w, r, log.OpRead, core.ErrMissingAccount)
		return
	}
	status, err := s.svc.Budgets.Current(r.Context(), userID, accountID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(status).Write(w)
}

type budgetRequest struct {
	Amount AmountField `json:"amount"`
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request, userID string) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if !req.Amount.Set {
		writeError(w, r, log.OpUpdate, core.ErrInvalidAmount)
		return
	}
	b, err := s.svc.Budgets.Update(r.Context(), userID, req.Amount.Value)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(b).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := s.svc.Dashboard.Load(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(data).Write(w)
}
