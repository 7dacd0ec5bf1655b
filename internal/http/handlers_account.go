package http

import (
	"net/http"
	"strings"

	"welth/internal/core"
	"welth/internal/log"
)

type accountRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsDefault bool   `json:"isDefault"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, userID string) {
	accounts, err := s.svc.Accounts.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(accounts).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, userID string) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	acc, err := s.svc.Accounts.Create(r.Context(), userID, core.Account{
		Name:      sanitizeInput(req.Name),
		Type:      core.AccountType(strings.ToUpper(strings.TrimSpace(req.Type))),
		IsDefault: req.IsDefault,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(acc).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := s.svc.Accounts.GetWithTransactions(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(acc).Write(w)
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := s.svc.Accounts.SetDefault(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(acc).Write(w)
}
