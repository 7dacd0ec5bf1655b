package http

import (
	"net/http"

	"welth/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	tx, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.svc.Transactions.Create(r.Context(), userID, tx)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	s.appMetrics.transactionsCreated.Add(1)
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	tx, err := s.svc.Transactions.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	tx, err := decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.svc.Transactions.Update(r.Context(), userID, r.PathValue("id"), tx)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.svc.Transactions.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	s.appMetrics.transactionsDeleted.Add(1)
	NewJSONResponse().Data(map[string]string{"id": r.PathValue("id")}).Write(w)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleBulkDeleteTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpBulkDelete, err)
		return
	}
	n, err := s.svc.Transactions.BulkDelete(r.Context(), userID, req.IDs)
	if err != nil {
		writeError(w, r, log.OpBulkDelete, err)
		return
	}
	s.appMetrics.transactionsDeleted.Add(int64(n))
	NewJSONResponse().Data(map[string]int{"deleted": n}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	txs, err := s.svc.Transactions.List(r.Context(), userID, f)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(txs).Write(w)
}
