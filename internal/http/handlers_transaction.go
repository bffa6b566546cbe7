package http

import (
	"net/http"

	"finscope/internal/core"
)

type transactionRequest struct {
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

func (req transactionRequest) fields() core.TransactionFields {
	return core.TransactionFields{
		Kind:        core.Kind(req.Kind),
		Title:       req.Title,
		Amount:      req.Amount,
		Description: req.Description,
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	record, err := s.txns.Create(r.Context(), identity.ID, req.fields())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(record))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.txns.List(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTOs(records))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := s.txns.Get(r.Context(), identity.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(record))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	record, err := s.txns.Update(r.Context(), identity.ID, r.PathValue("id"), req.fields())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(record))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.txns.Delete(r.Context(), identity.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
