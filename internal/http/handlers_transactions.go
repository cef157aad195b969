package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	txs, err := s.deps.Transactions.List(r.Context(), uid)
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newTransactionsResponse(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	tx, err := s.deps.Transactions.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newTransactionResponse(tx)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w)
		return
	}

	tx, err := s.deps.Transactions.Create(r.Context(), uid, req.input())
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		JSON(newTransactionResponse(tx)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w)
		return
	}

	tx, err := s.deps.Transactions.Update(r.Context(), uid, chi.URLParam(r, "id"), req.input())
	if err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().JSON(newTransactionResponse(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Transactions.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		errorFor(r, err).Write(w)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
