package httpapi

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/books/internal/service/account"
	"github.com/tinoosan/books/internal/service/balance"
)

// GET /v1/ledgers/{id}/accounts
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	accts, err := s.accounts.List(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accts))
	for _, a := range accts {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/ledgers/{id}/accounts/tree returns the materialized chart with
// subtree balances. ?balances=false omits them.
func (s *Server) accountTree(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	root, err := s.accounts.Tree(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if r.URL.Query().Get("balances") == "false" {
		toJSON(w, http.StatusOK, toTreeResponse(root, nil, 0))
		return
	}
	start := time.Now()
	snap, err := s.balances.Compute(r.Context(), id, balance.Options{IncludeDescendants: true})
	observeBalance(start, err)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toTreeResponse(root, snap.Balances, snap.Ledger.Precision))
}

// GET /v1/accounts/{id}
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	a, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// PATCH /v1/accounts/{id} changes descriptive fields only.
func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req updateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := s.accounts.Update(r.Context(), id, account.Patch{Name: req.Name, Hidden: req.Hidden, Notes: req.Notes})
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// DELETE /v1/accounts/{id} soft-deactivates the account.
func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := s.accounts.Deactivate(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
