package httpapi

import (
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
)

// POST /v1/ledgers/{id}/transactions
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req postTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx := ledger.Transaction{LedgerID: id, Description: req.Description}
	if req.Date != nil {
		tx.PostDate = req.Date.UTC()
	}
	for i, sp := range req.Splits {
		v, err := ledger.ParseRational(sp.Amount)
		if err != nil {
			s.writeServiceErr(w, r, fmt.Errorf("split[%d]: %v: %w", i, err, errs.ErrInvalidValue))
			return
		}
		tx.Splits = append(tx.Splits, ledger.Split{AccountID: sp.AccountID, Side: sp.Side, Value: v, Memo: sp.Memo})
	}
	created, err := s.journal.Record(r.Context(), tx)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	s.writeTransaction(w, r, http.StatusCreated, created)
}

// GET /v1/ledgers/{id}/transactions
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	l, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	txs, err := s.journal.List(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx, l.Precision))
	}
	toJSON(w, http.StatusOK, out)
}

// POST /v1/ledgers/{id}/transactions/{txID}/reverse posts the opposite entry.
func (s *Server) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	txID, ok := pathID(w, chi.URLParam(r, "txID"))
	if !ok {
		return
	}
	var req reverseRequest
	if r.ContentLength > 0 {
		if !requireJSON(w, r) || !decodeJSON(w, r, &req) {
			return
		}
	}
	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}
	created, err := s.journal.Reverse(r.Context(), id, txID, date)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	s.writeTransaction(w, r, http.StatusCreated, created)
}

func (s *Server) writeTransaction(w http.ResponseWriter, r *http.Request, status int, tx ledger.Transaction) {
	prec := ledger.MaxPrecision
	if l, err := s.books.Get(r.Context(), tx.LedgerID); err == nil {
		prec = l.Precision
	}
	toJSON(w, status, toTransactionResponse(tx, prec))
}
