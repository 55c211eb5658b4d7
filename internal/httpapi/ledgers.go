package httpapi

import (
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/service/book"
)

// POST /v1/owners
func (s *Server) postOwner(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req createOwnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := s.books.CreateOwner(r.Context(), req.Name)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toOwnerResponse(o))
}

// GET /v1/owners/{id}
func (s *Server) getOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	o, err := s.books.GetOwner(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toOwnerResponse(o))
}

// POST /v1/ledgers creates a ledger with its root account and, when a
// bundled chart is named, imports it.
func (s *Server) postLedger(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req createLedgerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var rows []chart.Row
	if name := strings.TrimSpace(req.Chart); name != "" {
		var err error
		if rows, err = chart.Bundled(name); err != nil {
			s.writeServiceErr(w, r, err)
			return
		}
	}
	l, err := s.books.Create(r.Context(), book.CreateInput{
		OwnerID:   req.OwnerID,
		Name:      req.Name,
		Currency:  req.Currency,
		Precision: req.Precision,
	})
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	if len(rows) > 0 {
		res, err := s.runImport(r, l.ID, rows, s.importOptions())
		if err != nil {
			// The ledger is new and empty; drop it so the request has no effect.
			if derr := s.books.Delete(r.Context(), l.ID, uuid.Nil); derr != nil {
				s.log.Error("drop ledger after failed import", "ledger_id", l.ID, "err", derr)
			}
			s.writeServiceErr(w, r, err)
			return
		}
		s.log.Info("ledger bootstrapped", "ledger_id", l.ID, "chart", req.Chart, "created", res.Created)
		if l, err = s.books.Get(r.Context(), l.ID); err != nil {
			s.writeServiceErr(w, r, err)
			return
		}
	}
	toJSON(w, http.StatusCreated, toLedgerResponse(l))
}

// GET /v1/ledgers?owner_id=
func (s *Server) listLedgers(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("owner_id")
	if raw == "" {
		writeErr(w, http.StatusBadRequest, "owner_id is required", "invalid")
		return
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid owner_id", "invalid")
		return
	}
	ls, err := s.books.List(r.Context(), ownerID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	out := make([]ledgerResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLedgerResponse(l))
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/ledgers/{id}
func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	l, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toLedgerResponse(l))
}

// POST /v1/ledgers/{id}/archive and /unarchive
func (s *Server) archiveLedger(archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		l, err := s.books.SetArchived(r.Context(), id, archived)
		if err != nil {
			s.writeServiceErr(w, r, err)
			return
		}
		toJSON(w, http.StatusOK, toLedgerResponse(l))
	}
}

// DELETE /v1/ledgers/{id}. The X-Active-Ledger header names the ledger the
// caller has open; deleting it is refused.
func (s *Server) deleteLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var active uuid.UUID
	if h := strings.TrimSpace(r.Header.Get("X-Active-Ledger")); h != "" {
		parsed, err := uuid.Parse(h)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid X-Active-Ledger", "invalid")
			return
		}
		active = parsed
	}
	if err := s.books.Delete(r.Context(), id, active); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
