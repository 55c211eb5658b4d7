package httpapi

import (
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/books/internal/service/balance"
)

// GET /v1/ledgers/{id}/balances?descendants=true|false&display=natural|inverted
func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	q := r.URL.Query()
	descendants := true
	if raw := q.Get("descendants"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid descendants", "invalid")
			return
		}
		descendants = v
	}
	conv, err := balance.ParseConvention(q.Get("display"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid display", "invalid")
		return
	}

	start := time.Now()
	snap, err := s.balances.Compute(r.Context(), id, balance.Options{IncludeDescendants: descendants})
	observeBalance(start, err)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	s.log.Debug("balances computed", "req_id", reqID(r), "ledger_id", id, "accounts", len(snap.Accounts), "duration", time.Since(start).String())

	prec := snap.Ledger.Precision
	out := balancesResponse{
		LedgerID:   snap.Ledger.ID,
		Currency:   snap.Ledger.Currency,
		Convention: string(conv),
		ComputedAt: snap.ComputedAt,
		Items:      make([]balanceItem, 0, len(snap.Accounts)),
	}
	for _, a := range snap.Accounts {
		b := snap.Balances[a.ID]
		own := balance.Display(a.Kind, b.Own, conv)
		total := balance.Display(a.Kind, b.Total, conv)
		out.Items = append(out.Items, balanceItem{
			AccountID: a.ID,
			Code:      a.Code,
			Name:      a.Name,
			Own:       formatDecimal(own, prec),
			Total:     formatDecimal(total, prec),
			Formatted: formatAmount(snap.Ledger.Currency, total, prec),
		})
	}
	toJSON(w, http.StatusOK, out)
}
