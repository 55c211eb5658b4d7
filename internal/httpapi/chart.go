package httpapi

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/service/coa"
)

// maxChartBytes bounds an uploaded chart.
const maxChartBytes = 4 << 20

func (s *Server) importOptions() coa.Options {
	return coa.Options{Duplicates: s.opts.Duplicates, StrictRoles: s.opts.StrictRoles}
}

// runImport imports rows and records metrics and a log line for the outcome.
func (s *Server) runImport(r *http.Request, ledgerID uuid.UUID, rows []chart.Row, opts coa.Options) (coa.Result, error) {
	start := time.Now()
	res, err := s.importer.Import(r.Context(), ledgerID, rows, opts)
	ObserveImport(res, err)
	if err != nil {
		s.log.Warn("chart import failed", "req_id", reqID(r), "ledger_id", ledgerID, "rows", len(rows), "err", err)
		return res, err
	}
	s.log.Info("chart imported",
		"req_id", reqID(r),
		"ledger_id", ledgerID,
		"created", res.Created,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"duration", time.Since(start).String(),
	)
	return res, nil
}

// POST /v1/ledgers/{id}/chart accepts a JSON array of rows or a CSV document.
// ?duplicates=reject|last_wins overrides the configured policy and
// ?dry_run=true reports what an import would do without writing.
func (s *Server) importChart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	opts := s.importOptions()
	if raw := r.URL.Query().Get("duplicates"); raw != "" {
		p, err := coa.ParseDuplicatePolicy(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err.Error(), "invalid")
			return
		}
		opts.Duplicates = p
	}

	body := http.MaxBytesReader(w, r.Body, maxChartBytes)
	var (
		rows []chart.Row
		err  error
	)
	switch mediaType(r) {
	case "application/json":
		rows, err = chart.DecodeJSON(body)
	case "text/csv":
		rows, err = chart.ReadCSV(body)
	default:
		writeErr(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported_media_type")
		return
	}
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}

	var res coa.Result
	if r.URL.Query().Get("dry_run") == "true" {
		res, err = s.importer.Plan(r.Context(), id, rows, opts)
	} else {
		res, err = s.runImport(r, id, rows, opts)
	}
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, res)
}
