package httpapi

import (
	"net/http"

	"github.com/tinoosan/books/internal/dictionary"
	"github.com/tinoosan/books/internal/ledger"
)

// GET /v1/dictionary/roles?kind=
func (s *Server) getRolesDictionary(w http.ResponseWriter, r *http.Request) {
	var k *ledger.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		parsed, err := ledger.ParseKind(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err.Error(), "invalid")
			return
		}
		k = &parsed
	}
	out := struct {
		Items []dictionary.KindDef `json:"items"`
	}{Items: dictionary.Kinds(k)}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	toJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports 503 until the store answers.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.ready(r.Context()); err != nil {
		s.log.Warn("not ready", "err", err)
		writeErr(w, http.StatusServiceUnavailable, "not ready", "unavailable")
		return
	}
	toJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
