package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/service/coa"
)

type errorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	Row         int    `json:"row,omitempty"`
	AccountCode string `json:"account_code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes a JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json", "invalid_json")
		return false
	}
	return true
}

// pathID parses a uuid path parameter, writing 400 when it is malformed.
func pathID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id", "invalid_id")
		return uuid.Nil, false
	}
	return id, true
}

// codedErrors is ordered from most to least specific.
var codedErrors = []error{
	errs.ErrDecodeFailed,
	errs.ErrResourceNotFound,
	errs.ErrDuplicateCode,
	errs.ErrMissingParent,
	errs.ErrParentCycle,
	errs.ErrTooFewSplits,
	errs.ErrInvalidValue,
	errs.ErrUnbalanced,
	errs.ErrPlaceholder,
	errs.ErrUnprocessable,
	errs.ErrInvalid,
}

func codeOf(err error) string {
	for _, target := range codedErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "invalid"
}

// writeServiceErr maps service errors to HTTP responses.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found", "not_found")
	case errors.Is(err, errs.ErrArchived):
		writeErr(w, http.StatusConflict, "ledger is archived", "archived")
	case errors.Is(err, errs.ErrActiveLedger):
		writeErr(w, http.StatusConflict, "ledger is active", "active_ledger")
	case errors.Is(err, errs.ErrRootAccount):
		writeErr(w, http.StatusConflict, "the root account cannot be changed", "root_account")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, errs.ErrImmutable):
		writeErr(w, http.StatusConflict, "immutable field", "immutable")
	case errors.Is(err, errs.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden", "forbidden")
	case errs.IsInput(err):
		resp := errorResponse{Error: err.Error(), Code: codeOf(err)}
		var rowErr *coa.RowError
		if errors.As(err, &rowErr) {
			resp.Row = rowErr.Row
			resp.AccountCode = rowErr.Code
		}
		toJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "internal")
	}
}
