package chart

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tinoosan/books/internal/errs"
)

// DecodeJSON reads a JSON array of rows. Malformed input and an empty array
// both fail with errs.ErrDecodeFailed.
func DecodeJSON(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecodeFailed, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: chart has no rows", errs.ErrDecodeFailed)
	}
	return rows, nil
}

// EncodeJSON writes rows as an indented JSON array.
func EncodeJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encoding chart: %w", err)
	}
	return nil
}
