package chart

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
)

const (
	numFields      = 8
	colCode        = 0
	colParent      = 1
	colName        = 2
	colLevel       = 3
	colKind        = 4
	colRole        = 5
	colNotes       = 6
	colPlaceholder = 7
)

var csvHeader = []string{"code", "parent_code", "name", "level", "kind", "role", "notes", "is_placeholder"}

// ReadCSV reads a chart CSV with a header row. Kind accepts the numeric code
// or the kind name.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading chart CSV: %v", errs.ErrDecodeFailed, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: chart has no rows", errs.ErrDecodeFailed)
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", errs.ErrDecodeFailed, i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with a header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(MarshalRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRow converts a Row to a CSV record.
func MarshalRow(row Row) []string {
	rec := make([]string, numFields)
	rec[colCode] = row.Code
	rec[colParent] = row.Parent()
	rec[colName] = row.Name
	rec[colLevel] = strconv.Itoa(row.Level)
	rec[colKind] = strconv.Itoa(int(row.Kind))
	rec[colRole] = strconv.Itoa(int(row.Role))
	if row.Notes != nil {
		rec[colNotes] = *row.Notes
	}
	if row.IsPlaceholder != nil {
		rec[colPlaceholder] = strconv.FormatBool(*row.IsPlaceholder)
	}
	return rec
}

// UnmarshalRow converts a CSV record to a Row.
func UnmarshalRow(rec []string) (Row, error) {
	if len(rec) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}
	row := Row{Code: rec[colCode], Name: rec[colName]}
	if p := strings.TrimSpace(rec[colParent]); p != "" {
		row.ParentCode = strPtr(p)
	}
	if s := strings.TrimSpace(rec[colLevel]); s != "" {
		level, err := strconv.Atoi(s)
		if err != nil {
			return Row{}, fmt.Errorf("parsing level %q: %w", s, err)
		}
		row.Level = level
	}
	if s := strings.TrimSpace(rec[colKind]); s != "" && s != "0" {
		kind, err := ledger.ParseKind(s)
		if err != nil {
			return Row{}, err
		}
		row.Kind = kind
	}
	if s := strings.TrimSpace(rec[colRole]); s != "" {
		role, err := strconv.Atoi(s)
		if err != nil {
			return Row{}, fmt.Errorf("parsing role %q: %w", s, err)
		}
		row.Role = ledger.Role(role)
	}
	if rec[colNotes] != "" {
		row.Notes = strPtr(rec[colNotes])
	}
	if s := strings.TrimSpace(rec[colPlaceholder]); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Row{}, fmt.Errorf("parsing is_placeholder %q: %w", s, err)
		}
		row.IsPlaceholder = &b
	}
	return row, nil
}
