// Package chart reads chart-of-accounts definitions: JSON and CSV row files,
// charts bundled into the binary, and file watching for live re-imports.
package chart

import (
	"strings"

	"github.com/tinoosan/books/internal/ledger"
)

// Row is one declared account of a chart. Hierarchy comes from ParentCode;
// Level is a hint that only marks the root row (level 0, no parent).
type Row struct {
	Code          string      `json:"code"`
	ParentCode    *string     `json:"parentCode"`
	Name          string      `json:"name"`
	Level         int         `json:"level"`
	Kind          ledger.Kind `json:"kind"`
	Role          ledger.Role `json:"role"`
	Notes         *string     `json:"notes,omitempty"`
	IsPlaceholder *bool       `json:"isPlaceholder,omitempty"`
}

// Parent returns the trimmed parent code, or "" when the row has none.
func (r Row) Parent() string {
	if r.ParentCode == nil {
		return ""
	}
	return strings.TrimSpace(*r.ParentCode)
}

// IsRootRow reports whether the row declares the chart root.
func (r Row) IsRootRow() bool { return r.Level == 0 && r.Parent() == "" }

func strPtr(s string) *string { return &s }
