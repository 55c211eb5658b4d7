// Package coa implements the chart-of-accounts importer: it reconciles a
// ledger's account tree with a flat list of declared rows, keyed by code.
//
// Imports are idempotent. Accounts keep their ids across re-imports and are
// only updated in place; placeholder flags are re-derived from the rows on
// every run. All writes of one import go through a single unit of work.
package coa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/dictionary"
	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/meta"
)

// UnitOfWork stages the reads and writes of one import. Nothing is visible to
// other readers until SaveAll succeeds. Rollback after SaveAll is a no-op.
type UnitOfWork interface {
	GetLedger(ctx context.Context, ledgerID uuid.UUID) (ledger.Ledger, error)
	FindAccountsByLedger(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Account, error)
	UpsertAccount(ctx context.Context, a ledger.Account) error
	// SetRoot points the ledger at rootID and touches no other ledger field.
	// It fails with errs.ErrArchived when the ledger was archived meanwhile.
	SetRoot(ctx context.Context, rootID uuid.UUID) error
	SaveAll(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Writer opens a unit of work. Implementations serialize units of work
// against the same ledger.
type Writer interface {
	Begin(ctx context.Context, ledgerID uuid.UUID) (UnitOfWork, error)
}

type Service interface {
	// Import reconciles the ledger's chart with rows and commits atomically.
	Import(ctx context.Context, ledgerID uuid.UUID, rows []chart.Row, opts Options) (Result, error)
	// Plan runs the reconciliation without committing anything.
	Plan(ctx context.Context, ledgerID uuid.UUID, rows []chart.Row, opts Options) (Result, error)
}

// DuplicatePolicy decides what happens when two rows share a normalized code.
type DuplicatePolicy string

const (
	// DuplicateReject fails the whole import with errs.ErrDuplicateCode.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateLastWins keeps the later row in place of the earlier one.
	DuplicateLastWins DuplicatePolicy = "last_wins"
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicateReject:
		return DuplicateReject, nil
	case DuplicateLastWins:
		return DuplicateLastWins, nil
	}
	return "", fmt.Errorf("duplicate policy %q: %w", s, errs.ErrInvalid)
}

type Options struct {
	Duplicates DuplicatePolicy
	// StrictRoles rejects rows whose role belongs to a different kind.
	// Kind and role are otherwise independent.
	StrictRoles bool
}

// Result summarizes an import. Counts cover every account of the ledger.
type Result struct {
	LedgerID  uuid.UUID `json:"ledger_id"`
	RootID    uuid.UUID `json:"root_id"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Skipped   int       `json:"skipped"`
}

// Changed reports whether the import wrote anything.
func (r Result) Changed() bool { return r.Created > 0 || r.Updated > 0 }

// RowError ties an input error to the 1-based row that caused it.
type RowError struct {
	Row  int
	Code string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (code %q): %v", e.Row, e.Code, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type service struct {
	writer Writer
	now    func() time.Time
}

func New(writer Writer) Service { return &service{writer: writer, now: time.Now} }

func (s *service) Import(ctx context.Context, ledgerID uuid.UUID, rows []chart.Row, opts Options) (Result, error) {
	return s.run(ctx, ledgerID, rows, opts, true)
}

func (s *service) Plan(ctx context.Context, ledgerID uuid.UUID, rows []chart.Row, opts Options) (Result, error) {
	return s.run(ctx, ledgerID, rows, opts, false)
}

func (s *service) run(ctx context.Context, ledgerID uuid.UUID, rows []chart.Row, opts Options, commit bool) (Result, error) {
	if ledgerID == uuid.Nil {
		return Result{}, errs.ErrInvalid
	}
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicateReject
	}
	in, err := normalize(rows, opts)
	if err != nil {
		return Result{}, err
	}

	uow, err := s.writer.Begin(ctx, ledgerID)
	if err != nil {
		return Result{}, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	l, err := uow.GetLedger(ctx, ledgerID)
	if err != nil {
		return Result{}, err
	}
	if !l.IsActive {
		return Result{}, errs.ErrArchived
	}
	existing, err := uow.FindAccountsByLedger(ctx, ledgerID)
	if err != nil {
		return Result{}, fmt.Errorf("load accounts: %w", err)
	}

	out, err := reconcile(l, existing, in, s.now().UTC())
	if err != nil {
		return Result{}, err
	}
	if !commit {
		return out.result, nil
	}
	for _, a := range out.writes {
		if err := uow.UpsertAccount(ctx, a); err != nil {
			return Result{}, fmt.Errorf("upsert account %q: %w", a.Code, err)
		}
	}
	if out.rootChanged {
		if err := uow.SetRoot(ctx, out.result.RootID); err != nil {
			return Result{}, fmt.Errorf("set ledger root: %w", err)
		}
	}
	if err := uow.SaveAll(ctx); err != nil {
		return Result{}, fmt.Errorf("save import: %w", err)
	}
	return out.result, nil
}

// row is a normalized chart row.
type row struct {
	index  int // 1-based position in the input
	code   string
	key    string
	parent string // normalized parent key, "" when absent
	name   string
	src    chart.Row
}

type input struct {
	rows    []row
	root    *row
	parents map[string]bool // keys named as parentCode by some row
	skipped int
}

func normalize(rows []chart.Row, opts Options) (input, error) {
	in := input{parents: make(map[string]bool)}
	at := make(map[string]int, len(rows))
	for i, src := range rows {
		code := strings.TrimSpace(src.Code)
		if code == "" {
			in.skipped++
			continue
		}
		r := row{
			index:  i + 1,
			code:   code,
			key:    ledger.NormalizeCode(code),
			parent: ledger.NormalizeCode(src.Parent()),
			name:   strings.TrimSpace(src.Name),
			src:    src,
		}
		if prev, dup := at[r.key]; dup {
			if opts.Duplicates != DuplicateLastWins {
				return input{}, &RowError{Row: r.index, Code: code, Err: errs.ErrDuplicateCode}
			}
			in.rows[prev] = r
			continue
		}
		at[r.key] = len(in.rows)
		in.rows = append(in.rows, r)
	}
	if len(in.rows) == 0 {
		return input{}, fmt.Errorf("%w: no rows with a code", errs.ErrDecodeFailed)
	}

	for i := range in.rows {
		r := &in.rows[i]
		if in.root == nil && r.src.Level == 0 && r.parent == "" {
			in.root = r
			continue
		}
		if r.parent == r.key {
			return input{}, &RowError{Row: r.index, Code: r.code, Err: errs.ErrParentCycle}
		}
		if !r.src.Kind.Valid() {
			return input{}, &RowError{Row: r.index, Code: r.code, Err: fmt.Errorf("kind %d: %w", r.src.Kind, errs.ErrInvalid)}
		}
		if r.src.Role != ledger.RoleUnspecified && !r.src.Role.Valid() {
			return input{}, &RowError{Row: r.index, Code: r.code, Err: fmt.Errorf("role %d: %w", r.src.Role, errs.ErrInvalid)}
		}
		if opts.StrictRoles && !dictionary.Compatible(r.src.Kind, r.src.Role) {
			return input{}, &RowError{Row: r.index, Code: r.code, Err: fmt.Errorf("role %s does not belong to kind %s: %w", r.src.Role, r.src.Kind, errs.ErrInvalid)}
		}
		if r.parent != "" {
			in.parents[r.parent] = true
		}
	}
	return in, nil
}

type outcome struct {
	rootChanged bool
	writes      []ledger.Account
	result      Result
}

func reconcile(l ledger.Ledger, existing []ledger.Account, in input, now time.Time) (outcome, error) {
	byID := make(map[uuid.UUID]*ledger.Account, len(existing)+len(in.rows))
	byKey := make(map[string]*ledger.Account, len(existing)+len(in.rows))
	before := make(map[uuid.UUID]ledger.Account, len(existing))
	order := make([]uuid.UUID, 0, len(existing)+len(in.rows))
	for _, a := range existing {
		if a.LedgerID != l.ID {
			continue
		}
		acc := a
		acc.Metadata = a.Metadata.Clone()
		byID[acc.ID] = &acc
		byKey[ledger.NormalizeCode(acc.Code)] = &acc
		before[acc.ID] = a
		order = append(order, acc.ID)
	}
	add := func(a *ledger.Account, key string) {
		byID[a.ID] = a
		byKey[key] = a
		order = append(order, a.ID)
	}
	fraction := l.Fraction()

	// Root: the account already holding the root row's code, else the
	// ledger's current root, else a new placeholder.
	var root *ledger.Account
	if in.root != nil {
		root = byKey[in.root.key]
	}
	if root == nil && l.RootAccountID != nil {
		if cur, ok := byID[*l.RootAccountID]; ok {
			root = cur
			if in.root != nil {
				delete(byKey, ledger.NormalizeCode(cur.Code))
				cur.Code = in.root.code
				byKey[in.root.key] = cur
			}
		}
	}
	if root == nil {
		code, name := ledger.RootCode, ledger.RootName
		if in.root != nil {
			code = in.root.code
			if in.root.name != "" {
				name = in.root.name
			}
		}
		root = &ledger.Account{
			ID:        uuid.New(),
			LedgerID:  l.ID,
			Code:      code,
			Name:      name,
			Kind:      ledger.KindAsset,
			IsActive:  true,
			Metadata:  meta.Metadata{},
			CreatedAt: now,
		}
		add(root, ledger.NormalizeCode(code))
	}
	if in.root != nil {
		if in.root.name != "" {
			root.Name = in.root.name
		}
		if in.root.src.Kind.Valid() {
			root.Kind = in.root.src.Kind
			root.Role = in.root.src.Role
		}
		root.Metadata = importMetadata(root.Metadata, in.root.src)
	}

	// Pass 1: materialize every non-root row.
	rowAccounts := make(map[uuid.UUID]bool, len(in.rows))
	for _, r := range in.rows {
		if in.root != nil && r.index == in.root.index {
			continue
		}
		acc, ok := byKey[r.key]
		if !ok {
			acc = &ledger.Account{ID: uuid.New(), IsActive: true, CreatedAt: now}
			add(acc, r.key)
		}
		if acc.ID == root.ID {
			return outcome{}, &RowError{Row: r.index, Code: r.code, Err: errs.ErrParentCycle}
		}
		rowAccounts[acc.ID] = true
		acc.LedgerID = l.ID
		acc.Code = r.code
		acc.Name = r.name
		acc.Kind = r.src.Kind
		acc.Role = r.src.Role
		if acc.Role == ledger.RoleUnspecified {
			acc.Role = ledger.DefaultRole(acc.Kind)
		}
		acc.Currency = l.Currency
		acc.Fraction = fraction
		acc.IsPlaceholder = in.parents[r.key]
		acc.Metadata = importMetadata(acc.Metadata, r.src)
	}

	// Pass 2: link parents. A row without a parent code hangs off the root.
	for _, r := range in.rows {
		if in.root != nil && r.index == in.root.index {
			continue
		}
		acc := byKey[r.key]
		parent := root
		if r.parent != "" {
			p, ok := byKey[r.parent]
			if !ok {
				return outcome{}, &RowError{Row: r.index, Code: r.code, Err: fmt.Errorf("parent %q: %w", r.src.Parent(), errs.ErrMissingParent)}
			}
			parent = p
		}
		pid := parent.ID
		acc.ParentID = &pid
		if !rowAccounts[parent.ID] && parent.ID != root.ID {
			// An account outside this chart gained children.
			parent.IsPlaceholder = true
		}
	}

	// Root linkage. Parentless or orphaned accounts, including a replaced
	// previous root, are attached under the root.
	root.ParentID = nil
	root.IsPlaceholder = true
	root.IsActive = true
	root.LedgerID = l.ID
	root.Currency = l.Currency
	root.Fraction = fraction
	for _, id := range order {
		a := byID[id]
		if a.ID == root.ID {
			continue
		}
		if a.ParentID == nil || byID[*a.ParentID] == nil {
			rid := root.ID
			a.ParentID = &rid
		}
	}

	out := outcome{result: Result{LedgerID: l.ID, RootID: root.ID, Skipped: in.skipped}}
	all := make([]ledger.Account, 0, len(order))
	for _, id := range order {
		all = append(all, *byID[id])
	}
	if err := ledger.NewTree(all).Validate(root.ID); err != nil {
		if errors.Is(err, errs.ErrParentCycle) {
			return outcome{}, err
		}
		return outcome{}, fmt.Errorf("imported chart is not a single tree: %w", err)
	}

	for _, a := range all {
		prev, existed := before[a.ID]
		switch {
		case !existed:
			out.result.Created++
			out.writes = append(out.writes, a)
		case !prev.SameState(a):
			out.result.Updated++
			out.writes = append(out.writes, a)
		default:
			out.result.Unchanged++
		}
	}
	out.rootChanged = l.RootAccountID == nil || *l.RootAccountID != root.ID
	return out, nil
}

// importMetadata layers the row's hints over existing annotations. Notes
// edited outside the chart survive a re-import of a row without notes.
func importMetadata(current meta.Metadata, src chart.Row) meta.Metadata {
	md := current.Clone()
	md.Merge(meta.ImportHints(src.Notes, src.Level, src.IsPlaceholder))
	if src.IsPlaceholder == nil {
		md.Del(meta.KeyPlaceholderHint)
	}
	return md
}
