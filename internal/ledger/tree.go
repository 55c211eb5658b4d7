package ledger

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/tinoosan/books/internal/errs"
)

// Tree is an arena view over a ledger's accounts. Parent and child links are
// ids into the arena; children are ordered by code ascending (empty code
// first, ties broken by id).
type Tree struct {
	byID     map[uuid.UUID]Account
	children map[uuid.UUID][]uuid.UUID
	roots    []uuid.UUID
}

// NewTree indexes accounts. An account whose parent is missing from the set
// is treated as a root.
func NewTree(accounts []Account) *Tree {
	t := &Tree{
		byID:     make(map[uuid.UUID]Account, len(accounts)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, a := range accounts {
		t.byID[a.ID] = a
	}
	for _, a := range accounts {
		if a.ParentID != nil {
			if _, ok := t.byID[*a.ParentID]; ok {
				t.children[*a.ParentID] = append(t.children[*a.ParentID], a.ID)
				continue
			}
		}
		t.roots = append(t.roots, a.ID)
	}
	for id := range t.children {
		t.sortIDs(t.children[id])
	}
	t.sortIDs(t.roots)
	return t
}

func (t *Tree) sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		ai, aj := t.byID[ids[i]], t.byID[ids[j]]
		if ai.Code != aj.Code {
			return ai.Code < aj.Code
		}
		return ai.ID.String() < aj.ID.String()
	})
}

func (t *Tree) Len() int { return len(t.byID) }

func (t *Tree) Account(id uuid.UUID) (Account, bool) {
	a, ok := t.byID[id]
	return a, ok
}

// Children returns the ordered child ids of id. The slice must not be modified.
func (t *Tree) Children(id uuid.UUID) []uuid.UUID { return t.children[id] }

// Roots returns the parentless (or orphaned) accounts ordered by code.
func (t *Tree) Roots() []uuid.UUID { return t.roots }

// Walk visits the subtree under start in pre-order, children in code order.
// fn returning false skips the node's descendants. Walk uses an explicit
// stack and never revisits a node.
func (t *Tree) Walk(start uuid.UUID, fn func(a Account, depth int) bool) {
	type frame struct {
		id    uuid.UUID
		depth int
	}
	if _, ok := t.byID[start]; !ok {
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(t.byID))
	stack := []frame{{id: start}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := seen[f.id]; dup {
			continue
		}
		seen[f.id] = struct{}{}
		if !fn(t.byID[f.id], f.depth) {
			continue
		}
		kids := t.children[f.id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: kids[i], depth: f.depth + 1})
		}
	}
}

// Ascend returns the path from id up to its topmost ancestor, inclusive.
// The ascent is bounded by the number of accounts, so a parent cycle
// yields ErrParentCycle instead of looping.
func (t *Tree) Ascend(id uuid.UUID) ([]uuid.UUID, error) {
	a, ok := t.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	path := []uuid.UUID{id}
	for steps := 0; a.ParentID != nil; steps++ {
		if steps > len(t.byID) {
			return nil, fmt.Errorf("account %q: %w", a.Code, errs.ErrParentCycle)
		}
		parent, ok := t.byID[*a.ParentID]
		if !ok {
			break
		}
		path = append(path, parent.ID)
		a = parent
	}
	return path, nil
}

// Validate checks the shape invariants of a ledger's chart: exactly one
// parentless account, equal to rootID, reachable from every account.
func (t *Tree) Validate(rootID uuid.UUID) error {
	root, ok := t.byID[rootID]
	if !ok {
		return fmt.Errorf("root account %s: %w", rootID, errs.ErrNotFound)
	}
	if root.ParentID != nil {
		return fmt.Errorf("root account %q has a parent: %w", root.Code, errs.ErrParentCycle)
	}
	for id, a := range t.byID {
		if a.ParentID != nil {
			if _, ok := t.byID[*a.ParentID]; !ok {
				return fmt.Errorf("account %q: %w", a.Code, errs.ErrMissingParent)
			}
		}
		path, err := t.Ascend(id)
		if err != nil {
			return err
		}
		if top := path[len(path)-1]; top != rootID {
			return fmt.Errorf("account %q is not under the ledger root: %w", t.byID[top].Code, errs.ErrInvalid)
		}
	}
	return nil
}
