// Package account implements the account service rules: identity fields come
// from the chart import, descriptive fields are editable, and deletes are soft.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/meta"
)

type Repo interface {
	GetLedger(ctx context.Context, ledgerID uuid.UUID) (ledger.Ledger, error)
	FindAccountsByLedger(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
}

type Writer interface {
	UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
}

type Service interface {
	List(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Account, error)
	Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
	Tree(ctx context.Context, ledgerID uuid.UUID) (*Node, error)
	Update(ctx context.Context, accountID uuid.UUID, p Patch) (ledger.Account, error)
	Deactivate(ctx context.Context, accountID uuid.UUID) error
}

// Patch lists the descriptive fields a caller may change. Nil fields are left alone.
type Patch struct {
	Name   *string
	Hidden *bool
	// Notes sets the notes annotation; an empty string removes it.
	Notes *string
}

// Node is a materialized chart node.
type Node struct {
	Account  ledger.Account
	Children []*Node
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) List(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Account, error) {
	if ledgerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.repo.GetLedger(ctx, ledgerID); err != nil {
		return nil, err
	}
	return s.repo.FindAccountsByLedger(ctx, ledgerID)
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	if accountID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.GetAccount(ctx, accountID)
}

// Tree materializes the ledger's chart from its root. Children are ordered by code.
func (s *service) Tree(ctx context.Context, ledgerID uuid.UUID) (*Node, error) {
	l, err := s.repo.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if l.RootAccountID == nil {
		return nil, errs.ErrNotFound
	}
	accounts, err := s.repo.FindAccountsByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	t := ledger.NewTree(accounts)
	rootAcc, ok := t.Account(*l.RootAccountID)
	if !ok {
		return nil, errs.ErrNotFound
	}

	root := &Node{Account: rootAcc}
	nodes := map[uuid.UUID]*Node{rootAcc.ID: root}
	t.Walk(rootAcc.ID, func(a ledger.Account, _ int) bool {
		n, ok := nodes[a.ID]
		if !ok {
			return false
		}
		for _, cid := range t.Children(a.ID) {
			c, _ := t.Account(cid)
			cn := &Node{Account: c}
			nodes[cid] = cn
			n.Children = append(n.Children, cn)
		}
		return true
	})
	return root, nil
}

// Update applies a descriptive patch. Code, kind, role and parent belong to
// the chart and are changed only by re-importing it.
func (s *service) Update(ctx context.Context, accountID uuid.UUID, p Patch) (ledger.Account, error) {
	acc, err := s.load(ctx, accountID)
	if err != nil {
		return ledger.Account{}, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ledger.Account{}, errors.Join(errs.ErrInvalid, errors.New("name is required"))
		}
		acc.Name = name
	}
	if p.Hidden != nil {
		acc.IsHidden = *p.Hidden
	}
	if p.Notes != nil {
		if acc.Metadata == nil {
			acc.Metadata = meta.Metadata{}
		}
		if *p.Notes == "" {
			acc.Metadata.Del(meta.KeyNotes)
		} else {
			acc.Metadata.Set(meta.KeyNotes, *p.Notes)
		}
		if err := acc.Metadata.Validate(); err != nil {
			return ledger.Account{}, errors.Join(errs.ErrInvalid, err)
		}
	}
	return s.writer.UpdateAccount(ctx, acc)
}

// Deactivate sets IsActive=false (soft delete). The ledger root cannot be deactivated.
func (s *service) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	acc, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.IsRoot() {
		return errs.ErrRootAccount
	}
	if !acc.IsActive {
		return nil
	}
	acc.IsActive = false
	_, err = s.writer.UpdateAccount(ctx, acc)
	return err
}

// load fetches an account for modification; its ledger must be active.
func (s *service) load(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	if accountID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return ledger.Account{}, err
	}
	l, err := s.repo.GetLedger(ctx, acc.LedgerID)
	if err != nil {
		return ledger.Account{}, err
	}
	if !l.IsActive {
		return ledger.Account{}, errs.ErrArchived
	}
	return acc, nil
}
