// Package memory provides a simple in-memory implementation used for development and tests.
// It keeps code paths easy to follow while satisfying the same ports as the postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/service/coa"
)

// txKey tracks ordering for transactions per ledger: sorted asc by (PostDate, ID)
type txKey struct {
	Date time.Time
	ID   uuid.UUID
}

// Store is an in-memory implementation of every repository and writer port.
// It is guarded by an RWMutex for concurrent reads/writes; chart imports are
// additionally serialized by importMu for the lifetime of their unit of work.
type Store struct {
	mu       sync.RWMutex
	importMu sync.Mutex
	owners   map[uuid.UUID]ledger.Owner
	ledgers  map[uuid.UUID]ledger.Ledger
	accounts map[uuid.UUID]ledger.Account
	txs      map[uuid.UUID]*ledger.Transaction
	// Per-ledger sorted index of transactions for ordered scans
	txKeysByLedger map[uuid.UUID][]txKey
}

// New constructs an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.owners = make(map[uuid.UUID]ledger.Owner)
	s.ledgers = make(map[uuid.UUID]ledger.Ledger)
	s.accounts = make(map[uuid.UUID]ledger.Account)
	s.txs = make(map[uuid.UUID]*ledger.Transaction)
	s.txKeysByLedger = make(map[uuid.UUID][]txKey)
}

// Seed helpers for local dev/tests.
func (s *Store) SeedOwner(o ledger.Owner)     { s.mu.Lock(); s.owners[o.ID] = o; s.mu.Unlock() }
func (s *Store) SeedLedger(l ledger.Ledger)   { s.mu.Lock(); s.ledgers[l.ID] = l; s.mu.Unlock() }
func (s *Store) SeedAccount(a ledger.Account) { s.mu.Lock(); s.accounts[a.ID] = a; s.mu.Unlock() }

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// Ready always succeeds for the in-memory store.
func (s *Store) Ready(context.Context) error { return nil }

// --- Owners ---

func (s *Store) CreateOwner(_ context.Context, o ledger.Owner) (ledger.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[o.ID]; ok {
		return ledger.Owner{}, errs.ErrConflict
	}
	s.owners[o.ID] = o
	return o, nil
}

func (s *Store) GetOwner(_ context.Context, id uuid.UUID) (ledger.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[id]
	if !ok {
		return ledger.Owner{}, errs.ErrNotFound
	}
	return o, nil
}

// --- Ledgers ---

// CreateLedger stores a ledger together with its root account.
func (s *Store) CreateLedger(_ context.Context, l ledger.Ledger, root ledger.Account) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[l.OwnerID]; !ok {
		return ledger.Ledger{}, errs.ErrNotFound
	}
	if _, ok := s.ledgers[l.ID]; ok {
		return ledger.Ledger{}, errs.ErrConflict
	}
	if root.LedgerID != l.ID || root.ParentID != nil {
		return ledger.Ledger{}, errs.ErrInvalid
	}
	rid := root.ID
	l.RootAccountID = &rid
	s.ledgers[l.ID] = l
	s.accounts[root.ID] = root
	return l, nil
}

func (s *Store) GetLedger(_ context.Context, id uuid.UUID) (ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[id]
	if !ok {
		return ledger.Ledger{}, errs.ErrNotFound
	}
	return l, nil
}

// ListLedgers returns an owner's ledgers ordered by creation time.
func (s *Store) ListLedgers(_ context.Context, ownerID uuid.UUID) ([]ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Ledger, 0)
	for _, l := range s.ledgers {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// SetLedgerArchived flips the archive flag and leaves the rest of the ledger alone.
func (s *Store) SetLedgerArchived(_ context.Context, id uuid.UUID, archived bool) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[id]
	if !ok {
		return ledger.Ledger{}, errs.ErrNotFound
	}
	l.IsActive = !archived
	s.ledgers[id] = l
	return l, nil
}

// DeleteLedger removes a ledger with all of its accounts and transactions.
func (s *Store) DeleteLedger(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[id]; !ok {
		return errs.ErrNotFound
	}
	s.deleteLedgerLocked(id)
	return nil
}

// DeleteOwner removes an owner and every ledger it holds.
func (s *Store) DeleteOwner(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.owners, id)
	for lid, l := range s.ledgers {
		if l.OwnerID == id {
			s.deleteLedgerLocked(lid)
		}
	}
	return nil
}

func (s *Store) deleteLedgerLocked(id uuid.UUID) {
	delete(s.ledgers, id)
	for aid, a := range s.accounts {
		if a.LedgerID == id {
			delete(s.accounts, aid)
		}
	}
	for _, k := range s.txKeysByLedger[id] {
		delete(s.txs, k.ID)
	}
	delete(s.txKeysByLedger, id)
}

// --- Accounts ---

// FindAccountsByLedger returns a ledger's accounts ordered by code.
func (s *Store) FindAccountsByLedger(_ context.Context, ledgerID uuid.UUID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountsLocked(ledgerID), nil
}

func (s *Store) accountsLocked(ledgerID uuid.UUID) []ledger.Account {
	out := make([]ledger.Account, 0)
	for _, a := range s.accounts {
		if a.LedgerID == ledgerID {
			a.Metadata = a.Metadata.Clone()
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// AccountsByIDs returns the ledger's accounts among ids.
func (s *Store) AccountsByIDs(_ context.Context, ledgerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok && a.LedgerID == ledgerID {
			out[id] = a
		}
	}
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	a.Metadata = a.Metadata.Clone()
	return a, nil
}

// UpdateAccount persists changes to an existing account.
func (s *Store) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	if err := a.Metadata.Validate(); err != nil {
		return ledger.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.accounts[a.ID]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	if cur.LedgerID != a.LedgerID {
		return ledger.Account{}, errs.ErrImmutable
	}
	s.accounts[a.ID] = a
	return a, nil
}

// --- Transactions ---

// CreateTransaction stores a transaction with its splits.
func (s *Store) CreateTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[tx.LedgerID]; !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	for _, sp := range tx.Splits {
		if a, ok := s.accounts[sp.AccountID]; !ok || a.LedgerID != tx.LedgerID {
			return ledger.Transaction{}, errs.ErrNotFound
		}
	}
	t := tx
	t.Splits = append([]ledger.Split(nil), tx.Splits...)
	s.txs[t.ID] = &t
	s.insertTxIndexLocked(t.LedgerID, txKey{Date: t.PostDate, ID: t.ID})
	return t, nil
}

func (s *Store) insertTxIndexLocked(ledgerID uuid.UUID, k txKey) {
	keys := s.txKeysByLedger[ledgerID]
	i := sort.Search(len(keys), func(i int) bool {
		if keys[i].Date.Equal(k.Date) {
			return keys[i].ID.String() >= k.ID.String()
		}
		return keys[i].Date.After(k.Date)
	})
	keys = append(keys, txKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	s.txKeysByLedger[ledgerID] = keys
}

// ListTransactions returns a ledger's transactions ordered by (PostDate, ID).
func (s *Store) ListTransactions(_ context.Context, ledgerID uuid.UUID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.txKeysByLedger[ledgerID]
	out := make([]ledger.Transaction, 0, len(keys))
	for _, k := range keys {
		if t, ok := s.txs[k.ID]; ok {
			c := *t
			c.Splits = append([]ledger.Split(nil), t.Splits...)
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, ledgerID, txID uuid.UUID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[txID]
	if !ok || t.LedgerID != ledgerID {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	c := *t
	c.Splits = append([]ledger.Split(nil), t.Splits...)
	return c, nil
}

// FindSplitsByLedger returns every split posted in the ledger.
func (s *Store) FindSplitsByLedger(_ context.Context, ledgerID uuid.UUID) ([]ledger.Split, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.splitsLocked(ledgerID), nil
}

func (s *Store) splitsLocked(ledgerID uuid.UUID) []ledger.Split {
	out := make([]ledger.Split, 0)
	for _, k := range s.txKeysByLedger[ledgerID] {
		if t, ok := s.txs[k.ID]; ok {
			out = append(out, t.Splits...)
		}
	}
	return out
}

// Snapshot reads the ledger, its accounts and its splits under one read lock.
func (s *Store) Snapshot(_ context.Context, ledgerID uuid.UUID) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[ledgerID]
	if !ok {
		return ledger.Snapshot{}, errs.ErrNotFound
	}
	return ledger.Snapshot{Ledger: l, Accounts: s.accountsLocked(ledgerID), Splits: s.splitsLocked(ledgerID)}, nil
}

// --- Chart import unit of work ---

// Begin opens a unit of work for a chart import. Writes are staged and only
// applied by SaveAll.
func (s *Store) Begin(_ context.Context, ledgerID uuid.UUID) (coa.UnitOfWork, error) {
	s.importMu.Lock()
	return &unitOfWork{s: s, ledgerID: ledgerID, accounts: make(map[uuid.UUID]ledger.Account)}, nil
}

type unitOfWork struct {
	s        *Store
	ledgerID uuid.UUID
	accounts map[uuid.UUID]ledger.Account
	order    []uuid.UUID
	root     *uuid.UUID
	done     bool
}

func (u *unitOfWork) GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	return u.s.GetLedger(ctx, id)
}

func (u *unitOfWork) FindAccountsByLedger(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Account, error) {
	return u.s.FindAccountsByLedger(ctx, ledgerID)
}

func (u *unitOfWork) UpsertAccount(_ context.Context, a ledger.Account) error {
	if u.done {
		return errs.ErrConflict
	}
	if a.LedgerID != u.ledgerID {
		return errs.ErrInvalid
	}
	if err := a.Metadata.Validate(); err != nil {
		return err
	}
	if _, staged := u.accounts[a.ID]; !staged {
		u.order = append(u.order, a.ID)
	}
	u.accounts[a.ID] = a
	return nil
}

func (u *unitOfWork) SetRoot(_ context.Context, rootID uuid.UUID) error {
	if u.done {
		return errs.ErrConflict
	}
	u.root = &rootID
	return nil
}

// SaveAll applies staged writes atomically: either all become visible or none.
func (u *unitOfWork) SaveAll(_ context.Context) error {
	if u.done {
		return errs.ErrConflict
	}
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[u.ledgerID]
	if !ok {
		return errs.ErrNotFound
	}
	// the ledger may have been archived since the import read it
	if !l.IsActive {
		return errs.ErrArchived
	}
	for _, id := range u.order {
		if cur, ok := s.accounts[id]; ok && cur.LedgerID != u.ledgerID {
			return errs.ErrImmutable
		}
	}
	// code uniqueness over the merged view
	seen := make(map[string]uuid.UUID)
	check := func(a ledger.Account) bool {
		key := ledger.NormalizeCode(a.Code)
		if other, dup := seen[key]; dup && other != a.ID {
			return false
		}
		seen[key] = a.ID
		return true
	}
	for _, a := range u.accounts {
		if !check(a) {
			return errs.ErrConflict
		}
	}
	for id, a := range s.accounts {
		if a.LedgerID != u.ledgerID {
			continue
		}
		if _, staged := u.accounts[id]; staged {
			continue
		}
		if !check(a) {
			return errs.ErrConflict
		}
	}

	for _, id := range u.order {
		s.accounts[id] = u.accounts[id]
	}
	if u.root != nil {
		rid := *u.root
		l.RootAccountID = &rid
		s.ledgers[u.ledgerID] = l
	}
	u.finish()
	return nil
}

func (u *unitOfWork) Rollback(context.Context) error {
	if !u.done {
		u.finish()
	}
	return nil
}

func (u *unitOfWork) finish() {
	u.done = true
	u.s.importMu.Unlock()
}
