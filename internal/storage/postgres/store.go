package postgres

// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the HTTP/API and services.
//
// Migrations that create the expected schema live under db/migrations. This
// package maps between the domain entities and SQL rows and runs the
// statements and transactions.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/meta"
)

// Store holds a pgx connection pool and implements the read/write interfaces
// used across the service layer. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// mapErr translates constraint violations into domain errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, errs.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, errs.ErrNotFound)
		}
	}
	return err
}

// --- Owners ---

func (s *Store) CreateOwner(ctx context.Context, o ledger.Owner) (ledger.Owner, error) {
	_, err := s.pool.Exec(ctx, `insert into owners (id, name, created_at) values ($1,$2,$3)`, o.ID, o.Name, o.CreatedAt)
	if err != nil {
		return ledger.Owner{}, mapErr(err)
	}
	return o, nil
}

// DeleteOwner removes an owner; its ledgers cascade.
func (s *Store) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from owners where id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) GetOwner(ctx context.Context, id uuid.UUID) (ledger.Owner, error) {
	var o ledger.Owner
	err := s.pool.QueryRow(ctx, `select id, name, created_at from owners where id = $1`, id).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err != nil {
		return ledger.Owner{}, mapErr(err)
	}
	return o, nil
}

// --- Ledgers ---

const ledgerCols = `id, owner_id, name, currency, precision, is_active, root_account_id, created_at`

func scanLedger(row pgx.Row) (ledger.Ledger, error) {
	var l ledger.Ledger
	var precision int16
	err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Currency, &precision, &l.IsActive, &l.RootAccountID, &l.CreatedAt)
	l.Precision = int(precision)
	l.Currency = strings.TrimSpace(l.Currency)
	return l, err
}

func getLedger(ctx context.Context, q querier, id uuid.UUID) (ledger.Ledger, error) {
	l, err := scanLedger(q.QueryRow(ctx, `select `+ledgerCols+` from ledgers where id = $1`, id))
	if err != nil {
		return ledger.Ledger{}, mapErr(err)
	}
	return l, nil
}

// CreateLedger inserts the ledger and its root account in one transaction.
func (s *Store) CreateLedger(ctx context.Context, l ledger.Ledger, root ledger.Account) (ledger.Ledger, error) {
	if root.LedgerID != l.ID || root.ParentID != nil {
		return ledger.Ledger{}, errs.ErrInvalid
	}
	rid := root.ID
	l.RootAccountID = &rid
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Ledger{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
        insert into ledgers (`+ledgerCols+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
    `, l.ID, l.OwnerID, l.Name, strings.ToUpper(l.Currency), l.Precision, l.IsActive, l.RootAccountID, l.CreatedAt); err != nil {
		return ledger.Ledger{}, mapErr(err)
	}
	if err := upsertAccount(ctx, tx, root); err != nil {
		return ledger.Ledger{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Ledger{}, mapErr(err)
	}
	return l, nil
}

func (s *Store) GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	return getLedger(ctx, s.pool, id)
}

// ListLedgers returns an owner's ledgers ordered by creation time.
func (s *Store) ListLedgers(ctx context.Context, ownerID uuid.UUID) ([]ledger.Ledger, error) {
	rows, err := s.pool.Query(ctx, `select `+ledgerCols+` from ledgers where owner_id = $1 order by created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Ledger, 0)
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetLedgerArchived flips the archive flag and leaves the rest of the row alone.
func (s *Store) SetLedgerArchived(ctx context.Context, id uuid.UUID, archived bool) (ledger.Ledger, error) {
	l, err := scanLedger(s.pool.QueryRow(ctx, `update ledgers set is_active = $2 where id = $1 returning `+ledgerCols, id, !archived))
	if err != nil {
		return ledger.Ledger{}, mapErr(err)
	}
	return l, nil
}

// DeleteLedger removes a ledger; accounts and transactions cascade.
func (s *Store) DeleteLedger(ctx context.Context, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from ledgers where id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Accounts ---

const accountCols = `id, ledger_id, parent_id, code, name, kind, role, is_placeholder, is_active, is_hidden, currency, fraction, metadata, created_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var kind, role int16
	var mdBytes []byte
	if err := row.Scan(&a.ID, &a.LedgerID, &a.ParentID, &a.Code, &a.Name, &kind, &role, &a.IsPlaceholder, &a.IsActive, &a.IsHidden, &a.Currency, &a.Fraction, &mdBytes, &a.CreatedAt); err != nil {
		return ledger.Account{}, err
	}
	a.Kind = ledger.Kind(kind)
	a.Role = ledger.Role(role)
	a.Currency = strings.TrimSpace(a.Currency)
	a.Metadata = meta.Metadata{}
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err == nil {
			a.Metadata = m
		}
	}
	return a, nil
}

func findAccounts(ctx context.Context, q querier, ledgerID uuid.UUID) ([]ledger.Account, error) {
	rows, err := q.Query(ctx, `select `+accountCols+` from accounts where ledger_id = $1 order by code, id`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindAccountsByLedger returns a ledger's accounts ordered by code.
func (s *Store) FindAccountsByLedger(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Account, error) {
	return findAccounts(ctx, s.pool, ledgerID)
}

// AccountsByIDs returns the ledger's accounts among ids.
func (s *Store) AccountsByIDs(ctx context.Context, ledgerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `select `+accountCols+` from accounts where ledger_id = $1 and id = any($2)`, ledgerID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where id = $1`, id))
	if err != nil {
		return ledger.Account{}, mapErr(err)
	}
	return a, nil
}

// UpdateAccount updates the descriptive and state fields of an account.
func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	if err := a.Metadata.Validate(); err != nil {
		return ledger.Account{}, err
	}
	md, _ := a.Metadata.MarshalStableJSON()
	ct, err := s.pool.Exec(ctx, `
        update accounts
        set name=$1, is_hidden=$2, is_active=$3, metadata=$4
        where id=$5 and ledger_id=$6
    `, a.Name, a.IsHidden, a.IsActive, md, a.ID, a.LedgerID)
	if err != nil {
		return ledger.Account{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// upsertAccount inserts or overwrites an account by id. ledger_id is never
// changed by the update branch.
func upsertAccount(ctx context.Context, q querier, a ledger.Account) error {
	if err := a.Metadata.Validate(); err != nil {
		return err
	}
	md, _ := a.Metadata.MarshalStableJSON()
	ct, err := q.Exec(ctx, `
        insert into accounts (`+accountCols+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        on conflict (id) do update set
            parent_id=excluded.parent_id, code=excluded.code, name=excluded.name,
            kind=excluded.kind, role=excluded.role, is_placeholder=excluded.is_placeholder,
            is_active=excluded.is_active, is_hidden=excluded.is_hidden, currency=excluded.currency,
            fraction=excluded.fraction, metadata=excluded.metadata
        where accounts.ledger_id = excluded.ledger_id
    `, a.ID, a.LedgerID, a.ParentID, a.Code, a.Name, int16(a.Kind), int16(a.Role), a.IsPlaceholder, a.IsActive, a.IsHidden,
		strings.ToUpper(a.Currency), a.Fraction, md, a.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrImmutable
	}
	return nil
}

// --- Transactions ---

const txCols = `id, ledger_id, post_date, description, reversal_of, created_at`

// CreateTransaction inserts the transaction header and its splits atomically.
func (s *Store) CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
        insert into transactions (`+txCols+`)
        values ($1,$2,$3,$4,$5,$6)
    `, t.ID, t.LedgerID, t.PostDate, t.Description, t.ReversalOf, t.CreatedAt); err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	for i, sp := range t.Splits {
		if _, err := tx.Exec(ctx, `
            insert into splits (id, transaction_id, account_id, side, value_num, value_denom, memo, reconciled, position)
            values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        `, sp.ID, t.ID, sp.AccountID, string(sp.Side), sp.Value.Num, sp.Value.Denom, sp.Memo, sp.Reconciled, i); err != nil {
			return ledger.Transaction{}, fmt.Errorf("insert split: %w", mapErr(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	return t, nil
}

func scanTransactions(rows pgx.Rows) ([]ledger.Transaction, error) {
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(&t.ID, &t.LedgerID, &t.PostDate, &t.Description, &t.ReversalOf, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const splitSelect = `
    select s.id, s.transaction_id, s.account_id, s.side, s.value_num, s.value_denom, s.memo, s.reconciled
    from splits s join transactions t on t.id = s.transaction_id`

func scanSplits(rows pgx.Rows) ([]ledger.Split, error) {
	defer rows.Close()
	out := make([]ledger.Split, 0)
	for rows.Next() {
		var sp ledger.Split
		var side string
		if err := rows.Scan(&sp.ID, &sp.TransactionID, &sp.AccountID, &side, &sp.Value.Num, &sp.Value.Denom, &sp.Memo, &sp.Reconciled); err != nil {
			return nil, err
		}
		sp.Side = ledger.Side(side)
		out = append(out, sp)
	}
	return out, rows.Err()
}

// attachSplits loads the splits of txs in position order.
func attachSplits(ctx context.Context, q querier, txs []ledger.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(txs))
	idx := make(map[uuid.UUID]int, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
		idx[t.ID] = i
	}
	rows, err := q.Query(ctx, splitSelect+` where s.transaction_id = any($1) order by s.transaction_id, s.position`, ids)
	if err != nil {
		return err
	}
	splits, err := scanSplits(rows)
	if err != nil {
		return err
	}
	for _, sp := range splits {
		i := idx[sp.TransactionID]
		txs[i].Splits = append(txs[i].Splits, sp)
	}
	return nil
}

// ListTransactions returns a ledger's transactions ordered by (post_date, id).
func (s *Store) ListTransactions(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `select `+txCols+` from transactions where ledger_id = $1 order by post_date, id`, ledgerID)
	if err != nil {
		return nil, err
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	return txs, attachSplits(ctx, s.pool, txs)
}

func (s *Store) GetTransaction(ctx context.Context, ledgerID, txID uuid.UUID) (ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `select `+txCols+` from transactions where id = $1 and ledger_id = $2`, txID, ledgerID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if len(txs) == 0 {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	if err := attachSplits(ctx, s.pool, txs); err != nil {
		return ledger.Transaction{}, err
	}
	return txs[0], nil
}

func findSplits(ctx context.Context, q querier, ledgerID uuid.UUID) ([]ledger.Split, error) {
	rows, err := q.Query(ctx, splitSelect+` where t.ledger_id = $1 order by t.post_date, t.id, s.position`, ledgerID)
	if err != nil {
		return nil, err
	}
	return scanSplits(rows)
}

// FindSplitsByLedger returns every split posted in the ledger.
func (s *Store) FindSplitsByLedger(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Split, error) {
	return findSplits(ctx, s.pool, ledgerID)
}

// Snapshot reads the ledger, its accounts and its splits in one read-only
// repeatable-read transaction.
func (s *Store) Snapshot(ctx context.Context, ledgerID uuid.UUID) (ledger.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	l, err := getLedger(ctx, tx, ledgerID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	accounts, err := findAccounts(ctx, tx, ledgerID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	splits, err := findSplits(ctx, tx, ledgerID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Snapshot{}, err
	}
	return ledger.Snapshot{Ledger: l, Accounts: accounts, Splits: splits}, nil
}
