package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/service/coa"
)

// Begin starts a chart import transaction. A transaction-scoped advisory lock
// keyed by the ledger id serializes concurrent imports into the same ledger.
func (s *Store) Begin(ctx context.Context, ledgerID uuid.UUID) (coa.UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `select pg_advisory_xact_lock(hashtext($1))`, ledgerID.String()); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &unitOfWork{tx: tx, ledgerID: ledgerID}, nil
}

// unitOfWork wraps a pgx.Tx. Parent and root references are deferred
// constraints, so accounts may be written in any order.
type unitOfWork struct {
	tx       pgx.Tx
	ledgerID uuid.UUID
	done     bool
}

// GetLedger locks the ledger row until the import commits, so an archive or
// delete waits for it.
func (u *unitOfWork) GetLedger(ctx context.Context, id uuid.UUID) (ledger.Ledger, error) {
	l, err := scanLedger(u.tx.QueryRow(ctx, `select `+ledgerCols+` from ledgers where id = $1 for update`, id))
	if err != nil {
		return ledger.Ledger{}, mapErr(err)
	}
	return l, nil
}

func (u *unitOfWork) FindAccountsByLedger(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Account, error) {
	return findAccounts(ctx, u.tx, ledgerID)
}

func (u *unitOfWork) UpsertAccount(ctx context.Context, a ledger.Account) error {
	if a.LedgerID != u.ledgerID {
		return errs.ErrInvalid
	}
	return upsertAccount(ctx, u.tx, a)
}

func (u *unitOfWork) SetRoot(ctx context.Context, rootID uuid.UUID) error {
	ct, err := u.tx.Exec(ctx, `update ledgers set root_account_id = $1 where id = $2 and is_active`, rootID, u.ledgerID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrArchived
	}
	return nil
}

func (u *unitOfWork) SaveAll(ctx context.Context) error {
	if u.done {
		return errs.ErrConflict
	}
	u.done = true
	return mapErr(u.tx.Commit(ctx))
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback(ctx)
}
