package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GetLedger(ctx context.Context, ledgerID uuid.UUID) (ledger.Ledger, error)
	AccountsByIDs(ctx context.Context, ledgerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
	ListTransactions(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Transaction, error)
	GetTransaction(ctx context.Context, ledgerID, txID uuid.UUID) (ledger.Transaction, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
}

// Service validates and records balanced transactions. Recorded transactions
// are never edited; corrections are posted as reversals.
type Service interface {
	Validate(ctx context.Context, tx ledger.Transaction) error
	Record(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	List(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Transaction, error)
	Reverse(ctx context.Context, ledgerID, txID uuid.UUID, date time.Time) (ledger.Transaction, error)
}

type service struct {
	repo   Repo
	writer Writer
	now    func() time.Time
}

func New(repo Repo, writer Writer) Service {
	return &service{repo: repo, writer: writer, now: time.Now}
}

func (s *service) Validate(ctx context.Context, tx ledger.Transaction) error {
	if tx.LedgerID == uuid.Nil {
		return errs.ErrInvalid
	}
	l, err := s.repo.GetLedger(ctx, tx.LedgerID)
	if err != nil {
		return err
	}
	if !l.IsActive {
		return errs.ErrArchived
	}
	if len(tx.Splits) < 2 {
		return errs.ErrTooFewSplits
	}

	ids := make([]uuid.UUID, 0, len(tx.Splits))
	debits, credits := decimal.Zero, decimal.Zero
	for i, sp := range tx.Splits {
		if sp.AccountID == uuid.Nil {
			return fieldErr(i, errs.ErrInvalid, "account_id required")
		}
		if !sp.Side.Valid() {
			return fieldErr(i, errs.ErrInvalid, "side must be debit or credit")
		}
		if !sp.Value.IsPositive() {
			return fieldErr(i, errs.ErrInvalidValue, "value must be > 0")
		}
		amt, err := sp.Value.Decimal()
		if err != nil {
			return fieldErr(i, errs.ErrInvalidValue, err.Error())
		}
		if sp.Side == ledger.SideDebit {
			debits, err = debits.Add(amt)
		} else {
			credits, err = credits.Add(amt)
		}
		if err != nil {
			return fieldErr(i, errs.ErrOverflow, err.Error())
		}
		ids = append(ids, sp.AccountID)
	}
	if debits.Cmp(credits) != 0 {
		return fmt.Errorf("debits %s, credits %s: %w", debits, credits, errs.ErrUnbalanced)
	}

	accMap, err := s.repo.AccountsByIDs(ctx, tx.LedgerID, unique(ids))
	if err != nil {
		return err
	}
	for i, sp := range tx.Splits {
		acc, ok := accMap[sp.AccountID]
		if !ok || acc.LedgerID != tx.LedgerID {
			return fieldErr(i, errs.ErrInvalid, "account not found in ledger")
		}
		if !acc.IsActive {
			return fieldErr(i, errs.ErrInvalid, "account "+acc.Code+" is inactive")
		}
		if acc.IsPlaceholder {
			return fieldErr(i, errs.ErrPlaceholder, "account "+acc.Code+" only groups other accounts")
		}
	}
	return nil
}

// Record validates tx and persists it with fresh ids.
func (s *service) Record(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if err := s.Validate(ctx, tx); err != nil {
		return ledger.Transaction{}, err
	}
	t := ledger.Transaction{
		ID:          uuid.New(),
		LedgerID:    tx.LedgerID,
		PostDate:    tx.PostDate,
		Description: strings.TrimSpace(tx.Description),
		ReversalOf:  tx.ReversalOf,
		CreatedAt:   s.now().UTC(),
	}
	if t.PostDate.IsZero() {
		t.PostDate = t.CreatedAt
	}
	t.Splits = make([]ledger.Split, len(tx.Splits))
	for i, sp := range tx.Splits {
		sp.ID = uuid.New()
		sp.TransactionID = t.ID
		t.Splits[i] = sp
	}
	return s.writer.CreateTransaction(ctx, t)
}

func (s *service) List(ctx context.Context, ledgerID uuid.UUID) ([]ledger.Transaction, error) {
	if ledgerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.repo.GetLedger(ctx, ledgerID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, ledgerID)
}

// Reverse flips all splits of a prior transaction and records the result.
func (s *service) Reverse(ctx context.Context, ledgerID, txID uuid.UUID, date time.Time) (ledger.Transaction, error) {
	if ledgerID == uuid.Nil || txID == uuid.Nil {
		return ledger.Transaction{}, errs.ErrInvalid
	}
	orig, err := s.repo.GetTransaction(ctx, ledgerID, txID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	splits := make([]ledger.Split, len(orig.Splits))
	for i, sp := range orig.Splits {
		sp.Side = sp.Side.Opposite()
		sp.Reconciled = false
		splits[i] = sp
	}
	oid := orig.ID
	return s.Record(ctx, ledger.Transaction{
		LedgerID:    ledgerID,
		PostDate:    date,
		Description: "reversal of " + orig.ID.String() + ": " + orig.Description,
		ReversalOf:  &oid,
		Splits:      splits,
	})
}

func fieldErr(i int, kind error, msg string) error {
	return fmt.Errorf("split[%d]: %s: %w", i, msg, kind)
}

func unique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
