package balance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
)

// Repo reads a consistent view of one ledger.
type Repo interface {
	Snapshot(ctx context.Context, ledgerID uuid.UUID) (ledger.Snapshot, error)
}

type Service interface {
	Compute(ctx context.Context, ledgerID uuid.UUID, opts Options) (Snapshot, error)
}

type Options struct {
	IncludeDescendants bool
}

// Snapshot is the result of one computation. It is not updated afterwards.
type Snapshot struct {
	Ledger     ledger.Ledger
	Accounts   []ledger.Account
	Balances   Balances
	ComputedAt time.Time
}

type service struct {
	repo Repo
	now  func() time.Time
}

func New(repo Repo) Service { return &service{repo: repo, now: time.Now} }

func (s *service) Compute(ctx context.Context, ledgerID uuid.UUID, opts Options) (Snapshot, error) {
	if ledgerID == uuid.Nil {
		return Snapshot{}, errs.ErrInvalid
	}
	snap, err := s.repo.Snapshot(ctx, ledgerID)
	if err != nil {
		return Snapshot{}, err
	}
	b, err := Compute(snap.Ledger, snap.Accounts, snap.Splits, opts.IncludeDescendants)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Ledger: snap.Ledger, Accounts: snap.Accounts, Balances: b, ComputedAt: s.now().UTC()}, nil
}
