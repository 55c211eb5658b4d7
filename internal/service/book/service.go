// Package book manages owners and the lifecycle of their ledgers: creation
// with a root account, archiving, guarded deletion and first-run bootstrap.
package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/meta"
	"github.com/tinoosan/books/internal/service/coa"
)

type Repo interface {
	GetOwner(ctx context.Context, ownerID uuid.UUID) (ledger.Owner, error)
	GetLedger(ctx context.Context, ledgerID uuid.UUID) (ledger.Ledger, error)
	ListLedgers(ctx context.Context, ownerID uuid.UUID) ([]ledger.Ledger, error)
}

type Writer interface {
	CreateOwner(ctx context.Context, o ledger.Owner) (ledger.Owner, error)
	// DeleteOwner removes an owner together with its ledgers.
	DeleteOwner(ctx context.Context, ownerID uuid.UUID) error
	// CreateLedger stores the ledger and its root account together.
	CreateLedger(ctx context.Context, l ledger.Ledger, root ledger.Account) (ledger.Ledger, error)
	// SetLedgerArchived changes only the archive flag.
	SetLedgerArchived(ctx context.Context, ledgerID uuid.UUID, archived bool) (ledger.Ledger, error)
	DeleteLedger(ctx context.Context, ledgerID uuid.UUID) error
}

type Service interface {
	CreateOwner(ctx context.Context, name string) (ledger.Owner, error)
	GetOwner(ctx context.Context, ownerID uuid.UUID) (ledger.Owner, error)
	Create(ctx context.Context, in CreateInput) (ledger.Ledger, error)
	Get(ctx context.Context, ledgerID uuid.UUID) (ledger.Ledger, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]ledger.Ledger, error)
	SetArchived(ctx context.Context, ledgerID uuid.UUID, archived bool) (ledger.Ledger, error)
	// Delete removes a ledger unless it is the caller's active ledger.
	Delete(ctx context.Context, ledgerID, activeID uuid.UUID) error
	Bootstrap(ctx context.Context, in BootstrapInput) (BootstrapResult, error)
}

type CreateInput struct {
	OwnerID  uuid.UUID
	Name     string
	Currency string
	// Precision defaults to the currency's minor-unit scale.
	Precision *int
}

type BootstrapInput struct {
	OwnerName string
	Ledger    CreateInput
	// Rows, when non-empty, are imported into the new ledger.
	Rows    []chart.Row
	Options coa.Options
}

type BootstrapResult struct {
	Owner  ledger.Owner
	Ledger ledger.Ledger
	Import *coa.Result
}

type service struct {
	repo     Repo
	writer   Writer
	importer coa.Service
	now      func() time.Time
}

func New(repo Repo, writer Writer, importer coa.Service) Service {
	return &service{repo: repo, writer: writer, importer: importer, now: time.Now}
}

func (s *service) CreateOwner(ctx context.Context, name string) (ledger.Owner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.Owner{}, errors.Join(errs.ErrInvalid, errors.New("name is required"))
	}
	return s.writer.CreateOwner(ctx, ledger.Owner{ID: uuid.New(), Name: name, CreatedAt: s.now().UTC()})
}

func (s *service) GetOwner(ctx context.Context, ownerID uuid.UUID) (ledger.Owner, error) {
	if ownerID == uuid.Nil {
		return ledger.Owner{}, errs.ErrInvalid
	}
	return s.repo.GetOwner(ctx, ownerID)
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Ledger, error) {
	if in.OwnerID == uuid.Nil {
		return ledger.Ledger{}, errs.ErrInvalid
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ledger.Ledger{}, errors.Join(errs.ErrInvalid, errors.New("name is required"))
	}
	curr, err := money.ParseCurr(strings.TrimSpace(in.Currency))
	if err != nil {
		return ledger.Ledger{}, errors.Join(errs.ErrInvalid, fmt.Errorf("currency %q: %w", in.Currency, err))
	}
	precision := curr.Scale()
	if in.Precision != nil {
		precision = *in.Precision
	}
	if precision < ledger.MinPrecision || precision > ledger.MaxPrecision {
		return ledger.Ledger{}, errors.Join(errs.ErrInvalid, fmt.Errorf("precision %d out of range %d..%d", precision, ledger.MinPrecision, ledger.MaxPrecision))
	}
	if _, err := s.repo.GetOwner(ctx, in.OwnerID); err != nil {
		return ledger.Ledger{}, err
	}

	now := s.now().UTC()
	l := ledger.Ledger{
		ID:        uuid.New(),
		OwnerID:   in.OwnerID,
		Name:      name,
		Currency:  curr.Code(),
		Precision: precision,
		IsActive:  true,
		CreatedAt: now,
	}
	root := ledger.Account{
		ID:            uuid.New(),
		LedgerID:      l.ID,
		Code:          ledger.RootCode,
		Name:          ledger.RootName,
		Kind:          ledger.KindAsset,
		IsPlaceholder: true,
		IsActive:      true,
		Currency:      l.Currency,
		Fraction:      l.Fraction(),
		Metadata:      meta.Metadata{},
		CreatedAt:     now,
	}
	rid := root.ID
	l.RootAccountID = &rid
	return s.writer.CreateLedger(ctx, l, root)
}

func (s *service) Get(ctx context.Context, ledgerID uuid.UUID) (ledger.Ledger, error) {
	if ledgerID == uuid.Nil {
		return ledger.Ledger{}, errs.ErrInvalid
	}
	return s.repo.GetLedger(ctx, ledgerID)
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]ledger.Ledger, error) {
	if ownerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.repo.GetOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.repo.ListLedgers(ctx, ownerID)
}

func (s *service) SetArchived(ctx context.Context, ledgerID uuid.UUID, archived bool) (ledger.Ledger, error) {
	l, err := s.Get(ctx, ledgerID)
	if err != nil {
		return ledger.Ledger{}, err
	}
	if l.IsActive == !archived {
		return l, nil
	}
	return s.writer.SetLedgerArchived(ctx, ledgerID, archived)
}

func (s *service) Delete(ctx context.Context, ledgerID, activeID uuid.UUID) error {
	if ledgerID == uuid.Nil {
		return errs.ErrInvalid
	}
	if ledgerID == activeID {
		return errs.ErrActiveLedger
	}
	if _, err := s.repo.GetLedger(ctx, ledgerID); err != nil {
		return err
	}
	return s.writer.DeleteLedger(ctx, ledgerID)
}

// Bootstrap creates an owner and a ledger, then imports rows into it. When
// any step fails the owner is removed again, taking the ledger with it.
func (s *service) Bootstrap(ctx context.Context, in BootstrapInput) (BootstrapResult, error) {
	owner, err := s.CreateOwner(ctx, in.OwnerName)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("create owner: %w", err)
	}
	lin := in.Ledger
	lin.OwnerID = owner.ID
	l, err := s.Create(ctx, lin)
	if err != nil {
		return BootstrapResult{}, s.discard(ctx, owner.ID, fmt.Errorf("create ledger: %w", err))
	}
	out := BootstrapResult{Owner: owner, Ledger: l}
	if len(in.Rows) == 0 {
		return out, nil
	}
	res, err := s.importer.Import(ctx, l.ID, in.Rows, in.Options)
	if err != nil {
		return BootstrapResult{}, s.discard(ctx, owner.ID, fmt.Errorf("import chart: %w", err))
	}
	out.Import = &res
	if out.Ledger, err = s.repo.GetLedger(ctx, l.ID); err != nil {
		return out, err
	}
	return out, nil
}

// discard deletes the owner created by a failed Bootstrap and returns cause,
// joined with any cleanup failure.
func (s *service) discard(ctx context.Context, ownerID uuid.UUID, cause error) error {
	if err := s.writer.DeleteOwner(ctx, ownerID); err != nil {
		return errors.Join(cause, fmt.Errorf("discard owner: %w", err))
	}
	return cause
}
