package account_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/meta"
	"github.com/tinoosan/books/internal/service/account"
	"github.com/tinoosan/books/internal/service/book"
	"github.com/tinoosan/books/internal/service/coa"
	"github.com/tinoosan/books/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T) (*memory.Store, ledger.Ledger, account.Service, book.Service) {
	t.Helper()
	st := memory.New()
	books := book.New(st, st, coa.New(st))
	rows := []chart.Row{
		{Code: "1", Name: "Root"},
		{Code: "1000", ParentCode: ptr("1"), Name: "Assets", Level: 1, Kind: ledger.KindAsset},
		{Code: "1200", ParentCode: ptr("1000"), Name: "Bank", Level: 2, Kind: ledger.KindAsset, Role: ledger.RoleBank},
		{Code: "1100", ParentCode: ptr("1000"), Name: "Cash", Level: 2, Kind: ledger.KindAsset, Role: ledger.RoleCash},
		{Code: "2000", ParentCode: ptr("1"), Name: "Liabilities", Level: 1, Kind: ledger.KindLiability},
	}
	res, err := books.Bootstrap(context.Background(), book.BootstrapInput{
		OwnerName: "Ada",
		Ledger:    book.CreateInput{Name: "Books", Currency: "USD"},
		Rows:      rows,
	})
	require.NoError(t, err)
	return st, res.Ledger, account.New(st, st), books
}

func find(t *testing.T, svc account.Service, ledgerID uuid.UUID, code string) ledger.Account {
	t.Helper()
	list, err := svc.List(context.Background(), ledgerID)
	require.NoError(t, err)
	for _, a := range list {
		if a.Code == code {
			return a
		}
	}
	t.Fatalf("account %s not found", code)
	return ledger.Account{}
}

func TestList_OrderedByCode(t *testing.T) {
	_, l, svc, _ := setup(t)
	list, err := svc.List(context.Background(), l.ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(list))
	for _, a := range list {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"1", "1000", "1100", "1200", "2000"}, codes)

	_, err = svc.List(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTree(t *testing.T) {
	_, l, svc, _ := setup(t)
	root, err := svc.Tree(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", root.Account.Code)
	require.Len(t, root.Children, 2)
	assets := root.Children[0]
	assert.Equal(t, "1000", assets.Account.Code)
	require.Len(t, assets.Children, 2)
	assert.Equal(t, "1100", assets.Children[0].Account.Code)
	assert.Equal(t, "1200", assets.Children[1].Account.Code)
	assert.Empty(t, assets.Children[0].Children)
	assert.Equal(t, "2000", root.Children[1].Account.Code)
}

func TestUpdate(t *testing.T) {
	_, l, svc, _ := setup(t)
	ctx := context.Background()
	cash := find(t, svc, l.ID, "1100")

	got, err := svc.Update(ctx, cash.ID, account.Patch{Name: ptr(" Wallet "), Hidden: ptr(true), Notes: ptr("coins")})
	require.NoError(t, err)
	assert.Equal(t, "Wallet", got.Name)
	assert.True(t, got.IsHidden)
	v, ok := got.Metadata.Get(meta.KeyNotes)
	assert.True(t, ok)
	assert.Equal(t, "coins", v)
	assert.Equal(t, cash.Code, got.Code)
	assert.Equal(t, cash.Kind, got.Kind)

	got, err = svc.Update(ctx, cash.ID, account.Patch{Notes: ptr("")})
	require.NoError(t, err)
	_, ok = got.Metadata.Get(meta.KeyNotes)
	assert.False(t, ok)

	_, err = svc.Update(ctx, cash.ID, account.Patch{Name: ptr("  ")})
	assert.ErrorIs(t, err, errs.ErrInvalid)
	_, err = svc.Update(ctx, uuid.New(), account.Patch{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdate_ArchivedLedger(t *testing.T) {
	_, l, svc, books := setup(t)
	ctx := context.Background()
	cash := find(t, svc, l.ID, "1100")
	_, err := books.SetArchived(ctx, l.ID, true)
	require.NoError(t, err)

	_, err = svc.Update(ctx, cash.ID, account.Patch{Name: ptr("Wallet")})
	assert.ErrorIs(t, err, errs.ErrArchived)
	assert.ErrorIs(t, svc.Deactivate(ctx, cash.ID), errs.ErrArchived)
}

func TestDeactivate(t *testing.T) {
	st, l, svc, _ := setup(t)
	ctx := context.Background()
	cash := find(t, svc, l.ID, "1100")

	require.NoError(t, svc.Deactivate(ctx, cash.ID))
	got, err := st.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NoError(t, svc.Deactivate(ctx, cash.ID), "deactivating twice is a no-op")

	assert.ErrorIs(t, svc.Deactivate(ctx, *l.RootAccountID), errs.ErrRootAccount)
}
