package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/books/internal/chart"
	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/service/balance"
	"github.com/tinoosan/books/internal/service/book"
	"github.com/tinoosan/books/internal/service/coa"
	"github.com/tinoosan/books/internal/service/journal"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T, dsn string) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func applyInitSQL(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Resolve init SQL path relative to this test file so CWD doesn't matter
	_, thisFile, _, _ := runtime.Caller(0)
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "../../../"))
	path := filepath.Join(repoRoot, "db", "migrations", "0001_init.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read init sql: %v", err)
	}
	// Exec may contain multiple statements; pgx supports this
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		t.Fatalf("apply init sql: %v", err)
	}
}

func truncateAll(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, `truncate table splits, transactions, accounts, ledgers, owners cascade`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func setup(t *testing.T) *Store {
	t.Helper()
	s := mustOpen(t, getTestDSN(t))
	t.Cleanup(s.Close)
	applyInitSQL(t, s)
	truncateAll(t, s)
	return s
}

func strPtr(s string) *string { return &s }

func TestStore_ImportRecordAndBalance(t *testing.T) {
	s := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := s.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}

	importer := coa.New(s)
	books := book.New(s, s, importer)
	rows := []chart.Row{
		{Code: "1", Name: "Root"},
		{Code: "1100", ParentCode: strPtr("1000"), Name: "Cash", Level: 2, Kind: ledger.KindAsset},
		{Code: "1000", ParentCode: strPtr("1"), Name: "Assets", Level: 1, Kind: ledger.KindAsset},
		{Code: "4000", ParentCode: strPtr("1"), Name: "Income", Level: 1, Kind: ledger.KindIncome},
	}
	boot, err := books.Bootstrap(ctx, book.BootstrapInput{
		OwnerName: "Ada",
		Ledger:    book.CreateInput{Name: "Books", Currency: "USD"},
		Rows:      rows,
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	l := boot.Ledger
	if boot.Import == nil || boot.Import.Created != 3 {
		t.Fatalf("unexpected import result: %+v", boot.Import)
	}

	// Re-import is a no-op
	res, err := importer.Import(ctx, l.ID, rows, coa.Options{})
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if res.Changed() || res.Unchanged != 4 {
		t.Fatalf("expected unchanged re-import, got %+v", res)
	}

	accts, err := s.FindAccountsByLedger(ctx, l.ID)
	if err != nil {
		t.Fatalf("find accounts: %v", err)
	}
	ids := map[string]uuid.UUID{}
	for _, a := range accts {
		ids[a.Code] = a.ID
	}
	if err := ledger.NewTree(accts).Validate(*l.RootAccountID); err != nil {
		t.Fatalf("tree: %v", err)
	}

	jr := journal.New(s, s)
	created, err := jr.Record(ctx, ledger.Transaction{
		LedgerID: l.ID,
		PostDate: time.Now().UTC(),
		Splits: []ledger.Split{
			{AccountID: ids["1100"], Side: ledger.SideDebit, Value: ledger.NewRational(10000, 100)},
			{AccountID: ids["4000"], Side: ledger.SideCredit, Value: ledger.NewRational(4000, 100)},
			{AccountID: ids["4000"], Side: ledger.SideCredit, Value: ledger.NewRational(6000, 100)},
		},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.GetTransaction(ctx, l.ID, created.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if len(got.Splits) != 3 || got.Splits[0].Side != ledger.SideDebit {
		t.Fatalf("unexpected splits: %+v", got.Splits)
	}

	snap, err := balance.New(s).Compute(ctx, l.ID, balance.Options{IncludeDescendants: true})
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if got := snap.Balances[ids["1000"]].Total.Trim(0).String(); got != "100" {
		t.Fatalf("assets total = %s, want 100", got)
	}

	if err := books.Delete(ctx, l.ID, uuid.Nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetLedger(ctx, l.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStore_ImportMissingParentRollsBack(t *testing.T) {
	s := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	books := book.New(s, s, coa.New(s))
	owner, err := books.CreateOwner(ctx, "Ada")
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	l, err := books.Create(ctx, book.CreateInput{OwnerID: owner.ID, Name: "Books", Currency: "EUR"})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	_, err = coa.New(s).Import(ctx, l.ID, []chart.Row{
		{Code: "1000", Name: "Assets", Level: 1, Kind: ledger.KindAsset},
		{Code: "2100", ParentCode: strPtr("2000"), Name: "Card", Level: 2, Kind: ledger.KindLiability},
	}, coa.Options{})
	if !errors.Is(err, errs.ErrMissingParent) {
		t.Fatalf("expected missing parent, got %v", err)
	}
	accts, err := s.FindAccountsByLedger(ctx, l.ID)
	if err != nil {
		t.Fatalf("find accounts: %v", err)
	}
	if len(accts) != 1 {
		t.Fatalf("expected only the root account, got %d", len(accts))
	}
}

func TestStore_ArchiveWaitsForImport(t *testing.T) {
	s := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	books := book.New(s, s, coa.New(s))
	owner, err := books.CreateOwner(ctx, "Ada")
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	l, err := books.Create(ctx, book.CreateInput{OwnerID: owner.ID, Name: "Books", Currency: "EUR"})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	uow, err := s.Begin(ctx, l.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := uow.GetLedger(ctx, l.ID); err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	archived := make(chan error, 1)
	go func() {
		_, err := books.SetArchived(ctx, l.ID, true)
		archived <- err
	}()
	select {
	case err := <-archived:
		t.Fatalf("archive finished while the import held the ledger: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	if err := uow.SetRoot(ctx, *l.RootAccountID); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := uow.SaveAll(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := <-archived; err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, err := s.GetLedger(ctx, l.ID)
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	if got.IsActive {
		t.Fatalf("archive was lost")
	}
	if got.RootAccountID == nil || *got.RootAccountID != *l.RootAccountID {
		t.Fatalf("root pointer changed: %v", got.RootAccountID)
	}

	uow, err = s.Begin(ctx, l.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer uow.Rollback(ctx)
	if err := uow.SetRoot(ctx, *l.RootAccountID); !errors.Is(err, errs.ErrArchived) {
		t.Fatalf("expected archived, got %v", err)
	}
}
