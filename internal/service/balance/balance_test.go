package balance_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/service/balance"
)

type fixture struct {
	ledger   ledger.Ledger
	accounts []ledger.Account
	byCode   map[string]ledger.Account
}

// chart: 1 > 1000 > {1100, 1200}; 1 > 2000 > 2100
func newFixture() fixture {
	lid := uuid.New()
	f := fixture{byCode: make(map[string]ledger.Account)}
	add := func(code string, parent string, kind ledger.Kind) {
		a := ledger.Account{ID: uuid.New(), LedgerID: lid, Code: code, Name: code, Kind: kind, IsActive: true}
		if parent != "" {
			pid := f.byCode[parent].ID
			a.ParentID = &pid
		}
		f.byCode[code] = a
		f.accounts = append(f.accounts, a)
	}
	add("1", "", ledger.KindAsset)
	add("1000", "1", ledger.KindAsset)
	add("1100", "1000", ledger.KindAsset)
	add("1200", "1000", ledger.KindAsset)
	add("2000", "1", ledger.KindLiability)
	add("2100", "2000", ledger.KindLiability)
	rid := f.byCode["1"].ID
	f.ledger = ledger.Ledger{ID: lid, Currency: "USD", Precision: 2, IsActive: true, RootAccountID: &rid}
	return f
}

func (f fixture) split(code string, side ledger.Side, num, denom int64) ledger.Split {
	return ledger.Split{ID: uuid.New(), AccountID: f.byCode[code].ID, Side: side, Value: ledger.NewRational(num, denom)}
}

func dec(s string) decimal.Decimal { return decimal.MustParse(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Zero(t, dec(want).Cmp(got), "want %s got %s %v", want, got, msgAndArgs)
}

func TestCompute_OwnBalance(t *testing.T) {
	f := newFixture()
	splits := []ledger.Split{
		f.split("1100", ledger.SideDebit, 10000, 100),
		f.split("1100", ledger.SideCredit, 4000, 100),
	}
	b, err := balance.Compute(f.ledger, f.accounts, splits, false)
	require.NoError(t, err)
	require.Len(t, b, len(f.accounts))
	assertDec(t, "60", b[f.byCode["1100"].ID].Own)
	assertDec(t, "60", b[f.byCode["1100"].ID].Total)
	assertDec(t, "0", b[f.byCode["1000"].ID].Total, "own-only mode does not roll up")
}

func TestCompute_ZeroDenominator(t *testing.T) {
	f := newFixture()
	b, err := balance.Compute(f.ledger, f.accounts, []ledger.Split{f.split("1100", ledger.SideDebit, 7, 0)}, false)
	require.NoError(t, err)
	assertDec(t, "7", b[f.byCode["1100"].ID].Own)
}

func TestCompute_Signs(t *testing.T) {
	f := newFixture()
	splits := []ledger.Split{
		f.split("1100", ledger.SideDebit, 500, 100),
		f.split("2100", ledger.SideCredit, 500, 100),
		f.split("2100", ledger.SideDebit, 200, 100),
	}
	b, err := balance.Compute(f.ledger, f.accounts, splits, false)
	require.NoError(t, err)
	assertDec(t, "5", b[f.byCode["1100"].ID].Own)
	assertDec(t, "3", b[f.byCode["2100"].ID].Own)
}

func TestCompute_Additivity(t *testing.T) {
	f := newFixture()
	splits := []ledger.Split{
		f.split("1000", ledger.SideDebit, 1, 1),
		f.split("1100", ledger.SideDebit, 2550, 100),
		f.split("1200", ledger.SideDebit, 1000, 100),
		f.split("1200", ledger.SideCredit, 250, 100),
		f.split("2100", ledger.SideCredit, 4000, 100),
	}
	b, err := balance.Compute(f.ledger, f.accounts, splits, true)
	require.NoError(t, err)

	assertDec(t, "25.5", b[f.byCode["1100"].ID].Total)
	assertDec(t, "7.5", b[f.byCode["1200"].ID].Total)
	assertDec(t, "34", b[f.byCode["1000"].ID].Total)
	assertDec(t, "40", b[f.byCode["2000"].ID].Total)
	assertDec(t, "74", b[f.byCode["1"].ID].Total)

	// Total(a) == Own(a) + sum of children's totals, for every account
	tree := ledger.NewTree(f.accounts)
	for _, a := range f.accounts {
		sum := b[a.ID].Own
		for _, c := range tree.Children(a.ID) {
			var err error
			sum, err = sum.Add(b[c].Total)
			require.NoError(t, err)
		}
		assertDec(t, sum.String(), b[a.ID].Total, "account %s", a.Code)
	}
}

func TestCompute_IgnoresForeignAccountsAndSplits(t *testing.T) {
	f := newFixture()
	stranger := ledger.Account{ID: uuid.New(), LedgerID: uuid.New(), Code: "9", Kind: ledger.KindAsset}
	accounts := append(append([]ledger.Account(nil), f.accounts...), stranger)
	splits := []ledger.Split{
		{ID: uuid.New(), AccountID: stranger.ID, Side: ledger.SideDebit, Value: ledger.NewRational(5, 1)},
		{ID: uuid.New(), AccountID: uuid.New(), Side: ledger.SideDebit, Value: ledger.NewRational(5, 1)},
		f.split("1100", ledger.SideDebit, 1, 1),
	}
	b, err := balance.Compute(f.ledger, accounts, splits, true)
	require.NoError(t, err)
	assert.Len(t, b, len(f.accounts))
	_, ok := b[stranger.ID]
	assert.False(t, ok)
	assertDec(t, "1", b[f.byCode["1"].ID].Total)
}

func TestCompute_NoRootUsesParentlessAccounts(t *testing.T) {
	f := newFixture()
	f.ledger.RootAccountID = nil
	b, err := balance.Compute(f.ledger, f.accounts, []ledger.Split{f.split("2100", ledger.SideCredit, 3, 1)}, true)
	require.NoError(t, err)
	assertDec(t, "3", b[f.byCode["1"].ID].Total)
}

func TestCompute_UnknownKindUsesAssetRule(t *testing.T) {
	f := newFixture()
	odd := ledger.Account{ID: uuid.New(), LedgerID: f.ledger.ID, Code: "3000", Kind: ledger.KindUnknown}
	accounts := append(append([]ledger.Account(nil), f.accounts...), odd)
	splits := []ledger.Split{{ID: uuid.New(), AccountID: odd.ID, Side: ledger.SideDebit, Value: ledger.NewRational(4, 1)}}
	b, err := balance.Compute(f.ledger, accounts, splits, true)
	require.NoError(t, err)
	assertDec(t, "4", b[odd.ID].Own)
}

func TestCompute_DeepChain(t *testing.T) {
	lid := uuid.New()
	const depth = 2000
	accounts := make([]ledger.Account, 0, depth)
	var parent *uuid.UUID
	for i := 0; i < depth; i++ {
		a := ledger.Account{ID: uuid.New(), LedgerID: lid, Code: fmt.Sprintf("%05d", i), Kind: ledger.KindAsset, ParentID: parent}
		accounts = append(accounts, a)
		id := a.ID
		parent = &id
	}
	rid := accounts[0].ID
	l := ledger.Ledger{ID: lid, Currency: "USD", Precision: 2, IsActive: true, RootAccountID: &rid}
	leaf := accounts[depth-1]
	splits := []ledger.Split{{ID: uuid.New(), AccountID: leaf.ID, Side: ledger.SideDebit, Value: ledger.NewRational(7, 1)}}

	b, err := balance.Compute(l, accounts, splits, true)
	require.NoError(t, err)
	assertDec(t, "7", b[rid].Total)
	assertDec(t, "0", b[rid].Own)
}

func TestCompute_CycleOutsideRootKeepsOwn(t *testing.T) {
	f := newFixture()
	a := ledger.Account{ID: uuid.New(), LedgerID: f.ledger.ID, Code: "9000", Kind: ledger.KindAsset}
	c := ledger.Account{ID: uuid.New(), LedgerID: f.ledger.ID, Code: "9100", Kind: ledger.KindAsset}
	a.ParentID, c.ParentID = &c.ID, &a.ID
	accounts := append(append([]ledger.Account(nil), f.accounts...), a, c)
	splits := []ledger.Split{{ID: uuid.New(), AccountID: c.ID, Side: ledger.SideDebit, Value: ledger.NewRational(2, 1)}}

	b, err := balance.Compute(f.ledger, accounts, splits, true)
	require.NoError(t, err)
	assertDec(t, "2", b[c.ID].Total)
	assertDec(t, "0", b[a.ID].Total)
	assertDec(t, "0", b[f.byCode["1"].ID].Total)
}

func TestSignedRoundTrip(t *testing.T) {
	amt := dec("12.34")
	for _, k := range ledger.Kinds() {
		for _, side := range []ledger.Side{ledger.SideDebit, ledger.SideCredit} {
			v := balance.Signed(k, side, amt)
			back := balance.Signed(k, side, v)
			assertDec(t, "12.34", back, "%s %s", k, side)
			opp := balance.Signed(k, side.Opposite(), amt)
			assertDec(t, v.Neg().String(), opp, "%s %s", k, side)
		}
	}
}

func TestDisplay(t *testing.T) {
	d := dec("10")
	assertDec(t, "10", balance.Display(ledger.KindLiability, d, balance.ConventionNatural))
	assertDec(t, "-10", balance.Display(ledger.KindLiability, d, balance.ConventionInverted))
	assertDec(t, "-10", balance.Display(ledger.KindIncome, d, balance.ConventionInverted))
	assertDec(t, "10", balance.Display(ledger.KindAsset, d, balance.ConventionInverted))
	assertDec(t, "10", balance.Display(ledger.KindExpense, d, balance.ConventionInverted))

	c, err := balance.ParseConvention("inverted")
	require.NoError(t, err)
	assert.Equal(t, balance.ConventionInverted, c)
	_, err = balance.ParseConvention("upside-down")
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

type stubRepo struct {
	snap ledger.Snapshot
	err  error
}

func (r stubRepo) Snapshot(context.Context, uuid.UUID) (ledger.Snapshot, error) {
	return r.snap, r.err
}

func TestService_Compute(t *testing.T) {
	f := newFixture()
	repo := stubRepo{snap: ledger.Snapshot{
		Ledger:   f.ledger,
		Accounts: f.accounts,
		Splits:   []ledger.Split{f.split("1200", ledger.SideDebit, 125, 100)},
	}}
	before := time.Now().UTC()
	snap, err := balance.New(repo).Compute(context.Background(), f.ledger.ID, balance.Options{IncludeDescendants: true})
	require.NoError(t, err)
	assert.False(t, snap.ComputedAt.Before(before.Add(-time.Second)))
	assert.Equal(t, f.ledger.ID, snap.Ledger.ID)
	assertDec(t, "1.25", snap.Balances[f.byCode["1"].ID].Total)
}

func TestService_ComputeErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := balance.New(stubRepo{err: boom}).Compute(context.Background(), uuid.New(), balance.Options{})
	assert.ErrorIs(t, err, boom)

	_, err = balance.New(stubRepo{}).Compute(context.Background(), uuid.Nil, balance.Options{})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}
