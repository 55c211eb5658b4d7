// Package balance aggregates split values into per-account balances.
//
// Balances are signed by the natural side of each account's kind: a debit
// raises an Asset or Expense account and lowers a Liability, Equity or
// Income account. Totals roll child balances up the chart.
package balance

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/ledger"
)

// Balance is one account's own balance and the balance of its whole subtree.
type Balance struct {
	Own   decimal.Decimal `json:"own"`
	Total decimal.Decimal `json:"total"`
}

// Balances maps account id to balance. Every account of the ledger has an entry.
type Balances map[uuid.UUID]Balance

// Signed returns the contribution of a split value to an account of kind k.
func Signed(k ledger.Kind, side ledger.Side, amount decimal.Decimal) decimal.Decimal {
	debit := side == ledger.SideDebit
	if debit == k.DebitNormal() {
		return amount
	}
	return amount.Neg()
}

// Compute aggregates splits over the ledger's accounts. Accounts of other
// ledgers and splits referencing unknown accounts are ignored. With
// includeDescendants unset every Total equals Own.
func Compute(l ledger.Ledger, accounts []ledger.Account, splits []ledger.Split, includeDescendants bool) (Balances, error) {
	own := make([]ledger.Account, 0, len(accounts))
	out := make(Balances, len(accounts))
	for _, a := range accounts {
		if a.LedgerID != l.ID {
			continue
		}
		own = append(own, a)
		out[a.ID] = Balance{Own: decimal.Zero, Total: decimal.Zero}
	}
	kinds := make(map[uuid.UUID]ledger.Kind, len(own))
	for _, a := range own {
		kinds[a.ID] = a.Kind
	}

	for _, sp := range splits {
		k, ok := kinds[sp.AccountID]
		if !ok {
			continue
		}
		amt, err := sp.Value.Decimal()
		if err != nil {
			return nil, fmt.Errorf("split %s value %s: %w", sp.ID, sp.Value, errs.ErrOverflow)
		}
		b := out[sp.AccountID]
		sum, err := b.Own.Add(Signed(k, sp.Side, amt))
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", sp.AccountID, errs.ErrOverflow)
		}
		b.Own = sum
		out[sp.AccountID] = b
	}

	for id, b := range out {
		b.Total = b.Own
		out[id] = b
	}
	if !includeDescendants {
		return out, nil
	}

	tree := ledger.NewTree(own)
	starts := tree.Roots()
	if l.RootAccountID != nil {
		if _, ok := tree.Account(*l.RootAccountID); ok {
			starts = []uuid.UUID{*l.RootAccountID}
		}
	}
	visited := make(map[uuid.UUID]bool, len(own))
	for _, start := range starts {
		if err := rollUp(tree, start, out, visited); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type frame struct {
	id       uuid.UUID
	expanded bool
}

// rollUp sums subtree totals in post-order using an explicit stack. Each
// account is pushed at most once, so chain depth is bounded by the chart size.
func rollUp(tree *ledger.Tree, start uuid.UUID, out Balances, visited map[uuid.UUID]bool) error {
	if visited[start] {
		return nil
	}
	stack := []frame{{id: start}}
	visited[start] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if !top.expanded {
			top.expanded = true
			for _, c := range tree.Children(top.id) {
				if visited[c] {
					continue
				}
				visited[c] = true
				stack = append(stack, frame{id: c})
			}
			continue
		}
		id := top.id
		stack = stack[:len(stack)-1]
		b := out[id]
		total := b.Own
		for _, c := range tree.Children(id) {
			sum, err := total.Add(out[c].Total)
			if err != nil {
				return fmt.Errorf("account %s: %w", id, errs.ErrOverflow)
			}
			total = sum
		}
		b.Total = total
		out[id] = b
	}
	return nil
}

// Convention selects how signed balances are presented.
type Convention string

const (
	// ConventionNatural shows balances as computed.
	ConventionNatural Convention = "natural"
	// ConventionInverted negates Liability, Equity and Income balances so
	// that credit-normal accounts read positive.
	ConventionInverted Convention = "inverted"
)

func ParseConvention(s string) (Convention, error) {
	switch Convention(s) {
	case "", ConventionNatural:
		return ConventionNatural, nil
	case ConventionInverted:
		return ConventionInverted, nil
	}
	return "", fmt.Errorf("display %q: %w", s, errs.ErrInvalid)
}

// Display applies the presentation convention to a computed balance.
func Display(k ledger.Kind, d decimal.Decimal, c Convention) decimal.Decimal {
	if c == ConventionInverted && k.Valid() && !k.DebitNormal() {
		return d.Neg()
	}
	return d
}
