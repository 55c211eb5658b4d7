package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/books/internal/ledger"
	"github.com/tinoosan/books/internal/meta"
	"github.com/tinoosan/books/internal/service/account"
	"github.com/tinoosan/books/internal/service/balance"
)

type createOwnerRequest struct {
	Name string `json:"name"`
}

type ownerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type createLedgerRequest struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Precision *int      `json:"precision,omitempty"`
	// Chart names a bundled chart to import after the root is created.
	Chart string `json:"chart,omitempty"`
}

type ledgerResponse struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	Name          string     `json:"name"`
	Currency      string     `json:"currency"`
	Precision     int        `json:"precision"`
	Active        bool       `json:"active"`
	RootAccountID *uuid.UUID `json:"root_account_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type accountResponse struct {
	ID          uuid.UUID     `json:"id"`
	LedgerID    uuid.UUID     `json:"ledger_id"`
	ParentID    *uuid.UUID    `json:"parent_id,omitempty"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Kind        string        `json:"kind"`
	Role        string        `json:"role"`
	Placeholder bool          `json:"is_placeholder"`
	Active      bool          `json:"active"`
	Hidden      bool          `json:"hidden"`
	Currency    string        `json:"currency"`
	Metadata    meta.Metadata `json:"metadata,omitempty"`
}

type updateAccountRequest struct {
	Name   *string `json:"name"`
	Hidden *bool   `json:"hidden"`
	Notes  *string `json:"notes"`
}

type amountResponse struct {
	Own   string `json:"own"`
	Total string `json:"total"`
}

type treeNodeResponse struct {
	ID          uuid.UUID           `json:"id"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Kind        string              `json:"kind"`
	Role        string              `json:"role"`
	Placeholder bool                `json:"is_placeholder"`
	Balance     *amountResponse     `json:"balance,omitempty"`
	Children    []*treeNodeResponse `json:"children"`
}

type balanceItem struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Own       string    `json:"own"`
	Total     string    `json:"total"`
	// Formatted is the display total tagged with the ledger currency.
	Formatted string `json:"formatted"`
}

type balancesResponse struct {
	LedgerID   uuid.UUID     `json:"ledger_id"`
	Currency   string        `json:"currency"`
	Convention string        `json:"convention"`
	ComputedAt time.Time     `json:"computed_at"`
	Items      []balanceItem `json:"items"`
}

type splitRequest struct {
	AccountID uuid.UUID   `json:"account_id"`
	Side      ledger.Side `json:"side"`
	// Amount is a positive decimal string such as "12.50".
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type postTransactionRequest struct {
	Date        *time.Time     `json:"date,omitempty"`
	Description string         `json:"description"`
	Splits      []splitRequest `json:"splits"`
}

type reverseRequest struct {
	Date *time.Time `json:"date,omitempty"`
}

type splitResponse struct {
	ID        uuid.UUID   `json:"id"`
	AccountID uuid.UUID   `json:"account_id"`
	Side      ledger.Side `json:"side"`
	Value     string      `json:"value"`
	Amount    string      `json:"amount"`
	Memo      string      `json:"memo,omitempty"`
}

type transactionResponse struct {
	ID          uuid.UUID       `json:"id"`
	LedgerID    uuid.UUID       `json:"ledger_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	ReversalOf  *uuid.UUID      `json:"reversal_of,omitempty"`
	Splits      []splitResponse `json:"splits"`
}

func toOwnerResponse(o ledger.Owner) ownerResponse {
	return ownerResponse{ID: o.ID, Name: o.Name, CreatedAt: o.CreatedAt}
}

func toLedgerResponse(l ledger.Ledger) ledgerResponse {
	return ledgerResponse{
		ID:            l.ID,
		OwnerID:       l.OwnerID,
		Name:          l.Name,
		Currency:      l.Currency,
		Precision:     l.Precision,
		Active:        l.IsActive,
		RootAccountID: l.RootAccountID,
		CreatedAt:     l.CreatedAt,
	}
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		LedgerID:    a.LedgerID,
		ParentID:    a.ParentID,
		Code:        a.Code,
		Name:        a.Name,
		Kind:        a.Kind.String(),
		Role:        a.Role.String(),
		Placeholder: a.IsPlaceholder,
		Active:      a.IsActive,
		Hidden:      a.IsHidden,
		Currency:    a.Currency,
		Metadata:    a.Metadata,
	}
}

// toTreeResponse converts a materialized node; balances may be nil.
func toTreeResponse(n *account.Node, bals balance.Balances, precision int) *treeNodeResponse {
	a := n.Account
	out := &treeNodeResponse{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Kind:        a.Kind.String(),
		Role:        a.Role.String(),
		Placeholder: a.IsPlaceholder,
		Children:    make([]*treeNodeResponse, 0, len(n.Children)),
	}
	if bals != nil {
		b := bals[a.ID]
		out.Balance = &amountResponse{Own: formatDecimal(b.Own, precision), Total: formatDecimal(b.Total, precision)}
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, toTreeResponse(c, bals, precision))
	}
	return out
}

func toTransactionResponse(tx ledger.Transaction, precision int) transactionResponse {
	out := transactionResponse{
		ID:          tx.ID,
		LedgerID:    tx.LedgerID,
		Date:        tx.PostDate,
		Description: tx.Description,
		ReversalOf:  tx.ReversalOf,
		Splits:      make([]splitResponse, 0, len(tx.Splits)),
	}
	for _, sp := range tx.Splits {
		amt := ""
		if d, err := sp.Value.Decimal(); err == nil {
			amt = formatDecimal(d, precision)
		}
		out.Splits = append(out.Splits, splitResponse{
			ID:        sp.ID,
			AccountID: sp.AccountID,
			Side:      sp.Side,
			Value:     sp.Value.String(),
			Amount:    amt,
			Memo:      sp.Memo,
		})
	}
	return out
}

// formatDecimal rounds d half to even to the ledger precision.
func formatDecimal(d decimal.Decimal, precision int) string {
	return d.Round(precision).Pad(precision).String()
}

// formatAmount tags d with the ledger currency, e.g. "USD 12.50". It falls
// back to the bare decimal when the currency is unknown to the money package.
func formatAmount(currency string, d decimal.Decimal, precision int) string {
	curr, err := money.ParseCurr(currency)
	if err != nil {
		return formatDecimal(d, precision)
	}
	amt, err := money.NewAmountFromDecimal(curr, d.Round(precision).Pad(precision))
	if err != nil {
		return formatDecimal(d, precision)
	}
	return amt.String()
}
