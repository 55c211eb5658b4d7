package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/books/internal/meta"
)

// Side represents the accounting position of a split.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

func (s Side) Valid() bool { return s == SideDebit || s == SideCredit }

// Opposite returns the other side; used when reversing a transaction.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// Fallback identity of a root account synthesized when neither the chart nor
// the ledger provides one.
const (
	RootCode = "000-000000000-000000"
	RootName = "Root"
)

const (
	MinPrecision = 0
	MaxPrecision = 6
)

// Owner is the party a set of ledgers belongs to.
type Owner struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Ledger is one accounting book.
type Ledger struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Name     string
	Currency string
	// Precision is the number of decimal places shown for amounts.
	Precision int
	// IsActive is false once the ledger is archived; archived ledgers are read-only.
	IsActive bool
	// RootAccountID is nil only before the ledger has been bootstrapped.
	RootAccountID *uuid.UUID
	CreatedAt     time.Time
}

// Fraction is the smallest commodity unit of the ledger currency as a
// denominator, 10^Precision.
func (l Ledger) Fraction() int64 {
	f := int64(1)
	for i := 0; i < l.Precision; i++ {
		f *= 10
	}
	return f
}

// Account is a node of a ledger's chart of accounts.
type Account struct {
	ID       uuid.UUID
	LedgerID uuid.UUID
	// ParentID is nil only for the ledger root.
	ParentID *uuid.UUID
	// Code is the import key, unique within a ledger after NormalizeCode.
	Code string
	Name string
	Kind Kind
	Role Role
	// IsPlaceholder marks organizing accounts that must not receive postings.
	IsPlaceholder bool
	IsActive      bool
	IsHidden      bool
	Currency      string
	// Fraction is the smallest commodity unit as a denominator (100 for cents).
	Fraction int64
	Metadata meta.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time
}

func (a Account) IsRoot() bool { return a.ParentID == nil }

// Postable reports whether splits may reference the account.
func (a Account) Postable() bool { return a.IsActive && !a.IsPlaceholder }

// SameState reports whether two snapshots of an account are identical in every
// persisted field.
func (a Account) SameState(b Account) bool {
	return a.ID == b.ID &&
		a.LedgerID == b.LedgerID &&
		sameParent(a.ParentID, b.ParentID) &&
		a.Code == b.Code &&
		a.Name == b.Name &&
		a.Kind == b.Kind &&
		a.Role == b.Role &&
		a.IsPlaceholder == b.IsPlaceholder &&
		a.IsActive == b.IsActive &&
		a.IsHidden == b.IsHidden &&
		a.Currency == b.Currency &&
		a.Fraction == b.Fraction &&
		a.Metadata.Equal(b.Metadata)
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NormalizeCode returns the key under which account codes are compared.
func NormalizeCode(code string) string { return strings.ToLower(strings.TrimSpace(code)) }

// Transaction groups the splits of one balanced posting.
type Transaction struct {
	ID          uuid.UUID
	LedgerID    uuid.UUID
	PostDate    time.Time
	Description string
	// ReversalOf links a reversing transaction to the one it cancels.
	ReversalOf *uuid.UUID
	CreatedAt  time.Time
	Splits     []Split
}

// Split is one debit or credit line of a transaction.
type Split struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Side          Side
	Value         Rational
	Memo          string
	Reconciled    bool
}

// Snapshot is a consistent read of everything the balance engine needs.
type Snapshot struct {
	Ledger   Ledger
	Accounts []Account
	Splits   []Split
}
