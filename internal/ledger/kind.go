package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the fundamental accounting category of an account. It decides the
// sign convention applied to postings.
//
// The numeric values are persisted and exchanged in chart files; never renumber.
type Kind int16

const (
	KindUnknown   Kind = 0
	KindAsset     Kind = 1
	KindLiability Kind = 2
	KindEquity    Kind = 3
	KindIncome    Kind = 4
	KindExpense   Kind = 5
)

var kinds = [...]struct {
	name  string
	label string
}{
	KindUnknown:   {"unknown", "Other"},
	KindAsset:     {"asset", "Asset"},
	KindLiability: {"liability", "Liability"},
	KindEquity:    {"equity", "Equity"},
	KindIncome:    {"income", "Income"},
	KindExpense:   {"expense", "Expense"},
}

// Kinds lists the valid kinds in numeric order.
func Kinds() []Kind {
	return []Kind{KindAsset, KindLiability, KindEquity, KindIncome, KindExpense}
}

// Valid reports whether k is one of the five accounting categories.
func (k Kind) Valid() bool { return k >= KindAsset && k <= KindExpense }

func (k Kind) String() string {
	if k.Valid() {
		return kinds[k].name
	}
	return kinds[KindUnknown].name
}

func (k Kind) Label() string {
	if k.Valid() {
		return kinds[k].label
	}
	return kinds[KindUnknown].label
}

// DebitNormal reports whether a debit increases accounts of this kind.
// Unknown kinds follow the asset rule.
func (k Kind) DebitNormal() bool {
	switch k {
	case KindLiability, KindEquity, KindIncome:
		return false
	default:
		return true
	}
}

// ParseKind accepts either the numeric code or the lower-case name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if k := Kind(n); k.Valid() {
			return k, nil
		}
		return KindUnknown, fmt.Errorf("unknown kind %d", n)
	}
	for _, k := range Kinds() {
		if kinds[k].name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown kind %q", s)
}

// Role refines an account within its kind. It is used for display and
// grouping only, never for sign arithmetic.
//
// The numeric values are persisted and exchanged in chart files; never renumber.
type Role int16

const (
	RoleUnspecified       Role = 0
	RoleAsset             Role = 1
	RoleBank              Role = 2
	RoleCash              Role = 3
	RoleAccountReceivable Role = 4
	RoleMutualFund        Role = 5
	RoleStock             Role = 6
	RoleLiability         Role = 7
	RoleCreditCard        Role = 8
	RoleAccountPayable    Role = 9
	RoleEquity            Role = 10
	RoleIncome            Role = 11
	RoleExpense           Role = 12
)

var roles = [...]struct {
	name  string
	label string
	kind  Kind
}{
	RoleUnspecified:       {"unspecified", "Other", KindUnknown},
	RoleAsset:             {"asset", "Asset", KindAsset},
	RoleBank:              {"bank", "Bank", KindAsset},
	RoleCash:              {"cash", "Cash", KindAsset},
	RoleAccountReceivable: {"account_receivable", "A/R", KindAsset},
	RoleMutualFund:        {"mutual_fund", "Mutual Fund", KindAsset},
	RoleStock:             {"stock", "Stock", KindAsset},
	RoleLiability:         {"liability", "Liability", KindLiability},
	RoleCreditCard:        {"credit_card", "Credit Card", KindLiability},
	RoleAccountPayable:    {"account_payable", "A/P", KindLiability},
	RoleEquity:            {"equity", "Equity", KindEquity},
	RoleIncome:            {"income", "Income", KindIncome},
	RoleExpense:           {"expense", "Expense", KindExpense},
}

// Roles lists the valid roles in numeric order.
func Roles() []Role {
	out := make([]Role, 0, len(roles)-1)
	for r := RoleAsset; r <= RoleExpense; r++ {
		out = append(out, r)
	}
	return out
}

func (r Role) Valid() bool { return r >= RoleAsset && r <= RoleExpense }

func (r Role) String() string {
	if r.Valid() {
		return roles[r].name
	}
	return roles[RoleUnspecified].name
}

func (r Role) Label() string {
	if r.Valid() {
		return roles[r].label
	}
	return roles[RoleUnspecified].label
}

// Kind returns the category the role belongs to.
func (r Role) Kind() Kind {
	if r.Valid() {
		return roles[r].kind
	}
	return KindUnknown
}

// DefaultRole is the generic role of a kind, used when a chart row leaves it unset.
func DefaultRole(k Kind) Role {
	switch k {
	case KindAsset:
		return RoleAsset
	case KindLiability:
		return RoleLiability
	case KindEquity:
		return RoleEquity
	case KindIncome:
		return RoleIncome
	case KindExpense:
		return RoleExpense
	default:
		return RoleUnspecified
	}
}
