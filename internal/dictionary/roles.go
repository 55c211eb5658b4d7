package dictionary

import "github.com/tinoosan/books/internal/ledger"

type RoleDef struct {
	Code    int16  `json:"code"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}

type KindDef struct {
	Code  int16     `json:"code"`
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Roles []RoleDef `json:"roles"`
}

// RolesFor returns the roles that belong to kind k, generic role first.
func RolesFor(k ledger.Kind) []RoleDef {
	def := ledger.DefaultRole(k)
	out := make([]RoleDef, 0)
	for _, r := range ledger.Roles() {
		if r.Kind() != k {
			continue
		}
		out = append(out, RoleDef{Code: int16(r), Name: r.String(), Label: r.Label(), Default: r == def})
	}
	return out
}

// Kinds returns the full dictionary, or a single kind when k is non-nil.
func Kinds(k *ledger.Kind) []KindDef {
	out := make([]KindDef, 0, 5)
	for _, kind := range ledger.Kinds() {
		if k != nil && *k != kind {
			continue
		}
		out = append(out, KindDef{Code: int16(kind), Name: kind.String(), Label: kind.Label(), Roles: RolesFor(kind)})
	}
	return out
}

// Compatible reports whether role r may be combined with kind k. The
// unspecified role is compatible with every kind.
func Compatible(k ledger.Kind, r ledger.Role) bool {
	return r == ledger.RoleUnspecified || r.Kind() == k
}
