package dictionary

import (
	"testing"

	"github.com/tinoosan/books/internal/ledger"
)

func TestRolesForAsset(t *testing.T) {
	roles := RolesFor(ledger.KindAsset)
	if len(roles) != 6 {
		t.Fatalf("expected 6 asset roles, got %d", len(roles))
	}
	if roles[0].Name != "asset" || !roles[0].Default {
		t.Fatalf("expected generic asset role first and default: %+v", roles[0])
	}
	for _, r := range roles[1:] {
		if r.Default {
			t.Fatalf("only one default expected: %+v", r)
		}
	}
}

func TestKindsFilter(t *testing.T) {
	if got := Kinds(nil); len(got) != 5 {
		t.Fatalf("expected 5 kinds, got %d", len(got))
	}
	k := ledger.KindLiability
	got := Kinds(&k)
	if len(got) != 1 || got[0].Label != "Liability" || len(got[0].Roles) != 3 {
		t.Fatalf("unexpected liability dictionary: %+v", got)
	}
}

func TestCompatible(t *testing.T) {
	if !Compatible(ledger.KindAsset, ledger.RoleBank) {
		t.Fatalf("bank is an asset role")
	}
	if Compatible(ledger.KindAsset, ledger.RoleCreditCard) {
		t.Fatalf("credit card is not an asset role")
	}
	if !Compatible(ledger.KindIncome, ledger.RoleUnspecified) {
		t.Fatalf("unspecified role should fit any kind")
	}
}
