package registry

import (
	"testing"

	c "github.com/levitateos/builder/internal/component"
)

func TestPhaseOrderingInvariant(t *testing.T) {
	if err := Validate(All()); err != nil {
		t.Fatalf("registry invariant violated: %v", err)
	}
}

func TestComponentNameUniqueness(t *testing.T) {
	list := All()
	seen := map[string]bool{}
	for _, item := range list {
		if seen[item.Name()] {
			t.Fatalf("duplicate component name %q", item.Name())
		}
		seen[item.Name()] = true
	}
}

func TestValidateCatchesOutOfOrderPhase(t *testing.T) {
	bad := []c.Installable{
		c.New("b", c.PhaseBinaries, c.Dir("x")),
		c.New("a", c.PhaseFilesystem, c.Dir("y")),
	}
	if err := Validate(bad); err == nil {
		t.Fatal("expected phase ordering violation, got nil")
	}
}

func TestValidateCatchesDuplicateName(t *testing.T) {
	bad := []c.Installable{
		c.New("dup", c.PhaseFilesystem, c.Dir("x")),
		c.New("dup", c.PhaseBinaries, c.Dir("y")),
	}
	if err := Validate(bad); err == nil {
		t.Fatal("expected duplicate-name violation, got nil")
	}
}
