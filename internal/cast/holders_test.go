package cast

import "testing"

type roleMap map[InputSourceID]bool

func (m roleMap) IsDominant(id InputSourceID) bool {
	return m[id]
}

func TestHolderRegistryAddRecomputesPrimary(t *testing.T) {
	roles := roleMap{"right": true}
	reg := NewHolderRegistry(roles)

	if !reg.Add("left") {
		t.Fatalf("expected first add to change the set")
	}
	if _, ok := reg.Primary(); ok {
		t.Fatalf("non-dominant holder must not become primary")
	}

	if !reg.Add("right") {
		t.Fatalf("expected second add to change the set")
	}
	if !reg.IsPrimary("right") {
		t.Fatalf("dominant holder should be primary")
	}
	if reg.IsPrimary("left") {
		t.Fatalf("left must not be primary while right holds")
	}
}

func TestHolderRegistryDuplicateAddIsNoop(t *testing.T) {
	reg := NewHolderRegistry(roleMap{"right": true})
	reg.Add("right")
	if reg.Add("right") {
		t.Fatalf("duplicate add must report no change")
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("expected one holder, got %d", got)
	}
}

func TestHolderRegistryInsertionOrderBreaksTies(t *testing.T) {
	roles := roleMap{"h1": true, "h2": true}
	reg := NewHolderRegistry(roles)
	reg.Add("h1")
	reg.Add("h2")

	if !reg.IsPrimary("h1") || reg.IsPrimary("h2") {
		t.Fatalf("first dominant holder in insertion order should win")
	}

	reg.Remove("h1")
	if !reg.IsPrimary("h2") {
		t.Fatalf("primary should pass to the remaining dominant holder")
	}
}

func TestHolderRegistryRemoveUnknown(t *testing.T) {
	reg := NewHolderRegistry(roleMap{})
	reg.Add("h1")
	if reg.Remove("ghost") {
		t.Fatalf("removing an absent holder must report no change")
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("expected one holder, got %d", got)
	}
}

func TestHolderRegistryNoDominantMeansNoPrimary(t *testing.T) {
	reg := NewHolderRegistry(roleMap{})
	reg.Add("h1")
	reg.Add("h2")
	if _, ok := reg.Primary(); ok {
		t.Fatalf("primary must be undefined when nobody is dominant")
	}
}

func TestHolderRegistryHoldersReturnsCopy(t *testing.T) {
	reg := NewHolderRegistry(roleMap{"h1": true})
	reg.Add("h1")
	holders := reg.Holders()
	holders[0].ID = "mutated"
	if !reg.Contains("h1") {
		t.Fatalf("mutating the returned slice must not affect the registry")
	}
}
