package hierarchy

import "testing"

func TestClosureIsReflexive(t *testing.T) {
	forest := buildTestForest(t)
	units := []UnitTopology{
		{ID: 10, SpaceIDs: []int64{3}},
		{ID: 11, SpaceIDs: []int64{4}},
		{ID: 12, SpaceIDs: []int64{6}},
		{ID: 13, ResourceIDs: []int64{100}},
	}

	closure := BuildClosure(forest, units)
	for _, unit := range units {
		if _, ok := toSet(closure[unit.ID])[unit.ID]; !ok {
			t.Fatalf("unit %d missing from its own closure %v", unit.ID, closure[unit.ID])
		}
	}
}

func TestClosureIsSymmetric(t *testing.T) {
	forest := buildTestForest(t)
	units := []UnitTopology{
		{ID: 10, SpaceIDs: []int64{2}},
		{ID: 11, SpaceIDs: []int64{3}},
		{ID: 12, SpaceIDs: []int64{5}},
		{ID: 13, SpaceIDs: []int64{6}},
		{ID: 14, ResourceIDs: []int64{100}},
		{ID: 15, SpaceIDs: []int64{6}, ResourceIDs: []int64{100}},
	}

	closure := BuildClosure(forest, units)
	for _, a := range units {
		for _, b := range units {
			_, aHasB := toSet(closure[a.ID])[b.ID]
			_, bHasA := toSet(closure[b.ID])[a.ID]
			if aHasB != bHasA {
				t.Fatalf("closure symmetry violated for units %d and %d", a.ID, b.ID)
			}
		}
	}
}

func TestClosureThroughSpaceFamily(t *testing.T) {
	forest := buildTestForest(t)
	units := []UnitTopology{
		{ID: 10, SpaceIDs: []int64{2}}, // whole floor
		{ID: 11, SpaceIDs: []int64{3}}, // room A on that floor
		{ID: 12, SpaceIDs: []int64{4}}, // room B on that floor
		{ID: 13, SpaceIDs: []int64{6}}, // separate building
	}

	closure := BuildClosure(forest, units)

	floor := toSet(closure[10])
	for _, want := range []int64{10, 11, 12} {
		if _, ok := floor[want]; !ok {
			t.Fatalf("expected unit %d related to floor unit, got %v", want, closure[10])
		}
	}
	if _, ok := floor[13]; ok {
		t.Fatalf("separate building unit must not relate to floor unit")
	}

	// Room A and room B share no space family (siblings), only the floor unit
	// links them indirectly; the closure relation is not transitive.
	roomA := toSet(closure[11])
	if _, ok := roomA[12]; ok {
		t.Fatalf("sibling rooms must not be directly related: %v", closure[11])
	}
}

func TestClosureThroughSharedResource(t *testing.T) {
	forest := buildTestForest(t)
	units := []UnitTopology{
		{ID: 10, SpaceIDs: []int64{3}, ResourceIDs: []int64{100}},
		{ID: 11, SpaceIDs: []int64{6}, ResourceIDs: []int64{100}},
		{ID: 12, SpaceIDs: []int64{6}},
	}

	closure := BuildClosure(forest, units)

	if _, ok := toSet(closure[10])[11]; !ok {
		t.Fatalf("units sharing resource 100 must be related, got %v", closure[10])
	}
	if _, ok := toSet(closure[11])[12]; !ok {
		t.Fatalf("units sharing space 6 must be related, got %v", closure[11])
	}
	if _, ok := toSet(closure[10])[12]; ok {
		t.Fatalf("units 10 and 12 share neither space family nor resource: %v", closure[10])
	}
}

func TestClosureOutputIsSorted(t *testing.T) {
	forest := buildTestForest(t)
	units := []UnitTopology{
		{ID: 30, SpaceIDs: []int64{2}},
		{ID: 20, SpaceIDs: []int64{3}},
		{ID: 10, SpaceIDs: []int64{4}},
	}

	closure := BuildClosure(forest, units)
	for id, related := range closure {
		for i := 1; i < len(related); i++ {
			if related[i-1] >= related[i] {
				t.Fatalf("closure for unit %d not strictly sorted: %v", id, related)
			}
		}
	}
}
