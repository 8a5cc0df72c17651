package surroundings

import "testing"

// TestFirstDrainMatchesSpecWalkthrough reproduces SPEC_FULL.md §8
// scenario 4: max_load_distance=2 yields exactly 25 positions ordered by
// non-decreasing Chebyshev distance, all tagged Load.
func TestFirstDrainMatchesSpecWalkthrough(t *testing.T) {
	c := NewCursor(2, []int{0, 1})
	updates := c.Drain(Column{0, 0}, 1000)

	if len(updates) != 25 {
		t.Fatalf("first drain yielded %d positions, want 25", len(updates))
	}

	prevDist := -1
	for _, u := range updates {
		if u.Type != Load {
			t.Errorf("first drain update %v has type %v, want Load", u.Position, u.Type)
		}
		d := chebyshev(u.Position, Column{0, 0})
		if d < prevDist {
			t.Errorf("distances not non-decreasing: %d after %d", d, prevDist)
		}
		prevDist = d
	}

	// Exhausted: a further pop at the same position yields nothing more.
	if _, ok := c.Next(Column{0, 0}); ok {
		t.Errorf("cursor should be drained after 25 pops at a stationary position")
	}
}

// TestMoveYieldsShellDifference covers the second half of scenario 4:
// after moving to p'=(1,0), the cursor first yields the columns that
// crossed one of its radii (Unload if now out of range, Downgrade
// otherwise), then a fresh Load sweep of the whole new neighborhood, so
// the re-drain is not limited to the shell difference.
func TestMoveYieldsShellDifference(t *testing.T) {
	c := NewCursor(2, []int{0, 1})
	c.Drain(Column{0, 0}, 1000)

	updates := c.Drain(Column{1, 0}, 1000)
	if len(updates) == 0 {
		t.Fatalf("moving the observer should produce further updates")
	}

	for _, u := range updates {
		if u.Type != Load && u.Type != Unload && u.Type != Downgrade {
			t.Errorf("unexpected LoadType %v for %v", u.Type, u.Position)
		}
	}

	// Far corner of the old footprint (X=-2) is now out of range of the
	// new center and must be tagged Unload when it surfaces via recheck.
	found := false
	for _, u := range updates {
		if u.Position.X == -2 {
			found = true
			if u.Type != Unload {
				t.Errorf("stale column %v tagged %v, want Unload", u.Position, u.Type)
			}
		}
	}
	if !found {
		t.Errorf("expected at least one stale column at X=-2 to surface")
	}
}

func TestStationaryObserverProducesNoRecheck(t *testing.T) {
	c := NewCursor(1, []int{0})
	c.Drain(Column{5, 5}, 1000)

	updates := c.Drain(Column{5, 5}, 1000)
	if len(updates) != 0 {
		t.Errorf("re-draining at the same position should be empty, got %d updates", len(updates))
	}
}

func TestDrainRespectsBudget(t *testing.T) {
	c := NewCursor(2, []int{0, 1})
	first := c.Drain(Column{0, 0}, 5)
	if len(first) != 5 {
		t.Fatalf("budgeted drain returned %d updates, want 5", len(first))
	}
	rest := c.Drain(Column{0, 0}, 1000)
	if len(rest) != 20 {
		t.Fatalf("continuation drain returned %d updates, want 20 (25 total - 5 already popped)", len(rest))
	}
}

func TestBallSymmetricDiffSizesAtUnitStep(t *testing.T) {
	seen := make(map[Column]bool)
	var diff []Column
	symmetricDiff(Column{0, 0}, Column{1, 0}, 2, seen, &diff)
	// ball radius 2 is a 5x5 square; shifting by one column on X replaces
	// exactly one 5-column strip with another: 5 + 5 = 10 columns differ.
	if len(diff) != 10 {
		t.Errorf("symmetricDiff at r=2 for a unit X step = %d, want 10", len(diff))
	}
}
