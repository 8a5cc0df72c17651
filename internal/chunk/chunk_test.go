package chunk

import "testing"

func TestEdgeSamplesMatchesSpecWalkthrough(t *testing.T) {
	// SPEC_FULL.md §8 walkthroughs use W=8, LgSampleSize=[0,1,2,3,3].
	want := []int{8, 4, 2, 1, 1}
	for lod, w := range want {
		if got := EdgeSamples(lod); got != w {
			t.Errorf("EdgeSamples(%d) = %d, want %d", lod, got, w)
		}
	}
}

func TestBoundsTiling(t *testing.T) {
	a := Position{0, 0, 0}.Bounds()
	b := Position{1, 0, 0}.Bounds()
	if a.Max.X() != b.Min.X() {
		t.Errorf("adjacent chunks should share a face: %v vs %v", a, b)
	}
}

func TestLODOrdering(t *testing.T) {
	if !Placeholder.Less(Full(0)) {
		t.Errorf("Placeholder must be less than Full(0)")
	}
	if !Full(0).Less(Full(1)) {
		t.Errorf("Full(0) must be less than Full(1)")
	}
	if Full(1).Less(Full(0)) {
		t.Errorf("Full(1) must not be less than Full(0)")
	}
}

func TestLODMax(t *testing.T) {
	if got := Max(Placeholder, Full(0)); got != Full(0) {
		t.Errorf("Max(Placeholder, Full(0)) = %v, want Full(0)", got)
	}
	if got := Max(Full(2), Full(0)); got != Full(2) {
		t.Errorf("Max(Full(2), Full(0)) = %v, want Full(2)", got)
	}
}

func TestNeighborAxis(t *testing.T) {
	p := Position{5, 5, 5}
	if n := p.Neighbor(AxisX); n != (Position{4, 5, 5}) {
		t.Errorf("Neighbor(AxisX) = %v, want (4,5,5)", n)
	}
	if n := p.Neighbor(AxisY); n != (Position{5, 4, 5}) {
		t.Errorf("Neighbor(AxisY) = %v, want (5,4,5)", n)
	}
}
