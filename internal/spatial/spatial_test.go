package spatial

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/idalloc"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float32) bounds.AABB {
	return bounds.AABB{Min: mgl32.Vec3{minX, minY, minZ}, Max: mgl32.Vec3{maxX, maxY, maxZ}}
}

func TestSearchIntersectFindsOverlappingEntries(t *testing.T) {
	idx := New()
	if err := idx.Insert(idalloc.EntityId(1), box(0, 0, 0, 1, 1, 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Insert(idalloc.EntityId(2), box(10, 10, 10, 11, 11, 11)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	hits, err := idx.SearchIntersect(box(0.5, 0.5, 0.5, 2, 2, 2))
	if err != nil {
		t.Fatalf("SearchIntersect: %v", err)
	}
	if len(hits) != 1 || hits[0] != idalloc.EntityId(1) {
		t.Errorf("SearchIntersect = %v, want only entity 1", hits)
	}
}

func TestInsertMovesExistingEntry(t *testing.T) {
	idx := New()
	id := idalloc.EntityId(1)
	idx.Insert(id, box(0, 0, 0, 1, 1, 1))
	idx.Insert(id, box(100, 100, 100, 101, 101, 101))

	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (re-insert must replace, not duplicate)", idx.Len())
	}

	hits, _ := idx.SearchIntersect(box(0, 0, 0, 1, 1, 1))
	if len(hits) != 0 {
		t.Errorf("old rect should no longer be indexed, got hits %v", hits)
	}
	hits, _ = idx.SearchIntersect(box(100, 100, 100, 101, 101, 101))
	if len(hits) != 1 {
		t.Errorf("new rect should be indexed, got %d hits", len(hits))
	}
}

func TestRemoveDropsEntry(t *testing.T) {
	idx := New()
	id := idalloc.EntityId(1)
	idx.Insert(id, box(0, 0, 0, 1, 1, 1))

	if !idx.Remove(id) {
		t.Fatalf("Remove should report true for a present id")
	}
	if idx.Remove(id) {
		t.Errorf("Remove should report false the second time")
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after removal", idx.Len())
	}
}

func TestDegenerateAABBIsIndexable(t *testing.T) {
	idx := New()
	// A flat terrain triangle's box has zero height, per the teacher's
	// own zero-height AABB idiosyncrasy elsewhere in the mesher.
	flat := box(0, 1, 0, 1, 1, 1)
	if err := idx.Insert(idalloc.EntityId(1), flat); err != nil {
		t.Fatalf("a degenerate AABB must still be indexable, got error: %v", err)
	}
	hits, err := idx.SearchIntersect(box(0, 0.9, 0, 1, 1.1, 1))
	if err != nil {
		t.Fatalf("SearchIntersect: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected the degenerate box to be found, got %d hits", len(hits))
	}
}
