package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/idalloc"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float32) bounds.AABB {
	return bounds.AABB{Min: mgl32.Vec3{minX, minY, minZ}, Max: mgl32.Vec3{maxX, maxY, maxZ}}
}

func TestInsertTerrainThenRemoveClearsBounds(t *testing.T) {
	e := NewEngine()
	id := idalloc.EntityId(1)
	e.InsertTerrain(id, box(0, 0, 0, 1, 1, 1))

	if _, ok := e.GetBounds(id); !ok {
		t.Fatalf("expected bounds to be present after InsertTerrain")
	}
	e.RemoveTerrain(id)
	if _, ok := e.GetBounds(id); ok {
		t.Errorf("expected bounds to be gone after RemoveTerrain")
	}
}

func TestTranslateMiscMovesAABB(t *testing.T) {
	e := NewEngine()
	id := idalloc.EntityId(1)
	e.InsertMisc(id, box(0, 0, 0, 1, 1, 1))

	e.TranslateMisc(id, mgl32.Vec3{5, 0, 0})

	got, ok := e.GetBounds(id)
	if !ok {
		t.Fatalf("expected bounds to still be present after translate")
	}
	if got.Min.X() != 5 || got.Max.X() != 6 {
		t.Errorf("TranslateMisc moved to %v, want min.X=5 max.X=6", got)
	}
}

func TestTranslateMiscOnUntrackedIdIsNoop(t *testing.T) {
	e := NewEngine()
	e.TranslateMisc(idalloc.EntityId(999), mgl32.Vec3{1, 1, 1})
	if _, ok := e.GetBounds(idalloc.EntityId(999)); ok {
		t.Errorf("translating an untracked id must not create an entry")
	}
}

func TestContactsExcludesSelfAndFindsOverlap(t *testing.T) {
	e := NewEngine()
	terrain := idalloc.EntityId(1)
	player := idalloc.EntityId(2)
	far := idalloc.EntityId(3)

	e.InsertTerrain(terrain, box(0, 0, 0, 1, 1, 1))
	e.InsertMisc(player, box(0.5, 0.5, 0.5, 1.5, 1.5, 1.5))
	e.InsertMisc(far, box(100, 100, 100, 101, 101, 101))

	contacts := e.Contacts(player)
	if len(contacts) != 1 || contacts[0].B != terrain {
		t.Errorf("Contacts(player) = %v, want exactly one contact against terrain", contacts)
	}
}

func TestTranslateMiscIndexReflectsNewPosition(t *testing.T) {
	e := NewEngine()
	id := idalloc.EntityId(1)
	e.InsertMisc(id, box(0, 0, 0, 1, 1, 1))
	e.TranslateMisc(id, mgl32.Vec3{50, 0, 0})

	hits := e.Overlapping(box(0, 0, 0, 1, 1, 1))
	for _, h := range hits {
		if h == id {
			t.Errorf("translated entity should no longer overlap its old position")
		}
	}
	hits = e.Overlapping(box(50, 0, 0, 51, 1, 1))
	found := false
	for _, h := range hits {
		if h == id {
			found = true
		}
	}
	if !found {
		t.Errorf("translated entity should overlap its new position")
	}
}
