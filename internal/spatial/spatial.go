// Package spatial implements the AABB spatial index named in
// SPEC_FULL.md §4.11: a thin github.com/dhconnelly/rtreego-backed index
// used by internal/physics for broadphase queries.
package spatial

import (
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/idalloc"
)

// dims is the dimensionality of every rect this package builds: voxcore
// is a 3D world.
const dims = 3

// minDegenerateLength is substituted for a zero-width AABB axis.
// rtreego rejects non-positive rect lengths, but a flat terrain triangle
// legitimately has zero extent along its face normal.
const minDegenerateLength = 1e-4

// minBranch/maxBranch match the values rtreego's own documentation uses;
// nothing about this index's access pattern calls for a different split
// factor.
const minBranch = 25
const maxBranch = 50

// entry is the rtreego.Spatial this index stores: an EntityId plus the
// rect last inserted for it.
type entry struct {
	id   idalloc.EntityId
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

// Index maps EntityId to AABB and answers intersection queries over
// them.
type Index struct {
	mu      sync.Mutex
	tree    *rtreego.Rtree
	entries map[idalloc.EntityId]*entry
}

// New creates an empty index.
func New() *Index {
	return &Index{
		tree:    rtreego.NewTree(dims, minBranch, maxBranch),
		entries: make(map[idalloc.EntityId]*entry),
	}
}

// Insert adds or moves id's AABB. Re-inserting an id already present
// first deletes its old rect, so Insert doubles as Translate.
func (idx *Index) Insert(id idalloc.EntityId, box bounds.AABB) error {
	rect, err := toRect(box)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.entries[id]; ok {
		idx.tree.Delete(old)
	}
	e := &entry{id: id, rect: rect}
	idx.entries[id] = e
	idx.tree.Insert(e)
	return nil
}

// Remove drops id from the index. Reports whether id was present.
func (idx *Index) Remove(id idalloc.EntityId) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[id]
	if !ok {
		return false
	}
	delete(idx.entries, id)
	return idx.tree.Delete(e)
}

// SearchIntersect returns every EntityId whose stored AABB intersects
// box.
func (idx *Index) SearchIntersect(box bounds.AABB) ([]idalloc.EntityId, error) {
	rect, err := toRect(box)
	if err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	hits := idx.tree.SearchIntersect(rect)
	ids := make([]idalloc.EntityId, 0, len(hits))
	for _, h := range hits {
		if e, ok := h.(*entry); ok {
			ids = append(ids, e.id)
		}
	}
	return ids, nil
}

// Len reports how many entities are currently indexed.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

func toRect(box bounds.AABB) (rtreego.Rect, error) {
	p := rtreego.Point{float64(box.Min.X()), float64(box.Min.Y()), float64(box.Min.Z())}
	lengths := []float64{
		float64(box.Max.X() - box.Min.X()),
		float64(box.Max.Y() - box.Min.Y()),
		float64(box.Max.Z() - box.Min.Z()),
	}
	for i := range lengths {
		if lengths[i] <= 0 {
			lengths[i] = minDegenerateLength
		}
	}
	return rtreego.NewRect(p, lengths)
}
