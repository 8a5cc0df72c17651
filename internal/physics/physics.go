// Package physics implements the §6 physics collaborator surface named
// in SPEC_FULL.md §4.10: the narrow contract terrain streaming and
// misc-entity movement bind into, not a rigid-body solver.
//
// Grounded on the teacher's physics.go (RigidBodyComponent,
// ColliderComponent, PhysicsWorld, Contact), restricted to the AABB
// storage and collision-classification vocabulary the spec keeps —
// constraint solving, sleeping, inertia tensors and sub-stepped
// integration are all out of scope per SPEC_FULL.md §1/§4.10's
// Non-goals and are dropped rather than reimplemented.
package physics

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/spatial"
)

// Contact mirrors the shape of the teacher's Contact struct (BodyA,
// BodyB) restricted to identity: there is no depth/normal/impulse here
// because there is no solver to consume them, only a broadphase that
// reports which tracked AABBs overlap.
type Contact struct {
	A, B idalloc.EntityId
}

// Engine is the §6 physics collaborator: terrain (static, keyed by a
// mesh triangle or placeholder id) and misc entities (players, mobs;
// movable via TranslateMisc) share one AABB index.
type Engine struct {
	mu    sync.RWMutex
	boxes map[idalloc.EntityId]bounds.AABB
	index *spatial.Index
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		boxes: make(map[idalloc.EntityId]bounds.AABB),
		index: spatial.New(),
	}
}

// InsertTerrain binds a placeholder voxel or a mesh triangle's AABB into
// the engine, making it visible to broadphase queries.
func (e *Engine) InsertTerrain(id idalloc.EntityId, box bounds.AABB) {
	e.insert(id, box)
}

// RemoveTerrain unbinds a previously-inserted terrain id, e.g. when a
// placeholder is replaced by generated content or a chunk is unloaded.
func (e *Engine) RemoveTerrain(id idalloc.EntityId) {
	e.mu.Lock()
	delete(e.boxes, id)
	e.mu.Unlock()
	e.index.Remove(id)
}

// InsertMisc binds a movable entity's (player, mob) AABB into the
// engine.
func (e *Engine) InsertMisc(id idalloc.EntityId, box bounds.AABB) {
	e.insert(id, box)
}

// TranslateMisc shifts id's tracked AABB by delta. A no-op if id is not
// currently tracked.
func (e *Engine) TranslateMisc(id idalloc.EntityId, delta mgl32.Vec3) {
	e.mu.Lock()
	box, ok := e.boxes[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	moved := bounds.AABB{Min: box.Min.Add(delta), Max: box.Max.Add(delta)}
	e.boxes[id] = moved
	e.mu.Unlock()

	// Insert replaces any existing rect for id, so it doubles as Move.
	e.insertRect(id, moved)
}

// GetBounds returns id's currently tracked AABB, if any.
func (e *Engine) GetBounds(id idalloc.EntityId) (bounds.AABB, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	box, ok := e.boxes[id]
	return box, ok
}

// Overlapping returns every tracked id whose AABB intersects box, the
// broadphase step the teacher's FindWorldContacts/FindBodyContacts both
// reduce to before narrowphase (which this package does not implement).
func (e *Engine) Overlapping(box bounds.AABB) []idalloc.EntityId {
	ids, err := e.index.SearchIntersect(box)
	if err != nil {
		// Only returned for a malformed rect; every AABB this engine
		// stores came from bounds.AABB, which is always well-formed.
		return nil
	}
	return ids
}

// Contacts returns a Contact for every currently-tracked id whose AABB
// overlaps id's own, excluding id itself.
func (e *Engine) Contacts(id idalloc.EntityId) []Contact {
	box, ok := e.GetBounds(id)
	if !ok {
		return nil
	}
	var out []Contact
	for _, other := range e.Overlapping(box) {
		if other == id {
			continue
		}
		out = append(out, Contact{A: id, B: other})
	}
	return out
}

func (e *Engine) insert(id idalloc.EntityId, box bounds.AABB) {
	e.mu.Lock()
	e.boxes[id] = box
	e.mu.Unlock()
	e.insertRect(id, box)
}

func (e *Engine) insertRect(id idalloc.EntityId, box bounds.AABB) {
	if err := e.index.Insert(id, box); err != nil {
		// Unreachable: bounds.AABB always has well-ordered min/max, and
		// spatial.Index clamps degenerate axes rather than rejecting them.
		panic("physics: unexpected malformed AABB: " + err.Error())
	}
}
