// Package lodmap implements the per-region owner -> requested-LOD map
// and its derived currently-loaded LOD (§4.4 of SPEC_FULL.md).
//
// Grounded on the teacher's mod_spatialgrid.go SpatialHashGrid: a plain
// map keyed by a comparable region key, values accumulated per key, no
// attempt at a tree index since region keys are already discrete chunk
// positions.
package lodmap

import (
	"sync"

	"github.com/voxcore/voxcore/internal/chunk"
)

// OwnerId identifies an abstract subscriber (player, mob, system task)
// that requests a region be loaded at some LOD.
type OwnerId uint64

type entry struct {
	owners    map[OwnerId]chunk.LOD
	loadedLOD chunk.LOD
}

// Transition describes a change in an entry's derived loaded_lod. Loaded
// is the previous loaded_lod (nil if the entry didn't exist before);
// Desired is the new loaded_lod (nil if the entry was removed because
// its last owner left).
type Transition struct {
	Loaded  *chunk.LOD
	Desired *chunk.LOD
}

// Map is the LOD map, generic over the region key type (normally
// chunk.Position, but a brush-affected region could key by a coarser
// bounds.B).
type Map[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// New creates an empty LOD map.
func New[K comparable]() *Map[K] {
	return &Map[K]{entries: make(map[K]*entry)}
}

// Get returns owner's currently requested LOD at pos (nil if owner has
// no request there) and a snapshot of every owner's request at pos.
func (m *Map[K]) Get(pos K, owner OwnerId) (ownerLOD *chunk.LOD, owners map[OwnerId]chunk.LOD) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[pos]
	if !ok {
		return nil, nil
	}
	if v, had := e.owners[owner]; had {
		ownerLOD = ptr(v)
	}
	owners = make(map[OwnerId]chunk.LOD, len(e.owners))
	for k, v := range e.owners {
		owners[k] = v
	}
	return ownerLOD, owners
}

// LoadedLOD returns pos's current derived loaded_lod, if any owner wants
// it loaded at all.
func (m *Map[K]) LoadedLOD(pos K) (chunk.LOD, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[pos]
	if !ok {
		return chunk.LOD{}, false
	}
	return e.loadedLOD, true
}

// Insert adds or updates (owner, newLOD) at pos, recomputing loaded_lod
// as the max over all owners, and returns a Transition iff loaded_lod
// changed.
func (m *Map[K]) Insert(pos K, newLOD chunk.LOD, owner OwnerId) (prevOwnerLOD *chunk.LOD, transition *Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, existed := m.entries[pos]
	if !existed {
		e = &entry{owners: make(map[OwnerId]chunk.LOD)}
		m.entries[pos] = e
	}
	if prev, had := e.owners[owner]; had {
		prevOwnerLOD = ptr(prev)
	}

	oldLoaded := e.loadedLOD
	e.owners[owner] = newLOD
	newLoaded := recomputeLoaded(e.owners)
	e.loadedLOD = newLoaded

	switch {
	case !existed:
		transition = &Transition{Loaded: nil, Desired: ptr(newLoaded)}
	case !oldLoaded.Equal(newLoaded):
		transition = &Transition{Loaded: ptr(oldLoaded), Desired: ptr(newLoaded)}
	}
	return prevOwnerLOD, transition
}

// Remove drops owner's request at pos. If owners becomes empty the entry
// is removed entirely and the transition's Desired is nil.
func (m *Map[K]) Remove(pos K, owner OwnerId) (prevOwnerLOD *chunk.LOD, transition *Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[pos]
	if !ok {
		return nil, nil
	}
	prev, had := e.owners[owner]
	if !had {
		return nil, nil
	}
	prevOwnerLOD = ptr(prev)
	oldLoaded := e.loadedLOD
	delete(e.owners, owner)

	if len(e.owners) == 0 {
		delete(m.entries, pos)
		return prevOwnerLOD, &Transition{Loaded: ptr(oldLoaded), Desired: nil}
	}

	newLoaded := recomputeLoaded(e.owners)
	e.loadedLOD = newLoaded
	if !oldLoaded.Equal(newLoaded) {
		transition = &Transition{Loaded: ptr(oldLoaded), Desired: ptr(newLoaded)}
	}
	return prevOwnerLOD, transition
}

func recomputeLoaded(owners map[OwnerId]chunk.LOD) chunk.LOD {
	result := chunk.Placeholder
	for _, l := range owners {
		result = chunk.Max(result, l)
	}
	return result
}

func ptr[T any](v T) *T { return &v }
