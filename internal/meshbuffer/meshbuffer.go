package meshbuffer

import (
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/mesh"
)

// TriangleSlot is one polygon pool entry: a triangle plus the material
// it was extracted with, kept side by side since the renderer always
// needs both.
type TriangleSlot struct {
	Triangle mesh.Triangle
	Material int32
}

// MeshBuffer packs a client's visible terrain triangles into the
// chunked pool described at the package level, keyed by the same
// idalloc.EntityId the terrain loader assigns each triangle.
type MeshBuffer struct {
	pool *Pool[TriangleSlot]
}

// NewMeshBuffer returns an empty MeshBuffer.
func NewMeshBuffer() *MeshBuffer { return &MeshBuffer{pool: NewPool[TriangleSlot]()} }

// Push appends every triangle in m, keyed by its TerrainIds entry.
func (b *MeshBuffer) Push(m *mesh.Mesh) {
	for i, tri := range m.Triangles {
		b.pool.Push(m.TerrainIds[i], TriangleSlot{Triangle: tri, Material: m.Materials[i]})
	}
}

// Remove retires one triangle, compacting its storage chunk.
func (b *MeshBuffer) Remove(id idalloc.EntityId) (SwapRemoval, bool) {
	return b.pool.Remove(id)
}

// LookupOpenGLIndex returns id's flat GPU buffer index.
func (b *MeshBuffer) LookupOpenGLIndex(id idalloc.EntityId) (uint32, bool) {
	return b.pool.LookupOpenGLIndex(id)
}

// Len returns the number of live triangles.
func (b *MeshBuffer) Len() int { return b.pool.Len() }

// Get returns the triangle slot stored under id.
func (b *MeshBuffer) Get(id idalloc.EntityId) (TriangleSlot, bool) { return b.pool.Get(id) }

// GrassSlot is one grass pool entry: the texture variant to draw plus
// the flat GPU index of the terrain triangle it decorates, the value
// RewritePolygonIndex keeps current as that triangle moves within
// MeshBuffer.
type GrassSlot struct {
	TexId        uint16
	PolygonIndex uint32
}

// GrassBuffer packs grass tuft records into the same kind of chunked
// pool, keyed by the grass's own EntityId. Unlike MeshBuffer it also
// tracks, per polygon index, which grass ids depend on it, so a single
// triangle swap-remove can cheaply be propagated to every tuft that
// referenced the triangle's old slot.
type GrassBuffer struct {
	pool         *Pool[GrassSlot]
	byPolygonIdx map[uint32][]idalloc.EntityId
}

// NewGrassBuffer returns an empty GrassBuffer.
func NewGrassBuffer() *GrassBuffer {
	return &GrassBuffer{pool: NewPool[GrassSlot](), byPolygonIdx: make(map[uint32][]idalloc.EntityId)}
}

// Push appends every grass tuft in m, resolving each one's parent
// triangle's current GPU index via parent. Tuft records whose parent
// triangle is not (yet) present in parent are skipped — the terrain
// loader never emits a Grass entry without its owning triangle in the
// same Mesh, so this only guards a caller error, not a normal path.
func (b *GrassBuffer) Push(m *mesh.Mesh, parent *MeshBuffer) {
	for i, g := range m.Grass {
		polyIdx, ok := parent.LookupOpenGLIndex(g.PolygonId)
		if !ok {
			continue
		}
		id := m.GrassIds[i]
		b.pool.Push(id, GrassSlot{TexId: g.TexId, PolygonIndex: polyIdx})
		b.byPolygonIdx[polyIdx] = append(b.byPolygonIdx[polyIdx], id)
	}
}

// Remove retires one grass tuft.
func (b *GrassBuffer) Remove(id idalloc.EntityId) (SwapRemoval, bool) {
	slot, ok := b.pool.Get(id)
	if !ok {
		return SwapRemoval{}, false
	}
	b.forgetDependency(slot.PolygonIndex, id)
	return b.pool.Remove(id)
}

// OnPolygonMoved rewrites every grass tuft that referenced oldIdx (a
// MeshBuffer slot that just moved during swap-remove) to reference
// newIdx instead. The caller is the consumer driving both buffers —
// MeshBuffer and GrassBuffer never reference each other directly, per
// §4.7's "caller is responsible for notifying dependent buffers".
func (b *GrassBuffer) OnPolygonMoved(oldIdx, newIdx uint32) {
	if oldIdx == newIdx {
		return
	}
	dependents := b.byPolygonIdx[oldIdx]
	if len(dependents) == 0 {
		return
	}
	delete(b.byPolygonIdx, oldIdx)
	for _, id := range dependents {
		slot, ok := b.pool.Get(id)
		if !ok {
			continue
		}
		slot.PolygonIndex = newIdx
		b.overwrite(id, slot)
	}
	b.byPolygonIdx[newIdx] = append(b.byPolygonIdx[newIdx], dependents...)
}

// Len returns the number of live grass tufts.
func (b *GrassBuffer) Len() int { return b.pool.Len() }

// Get returns the grass slot stored under id.
func (b *GrassBuffer) Get(id idalloc.EntityId) (GrassSlot, bool) { return b.pool.Get(id) }

func (b *GrassBuffer) forgetDependency(polyIdx uint32, id idalloc.EntityId) {
	deps := b.byPolygonIdx[polyIdx]
	for i, dep := range deps {
		if dep == id {
			b.byPolygonIdx[polyIdx] = append(deps[:i], deps[i+1:]...)
			break
		}
	}
	if len(b.byPolygonIdx[polyIdx]) == 0 {
		delete(b.byPolygonIdx, polyIdx)
	}
}

// overwrite replaces the value stored under id in place, without
// touching its pool slot assignment.
func (b *GrassBuffer) overwrite(id idalloc.EntityId, value GrassSlot) {
	chunkIndex, offset, ok := b.pool.Lookup(id)
	if !ok {
		return
	}
	b.pool.chunks[chunkIndex][offset] = value
}

// PropagateRemoval applies a MeshBuffer.Remove result to a dependent
// GrassBuffer: the triangle that used to live at (removal.ChunkIndex,
// removal.SwappedIdx) is now at (removal.ChunkIndex, removal.RemovedIdx).
func PropagateRemoval(grass *GrassBuffer, removal SwapRemoval) {
	oldIdx := uint32(removal.ChunkIndex*ChunkLength + removal.SwappedIdx)
	newIdx := uint32(removal.ChunkIndex*ChunkLength + removal.RemovedIdx)
	grass.OnPolygonMoved(oldIdx, newIdx)
}
