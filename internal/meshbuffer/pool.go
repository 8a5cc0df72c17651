// Package meshbuffer implements the client-side chunked mesh buffer of
// SPEC_FULL.md §4.7: triangles (and the grass tuft records bound to
// them) are packed into fixed-length GPU-friendly chunks, addressed as
// a (chunk index, offset) pair rather than one unbounded vertex array
// per mesh, with tombstone-less swap-remove compaction on unload.
//
// Grounded on teacher mod_vox_client.go's brickUniform{Position,
// DataOffset} — a fixed-size GPU record referencing an offset into a
// shared pool rather than owning its own buffer — generalized from one
// brick per voxel-model instance to one polygon per mesh triangle, and
// on voxelrt/rt/gpu/manager_brickpool.go's pool-with-a-used-counter
// shape, reworked from a GPU-side allocator into the CPU-side
// swap-remove pool the spec actually asks for.
package meshbuffer

import "github.com/voxcore/voxcore/internal/idalloc"

// ChunkLength is the number of polygon slots packed into one storage
// chunk, matching CHUNK_LENGTH in SPEC_FULL.md §4.7.
const ChunkLength = 4096

// slot locates a pushed value within a Pool.
type slot struct {
	chunk, offset int
}

// SwapRemoval reports the result of removing one slot from a Pool:
// removedIdx is now vacant (or reused), swappedIdx held the value that
// was moved into removedIdx to keep the chunk dense. A dependent buffer
// that addresses this pool's slots by raw index (rather than by
// EntityId) must rewrite any reference to (ChunkIndex, SwappedIdx) to
// point at (ChunkIndex, RemovedIdx) instead. When RemovedIdx ==
// SwappedIdx, the removed slot was already the last one and nothing
// moved.
type SwapRemoval struct {
	ChunkIndex int
	RemovedIdx int
	SwappedIdx int
}

// Pool is a fixed-chunk-length, swap-remove-compacted store of T values
// keyed by idalloc.EntityId, the storage primitive shared by MeshBuffer
// (triangles) and GrassBuffer (grass tuft records).
type Pool[T any] struct {
	chunks [][]T
	ids    [][]idalloc.EntityId
	locate map[idalloc.EntityId]slot
}

// NewPool returns an empty Pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{locate: make(map[idalloc.EntityId]slot)}
}

// Len returns the number of live entries across every chunk.
func (p *Pool[T]) Len() int { return len(p.locate) }

// Push appends value under id, allocating a new chunk if the current
// last chunk is full (or none exists yet).
func (p *Pool[T]) Push(id idalloc.EntityId, value T) SwapRemoval {
	if len(p.chunks) == 0 || len(p.chunks[len(p.chunks)-1]) == ChunkLength {
		p.chunks = append(p.chunks, make([]T, 0, ChunkLength))
		p.ids = append(p.ids, make([]idalloc.EntityId, 0, ChunkLength))
	}
	last := len(p.chunks) - 1
	offset := len(p.chunks[last])
	p.chunks[last] = append(p.chunks[last], value)
	p.ids[last] = append(p.ids[last], id)
	p.locate[id] = slot{chunk: last, offset: offset}
	return SwapRemoval{ChunkIndex: last, RemovedIdx: offset, SwappedIdx: offset}
}

// Get returns the value stored under id.
func (p *Pool[T]) Get(id idalloc.EntityId) (T, bool) {
	s, ok := p.locate[id]
	if !ok {
		var zero T
		return zero, false
	}
	return p.chunks[s.chunk][s.offset], true
}

// Lookup returns id's (chunk index, offset) slot.
func (p *Pool[T]) Lookup(id idalloc.EntityId) (chunkIndex, offset int, ok bool) {
	s, ok := p.locate[id]
	return s.chunk, s.offset, ok
}

// LookupOpenGLIndex returns id's position as a single flat index into
// the logical chunk*ChunkLength+offset addressing a GPU-side vertex
// buffer would use.
func (p *Pool[T]) LookupOpenGLIndex(id idalloc.EntityId) (uint32, bool) {
	chunkIndex, offset, ok := p.Lookup(id)
	if !ok {
		return 0, false
	}
	return uint32(chunkIndex*ChunkLength + offset), true
}

// Remove deletes id's slot, moving the chunk's last occupied slot into
// its place to keep every chunk dense (standard tombstone-less
// swap-remove). Reports what moved so the caller can propagate the
// rewrite to dependent buffers.
func (p *Pool[T]) Remove(id idalloc.EntityId) (SwapRemoval, bool) {
	s, ok := p.locate[id]
	if !ok {
		return SwapRemoval{}, false
	}
	delete(p.locate, id)

	chunk := p.chunks[s.chunk]
	chunkIds := p.ids[s.chunk]
	lastIdx := len(chunk) - 1
	removal := SwapRemoval{ChunkIndex: s.chunk, RemovedIdx: s.offset, SwappedIdx: lastIdx}

	if s.offset != lastIdx {
		chunk[s.offset] = chunk[lastIdx]
		movedId := chunkIds[lastIdx]
		chunkIds[s.offset] = movedId
		p.locate[movedId] = slot{chunk: s.chunk, offset: s.offset}
	}
	var zero T
	chunk[lastIdx] = zero
	p.chunks[s.chunk] = chunk[:lastIdx]
	p.ids[s.chunk] = chunkIds[:lastIdx]
	return removal, true
}
