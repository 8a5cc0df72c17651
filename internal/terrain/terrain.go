// Package terrain implements the server-side streaming core (§4.6 of
// SPEC_FULL.md): the single owning SVO, the placeholder table bound into
// physics, the per-position LOD map, and the mesh cache that load/unload
// and brush edits keep in sync via an emitted stream of mesh updates.
//
// Grounded on dantero-ps-mini-mc-go's internal/world/chunk_streamer.go
// for the bounded job channel plus pending-set dedup plus worker-pool
// shape, and on the teacher's voxel_rt_tick.go/voxel_ca_bridge.go for the
// tick-driven "apply pending mutations, then republish" loop (here
// collapsed into the worker loop itself since there is no separate
// render tick to wait for).
package terrain

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/lodmap"
	"github.com/voxcore/voxcore/internal/mesh"
	"github.com/voxcore/voxcore/internal/svo"
	"github.com/voxcore/voxcore/internal/voxel"
)

// OwnerId identifies the subscriber (player, mob, system task) behind a
// load/unload request.
type OwnerId = lodmap.OwnerId

// Physics is the collaborator terrain binds placeholder and generated
// geometry into. internal/physics.Engine satisfies it; it is declared
// here, at the point of use, so this package does not need to import
// physics at all.
type Physics interface {
	InsertTerrain(id idalloc.EntityId, box bounds.AABB)
	RemoveTerrain(id idalloc.EntityId)
}

// Update is one entry of the mesh-delta stream: an unload of whatever
// ids were previously published for Id (nil slices if nothing was
// published before) and, unless Mesh is nil, a load of its replacement.
type Update struct {
	Id               chunk.MeshId
	Mesh             *mesh.Mesh
	UnloadTerrainIds []idalloc.EntityId
	UnloadGrassIds   []idalloc.EntityId
}

// Emit publishes one mesh-delta. Called from worker goroutines; must be
// safe for concurrent use or do its own internal serialization (e.g.
// handing the Update to a single writer goroutine).
type Emit func(Update)

type meshRecord struct {
	TerrainIds []idalloc.EntityId
	GrassIds   []idalloc.EntityId
}

type job struct {
	pos chunk.Position
	lod int
}

// Loader is the authoritative owner of one world's SVO. It is safe for
// concurrent use: Load, Unload and ApplyBrush may all be called from
// multiple goroutines (one per connected client, typically).
type Loader struct {
	treeMu sync.RWMutex
	tree   *svo.Tree

	generator voxel.Mosaic
	physics   Physics
	emit      Emit

	lods *lodmap.Map[chunk.Position]

	terrainIds *idalloc.Entities
	grassIds   *idalloc.Entities

	cacheMu      sync.Mutex
	meshes       map[chunk.MeshId]*meshRecord
	placeholders map[chunk.Position]idalloc.EntityId

	jobs           chan job
	pendingMu      sync.Mutex
	pending        map[chunk.Position]struct{}
	maxOutstanding int
}

// NewLoader constructs a Loader over tree, sampling newly-generated
// content from generator. physics may be nil (placeholder/terrain
// binding becomes a no-op, useful in tests). maxOutstanding bounds the
// number of in-flight chunk generation jobs, matching MAX_OUTSTANDING in
// SPEC_FULL.md §5.
func NewLoader(tree *svo.Tree, generator voxel.Mosaic, physics Physics, maxOutstanding int, emit Emit) *Loader {
	l := &Loader{
		tree:           tree,
		generator:      generator,
		physics:        physics,
		emit:           emit,
		lods:           lodmap.New[chunk.Position](),
		terrainIds:     &idalloc.Entities{},
		grassIds:       &idalloc.Entities{},
		meshes:         make(map[chunk.MeshId]*meshRecord),
		placeholders:   make(map[chunk.Position]idalloc.EntityId),
		jobs:           make(chan job, maxOutstanding),
		pending:        make(map[chunk.Position]struct{}),
		maxOutstanding: maxOutstanding,
	}
	return l
}

// Run starts the worker pool and blocks until ctx is cancelled. Callers
// typically invoke it in its own goroutine: go loader.Run(ctx).
func (l *Loader) Run(ctx context.Context) {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			l.worker(ctx)
		}()
	}
	wg.Wait()
}

func (l *Loader) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-l.jobs:
			l.process(j)
			l.pendingMu.Lock()
			delete(l.pending, j.pos)
			l.pendingMu.Unlock()
		}
	}
}

// ProcessOne synchronously pops and processes a single queued job, if
// one is ready, without starting a worker pool. Useful for embedding the
// loader in a single goroutine that wants to interleave draining with
// other work, and for deterministic tests.
func (l *Loader) ProcessOne() bool {
	select {
	case j := <-l.jobs:
		l.process(j)
		l.pendingMu.Lock()
		delete(l.pending, j.pos)
		l.pendingMu.Unlock()
		return true
	default:
		return false
	}
}

// Pending reports how many chunk-generation jobs are currently queued or
// in flight.
func (l *Loader) Pending() int {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	return len(l.pending)
}

// AtCapacity reports whether Pending has reached maxOutstanding. A
// surroundings consumer should stop issuing new Full-LOD Load calls
// while this holds, per SPEC_FULL.md §5's MAX_OUTSTANDING backpressure.
func (l *Loader) AtCapacity() bool {
	return l.Pending() >= l.maxOutstanding
}

// Load registers owner's interest in pos at requested and returns
// whether the request was fully accepted. A Placeholder request always
// succeeds immediately (it only touches the LOD map and, if needed, the
// placeholder table). A Full(lod) request succeeds only if a generation
// job could be queued without exceeding maxOutstanding; on false the
// caller should retry later rather than treat this as an error.
func (l *Loader) Load(pos chunk.Position, requested chunk.LOD, owner OwnerId) bool {
	prevOwnerLOD, transition := l.lods.Insert(pos, requested, owner)
	if transition == nil {
		return true
	}

	wasLoaded := transition.Loaded != nil && !transition.Loaded.IsPlaceholder()
	desired := *transition.Desired

	if desired.IsPlaceholder() {
		l.insertPlaceholder(pos)
		if wasLoaded {
			l.unpublishAroundPosition(pos)
		}
		return true
	}

	if l.enqueueChunkJob(pos, desired.Index()) {
		return true
	}
	// Roll the request back so a later retry registers as a new transition.
	if prevOwnerLOD == nil {
		l.lods.Remove(pos, owner)
	} else {
		l.lods.Insert(pos, *prevOwnerLOD, owner)
	}
	return false
}

// Unload withdraws owner's interest in pos. If owner was the last or
// only remaining interested party at a coarser LOD than before, the
// affected meshes and placeholder binding are retired and unload
// updates are emitted.
func (l *Loader) Unload(pos chunk.Position, owner OwnerId) {
	_, transition := l.lods.Remove(pos, owner)
	if transition == nil {
		return
	}

	if transition.Desired == nil {
		l.removePlaceholder(pos)
		l.unpublishAroundPosition(pos)
		return
	}

	newDesired := *transition.Desired
	if newDesired.IsPlaceholder() {
		l.insertPlaceholder(pos)
		l.unpublishAroundPosition(pos)
		return
	}

	l.enqueueChunkJob(pos, newDesired.Index())
}

// ApplyBrush writes an authoritative edit into the SVO, then re-meshes
// every chunk the edit's AABB overlaps that is currently loaded at a
// Full LOD, publishing the resulting deltas. Chunks that are unloaded or
// only placeholder-loaded are skipped: their content is still updated in
// the SVO and will be sampled correctly whenever they are next loaded.
func (l *Loader) ApplyBrush(m voxel.Mosaic, box bounds.AABB, finestLgSize int16) {
	l.treeMu.Lock()
	l.tree.ApplyBrush(svo.Brush{Bounds: box, Mosaic: m, FinestLgSize: finestLgSize})
	l.treeMu.Unlock()

	for _, pos := range chunksOverlapping(box) {
		loaded, ok := l.lods.LoadedLOD(pos)
		if !ok || loaded.IsPlaceholder() {
			continue
		}
		l.remesh(pos, loaded.Index())
	}
}

// VoxelSample pairs a voxel's bounds with its content, the unit the
// network boundary streams: the wire protocol's Voxels message carries
// raw (bounds, voxel) samples, not mesh triangles — meshing happens
// client-side from the accumulated samples, per §4.8's Phase C.
type VoxelSample struct {
	Bounds bounds.B
	Voxel  voxel.Voxel
}

// SampleVoxels reads every written voxel in pos's sample grid at lod
// directly from the tree, for answering a RequestChunk over the wire.
// It does not consult or mutate the LOD map or mesh cache — callers
// that also want pos tracked as loaded should call Load as well.
func (l *Loader) SampleVoxels(pos chunk.Position, lod int) []VoxelSample {
	lg := chunk.LgSampleSize[lod]
	edge := chunk.EdgeSamples(lod)
	origin := pos.SampleOrigin(lod)

	l.treeMu.RLock()
	defer l.treeMu.RUnlock()

	var out []VoxelSample
	for dx := int32(0); dx < int32(edge); dx++ {
		for dy := int32(0); dy < int32(edge); dy++ {
			for dz := int32(0); dz < int32(edge); dz++ {
				b := bounds.New(origin.X+dx, origin.Y+dy, origin.Z+dz, lg)
				v, ok := l.tree.Get(b)
				if !ok {
					continue
				}
				out = append(out, VoxelSample{Bounds: b, Voxel: v})
			}
		}
	}
	return out
}

// RayCast exposes the tree's ray cast for player-facing brush targeting
// (§4.8's Add/Remove brush-by-raycast): the caller supplies origin/dir
// in world space, exactly as svo.Tree.RayCast, read under the same
// RLock SampleVoxels uses.
func (l *Loader) RayCast(origin, dir mgl32.Vec3, maxDist float32, cb svo.RayHitFunc) (any, bool) {
	l.treeMu.RLock()
	defer l.treeMu.RUnlock()
	return l.tree.RayCast(origin, dir, maxDist, cb)
}

func (l *Loader) insertPlaceholder(pos chunk.Position) {
	l.cacheMu.Lock()
	if _, ok := l.placeholders[pos]; ok {
		l.cacheMu.Unlock()
		return
	}
	id := l.terrainIds.Next()
	l.placeholders[pos] = id
	l.cacheMu.Unlock()

	if l.physics != nil {
		l.physics.InsertTerrain(id, pos.Bounds())
	}
}

func (l *Loader) removePlaceholder(pos chunk.Position) {
	l.cacheMu.Lock()
	id, ok := l.placeholders[pos]
	if ok {
		delete(l.placeholders, pos)
	}
	l.cacheMu.Unlock()

	if ok && l.physics != nil {
		l.physics.RemoveTerrain(id)
	}
}

func (l *Loader) enqueueChunkJob(pos chunk.Position, lod int) bool {
	l.pendingMu.Lock()
	if _, already := l.pending[pos]; already {
		l.pendingMu.Unlock()
		return true
	}
	if len(l.pending) >= l.maxOutstanding {
		l.pendingMu.Unlock()
		return false
	}
	l.pending[pos] = struct{}{}
	l.pendingMu.Unlock()

	select {
	case l.jobs <- job{pos: pos, lod: lod}:
		return true
	default:
		l.pendingMu.Lock()
		delete(l.pending, pos)
		l.pendingMu.Unlock()
		return false
	}
}

func (l *Loader) process(j job) {
	current, ok := l.lods.LoadedLOD(j.pos)
	if !ok || current.IsPlaceholder() || current.Index() != j.lod {
		return // the LOD map moved on since this job was queued; discard
	}

	lg := chunk.LgSampleSize[j.lod]
	l.treeMu.Lock()
	l.tree.ApplyBrush(svo.Brush{Bounds: j.pos.Bounds(), Mosaic: l.generator, FinestLgSize: lg})
	l.treeMu.Unlock()

	l.removePlaceholder(j.pos)
	l.remesh(j.pos, j.lod)
}

// remesh recomputes and republishes the chunk's inner mesh and every
// touching face mesh that has become satisfiable (both sides loaded at
// the same LOD).
func (l *Loader) remesh(pos chunk.Position, lod int) {
	l.treeMu.RLock()
	inner := mesh.Inner(l.tree, pos, lod, l.terrainIds, l.grassIds)
	l.treeMu.RUnlock()
	l.publish(chunk.Inner(pos), inner)

	for axis := chunk.Axis(0); axis < 3; axis++ {
		own := chunk.Face(pos, axis)
		if l.faceSatisfiable(own, lod) {
			l.treeMu.RLock()
			fm := mesh.Face(l.tree, pos, axis, lod, l.terrainIds, l.grassIds)
			l.treeMu.RUnlock()
			l.publish(own, fm)
		}

		neighborPos := plusAxis(pos, axis)
		theirs := chunk.Face(neighborPos, axis)
		if l.faceSatisfiable(theirs, lod) {
			l.treeMu.RLock()
			fm := mesh.Face(l.tree, neighborPos, axis, lod, l.terrainIds, l.grassIds)
			l.treeMu.RUnlock()
			l.publish(theirs, fm)
		}
	}
}

// faceSatisfiable reports whether both chunks sharing id's seam are
// loaded Full at the same lod — the only configuration the mesher can
// produce a seam for, per §4.3.
func (l *Loader) faceSatisfiable(id chunk.MeshId, lod int) bool {
	neighborLoaded, ok := l.lods.LoadedLOD(id.Position.Neighbor(id.Axis))
	if !ok || neighborLoaded.IsPlaceholder() || neighborLoaded.Index() != lod {
		return false
	}
	thisLoaded, ok := l.lods.LoadedLOD(id.Position)
	if !ok || thisLoaded.IsPlaceholder() || thisLoaded.Index() != lod {
		return false
	}
	return true
}

func (l *Loader) publish(id chunk.MeshId, m *mesh.Mesh) {
	l.cacheMu.Lock()
	prev, hadPrev := l.meshes[id]
	var unloadTerrain, unloadGrass []idalloc.EntityId
	if hadPrev {
		unloadTerrain = prev.TerrainIds
		unloadGrass = prev.GrassIds
	}
	if m.IsEmpty() {
		delete(l.meshes, id)
	} else {
		l.meshes[id] = &meshRecord{TerrainIds: m.TerrainIds, GrassIds: m.GrassIds}
	}
	l.cacheMu.Unlock()

	if !hadPrev && m.IsEmpty() {
		return // nothing published before, nothing to publish now
	}

	var out *mesh.Mesh
	if !m.IsEmpty() {
		out = m
	}
	l.emit(Update{Id: id, Mesh: out, UnloadTerrainIds: unloadTerrain, UnloadGrassIds: unloadGrass})
}

// unpublishAroundPosition retires every mesh that could only exist
// because pos was loaded: its own inner mesh, its three negative-seam
// faces, and the three faces owned by its positive-axis neighbors that
// seam against it.
func (l *Loader) unpublishAroundPosition(pos chunk.Position) {
	l.unpublish(chunk.Inner(pos))
	for axis := chunk.Axis(0); axis < 3; axis++ {
		l.unpublish(chunk.Face(pos, axis))
		l.unpublish(chunk.Face(plusAxis(pos, axis), axis))
	}
}

func (l *Loader) unpublish(id chunk.MeshId) {
	l.cacheMu.Lock()
	prev, ok := l.meshes[id]
	if ok {
		delete(l.meshes, id)
	}
	l.cacheMu.Unlock()

	if !ok {
		return
	}
	l.emit(Update{Id: id, Mesh: nil, UnloadTerrainIds: prev.TerrainIds, UnloadGrassIds: prev.GrassIds})
}

func plusAxis(pos chunk.Position, axis chunk.Axis) chunk.Position {
	switch axis {
	case chunk.AxisX:
		return chunk.Position{X: pos.X + 1, Y: pos.Y, Z: pos.Z}
	case chunk.AxisY:
		return chunk.Position{X: pos.X, Y: pos.Y + 1, Z: pos.Z}
	default:
		return chunk.Position{X: pos.X, Y: pos.Y, Z: pos.Z + 1}
	}
}

// chunksOverlapping returns every chunk.Position whose world-space
// bounds overlap box.
func chunksOverlapping(box bounds.AABB) []chunk.Position {
	minX := int32(math.Floor(float64(box.Min.X()) / chunk.Width))
	minY := int32(math.Floor(float64(box.Min.Y()) / chunk.Width))
	minZ := int32(math.Floor(float64(box.Min.Z()) / chunk.Width))
	maxX := int32(math.Ceil(float64(box.Max.X())/chunk.Width)) - 1
	maxY := int32(math.Ceil(float64(box.Max.Y())/chunk.Width)) - 1
	maxZ := int32(math.Ceil(float64(box.Max.Z())/chunk.Width)) - 1

	var out []chunk.Position
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				out = append(out, chunk.Position{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}
