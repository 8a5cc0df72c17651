// Package client implements the voxcore-client session: the collaborator
// that satisfies all three of internal/update's interfaces
// (StateApplier, Mesher, ChunkRequester) against a local mirror SVO.
// Every Voxels bundle the server streams down is inserted into the
// mirror, meshed with internal/mesh, and the resulting chunk/seam
// meshes and avatar boxes are queued as protocol.RenderUpdate values for
// the update loop to drain.
//
// Grounded on teacher mod_vox_client.go's shape of mirroring server
// state into a local structure and meshing/uploading from the mirror
// rather than the server's own copy, and on internal/terrain.Loader's
// remesh/faceSatisfiable/publish trio (§4.6), reused here client-side
// since a client chunk and its already-loaded neighbor need the same
// "is the seam satisfiable yet" check the server applies when an edit
// or newly generated chunk arrives.
package client

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/mesh"
	"github.com/voxcore/voxcore/internal/protocol"
	"github.com/voxcore/voxcore/internal/surroundings"
	"github.com/voxcore/voxcore/internal/svo"
)

// MaxLoadDistance is the Chebyshev radius, in chunk columns, this session
// keeps loaded around the observer. It and LodThresholds are fixed here;
// a real deployment would make these configurable per player preference,
// which is out of scope here.
const MaxLoadDistance = 4

// LodThresholds mirrors the chebyshev-distance LOD step table a
// Cursor uses to decide when a column should drop detail.
var LodThresholds = []int{2, 3}

// Y is the single vertical chunk layer this session requests. The
// surroundings loader itself only tracks horizontal columns (see
// internal/surroundings's package doc); a full client would pair it
// with a per-column vertical range derived from observer altitude, out
// of scope here.
const Y = 0

type pendingRequest struct {
	pos chunk.Position
	lod int
}

// Session is a single connection's full client-side state.
type Session struct {
	mu sync.Mutex

	tree       *svo.Tree
	terrainIds *idalloc.Entities
	grassIds   *idalloc.Entities

	clientId   idalloc.ClientId
	playerId   idalloc.PlayerId
	havePlayer bool
	position   mgl32.Vec3

	cursor *surroundings.Cursor

	nextRequestId uint64
	pending       map[uint64]pendingRequest
	loadedLod     map[chunk.Position]int
	// published tracks which mesh ids currently have a LoadMesh
	// outstanding with no matching UnloadMesh yet, so remesh can tell
	// whether a zero-triangle result is a no-op or needs an UnloadMesh.
	published map[chunk.MeshId]struct{}

	ready []protocol.RenderUpdate
}

// NewSession constructs an empty client session. initialLgSize is the
// local mirror tree's starting half-width exponent (it grows on demand,
// same as the server's tree).
func NewSession(initialLgSize int16) *Session {
	return &Session{
		tree:       svo.NewTree(initialLgSize),
		terrainIds: &idalloc.Entities{},
		grassIds:   &idalloc.Entities{},
		cursor:     surroundings.NewCursor(MaxLoadDistance, LodThresholds),
		pending:    make(map[uint64]pendingRequest),
		loadedLod:  make(map[chunk.Position]int),
		published:  make(map[chunk.MeshId]struct{}),
	}
}

// SetPosition updates the observer position the surroundings cursor
// tracks. Called from wherever the client reads local input/physics.
func (s *Session) SetPosition(p mgl32.Vec3) {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
}

// PlayerId reports the id the server assigned, if PlayerAdded has
// already arrived.
func (s *Session) PlayerId() (idalloc.PlayerId, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerId, s.havePlayer
}

// ClientId reports the id LeaseId assigned (zero before it arrives).
func (s *Session) ClientId() idalloc.ClientId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientId
}

// ApplyServerMessage implements internal/update.StateApplier.
func (s *Session) ApplyServerMessage(msg protocol.ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case protocol.LeaseId:
		s.clientId = m.ClientId
	case protocol.PlayerAdded:
		s.playerId = m.PlayerId
		s.havePlayer = true
		s.position = m.Pos
	case protocol.UpdatePlayer:
		s.ready = append(s.ready, protocol.UpdatePlayerMesh{Id: m.PlayerId, Mesh: boxMesh(m.Box)})
	case protocol.UpdateMob:
		s.ready = append(s.ready, protocol.UpdateMobMesh{Id: m.MobId, Mesh: boxMesh(m.Box)})
	case protocol.UpdateSun:
		s.ready = append(s.ready, protocol.SetSun{Fraction: m.Fraction})
	case protocol.ServerPing, protocol.Collision:
		// Ping only needs the connection kept alive (handled by the
		// transport layer); Collision is a physics event this session
		// has no local physics engine to forward it to.
	}
}

// EnqueueVoxels implements internal/update.Mesher: it writes every
// sample into the mirror tree, then remeshes whatever chunk(s) the
// batch resolves to (the requested chunk for Reason == ReasonRequested,
// or every chunk touching the entries' bounds for Reason ==
// ReasonUpdated, since a brush broadcast names no chunk explicitly).
func (s *Session) EnqueueVoxels(voxels protocol.Voxels) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range voxels.Entries {
		s.tree.Insert(e.Bounds, e.Voxel)
	}

	switch voxels.Reason {
	case protocol.ReasonRequested:
		req, ok := s.pending[voxels.RequestedAtNs]
		if !ok {
			return
		}
		delete(s.pending, voxels.RequestedAtNs)
		s.loadedLod[req.pos] = req.lod
		s.remesh(req.pos, req.lod)
	case protocol.ReasonUpdated:
		touched := map[chunk.Position]bool{}
		for _, e := range voxels.Entries {
			touched[positionFromSample(e.Bounds)] = true
		}
		for pos := range touched {
			lod, ok := s.loadedLod[pos]
			if !ok {
				continue
			}
			s.remesh(pos, lod)
		}
	}
}

// DrainMeshed implements internal/update.Mesher.
func (s *Session) DrainMeshed() (protocol.RenderUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return nil, false
	}
	u := s.ready[0]
	s.ready = s.ready[1:]
	return u, true
}

// NextRequest implements internal/update.ChunkRequester: it drains the
// surroundings cursor centered on the observer's current column,
// translating each Load update into a RequestChunk and remembering the
// (position, lod) it stands for under a fresh correlation id.
func (s *Session) NextRequest() (protocol.RequestChunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		center := surroundings.Column{
			X: floorDiv(int32(math.Floor(float64(s.position.X()))), chunk.Width),
			Z: floorDiv(int32(math.Floor(float64(s.position.Z()))), chunk.Width),
		}
		update, ok := s.cursor.Next(center)
		if !ok {
			return protocol.RequestChunk{}, false
		}
		switch update.Type {
		case surroundings.Unload:
			s.forgetColumn(update.Position)
			continue
		case surroundings.Downgrade:
			// Re-evaluating LOD without a network round trip isn't
			// modeled locally; the next Load for this column supersedes
			// whatever is cached.
			continue
		}

		lod := s.lodForDistance(update.Position, center)
		pos := chunk.Position{X: update.Position.X, Y: Y, Z: update.Position.Z}
		s.nextRequestId++
		id := s.nextRequestId
		s.pending[id] = pendingRequest{pos: pos, lod: lod}
		return protocol.RequestChunk{
			RequestedAtNs: id,
			ClientId:      s.clientId,
			Position:      pos,
			LgVoxelSize:   chunk.LgSampleSize[lod],
		}, true
	}
}

func (s *Session) lodForDistance(col, center surroundings.Column) int {
	dist := chebyshev(col, center)
	lod := 0
	for _, threshold := range LodThresholds {
		if dist > threshold {
			lod++
		}
	}
	if lod >= chunk.NumLODs() {
		lod = chunk.NumLODs() - 1
	}
	return lod
}

func chebyshev(a, b surroundings.Column) int32 {
	dx, dz := a.X-b.X, a.Z-b.Z
	if dx < 0 {
		dx = -dx
	}
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

func (s *Session) forgetColumn(col surroundings.Column) {
	pos := chunk.Position{X: col.X, Y: Y, Z: col.Z}
	if _, ok := s.loadedLod[pos]; !ok {
		return
	}
	delete(s.loadedLod, pos)

	var unload []chunk.MeshId
	id := chunk.Inner(pos)
	if _, ok := s.published[id]; ok {
		delete(s.published, id)
		unload = append(unload, id)
	}
	for axis := chunk.Axis(0); axis < 3; axis++ {
		for _, faceId := range [2]chunk.MeshId{chunk.Face(pos, axis), chunk.Face(plusAxis(pos, axis), axis)} {
			if _, ok := s.published[faceId]; ok {
				delete(s.published, faceId)
				unload = append(unload, faceId)
			}
		}
	}
	if len(unload) > 0 {
		s.ready = append(s.ready, protocol.UnloadMesh{Ids: unload})
	}
}

// remesh mirrors internal/terrain.Loader.remesh: re-extract the chunk's
// own inner mesh, then every seam face whose neighbor is already loaded
// at the same lod. For each, publish queues a LoadMesh for a non-empty
// mesh (preceded by an UnloadMesh if the id was already published) and
// an UnloadMesh for an empty mesh only if the id was already published.
func (s *Session) remesh(pos chunk.Position, lod int) {
	inner := mesh.Inner(s.tree, pos, lod, s.terrainIds, s.grassIds)
	s.publish(chunk.Inner(pos), inner)

	for axis := chunk.Axis(0); axis < 3; axis++ {
		own := chunk.Face(pos, axis)
		if s.faceSatisfiable(own, lod) {
			s.publish(own, mesh.Face(s.tree, pos, axis, lod, s.terrainIds, s.grassIds))
		}
		neighborPos := plusAxis(pos, axis)
		theirs := chunk.Face(neighborPos, axis)
		if s.faceSatisfiable(theirs, lod) {
			s.publish(theirs, mesh.Face(s.tree, neighborPos, axis, lod, s.terrainIds, s.grassIds))
		}
	}
}

func (s *Session) faceSatisfiable(id chunk.MeshId, lod int) bool {
	neighborLod, ok := s.loadedLod[id.Position.Neighbor(id.Axis)]
	if !ok || neighborLod != lod {
		return false
	}
	thisLod, ok := s.loadedLod[id.Position]
	return ok && thisLod == lod
}

func (s *Session) publish(id chunk.MeshId, m *mesh.Mesh) {
	_, hadPrev := s.published[id]
	if m.IsEmpty() {
		if hadPrev {
			delete(s.published, id)
			s.ready = append(s.ready, protocol.UnloadMesh{Ids: []chunk.MeshId{id}})
		}
		return
	}
	s.published[id] = struct{}{}
	if hadPrev {
		s.ready = append(s.ready, protocol.UnloadMesh{Ids: []chunk.MeshId{id}})
	}
	s.ready = append(s.ready, protocol.LoadMesh{Id: id, Mesh: m})
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

// positionFromSample recovers the chunk a voxel sample belongs to from
// its bounds alone, by matching its lg_size against the sampling table
// and flooring its coordinate to the chunk's sample-grid edge. Used only
// for ReasonUpdated broadcasts, which name no chunk explicitly.
func positionFromSample(b bounds.B) chunk.Position {
	lod := 0
	for i, lg := range chunk.LgSampleSize {
		if lg == b.LgSize {
			lod = i
			break
		}
	}
	edge := int32(chunk.EdgeSamples(lod))
	return chunk.Position{X: floorDiv(b.X, edge), Y: floorDiv(b.Y, edge), Z: floorDiv(b.Z, edge)}
}

func floorDiv(v, n int32) int32 {
	q := v / n
	if v%n != 0 && (v < 0) != (n < 0) {
		q--
	}
	return q
}

// boxMesh builds a minimal box mesh standing in for a player or mob
// avatar: SPEC_FULL.md's renderer collaborator expects UpdatePlayer/
// UpdateMob to carry a mesh, but the wire protocol (and the streaming
// core generally) only ever describes a collision AABB, never an
// avatar's appearance. Avatar art is a front-end concern with no spec'd
// module behind it, so this renders the AABB itself as twelve triangles.
func boxMesh(box bounds.AABB) *mesh.Mesh {
	c := aabbCorners(box)
	faces := [6][4]int{
		{0, 1, 3, 2}, {4, 6, 7, 5},
		{0, 4, 5, 1}, {2, 3, 7, 6},
		{0, 2, 6, 4}, {1, 5, 7, 3},
	}
	out := &mesh.Mesh{}
	for _, f := range faces {
		n := faceNormal(c[f[0]], c[f[1]], c[f[2]])
		appendTri(out, c[f[0]], c[f[1]], c[f[2]], n)
		appendTri(out, c[f[0]], c[f[2]], c[f[3]], n)
	}
	return out
}

// aabbCorners returns box's eight corners ordered the same way
// bounds.B.Corners does (bit 0 = x, bit 1 = y, bit 2 = z; 0 = low, 1 =
// high), so the same face-index table works for either shape.
func aabbCorners(box bounds.AABB) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := 0; i < 8; i++ {
		x, y, z := box.Min.X(), box.Min.Y(), box.Min.Z()
		if i&1 != 0 {
			x = box.Max.X()
		}
		if i&2 != 0 {
			y = box.Max.Y()
		}
		if i&4 != 0 {
			z = box.Max.Z()
		}
		out[i] = mgl32.Vec3{x, y, z}
	}
	return out
}

func appendTri(out *mesh.Mesh, a, b, c mgl32.Vec3, n mgl32.Vec3) {
	out.Triangles = append(out.Triangles, mesh.Triangle{
		Vertices: [3]mgl32.Vec3{a, b, c},
		Normals:  [3]mgl32.Vec3{n, n, n},
	})
}

func faceNormal(a, b, c mgl32.Vec3) mgl32.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Len() == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return n.Normalize()
}
