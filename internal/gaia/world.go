// Package gaia implements the server's authoritative world-state
// collaborator named in SPEC_FULL.md §5: client message dispatch,
// per-player pose/velocity integration, the day/night sun fraction, and
// brush-edit broadcast to every client with the affected chunk loaded.
// It owns no network I/O of its own — HandleClientMessage and Tick
// return Outbound values for a connection-handling layer to deliver.
//
// Grounded on the teacher's app.go System-stage dispatch (one function
// per unit of work, driven once per tick from a bare loop) and
// physics.go's velocity/position integration shape, generalized from
// a component-query-driven ECS step to a plain map of player states
// since there is no spec'd ECS here, only players and the terrain.
package gaia

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/logging"
	"github.com/voxcore/voxcore/internal/physics"
	"github.com/voxcore/voxcore/internal/protocol"
	"github.com/voxcore/voxcore/internal/terrain"
	"github.com/voxcore/voxcore/internal/voxel"
	"github.com/voxcore/voxcore/internal/worldgen"
)

const (
	// WalkSpeed is world units/second a Walk direction is scaled by.
	WalkSpeed float32 = 4.3
	// Gravity is the player's resting vertical acceleration.
	Gravity float32 = -9.8
	// JumpAcceleration is the upward acceleration StartJump adds on top
	// of Gravity; StopJump or the fuel countdown subtracts exactly the
	// same amount back off, per SPEC_FULL.md §4.8's jump semantics.
	JumpAcceleration float32 = 0.3
	// JumpFuelTicks is how many World ticks a jump's acceleration boost
	// lasts before StartJump's effect is automatically undone.
	JumpFuelTicks = 12

	// PlayerHalfWidth and PlayerHeight size a player's collision AABB,
	// anchored with Position at the feet.
	PlayerHalfWidth float32 = 0.3
	PlayerHeight    float32 = 1.8

	// MaxBrushDistance bounds the Add/Remove raycast, per §4.8's
	// "server derives the brush from the player's forward ray".
	MaxBrushDistance float32 = 24
	// BrushRadius matches SPEC_FULL.md §8's example scenario ("Brush
	// erase sphere radius 8").
	BrushRadius float32 = 8
	// BrushFinestLgSize is the smallest voxel a brush edit writes.
	BrushFinestLgSize int16 = 0
	// BrushFillMaterial is what an additive AddBrush writes; RemoveBrush
	// always writes voxel.Empty.
	BrushFillMaterial voxel.Material = 1

	// DaySeconds is how long a full sun cycle takes.
	DaySeconds float32 = 600

	// avatarIdBit tags a physics EntityId as belonging to a player/mob
	// avatar rather than a terrain placeholder or mesh triangle.
	// internal/terrain.Loader allocates its own EntityId sequence
	// starting at 1, independently of gaia's; since both write into the
	// same shared physics.Engine, their ranges must not collide. A real
	// terrain mesh will never reach 2^63 triangles, so reserving the top
	// bit for avatars is a safe, simple partition without threading a
	// shared allocator through terrain.NewLoader's constructor.
	avatarIdBit idalloc.EntityId = 1 << 63
)

// Outbound pairs a ServerMessage with its recipients; a nil or empty To
// means broadcast to every currently connected client.
type Outbound struct {
	Message protocol.ServerMessage
	To      []idalloc.ClientId
}

func unicast(to idalloc.ClientId, msg protocol.ServerMessage) Outbound {
	return Outbound{Message: msg, To: []idalloc.ClientId{to}}
}

func broadcast(msg protocol.ServerMessage) Outbound {
	return Outbound{Message: msg}
}

type playerState struct {
	clientId idalloc.ClientId
	entityId idalloc.EntityId

	position mgl32.Vec3
	velocity mgl32.Vec3
	yaw      float32
	pitch    float32

	accelY       float32
	isJumping    bool
	jumpFuelLeft int
}

func newPlayerState(clientId idalloc.ClientId, entityId idalloc.EntityId, pos mgl32.Vec3) *playerState {
	return &playerState{clientId: clientId, entityId: entityId, position: pos, accelY: Gravity}
}

func (p *playerState) forward() mgl32.Vec3 {
	cy, sy := float32(math.Cos(float64(p.yaw))), float32(math.Sin(float64(p.yaw)))
	cp, sp := float32(math.Cos(float64(p.pitch))), float32(math.Sin(float64(p.pitch)))
	f := mgl32.Vec3{cp * sy, sp, cp * cy}
	if f.Len() == 0 {
		return mgl32.Vec3{0, 0, 1}
	}
	return f.Normalize()
}

func (p *playerState) box() bounds.AABB {
	half := mgl32.Vec3{PlayerHalfWidth, 0, PlayerHalfWidth}
	return bounds.AABB{
		Min: p.position.Sub(half),
		Max: p.position.Add(half).Add(mgl32.Vec3{0, PlayerHeight, 0}),
	}
}

func (p *playerState) tick(dt time.Duration) mgl32.Vec3 {
	secs := float32(dt.Seconds())
	p.velocity = mgl32.Vec3{p.velocity.X(), p.velocity.Y() + p.accelY*secs, p.velocity.Z()}
	delta := p.velocity.Mul(secs)
	p.position = p.position.Add(delta)

	if p.isJumping {
		p.jumpFuelLeft--
		if p.jumpFuelLeft <= 0 {
			p.accelY -= JumpAcceleration
			p.isJumping = false
		}
	}
	return delta
}

func (p *playerState) startJump() {
	if p.isJumping {
		return
	}
	p.isJumping = true
	p.jumpFuelLeft = JumpFuelTicks
	p.accelY += JumpAcceleration
}

func (p *playerState) stopJump() {
	if !p.isJumping {
		return
	}
	p.isJumping = false
	p.jumpFuelLeft = 0
	p.accelY -= JumpAcceleration
}

// World is the server's single authoritative instance of every piece of
// mutable game state: the terrain loader, the shared physics index, and
// every connected client's player. Every exported method takes mu, so a
// World may be driven concurrently by one goroutine per connection plus
// the world-tick goroutine.
type World struct {
	mu sync.Mutex

	loader  *terrain.Loader
	physics *physics.Engine
	log     logging.Logger

	clients idalloc.Clients
	players idalloc.Players
	avatars idalloc.Entities

	connected    map[idalloc.ClientId]struct{}
	clientPlayer map[idalloc.ClientId]idalloc.PlayerId
	states       map[idalloc.PlayerId]*playerState

	// interest mirrors, per client, which chunk positions it has asked
	// to load and at what LOD — a simplified stand-in for the terrain
	// loader's own LOD-map ownership bookkeeping (which tracks *that*
	// something is loaded, not *who* asked), kept here so ApplyBrush's
	// broadcast step knows which clients to re-send affected chunks to.
	interest map[idalloc.ClientId]map[chunk.Position]int

	sun float32
}

// NewWorld constructs an empty World over loader and phys. Both must be
// non-nil; phys should be the same Engine instance passed to loader, so
// player/terrain collisions are visible to one spatial index.
func NewWorld(loader *terrain.Loader, phys *physics.Engine, log logging.Logger) *World {
	return &World{
		loader:       loader,
		physics:      phys,
		log:          log,
		connected:    make(map[idalloc.ClientId]struct{}),
		clientPlayer: make(map[idalloc.ClientId]idalloc.PlayerId),
		states:       make(map[idalloc.PlayerId]*playerState),
		interest:     make(map[idalloc.ClientId]map[chunk.Position]int),
	}
}

// Connect leases a new ClientId for a freshly accepted connection and
// returns the LeaseId reply to send back immediately.
func (w *World) Connect() (idalloc.ClientId, protocol.ServerMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.clients.Next()
	w.connected[id] = struct{}{}
	w.interest[id] = make(map[chunk.Position]int)
	return id, protocol.LeaseId{ClientId: id}
}

// Disconnect retires a client: its player (if any) is removed from
// physics and every chunk it held interest in is unloaded.
func (w *World) Disconnect(id idalloc.ClientId) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if playerId, ok := w.clientPlayer[id]; ok {
		if ps, ok := w.states[playerId]; ok {
			w.physics.RemoveTerrain(ps.entityId) // same map as misc; name mirrors Engine's own split
		}
		delete(w.states, playerId)
		delete(w.clientPlayer, id)
	}
	for pos := range w.interest[id] {
		w.loader.Unload(pos, terrain.OwnerId(id))
	}
	delete(w.interest, id)
	delete(w.connected, id)
}

// HandleClientMessage dispatches one ClientMessage received from from,
// returning every reply or broadcast it produces.
func (w *World) HandleClientMessage(from idalloc.ClientId, msg protocol.ClientMessage) []Outbound {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch m := msg.(type) {
	case protocol.Init:
		w.log.Debugf("gaia: client %d listening on %s", from, m.ListenURL)
		return nil
	case protocol.AddPlayer:
		return w.handleAddPlayer(from)
	case protocol.Ping:
		return []Outbound{unicast(from, protocol.ServerPing{})}
	case protocol.Walk:
		w.withPlayer(m.PlayerId, func(p *playerState) {
			dir := m.Dir
			if dir.Len() > 0 {
				dir = dir.Normalize()
			}
			walk := dir.Mul(WalkSpeed)
			p.velocity = mgl32.Vec3{walk.X(), p.velocity.Y(), walk.Z()}
		})
		return nil
	case protocol.StartJump:
		w.withPlayer(m.PlayerId, (*playerState).startJump)
		return nil
	case protocol.StopJump:
		w.withPlayer(m.PlayerId, (*playerState).stopJump)
		return nil
	case protocol.RotatePlayer:
		w.withPlayer(m.PlayerId, func(p *playerState) {
			p.yaw += m.Delta.X()
			p.pitch = clampPitch(p.pitch + m.Delta.Y())
		})
		return nil
	case protocol.RequestChunk:
		return w.handleRequestChunk(from, m)
	case protocol.AddBrush:
		return w.applyBrush(m.PlayerId, true)
	case protocol.RemoveBrush:
		return w.applyBrush(m.PlayerId, false)
	default:
		return nil
	}
}

func clampPitch(p float32) float32 {
	const limit = math.Pi/2 - 0.01
	if p > limit {
		return limit
	}
	if p < -limit {
		return -limit
	}
	return p
}

func (w *World) withPlayer(id idalloc.PlayerId, fn func(*playerState)) {
	if ps, ok := w.states[id]; ok {
		fn(ps)
	}
}

func (w *World) handleAddPlayer(from idalloc.ClientId) []Outbound {
	playerId := w.players.Next()
	entityId := avatarIdBit | idalloc.EntityId(w.avatars.Next())
	spawn := mgl32.Vec3{0, 80, 0}

	ps := newPlayerState(from, entityId, spawn)
	w.states[playerId] = ps
	w.clientPlayer[from] = playerId
	w.physics.InsertMisc(entityId, ps.box())

	return []Outbound{unicast(from, protocol.PlayerAdded{PlayerId: playerId, Pos: spawn})}
}

func (w *World) handleRequestChunk(from idalloc.ClientId, m protocol.RequestChunk) []Outbound {
	lod := lodForLgSize(m.LgVoxelSize)
	if !w.loader.Load(m.Position, chunk.Full(lod), terrain.OwnerId(from)) {
		return nil // at MAX_OUTSTANDING capacity: no reply is sent; the client asks again only when its surroundings cursor yields this column again
	}
	if w.interest[from] == nil {
		w.interest[from] = make(map[chunk.Position]int)
	}
	w.interest[from][m.Position] = lod

	entries := sampleEntries(w.loader, m.Position, lod)
	voxels := protocol.Voxels{RequestedAtNs: m.RequestedAtNs, Entries: entries, Reason: protocol.ReasonRequested}
	return []Outbound{unicast(from, voxels)}
}

func lodForLgSize(lg int16) int {
	for i, v := range chunk.LgSampleSize {
		if v == lg {
			return i
		}
	}
	return 0
}

func sampleEntries(loader *terrain.Loader, pos chunk.Position, lod int) []protocol.VoxelEntry {
	samples := loader.SampleVoxels(pos, lod)
	entries := make([]protocol.VoxelEntry, len(samples))
	for i, s := range samples {
		entries[i] = protocol.VoxelEntry{Bounds: s.Bounds, Voxel: s.Voxel}
	}
	return entries
}

// applyBrush raycasts from playerId's eye along its forward ray and, on
// a hit, writes an additive (fill) or subtractive (empty) sphere brush
// centered there, then re-sends every affected chunk to every client
// that has it loaded.
func (w *World) applyBrush(playerId idalloc.PlayerId, fill bool) []Outbound {
	ps, ok := w.states[playerId]
	if !ok {
		return nil
	}
	origin, dir := ps.position, ps.forward()

	hit, ok := w.loader.RayCast(origin, dir, MaxBrushDistance, hitSolidVoxel)
	if !ok {
		return nil
	}
	center := hit.(mgl32.Vec3)

	material := voxel.Empty
	if fill {
		material = BrushFillMaterial
	}
	brush := worldgen.Sphere{Center: center, Radius: BrushRadius, Fill: material}
	w.loader.ApplyBrush(brush, brush.Bounds(), BrushFinestLgSize)

	return w.broadcastAffected(brush.Bounds())
}

func hitSolidVoxel(b bounds.B, v voxel.Voxel) (any, bool) {
	if v.IsSurface() || (v.IsVolume() && v.VolumeMaterial != voxel.Empty) {
		return b.Center(), true
	}
	return nil, false
}

// broadcastAffected re-samples and re-sends every chunk overlapping box
// to every client whose interest map shows it loaded, per §5's
// "no retroactive LOD of already-broadcast edits": a client only
// receives an update for a chunk it already asked for, at the LOD it
// already asked for.
func (w *World) broadcastAffected(box bounds.AABB) []Outbound {
	var outs []Outbound
	for _, pos := range chunksOverlapping(box) {
		for clientId, chunks := range w.interest {
			lod, ok := chunks[pos]
			if !ok {
				continue
			}
			entries := sampleEntries(w.loader, pos, lod)
			voxels := protocol.Voxels{Entries: entries, Reason: protocol.ReasonUpdated}
			outs = append(outs, unicast(clientId, voxels))
		}
	}
	return outs
}

// chunksOverlapping mirrors internal/terrain's unexported helper of the
// same name; duplicated here because that one is private to its package
// and this computation needs no other terrain internals.
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

// Tick advances every player's pose by dt and the sun's fraction. No
// per-tick contact history is kept: every tick reports a Collision for
// every id a player's box currently overlaps, so Collision is a level-
// rather than edge-triggered signal.
func (w *World) Tick(dt time.Duration) []Outbound {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sun += float32(dt.Seconds()) / DaySeconds
	if w.sun >= 1 {
		w.sun -= float32(int(w.sun))
	}

	var outs []Outbound
	outs = append(outs, broadcast(protocol.UpdateSun{Fraction: w.sun}))

	for playerId, ps := range w.states {
		delta := ps.tick(dt)
		w.physics.TranslateMisc(ps.entityId, delta)

		outs = append(outs, broadcast(protocol.UpdatePlayer{PlayerId: playerId, Box: ps.box()}))

		for _, c := range w.physics.Contacts(ps.entityId) {
			kind := protocol.CollisionPlayerTerrain
			if c.B&avatarIdBit != 0 {
				kind = protocol.CollisionPlayerMisc
			}
			outs = append(outs, unicast(ps.clientId, protocol.Collision{Kind: kind, Id: c.B}))
		}
	}
	return outs
}
