package protocol

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/logging"
	"github.com/voxcore/voxcore/internal/mesh"
)

// RenderUpdate is implemented by every value Sink.Atomic groups; it
// mirrors §6's "Renderer interface (collaborator)" operation list
// one-for-one so an Atomic batch can hold a mix of them.
type RenderUpdate interface {
	applyTo(Sink)
}

// LoadMesh publishes a terrain mesh for id, replacing whatever mesh was
// previously published under the same id.
type LoadMesh struct {
	Id   chunk.MeshId
	Mesh *mesh.Mesh
}

func (u LoadMesh) applyTo(s Sink) { s.LoadMesh(u) }

// UnloadMesh retires previously published terrain meshes.
type UnloadMesh struct {
	Ids []chunk.MeshId
}

func (u UnloadMesh) applyTo(s Sink) { s.UnloadMesh(u) }

// MoveCamera repositions the local viewpoint, issued once per tick from
// the local player's authoritative position.
type MoveCamera struct {
	Point mgl32.Vec3
}

func (u MoveCamera) applyTo(s Sink) { s.MoveCamera(u) }

// UpdatePlayerMesh publishes a remote player's rendered representation.
// (Named distinctly from protocol.UpdatePlayer, the wire message that
// carries only a collision box — this one carries the mesh the
// renderer actually draws.)
type UpdatePlayerMesh struct {
	Id   idalloc.PlayerId
	Mesh *mesh.Mesh
}

func (u UpdatePlayerMesh) applyTo(s Sink) { s.UpdatePlayer(u) }

// UpdateMobMesh is UpdatePlayerMesh's non-player-mobile counterpart.
type UpdateMobMesh struct {
	Id   idalloc.MobId
	Mesh *mesh.Mesh
}

func (u UpdateMobMesh) applyTo(s Sink) { s.UpdateMob(u) }

// SetSun updates the sky/lighting day-night fraction, in [0,1).
type SetSun struct {
	Fraction float32
}

func (u SetSun) applyTo(s Sink) { s.SetSun(u) }

// Atomic groups several RenderUpdate values so the renderer never draws
// a half-applied frame — e.g. a chunk's unload-old/load-new pair from
// §4.7's buffer-swap atomicity requirement.
type Atomic struct {
	Updates []RenderUpdate
}

// Sink is the renderer collaborator the client core drives: every
// method is one of §6's "operations produced by the core". The update
// loop holds a Sink, never a concrete renderer type, so it can be
// driven in tests by LoggingSink below.
type Sink interface {
	LoadMesh(LoadMesh)
	UnloadMesh(UnloadMesh)
	MoveCamera(MoveCamera)
	UpdatePlayer(UpdatePlayerMesh)
	UpdateMob(UpdateMobMesh)
	SetSun(SetSun)
	Atomic(Atomic)
}

// LoggingSink logs every call it receives instead of touching a GPU
// context; it satisfies Sink for headless tests and for a server
// process that never opens a window.
type LoggingSink struct {
	Log logging.Logger
}

// NewLoggingSink wraps log in a Sink.
func NewLoggingSink(log logging.Logger) *LoggingSink { return &LoggingSink{Log: log} }

func (s *LoggingSink) LoadMesh(u LoadMesh) {
	s.Log.Debugf("sink: load mesh %+v (%d triangles)", u.Id, len(u.Mesh.Triangles))
}

func (s *LoggingSink) UnloadMesh(u UnloadMesh) {
	s.Log.Debugf("sink: unload %d meshes", len(u.Ids))
}

func (s *LoggingSink) MoveCamera(u MoveCamera) {
	s.Log.Debugf("sink: move camera to %v", u.Point)
}

func (s *LoggingSink) UpdatePlayer(u UpdatePlayerMesh) {
	s.Log.Debugf("sink: update player %d mesh", u.Id)
}

func (s *LoggingSink) UpdateMob(u UpdateMobMesh) {
	s.Log.Debugf("sink: update mob %d mesh", u.Id)
}

func (s *LoggingSink) SetSun(u SetSun) {
	s.Log.Debugf("sink: set sun fraction %.3f", u.Fraction)
}

func (s *LoggingSink) Atomic(u Atomic) {
	for _, inner := range u.Updates {
		inner.applyTo(s)
	}
}
