// Package protocol implements the wire message contracts of
// SPEC_FULL.md §4.8/§6: the Client→Server and Server→Client tagged
// unions, a length-prefixed little-endian binary codec for them, and
// the renderer Sink interface the client core drives.
//
// The packet-ID-then-fixed-fields shape is grounded on
// Leterax-go-voxels's pkg/network/client.go (ClientBound/ServerBound
// packet ID consts, one handle* function per ID, binary.Read/Write
// field by field). That file writes each message as a bare,
// implicitly-sized byte run with no overall length prefix, relying on
// every packet's shape being fixed or self-describing (e.g. a leading
// count). §6 asks for explicit length-prefixed framing instead — the
// Voxels message's entry count is not known to the reader ahead of the
// length word the way Leterax's BlockBulkEdit count is — so
// WriteClientMessage/WriteServerMessage wrap the same field-by-field
// encoding in a uint32 length prefix before the packet ID.
package protocol

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/voxel"
)

// Client→Server packet IDs.
const (
	PacketInit         uint8 = 0x00
	PacketAddPlayer    uint8 = 0x01
	PacketClientPing   uint8 = 0x02
	PacketWalk         uint8 = 0x03
	PacketStartJump    uint8 = 0x04
	PacketStopJump     uint8 = 0x05
	PacketRotatePlayer uint8 = 0x06
	PacketRequestChunk uint8 = 0x07
	PacketAddBrush     uint8 = 0x08
	PacketRemoveBrush  uint8 = 0x09
)

// Server→Client packet IDs.
const (
	PacketLeaseId      uint8 = 0x00
	PacketServerPing   uint8 = 0x01
	PacketPlayerAdded  uint8 = 0x02
	PacketUpdatePlayer uint8 = 0x03
	PacketUpdateMob    uint8 = 0x04
	PacketUpdateSun    uint8 = 0x05
	PacketVoxels       uint8 = 0x06
	PacketCollision    uint8 = 0x07
)

// ClientMessage is implemented by every Client→Server message type.
type ClientMessage interface {
	clientPacketID() uint8
}

// ServerMessage is implemented by every Server→Client message type.
type ServerMessage interface {
	serverPacketID() uint8
}

// Init is sent once, immediately after connecting, naming the URL the
// client is listening on for its own inbound connections (e.g. voice or
// a future peer-to-peer path); the server does not use it to route
// anything today, only to log the peer.
type Init struct {
	ListenURL string
}

func (Init) clientPacketID() uint8 { return PacketInit }

// AddPlayer asks the server to attach a new player entity to client.
type AddPlayer struct {
	ClientId idalloc.ClientId
}

func (AddPlayer) clientPacketID() uint8 { return PacketAddPlayer }

// Ping is a liveness probe; client id lets the server's reply correlate
// back to a connection even though the reply itself carries no payload.
type Ping struct {
	ClientId idalloc.ClientId
}

func (Ping) clientPacketID() uint8 { return PacketClientPing }

// Walk applies a normalized movement direction to player.
type Walk struct {
	PlayerId idalloc.PlayerId
	Dir      mgl32.Vec3
}

func (Walk) clientPacketID() uint8 { return PacketWalk }

// StartJump begins the jump-fuel countdown described in SPEC_FULL.md
// §4.8's jump semantics.
type StartJump struct {
	PlayerId idalloc.PlayerId
}

func (StartJump) clientPacketID() uint8 { return PacketStartJump }

// StopJump early-undoes an in-progress jump's acceleration.
type StopJump struct {
	PlayerId idalloc.PlayerId
}

func (StopJump) clientPacketID() uint8 { return PacketStopJump }

// RotatePlayer applies a yaw/pitch delta.
type RotatePlayer struct {
	PlayerId idalloc.PlayerId
	Delta    mgl32.Vec2
}

func (RotatePlayer) clientPacketID() uint8 { return PacketRotatePlayer }

// RequestChunk asks the server's terrain loader to load (or refresh) a
// chunk at the given LOD for client.
type RequestChunk struct {
	RequestedAtNs uint64
	ClientId      idalloc.ClientId
	Position      chunk.Position
	LgVoxelSize   int16
}

func (RequestChunk) clientPacketID() uint8 { return PacketRequestChunk }

// AddBrush asks the server to apply an additive brush along player's
// forward ray; the server derives the brush shape and position from the
// player's current pose, not from any field carried here.
type AddBrush struct {
	PlayerId idalloc.PlayerId
}

func (AddBrush) clientPacketID() uint8 { return PacketAddBrush }

// RemoveBrush is AddBrush's subtractive counterpart.
type RemoveBrush struct {
	PlayerId idalloc.PlayerId
}

func (RemoveBrush) clientPacketID() uint8 { return PacketRemoveBrush }

// LeaseId is the server's reply to a new connection, handing out the
// ClientId the rest of the session is keyed by.
type LeaseId struct {
	ClientId idalloc.ClientId
}

func (LeaseId) serverPacketID() uint8 { return PacketLeaseId }

// ServerPing is the server's unsolicited or replying liveness probe; it
// carries no payload.
type ServerPing struct{}

func (ServerPing) serverPacketID() uint8 { return PacketServerPing }

// PlayerAdded confirms a player entity now exists at pos.
type PlayerAdded struct {
	PlayerId idalloc.PlayerId
	Pos      mgl32.Vec3
}

func (PlayerAdded) serverPacketID() uint8 { return PacketPlayerAdded }

// UpdatePlayer reports a player's current collision box, sent once per
// world tick per player the client can see.
type UpdatePlayer struct {
	PlayerId idalloc.PlayerId
	Box      bounds.AABB
}

func (UpdatePlayer) serverPacketID() uint8 { return PacketUpdatePlayer }

// UpdateMob is UpdatePlayer's non-player-mobile-entity counterpart.
type UpdateMob struct {
	MobId idalloc.MobId
	Box   bounds.AABB
}

func (UpdateMob) serverPacketID() uint8 { return PacketUpdateMob }

// UpdateSun reports the current day/night cycle fraction, in [0,1).
type UpdateSun struct {
	Fraction float32
}

func (UpdateSun) serverPacketID() uint8 { return PacketUpdateSun }

// VoxelsReason discriminates why a Voxels message was sent: it answers
// an explicit RequestChunk, or it reports a brush edit the client did
// not ask for but must apply to stay consistent.
type VoxelsReason uint8

const (
	ReasonRequested VoxelsReason = iota
	ReasonUpdated
)

// VoxelEntry pairs a voxel's bounds with its content, the wire
// representation of one SVO leaf.
type VoxelEntry struct {
	Bounds bounds.B
	Voxel  voxel.Voxel
}

// Voxels carries a bundle of voxel updates; requested_at echoes the
// RequestChunk that triggered it (zero for unsolicited Updated
// bundles) so the client can match replies to requests despite
// reordering within a tick.
type Voxels struct {
	RequestedAtNs uint64
	Entries       []VoxelEntry
	Reason        VoxelsReason
}

func (Voxels) serverPacketID() uint8 { return PacketVoxels }

// CollisionKind discriminates what the colliding player touched.
type CollisionKind uint8

const (
	CollisionPlayerTerrain CollisionKind = iota
	CollisionPlayerMisc
)

// Collision reports a player's translate_misc contact against terrain
// or another misc body, named by id.
type Collision struct {
	Kind CollisionKind
	Id   idalloc.EntityId
}

func (Collision) serverPacketID() uint8 { return PacketCollision }
