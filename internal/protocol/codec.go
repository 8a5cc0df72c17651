package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/voxel"
)

// maxFrameLength guards ReadClientMessage/ReadServerMessage against a
// corrupt or hostile length prefix causing an unbounded allocation.
// Chosen generously above the largest plausible Voxels bundle (a whole
// chunk's finest-LOD sample grid is well under 1MiB packed).
const maxFrameLength = 16 << 20

// WriteClientMessage frames msg as [uint32 length][uint8 packet id]
// [fields...] and writes it to w.
func WriteClientMessage(w io.Writer, msg ClientMessage) error {
	var body bytes.Buffer
	body.WriteByte(msg.clientPacketID())
	if err := encodeClientBody(&body, msg); err != nil {
		return fmt.Errorf("protocol: encoding client message: %w", err)
	}
	return writeFrame(w, body.Bytes())
}

// ReadClientMessage reads and decodes one frame written by
// WriteClientMessage.
func ReadClientMessage(r io.Reader) (ClientMessage, error) {
	body, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	return decodeClientBody(body)
}

// WriteServerMessage frames msg the same way as WriteClientMessage.
func WriteServerMessage(w io.Writer, msg ServerMessage) error {
	var body bytes.Buffer
	body.WriteByte(msg.serverPacketID())
	if err := encodeServerBody(&body, msg); err != nil {
		return fmt.Errorf("protocol: encoding server message: %w", err)
	}
	return writeFrame(w, body.Bytes())
}

// ReadServerMessage reads and decodes one frame written by
// WriteServerMessage.
func ReadServerMessage(r io.Reader) (ServerMessage, error) {
	body, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	return decodeServerBody(body)
}

func writeFrame(w io.Writer, body []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(body))); err != nil {
		return fmt.Errorf("protocol: writing frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("protocol: writing frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("protocol: reading frame length: %w", err)
	}
	if length > maxFrameLength {
		return nil, fmt.Errorf("protocol: frame length %d exceeds max %d", length, maxFrameLength)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("protocol: reading frame body: %w", err)
	}
	return body, nil
}

func encodeClientBody(w io.Writer, msg ClientMessage) error {
	switch m := msg.(type) {
	case Init:
		return writeString(w, m.ListenURL)
	case AddPlayer:
		return writeFields(w, uint64(m.ClientId))
	case Ping:
		return writeFields(w, uint64(m.ClientId))
	case Walk:
		return writeFields(w, uint64(m.PlayerId), m.Dir.X(), m.Dir.Y(), m.Dir.Z())
	case StartJump:
		return writeFields(w, uint64(m.PlayerId))
	case StopJump:
		return writeFields(w, uint64(m.PlayerId))
	case RotatePlayer:
		return writeFields(w, uint64(m.PlayerId), m.Delta.X(), m.Delta.Y())
	case RequestChunk:
		return writeFields(w,
			m.RequestedAtNs, uint64(m.ClientId),
			m.Position.X, m.Position.Y, m.Position.Z, m.LgVoxelSize)
	case AddBrush:
		return writeFields(w, uint64(m.PlayerId))
	case RemoveBrush:
		return writeFields(w, uint64(m.PlayerId))
	default:
		return fmt.Errorf("protocol: unknown client message type %T", msg)
	}
}

func decodeClientBody(body []byte) (ClientMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("protocol: empty client frame")
	}
	id, r := body[0], bytes.NewReader(body[1:])
	switch id {
	case PacketInit:
		s, err := readString(r)
		return Init{ListenURL: s}, err
	case PacketAddPlayer:
		var clientId uint64
		err := readFields(r, &clientId)
		return AddPlayer{ClientId: idalloc.ClientId(clientId)}, err
	case PacketClientPing:
		var clientId uint64
		err := readFields(r, &clientId)
		return Ping{ClientId: idalloc.ClientId(clientId)}, err
	case PacketWalk:
		var playerId uint64
		var x, y, z float32
		err := readFields(r, &playerId, &x, &y, &z)
		return Walk{PlayerId: idalloc.PlayerId(playerId), Dir: mgl32.Vec3{x, y, z}}, err
	case PacketStartJump:
		var playerId uint64
		err := readFields(r, &playerId)
		return StartJump{PlayerId: idalloc.PlayerId(playerId)}, err
	case PacketStopJump:
		var playerId uint64
		err := readFields(r, &playerId)
		return StopJump{PlayerId: idalloc.PlayerId(playerId)}, err
	case PacketRotatePlayer:
		var playerId uint64
		var yaw, pitch float32
		err := readFields(r, &playerId, &yaw, &pitch)
		return RotatePlayer{PlayerId: idalloc.PlayerId(playerId), Delta: mgl32.Vec2{yaw, pitch}}, err
	case PacketRequestChunk:
		var requestedAt, clientId uint64
		var x, y, z int32
		var lgSize int16
		err := readFields(r, &requestedAt, &clientId, &x, &y, &z, &lgSize)
		return RequestChunk{
			RequestedAtNs: requestedAt,
			ClientId:      idalloc.ClientId(clientId),
			Position:      chunk.Position{X: x, Y: y, Z: z},
			LgVoxelSize:   lgSize,
		}, err
	case PacketAddBrush:
		var playerId uint64
		err := readFields(r, &playerId)
		return AddBrush{PlayerId: idalloc.PlayerId(playerId)}, err
	case PacketRemoveBrush:
		var playerId uint64
		err := readFields(r, &playerId)
		return RemoveBrush{PlayerId: idalloc.PlayerId(playerId)}, err
	default:
		return nil, fmt.Errorf("protocol: unknown client packet id %#x", id)
	}
}

func encodeServerBody(w io.Writer, msg ServerMessage) error {
	switch m := msg.(type) {
	case LeaseId:
		return writeFields(w, uint64(m.ClientId))
	case ServerPing:
		return nil
	case PlayerAdded:
		return writeFields(w, uint64(m.PlayerId), m.Pos.X(), m.Pos.Y(), m.Pos.Z())
	case UpdatePlayer:
		return writeAABB(w, uint64(m.PlayerId), m.Box)
	case UpdateMob:
		return writeAABB(w, uint64(m.MobId), m.Box)
	case UpdateSun:
		return writeFields(w, m.Fraction)
	case Voxels:
		if err := writeFields(w, m.RequestedAtNs, uint8(m.Reason), uint32(len(m.Entries))); err != nil {
			return err
		}
		for _, e := range m.Entries {
			if err := writeVoxelEntry(w, e); err != nil {
				return err
			}
		}
		return nil
	case Collision:
		return writeFields(w, uint8(m.Kind), uint64(m.Id))
	default:
		return fmt.Errorf("protocol: unknown server message type %T", msg)
	}
}

func decodeServerBody(body []byte) (ServerMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("protocol: empty server frame")
	}
	id, r := body[0], bytes.NewReader(body[1:])
	switch id {
	case PacketLeaseId:
		var clientId uint64
		err := readFields(r, &clientId)
		return LeaseId{ClientId: idalloc.ClientId(clientId)}, err
	case PacketServerPing:
		return ServerPing{}, nil
	case PacketPlayerAdded:
		var playerId uint64
		var x, y, z float32
		err := readFields(r, &playerId, &x, &y, &z)
		return PlayerAdded{PlayerId: idalloc.PlayerId(playerId), Pos: mgl32.Vec3{x, y, z}}, err
	case PacketUpdatePlayer:
		playerId, box, err := readAABB(r)
		return UpdatePlayer{PlayerId: idalloc.PlayerId(playerId), Box: box}, err
	case PacketUpdateMob:
		mobId, box, err := readAABB(r)
		return UpdateMob{MobId: idalloc.MobId(mobId), Box: box}, err
	case PacketUpdateSun:
		var fraction float32
		err := readFields(r, &fraction)
		return UpdateSun{Fraction: fraction}, err
	case PacketVoxels:
		var requestedAt uint64
		var reason uint8
		var count uint32
		if err := readFields(r, &requestedAt, &reason, &count); err != nil {
			return nil, err
		}
		entries := make([]VoxelEntry, count)
		for i := range entries {
			e, err := readVoxelEntry(r)
			if err != nil {
				return nil, err
			}
			entries[i] = e
		}
		return Voxels{RequestedAtNs: requestedAt, Entries: entries, Reason: VoxelsReason(reason)}, nil
	case PacketCollision:
		var kind uint8
		var entityId uint64
		err := readFields(r, &kind, &entityId)
		return Collision{Kind: CollisionKind(kind), Id: idalloc.EntityId(entityId)}, err
	default:
		return nil, fmt.Errorf("protocol: unknown server packet id %#x", id)
	}
}

// writeFields writes each field in order, little-endian, stopping at
// the first error.
func writeFields(w io.Writer, fields ...any) error {
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// readFields reads each destination pointer in order, little-endian.
func readFields(r io.Reader, dests ...any) error {
	for _, d := range dests {
		if err := binary.Read(r, binary.LittleEndian, d); err != nil {
			return err
		}
	}
	return nil
}

func writeAABB(w io.Writer, id uint64, box bounds.AABB) error {
	return writeFields(w, id,
		box.Min.X(), box.Min.Y(), box.Min.Z(),
		box.Max.X(), box.Max.Y(), box.Max.Z())
}

func readAABB(r io.Reader) (uint64, bounds.AABB, error) {
	var id uint64
	var minX, minY, minZ, maxX, maxY, maxZ float32
	err := readFields(r, &id, &minX, &minY, &minZ, &maxX, &maxY, &maxZ)
	box := bounds.AABB{Min: mgl32.Vec3{minX, minY, minZ}, Max: mgl32.Vec3{maxX, maxY, maxZ}}
	return id, box, err
}

func writeVoxelEntry(w io.Writer, e VoxelEntry) error {
	if err := writeFields(w, e.Bounds.X, e.Bounds.Y, e.Bounds.Z, e.Bounds.LgSize); err != nil {
		return err
	}
	return writeVoxel(w, e.Voxel)
}

func readVoxelEntry(r io.Reader) (VoxelEntry, error) {
	var x, y, z int32
	var lgSize int16
	if err := readFields(r, &x, &y, &z, &lgSize); err != nil {
		return VoxelEntry{}, err
	}
	v, err := readVoxel(r)
	if err != nil {
		return VoxelEntry{}, err
	}
	return VoxelEntry{Bounds: bounds.New(x, y, z, lgSize), Voxel: v}, nil
}

// writeVoxel/readVoxel mirror internal/persist's voxel packing. They
// are kept separate rather than shared because the wire format and the
// on-disk format are different boundaries that happen to coincide
// today but are free to diverge (e.g. the wire format may later add a
// protocol version byte that the disk format has no reason to carry).
func writeVoxel(w io.Writer, v voxel.Voxel) error {
	return writeFields(w,
		uint8(v.Kind), uint16(v.VolumeMaterial), v.SurfaceVertex, v.Normal, uint16(v.Corner))
}

func readVoxel(r io.Reader) (voxel.Voxel, error) {
	var kind uint8
	var volumeMaterial, corner uint16
	var vertex [3]uint8
	var normal [3]int8
	if err := readFields(r, &kind, &volumeMaterial, &vertex, &normal, &corner); err != nil {
		return voxel.Voxel{}, err
	}
	if voxel.Kind(kind) == voxel.KindVolume {
		return voxel.Volume(voxel.Material(volumeMaterial)), nil
	}
	return voxel.Surface(vertex, normal, voxel.Material(corner)), nil
}

func writeString(w io.Writer, s string) error {
	b := []byte(s)
	if err := binary.Write(w, binary.LittleEndian, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
