package protocol

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/logging"
	"github.com/voxcore/voxcore/internal/mesh"
	"github.com/voxcore/voxcore/internal/voxel"
)

func TestClientMessageRoundTrips(t *testing.T) {
	cases := []ClientMessage{
		Init{ListenURL: "10.0.0.2:9001"},
		AddPlayer{ClientId: 7},
		Ping{ClientId: 7},
		Walk{PlayerId: 3, Dir: mgl32.Vec3{1, 0, -1}},
		StartJump{PlayerId: 3},
		StopJump{PlayerId: 3},
		RotatePlayer{PlayerId: 3, Delta: mgl32.Vec2{0.1, -0.2}},
		RequestChunk{RequestedAtNs: 42, ClientId: 7, Position: chunk.Position{X: 1, Y: -2, Z: 3}, LgVoxelSize: 1},
		AddBrush{PlayerId: 3},
		RemoveBrush{PlayerId: 3},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteClientMessage(&buf, want); err != nil {
			t.Fatalf("WriteClientMessage(%#v): %v", want, err)
		}
		got, err := ReadClientMessage(&buf)
		if err != nil {
			t.Fatalf("ReadClientMessage after writing %#v: %v", want, err)
		}
		if got != want {
			t.Errorf("round trip mismatch: got %#v, want %#v", got, want)
		}
	}
}

func TestServerMessageRoundTrips(t *testing.T) {
	cases := []ServerMessage{
		LeaseId{ClientId: 9},
		ServerPing{},
		PlayerAdded{PlayerId: 5, Pos: mgl32.Vec3{1, 2, 3}},
		UpdatePlayer{PlayerId: 5, Box: bounds.AABB{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}},
		UpdateMob{MobId: 11, Box: bounds.AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{0, 0, 0}}},
		UpdateSun{Fraction: 0.25},
		Collision{Kind: CollisionPlayerTerrain, Id: 100},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteServerMessage(&buf, want); err != nil {
			t.Fatalf("WriteServerMessage(%#v): %v", want, err)
		}
		got, err := ReadServerMessage(&buf)
		if err != nil {
			t.Fatalf("ReadServerMessage after writing %#v: %v", want, err)
		}
		if got != want {
			t.Errorf("round trip mismatch: got %#v, want %#v", got, want)
		}
	}
}

func TestVoxelsMessageRoundTripsWithEntries(t *testing.T) {
	const stone voxel.Material = 3
	want := Voxels{
		RequestedAtNs: 123,
		Reason:        ReasonUpdated,
		Entries: []VoxelEntry{
			{Bounds: bounds.New(0, 0, 0, 0), Voxel: voxel.Volume(stone)},
			{Bounds: bounds.New(1, 0, 0, 0), Voxel: voxel.Volume(voxel.Empty)},
			{Bounds: bounds.New(-5, 2, 1, -1), Voxel: voxel.Surface([3]uint8{1, 2, 3}, [3]int8{4, -5, 6}, stone)},
		},
	}

	var buf bytes.Buffer
	if err := WriteServerMessage(&buf, want); err != nil {
		t.Fatalf("WriteServerMessage: %v", err)
	}
	got, err := ReadServerMessage(&buf)
	if err != nil {
		t.Fatalf("ReadServerMessage: %v", err)
	}
	voxels, ok := got.(Voxels)
	if !ok {
		t.Fatalf("got %T, want Voxels", got)
	}
	if voxels.RequestedAtNs != want.RequestedAtNs || voxels.Reason != want.Reason {
		t.Errorf("header mismatch: got %+v", voxels)
	}
	if len(voxels.Entries) != len(want.Entries) {
		t.Fatalf("got %d entries, want %d", len(voxels.Entries), len(want.Entries))
	}
	for i := range want.Entries {
		if voxels.Entries[i] != want.Entries[i] {
			t.Errorf("entry %d mismatch: got %+v, want %+v", i, voxels.Entries[i], want.Entries[i])
		}
	}
}

func TestVoxelsMessageWithNoEntriesRoundTrips(t *testing.T) {
	want := Voxels{RequestedAtNs: 1, Reason: ReasonRequested}

	var buf bytes.Buffer
	if err := WriteServerMessage(&buf, want); err != nil {
		t.Fatalf("WriteServerMessage: %v", err)
	}
	got, err := ReadServerMessage(&buf)
	if err != nil {
		t.Fatalf("ReadServerMessage: %v", err)
	}
	voxels := got.(Voxels)
	if len(voxels.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(voxels.Entries))
	}
}

func TestReadClientMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, make([]byte, maxFrameLength+1)); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	if _, err := ReadClientMessage(&buf); err == nil {
		t.Errorf("expected ReadClientMessage to reject an oversized frame")
	}
}

func TestReadClientMessageRejectsUnknownPacketId(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte{0xFF}); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	if _, err := ReadClientMessage(&buf); err == nil {
		t.Errorf("expected ReadClientMessage to reject an unknown packet id")
	}
}

func TestLoggingSinkAtomicAppliesEveryInnerUpdate(t *testing.T) {
	sink := NewLoggingSink(logging.NewNopLogger())
	empty := &mesh.Mesh{}

	// Exercises every RenderUpdate variant through Atomic without
	// panicking; LoggingSink has no observable state to assert against
	// beyond "it didn't crash and dispatched every variant".
	sink.Atomic(Atomic{Updates: []RenderUpdate{
		LoadMesh{Id: chunk.Inner(chunk.Position{}), Mesh: empty},
		UnloadMesh{Ids: []chunk.MeshId{chunk.Inner(chunk.Position{X: 1})}},
		MoveCamera{Point: mgl32.Vec3{1, 2, 3}},
		UpdatePlayerMesh{Id: idalloc.PlayerId(1), Mesh: empty},
		UpdateMobMesh{Id: idalloc.MobId(1), Mesh: empty},
		SetSun{Fraction: 0.5},
	}})
}
