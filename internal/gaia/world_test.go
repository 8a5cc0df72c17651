package gaia

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/logging"
	"github.com/voxcore/voxcore/internal/physics"
	"github.com/voxcore/voxcore/internal/protocol"
	"github.com/voxcore/voxcore/internal/svo"
	"github.com/voxcore/voxcore/internal/terrain"
	"github.com/voxcore/voxcore/internal/worldgen"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	tree := svo.NewTree(6)
	phys := physics.NewEngine()
	loader := terrain.NewLoader(tree, worldgen.NewHeightfield(1), phys, 8, func(terrain.Update) {})
	return NewWorld(loader, phys, logging.NewNopLogger())
}

func addPlayer(t *testing.T, w *World) (idalloc.ClientId, idalloc.PlayerId) {
	t.Helper()
	clientId, _ := w.Connect()
	outs := w.HandleClientMessage(clientId, protocol.AddPlayer{ClientId: clientId})
	require.Len(t, outs, 1)
	added, ok := outs[0].Message.(protocol.PlayerAdded)
	require.True(t, ok, "got %T, want protocol.PlayerAdded", outs[0].Message)
	return clientId, added.PlayerId
}

func TestAddPlayerLeasesIdAndSpawnsAboveOrigin(t *testing.T) {
	w := newTestWorld(t)
	_, playerId := addPlayer(t, w)
	if playerId == 0 {
		t.Fatal("expected a nonzero PlayerId")
	}
	pos := w.states[playerId].position
	if pos.X() != 0 || pos.Z() != 0 || pos.Y() <= 0 {
		t.Errorf("spawn position = %v, want a point straight above the origin", pos)
	}
}

func TestWalkThenTickMovesPlayerHorizontally(t *testing.T) {
	w := newTestWorld(t)
	clientId, playerId := addPlayer(t, w)

	w.HandleClientMessage(clientId, protocol.Walk{PlayerId: playerId, Dir: mgl32.Vec3{1, 0, 0}})
	start := w.states[playerId].position

	w.Tick(50 * time.Millisecond)

	moved := w.states[playerId].position
	if moved.X() <= start.X() {
		t.Errorf("position.X = %v after walking +X, want > %v", moved.X(), start.X())
	}
}

func TestJumpAccelerationExactlyCancelsOnStopJump(t *testing.T) {
	w := newTestWorld(t)
	clientId, playerId := addPlayer(t, w)
	base := w.states[playerId].accelY

	w.HandleClientMessage(clientId, protocol.StartJump{PlayerId: playerId})
	if w.states[playerId].accelY == base {
		t.Fatal("expected StartJump to raise accelY")
	}

	w.HandleClientMessage(clientId, protocol.StopJump{PlayerId: playerId})
	if w.states[playerId].accelY != base {
		t.Errorf("accelY after StopJump = %v, want original %v", w.states[playerId].accelY, base)
	}
}

func TestJumpFuelCountdownUndoesAccelerationWithoutStopJump(t *testing.T) {
	w := newTestWorld(t)
	clientId, playerId := addPlayer(t, w)
	base := w.states[playerId].accelY

	w.HandleClientMessage(clientId, protocol.StartJump{PlayerId: playerId})
	for i := 0; i < JumpFuelTicks; i++ {
		w.Tick(16 * time.Millisecond)
	}

	if w.states[playerId].accelY != base {
		t.Errorf("accelY after fuel ran out = %v, want original %v", w.states[playerId].accelY, base)
	}
	if w.states[playerId].isJumping {
		t.Error("expected isJumping to be false once fuel runs out")
	}
}

func TestRequestChunkReturnsVoxelsEchoingRequestedAt(t *testing.T) {
	w := newTestWorld(t)
	clientId, _ := w.Connect()

	req := protocol.RequestChunk{
		RequestedAtNs: 42,
		ClientId:      clientId,
		Position:      chunk.Position{X: 0, Y: 0, Z: 0},
		LgVoxelSize:   chunk.LgSampleSize[0],
	}
	outs := w.HandleClientMessage(clientId, req)
	require.Len(t, outs, 1)
	voxels, ok := outs[0].Message.(protocol.Voxels)
	require.True(t, ok, "got %T, want protocol.Voxels", outs[0].Message)
	require.Equal(t, uint64(42), voxels.RequestedAtNs)
	require.Equal(t, protocol.ReasonRequested, voxels.Reason)
}

func TestDisconnectRemovesPlayerState(t *testing.T) {
	w := newTestWorld(t)
	clientId, playerId := addPlayer(t, w)

	w.Disconnect(clientId)

	if _, ok := w.states[playerId]; ok {
		t.Error("expected player state to be removed after Disconnect")
	}
	if _, ok := w.connected[clientId]; ok {
		t.Error("expected client to be removed from connected set")
	}
}
