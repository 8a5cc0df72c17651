package client

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/protocol"
	"github.com/voxcore/voxcore/internal/voxel"
	"github.com/voxcore/voxcore/internal/worldgen"
)

// sampleEntries fills pos's whole sample grid at lod by running the same
// field-sampling voxel.OfField pipeline the terrain loader uses, over a
// rolling-hills Mosaic — this guarantees a realistic mix of Volume and
// Surface voxels at the solid/air boundary, which a hand-rolled grid of
// pure Volume voxels would not (dual contouring needs Hermite data at
// the boundary, not just a material sign change).
func sampleEntries(pos chunk.Position, lod int) []protocol.VoxelEntry {
	field := worldgen.NewHeightfield(1)
	lg := chunk.LgSampleSize[lod]
	edge := int32(chunk.EdgeSamples(lod))
	origin := pos.SampleOrigin(lod)
	var entries []protocol.VoxelEntry
	for dx := int32(0); dx < edge; dx++ {
		for dy := int32(0); dy < edge; dy++ {
			for dz := int32(0); dz < edge; dz++ {
				b := bounds.New(origin.X+dx, origin.Y+dy, origin.Z+dz, lg)
				v, ok := voxel.OfField(field, b)
				if !ok {
					continue
				}
				entries = append(entries, protocol.VoxelEntry{Bounds: b, Voxel: v})
			}
		}
	}
	return entries
}

func TestNextRequestThenEnqueueVoxelsProducesLoadMesh(t *testing.T) {
	s := NewSession(6)
	s.SetPosition(mgl32.Vec3{0, 0, 0})

	req, ok := s.NextRequest()
	if !ok {
		t.Fatal("expected at least one request for a fresh session")
	}
	if req.Position != (chunk.Position{X: 0, Y: 0, Z: 0}) {
		t.Fatalf("first request position = %+v, want origin chunk", req.Position)
	}

	lod := 0
	entries := sampleEntries(req.Position, lod)
	s.EnqueueVoxels(protocol.Voxels{RequestedAtNs: req.RequestedAtNs, Entries: entries, Reason: protocol.ReasonRequested})

	u, ok := s.DrainMeshed()
	if !ok {
		t.Fatal("expected a drained LoadMesh after enqueueing a solid-below-surface chunk")
	}
	load, ok := u.(protocol.LoadMesh)
	if !ok {
		t.Fatalf("got %T, want protocol.LoadMesh", u)
	}
	if load.Id != chunk.Inner(req.Position) {
		t.Errorf("LoadMesh id = %+v, want Inner(%+v)", load.Id, req.Position)
	}
	if load.Mesh.IsEmpty() {
		t.Error("expected a non-empty mesh for a half-solid chunk")
	}
}

func TestEnqueueVoxelsIgnoresUnrecognizedRequestId(t *testing.T) {
	s := NewSession(6)
	s.EnqueueVoxels(protocol.Voxels{RequestedAtNs: 999, Reason: protocol.ReasonRequested})
	if _, ok := s.DrainMeshed(); ok {
		t.Error("expected no drained update for an unrecognized RequestedAtNs")
	}
}

func TestApplyServerMessageRoutesPlayerAndSunUpdatesToReadyQueue(t *testing.T) {
	s := NewSession(6)
	s.ApplyServerMessage(protocol.LeaseId{ClientId: 7})
	if s.ClientId() != 7 {
		t.Fatalf("ClientId() = %d, want 7", s.ClientId())
	}

	s.ApplyServerMessage(protocol.PlayerAdded{PlayerId: 3, Pos: mgl32.Vec3{1, 2, 3}})
	id, ok := s.PlayerId()
	if !ok || id != 3 {
		t.Fatalf("PlayerId() = (%d, %v), want (3, true)", id, ok)
	}

	s.ApplyServerMessage(protocol.UpdateSun{Fraction: 0.25})
	u, ok := s.DrainMeshed()
	if !ok {
		t.Fatal("expected a queued SetSun update")
	}
	sun, ok := u.(protocol.SetSun)
	if !ok || sun.Fraction != 0.25 {
		t.Fatalf("got %#v, want SetSun{0.25}", u)
	}
}

func TestApplyServerMessageBuildsABoxMeshForPlayerUpdates(t *testing.T) {
	s := NewSession(6)
	box := bounds.AABB{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	s.ApplyServerMessage(protocol.UpdatePlayer{PlayerId: 5, Box: box})

	u, ok := s.DrainMeshed()
	if !ok {
		t.Fatal("expected a queued UpdatePlayerMesh")
	}
	upd, ok := u.(protocol.UpdatePlayerMesh)
	if !ok {
		t.Fatalf("got %T, want protocol.UpdatePlayerMesh", u)
	}
	if upd.Id != 5 || upd.Mesh.IsEmpty() {
		t.Errorf("got id=%d emptyMesh=%v, want id=5 and a non-empty box mesh", upd.Id, upd.Mesh.IsEmpty())
	}
}
