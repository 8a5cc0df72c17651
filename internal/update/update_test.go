package update

import (
	"testing"
	"time"

	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/protocol"
)

type fakeState struct {
	applied []protocol.ServerMessage
	order   *[]string
}

func (f *fakeState) ApplyServerMessage(msg protocol.ServerMessage) {
	f.applied = append(f.applied, msg)
	if f.order != nil {
		*f.order = append(*f.order, "state")
	}
}

type fakeMesher struct {
	enqueuedReasons []protocol.VoxelsReason
	queue           []protocol.RenderUpdate
	order           *[]string
}

func (f *fakeMesher) EnqueueVoxels(voxels protocol.Voxels) {
	f.enqueuedReasons = append(f.enqueuedReasons, voxels.Reason)
	if f.order != nil {
		*f.order = append(*f.order, "voxels")
	}
}

func (f *fakeMesher) DrainMeshed() (protocol.RenderUpdate, bool) {
	if len(f.queue) == 0 {
		return nil, false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u, true
}

type fakeRequester struct {
	reqs  []protocol.RequestChunk
	order *[]string
}

func (f *fakeRequester) NextRequest() (protocol.RequestChunk, bool) {
	if len(f.reqs) == 0 {
		return protocol.RequestChunk{}, false
	}
	r := f.reqs[0]
	f.reqs = f.reqs[1:]
	if f.order != nil {
		*f.order = append(*f.order, "request")
	}
	return r, true
}

type fakeSink struct {
	atomics []protocol.Atomic
}

func (f *fakeSink) LoadMesh(protocol.LoadMesh)             {}
func (f *fakeSink) UnloadMesh(protocol.UnloadMesh)         {}
func (f *fakeSink) MoveCamera(protocol.MoveCamera)         {}
func (f *fakeSink) UpdatePlayer(protocol.UpdatePlayerMesh) {}
func (f *fakeSink) UpdateMob(protocol.UpdateMobMesh)       {}
func (f *fakeSink) SetSun(protocol.SetSun)                 {}
func (f *fakeSink) Atomic(u protocol.Atomic)               { f.atomics = append(f.atomics, u) }

func newTestLoop(inbox chan protocol.ServerMessage, state *fakeState, mesher *fakeMesher, requester *fakeRequester, sink *fakeSink, emitted *[]protocol.ClientMessage) *Loop {
	emit := func(msg protocol.ClientMessage) error {
		*emitted = append(*emitted, msg)
		return nil
	}
	l := NewLoop(inbox, state, mesher, requester, sink, emit)
	l.SetPhaseBudget(50 * time.Millisecond)
	return l
}

func TestPhaseARoutesVoxelsToMesherAndEverythingElseToState(t *testing.T) {
	inbox := make(chan protocol.ServerMessage, 4)
	inbox <- protocol.Voxels{Reason: protocol.ReasonRequested}
	inbox <- protocol.UpdateSun{Fraction: 0.5}
	inbox <- protocol.ServerPing{}
	close(inbox)

	state := &fakeState{}
	mesher := &fakeMesher{}
	var emitted []protocol.ClientMessage
	l := newTestLoop(inbox, state, mesher, &fakeRequester{}, &fakeSink{}, &emitted)

	l.Tick()

	if len(mesher.enqueuedReasons) != 1 {
		t.Fatalf("mesher got %d voxel bundles, want 1", len(mesher.enqueuedReasons))
	}
	if len(state.applied) != 2 {
		t.Fatalf("state got %d messages, want 2", len(state.applied))
	}
}

func TestPhaseBEmitsEveryPendingRequest(t *testing.T) {
	requester := &fakeRequester{reqs: []protocol.RequestChunk{
		{Position: chunk.Position{X: 1}},
		{Position: chunk.Position{X: 2}},
	}}
	var emitted []protocol.ClientMessage
	l := newTestLoop(make(chan protocol.ServerMessage), &fakeState{}, &fakeMesher{}, requester, &fakeSink{}, &emitted)

	l.Tick()

	if len(emitted) != 2 {
		t.Fatalf("emitted %d requests, want 2", len(emitted))
	}
}

func TestPhaseCBatchesDrainedUpdatesIntoOneAtomic(t *testing.T) {
	mesher := &fakeMesher{queue: []protocol.RenderUpdate{
		protocol.SetSun{Fraction: 0.1},
		protocol.SetSun{Fraction: 0.2},
		protocol.MoveCamera{},
	}}
	sink := &fakeSink{}
	var emitted []protocol.ClientMessage
	l := newTestLoop(make(chan protocol.ServerMessage), &fakeState{}, mesher, &fakeRequester{}, sink, &emitted)

	l.Tick()

	if len(sink.atomics) != 1 {
		t.Fatalf("sink got %d Atomic calls, want 1", len(sink.atomics))
	}
	if len(sink.atomics[0].Updates) != 3 {
		t.Errorf("batch has %d updates, want 3", len(sink.atomics[0].Updates))
	}
}

func TestPhaseCEmitsNothingWhenMesherQueueIsEmpty(t *testing.T) {
	sink := &fakeSink{}
	var emitted []protocol.ClientMessage
	l := newTestLoop(make(chan protocol.ServerMessage), &fakeState{}, &fakeMesher{}, &fakeRequester{}, sink, &emitted)

	l.Tick()

	if len(sink.atomics) != 0 {
		t.Errorf("sink got %d Atomic calls, want 0", len(sink.atomics))
	}
}

func TestTickAppliesVoxelArrivalsBeforeNewRequestsWithinATick(t *testing.T) {
	var order []string
	inbox := make(chan protocol.ServerMessage, 1)
	inbox <- protocol.Voxels{Reason: protocol.ReasonUpdated}

	requester := &fakeRequester{order: &order, reqs: []protocol.RequestChunk{{}}}
	mesher := &fakeMesher{order: &order}
	var emitted []protocol.ClientMessage
	l := newTestLoop(inbox, &fakeState{}, mesher, requester, &fakeSink{}, &emitted)

	l.Tick()

	if len(order) != 2 || order[0] != "voxels" || order[1] != "request" {
		t.Errorf("got order %v, want [voxels request]", order)
	}
}

func TestZeroBudgetPhaseProcessesNothing(t *testing.T) {
	inbox := make(chan protocol.ServerMessage, 1)
	inbox <- protocol.ServerPing{}

	state := &fakeState{}
	var emitted []protocol.ClientMessage
	l := NewLoop(inbox, state, &fakeMesher{}, &fakeRequester{}, &fakeSink{}, func(protocol.ClientMessage) error {
		return nil
	})
	l.SetPhaseBudget(0)

	l.Tick()

	if len(state.applied) != 0 {
		t.Errorf("state got %d messages with a zero budget, want 0", len(state.applied))
	}
}
