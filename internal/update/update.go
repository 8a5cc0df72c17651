// Package update implements the client single update thread of
// SPEC_FULL.md §4.8: one goroutine merging three time-budgeted phases —
// drain server messages, drain the surroundings loader's chunk
// requests, drain the mesher's output — each yielding when its budget
// is spent, with phase A's voxel arrivals always applied before phase
// B's new requests within the same tick.
//
// Grounded on teacher app.go's callSystems/runStateless loop shape
// (a bare for{} driving a fixed stage order once per iteration, timed
// with time.Now/time.Since around each unit of work) — reimplemented
// as three hand-rolled phases instead of app.go's reflection-driven
// system scheduler, since §4.8 wants explicit SPSC-queue draining under
// a budget, not a general ECS stage graph.
package update

import (
	"context"
	"time"

	"github.com/voxcore/voxcore/internal/protocol"
)

// DefaultPhaseBudget is the ≤1ms-per-phase budget §4.8 names.
const DefaultPhaseBudget = time.Millisecond

// StateApplier handles every Server→Client message that is not Voxels
// (player/mob/sun updates, collisions, lease/ping/handshake replies).
// Voxels messages are routed to Mesher instead, since they need to
// enter the meshing pipeline rather than update a piece of game state
// directly.
type StateApplier interface {
	ApplyServerMessage(msg protocol.ServerMessage)
}

// Mesher is the client-side meshing pipeline collaborator: voxel
// bundles received from the server are staged here, and completed mesh
// deltas are drained from here for publication to the renderer.
type Mesher interface {
	// EnqueueVoxels stages a received voxel bundle for meshing. The full
	// Voxels message is passed, not just its entries, so an
	// implementation can correlate RequestedAtNs against the id it
	// handed out in a prior ChunkRequester.NextRequest call.
	EnqueueVoxels(voxels protocol.Voxels)
	// DrainMeshed pops one completed renderer update, or ok=false if
	// none is ready yet.
	DrainMeshed() (protocol.RenderUpdate, bool)
}

// ChunkRequester is the surroundings loader collaborator: it hands back
// the next chunk the client should ask the server for (NextRequest
// reports ok=false once the shell iterator has nothing new due). The
// loop applies no outstanding-request cap of its own, and client.Session's
// NextRequest enforces none either.
type ChunkRequester interface {
	NextRequest() (protocol.RequestChunk, bool)
}

// Loop drives the three phases described at the package level. The
// zero Loop is not ready to use; construct one with NewLoop.
type Loop struct {
	serverInbox <-chan protocol.ServerMessage
	state       StateApplier
	mesher      Mesher
	requester   ChunkRequester
	sink        protocol.Sink
	emit        func(protocol.ClientMessage) error

	phaseBudget time.Duration
	now         func() time.Time
}

// NewLoop wires one update loop. emit sends a ClientMessage to the
// server (typically WriteClientMessage over the network connection).
func NewLoop(
	serverInbox <-chan protocol.ServerMessage,
	state StateApplier,
	mesher Mesher,
	requester ChunkRequester,
	sink protocol.Sink,
	emit func(protocol.ClientMessage) error,
) *Loop {
	return &Loop{
		serverInbox: serverInbox,
		state:       state,
		mesher:      mesher,
		requester:   requester,
		sink:        sink,
		emit:        emit,
		phaseBudget: DefaultPhaseBudget,
		now:         time.Now,
	}
}

// SetPhaseBudget overrides the per-phase time budget (DefaultPhaseBudget
// otherwise). Exposed mainly for tests that want a generous budget so a
// fixed amount of queued work always drains within one Tick.
func (l *Loop) SetPhaseBudget(d time.Duration) { l.phaseBudget = d }

// Run ticks continuously until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			l.Tick()
		}
	}
}

// Tick runs phases A, B, and C once, each under its own budget.
func (l *Loop) Tick() {
	l.phaseA()
	l.phaseB()
	l.phaseC()
}

// phaseA drains server messages: Voxels bundles are staged for
// meshing, everything else is applied directly.
func (l *Loop) phaseA() {
	deadline := l.now().Add(l.phaseBudget)
	for l.now().Before(deadline) {
		var msg protocol.ServerMessage
		select {
		case m, ok := <-l.serverInbox:
			if !ok {
				return
			}
			msg = m
		default:
			return
		}
		if voxels, ok := msg.(protocol.Voxels); ok {
			l.mesher.EnqueueVoxels(voxels)
			continue
		}
		l.state.ApplyServerMessage(msg)
	}
}

// phaseB drains the surroundings loader's next-request queue, subject
// to whatever cap ChunkRequester.NextRequest enforces internally.
func (l *Loop) phaseB() {
	deadline := l.now().Add(l.phaseBudget)
	for l.now().Before(deadline) {
		req, ok := l.requester.NextRequest()
		if !ok {
			return
		}
		if err := l.emit(req); err != nil {
			return
		}
	}
}

// phaseC drains the mesher's completed output queue, grouping
// everything drained in one Tick into a single Atomic batch so the
// renderer never observes a half-applied set of chunk updates (§4.7's
// atomicity requirement extended to whole-tick publication).
func (l *Loop) phaseC() {
	deadline := l.now().Add(l.phaseBudget)
	var batch []protocol.RenderUpdate
	for l.now().Before(deadline) {
		u, ok := l.mesher.DrainMeshed()
		if !ok {
			break
		}
		batch = append(batch, u)
	}
	if len(batch) > 0 {
		l.sink.Atomic(protocol.Atomic{Updates: batch})
	}
}
