// Command voxcore-server is the authoritative world process of
// SPEC_FULL.md §6: it owns the single SVO, runs the terrain worker
// pool and the fixed-rate world-update tick, and speaks the wire
// protocol to every connected voxcore-client.
//
// Grounded on teacher voxelrt/rt_main.go's flag-parse-then-run shape,
// generalized from a single-process renderer loop to a listener
// accepting many connections, each read by its own goroutine feeding a
// shared World.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/voxcore/voxcore/internal/chunk"
	"github.com/voxcore/voxcore/internal/config"
	"github.com/voxcore/voxcore/internal/gaia"
	"github.com/voxcore/voxcore/internal/idalloc"
	"github.com/voxcore/voxcore/internal/logging"
	"github.com/voxcore/voxcore/internal/physics"
	"github.com/voxcore/voxcore/internal/persist"
	"github.com/voxcore/voxcore/internal/protocol"
	"github.com/voxcore/voxcore/internal/svo"
	"github.com/voxcore/voxcore/internal/terrain"
	"github.com/voxcore/voxcore/internal/worldgen"
)

// terrainFile is where the SVO is persisted between runs, per §6's
// persistence contract.
const terrainFile = "default.terrain"

// maxOutstandingChunks bounds in-flight chunk generation jobs, the
// MAX_OUTSTANDING backpressure limit named in SPEC_FULL.md §5.
const maxOutstandingChunks = 256

// worldTickRate is the fixed world-update rate §5 requires (>=30Hz).
const worldTickRate = 30

func main() {
	cfg, err := config.ParseServerArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	log := logging.NewDefaultLogger("server", cfg.LogLevel >= config.LogDebug)

	tree := loadOrCreateTree(log)
	generator := worldgen.NewHeightfield(1)
	phys := physics.NewEngine()

	var conns connSet
	loader := terrain.NewLoader(tree, generator, phys, maxOutstandingChunks, func(terrain.Update) {
		// Mesh deltas are not broadcast independently of a client's own
		// RequestChunk/ApplyBrush-triggered resend: the server streams raw
		// voxel samples (SampleVoxels), never server-meshed triangles, so
		// this callback's Update.Mesh is unused here — it only matters to
		// an embedded, non-networked consumer of internal/terrain.
	})
	world := gaia.NewWorld(loader, phys, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loader.Run(ctx)
	}()

	ln, err := net.Listen("tcp", cfg.ListenURL)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenURL, err)
	}
	log.Infof("listening on %s", cfg.ListenURL)

	wg.Add(1)
	go func() {
		defer wg.Done()
		acceptLoop(ctx, ln, world, &conns, log)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tickLoop(ctx, world, &conns, log)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Infof("shutting down")
	cancel()
	ln.Close()
	wg.Wait()

	if err := persistTree(tree); err != nil {
		log.Fatalf("persisting terrain: %v", err)
	}
}

func loadOrCreateTree(log logging.Logger) *svo.Tree {
	f, err := os.Open(terrainFile)
	if err != nil {
		log.Infof("no existing %s, starting a fresh world", terrainFile)
		return svo.NewTree(chunk.LgWidth + 4)
	}
	defer f.Close()

	tree, err := persist.Decode(f)
	if err != nil {
		log.Fatalf("decoding %s: %v", terrainFile, err)
	}
	log.Infof("loaded terrain from %s", terrainFile)
	return tree
}

func persistTree(tree *svo.Tree) error {
	tmp := terrainFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := persist.Encode(f, tree); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, terrainFile)
}

// connSet tracks every connection's writer so Outbound broadcasts and
// unicasts can be delivered from the tick goroutine, which never reads
// a connection directly.
type connSet struct {
	mu    sync.Mutex
	conns map[idalloc.ClientId]net.Conn
}

func (c *connSet) add(id idalloc.ClientId, conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns == nil {
		c.conns = make(map[idalloc.ClientId]net.Conn)
	}
	c.conns[id] = conn
}

func (c *connSet) remove(id idalloc.ClientId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, id)
}

func (c *connSet) deliver(out gaia.Outbound, log logging.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := out.To
	if len(targets) == 0 {
		targets = make([]idalloc.ClientId, 0, len(c.conns))
		for id := range c.conns {
			targets = append(targets, id)
		}
	}
	for _, id := range targets {
		conn, ok := c.conns[id]
		if !ok {
			continue
		}
		if err := protocol.WriteServerMessage(conn, out.Message); err != nil {
			log.Warnf("writing to client %d: %v", id, err)
		}
	}
}

func acceptLoop(ctx context.Context, ln net.Listener, world *gaia.World, conns *connSet, log logging.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Warnf("accept: %v", err)
				return
			}
		}
		go handleConn(ctx, conn, world, conns, log)
	}
}

func handleConn(ctx context.Context, conn net.Conn, world *gaia.World, conns *connSet, log logging.Logger) {
	defer conn.Close()

	clientId, lease := world.Connect()
	conns.add(clientId, conn)
	defer func() {
		world.Disconnect(clientId)
		conns.remove(clientId)
	}()

	if err := protocol.WriteServerMessage(conn, lease); err != nil {
		log.Warnf("client %d: writing lease: %v", clientId, err)
		return
	}
	log.Infof("client %d connected from %s", clientId, conn.RemoteAddr())

	for {
		msg, err := protocol.ReadClientMessage(conn)
		if err != nil {
			log.Infof("client %d disconnected: %v", clientId, err)
			return
		}
		for _, out := range world.HandleClientMessage(clientId, msg) {
			conns.deliver(out, log)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func tickLoop(ctx context.Context, world *gaia.World, conns *connSet, log logging.Logger) {
	ticker := time.NewTicker(time.Second / worldTickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			for _, out := range world.Tick(dt) {
				conns.deliver(out, log)
			}
		}
	}
}
