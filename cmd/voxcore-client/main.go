// Command voxcore-client is the headless network half of SPEC_FULL.md
// §6's client: it dials a voxcore-server, runs the §4.8 update loop
// against an internal/client.Session, and logs every renderer
// operation through a LoggingSink rather than opening a window — no
// example repo in the retrieval pack ships a renderer this module
// could ground a real one on, so that boundary is deliberately a stub.
//
// Grounded on teacher voxelrt/rt_main.go's flag-parse-then-run shape,
// generalized the same way voxcore-server's main.go is.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/voxcore/voxcore/internal/client"
	"github.com/voxcore/voxcore/internal/config"
	"github.com/voxcore/voxcore/internal/logging"
	"github.com/voxcore/voxcore/internal/protocol"
	"github.com/voxcore/voxcore/internal/update"
)

// initialLgSize is the local mirror tree's starting root size; it grows
// on demand the same way the server's tree does.
const initialLgSize int16 = 8

func main() {
	cfg, err := config.ParseClientArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	log := logging.NewDefaultLogger("client", cfg.LogLevel >= config.LogDebug)

	conn, err := net.Dial("tcp", cfg.ServerURL)
	if err != nil {
		log.Fatalf("dialing %s: %v", cfg.ServerURL, err)
	}
	defer conn.Close()
	log.Infof("connected to %s", cfg.ServerURL)

	session := client.NewSession(initialLgSize)
	session.SetPosition(mgl32.Vec3{0, 80, 0})
	sink := protocol.NewLoggingSink(log)

	emit := func(msg protocol.ClientMessage) error {
		return protocol.WriteClientMessage(conn, msg)
	}

	inbox := make(chan protocol.ServerMessage, 256)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go readLoop(ctx, conn, inbox, cancel, log)

	if err := emit(protocol.Init{ListenURL: cfg.ListenURL}); err != nil {
		log.Fatalf("sending Init: %v", err)
	}
	go requestPlayerOnceLeased(ctx, session, emit, log)

	loop := update.NewLoop(inbox, session, session, session, sink, emit)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infof("shutting down")
		cancel()
	}()

	loop.Run(ctx)
}

// readLoop decodes every ServerMessage off conn onto inbox until the
// connection closes or ctx is cancelled, then cancels ctx itself so the
// update loop and requestPlayerOnceLeased both stop promptly.
func readLoop(ctx context.Context, conn net.Conn, inbox chan<- protocol.ServerMessage, cancel context.CancelFunc, log logging.Logger) {
	defer cancel()
	for {
		msg, err := protocol.ReadServerMessage(conn)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Infof("disconnected: %v", err)
				return
			}
		}
		select {
		case inbox <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// requestPlayerOnceLeased sends AddPlayer as soon as the update loop has
// applied the server's LeaseId reply, since AddPlayer's ClientId field
// must carry the id the server just handed out.
func requestPlayerOnceLeased(ctx context.Context, session *client.Session, emit func(protocol.ClientMessage) error, log logging.Logger) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if id := session.ClientId(); id != 0 {
				if err := emit(protocol.AddPlayer{ClientId: id}); err != nil {
					log.Warnf("sending AddPlayer: %v", err)
				}
				return
			}
		}
	}
}
