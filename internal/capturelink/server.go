// Package capturelink implements C5: the loopback TCP protocol between the
// relay and the in-sim capture agent. The relay pushes the active display
// layout down as JSON, resending it on every new connection even when
// unchanged; the agent pushes raw I420 frames up, one batch per iteration,
// tagged by display kind.
package capturelink

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/mfdrelay/relay/internal/buffer"
	"github.com/mfdrelay/relay/internal/display"
	"github.com/mfdrelay/relay/internal/logging"
)

const framePoolCap = 10

// Server accepts in-sim capture agent connections, each handled on its own
// goroutine, and feeds received frames into a display.Registry.
type Server struct {
	addr     string
	layout   *display.SetupWatcher
	registry *display.Registry
	pool     *buffer.Pool
}

// New constructs a Server bound to addr, publishing received frames into
// registry and reading layout updates from layout.
func New(addr string, layout *display.SetupWatcher, registry *display.Registry) *Server {
	return &Server{
		addr:     addr,
		layout:   layout,
		registry: registry,
		pool:     buffer.New(framePoolCap),
	}
}

// Serve listens on s.addr until ctx is cancelled, handling every accepted
// capture agent connection concurrently on its own goroutine (the capture
// hook reconnects after a restart while an old connection may linger).
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("capturelink: listen %s: %w", s.addr, err)
	}
	defer ln.Close()

	log := logging.L("capturelink")
	log.Info("listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("capturelink: accept: %w", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	log := logging.L("capturelink")
	log.Info("capture agent connected", "remote", conn.RemoteAddr())
	defer func() {
		conn.Close()
		log.Info("capture agent disconnected", "remote", conn.RemoteAddr())
	}()

	recv := s.layout.Subscribe()
	sentOnce := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !sentOnce || recv.HasChanged() {
			recv.Changed(neverBlockContext(ctx))
			if err := s.sendLayout(conn, s.layout.Current()); err != nil {
				log.Warn("failed to send layout", "error", err)
				return
			}
			sentOnce = true
		}

		if err := s.readFrameBatch(conn); err != nil {
			if err != io.EOF {
				log.Warn("capture link framing error", "error", err)
			}
			return
		}
	}
}

// neverBlockContext wraps ctx so recv.Changed never actually blocks when
// there is nothing new to report; the caller has already checked HasChanged
// and only wants to consume the pending notification, not wait for another.
func neverBlockContext(ctx context.Context) context.Context {
	c, cancel := context.WithCancel(ctx)
	cancel()
	return c
}

func (s *Server) sendLayout(conn net.Conn, layout display.Layout) error {
	wire := make(map[string]display.Geometry, len(layout.Displays))
	for kind, geom := range layout.Displays {
		wire[kind.String()] = geom
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err = conn.Write(body)
	return err
}

func (s *Server) readFrameBatch(conn net.Conn) error {
	var countBuf [1]byte
	if _, err := io.ReadFull(conn, countBuf[:]); err != nil {
		return err
	}
	count := int(countBuf[0])

	for i := 0; i < count; i++ {
		var header [5]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return fmt.Errorf("read frame header: %w", err)
		}
		kindTag := header[0]
		length := binary.BigEndian.Uint32(header[1:])

		kind, ok := display.KindFromU8(kindTag)
		if !ok {
			return fmt.Errorf("capturelink: unrecognized kind tag %d", kindTag)
		}

		view := s.pool.TakeRaw(int(length))
		if _, err := io.ReadFull(conn, view.Bytes()); err != nil {
			view.Release()
			return fmt.Errorf("read frame body: %w", err)
		}
		s.registry.Publish(kind, view.Shared())
	}
	return nil
}
