package dcsbios

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mfdrelay/relay/internal/controls"
	"github.com/mfdrelay/relay/internal/logging"
	"github.com/mfdrelay/relay/internal/watch"
)

const (
	connectBackoff = 5 * time.Second
	errorBackoff   = 1 * time.Second
	uplinkCapacity = 20

	// acftNameControl is the DCS-BIOS control identifier whose string
	// output reports the active airframe.
	acftNameControl = "_ACFT_NAME"
)

// Client tails the DCS-BIOS export stream, maintains the decoded mirror,
// tracks the active airframe, and carries control inputs back upstream.
type Client struct {
	addr string
	defs *controls.Definitions

	mu     sync.RWMutex
	mirror [mirrorSize]byte

	uplink chan controls.Input
	sender *watch.Sender[map[string]controls.Outputs]
}

// New constructs a Client that dials addr and decodes output definitions
// from defs.
func New(addr string, defs *controls.Definitions) *Client {
	sender, _ := watch.NewChannel(map[string]controls.Outputs{})
	return &Client{
		addr:   addr,
		defs:   defs,
		uplink: make(chan controls.Input, uplinkCapacity),
		sender: sender,
	}
}

// Subscribe returns a receiver for full output snapshots, published every
// time a sync boundary in the export stream is crossed.
func (c *Client) Subscribe() *watch.Receiver[map[string]controls.Outputs] {
	return c.sender.Subscribe()
}

// Send enqueues an input to be written upstream. Returns false if the
// uplink queue is full and the input was dropped rather than blocking the
// caller.
func (c *Client) Send(in controls.Input) bool {
	select {
	case c.uplink <- in:
		return true
	default:
		return false
	}
}

// Mirror returns a copy of the current export memory snapshot.
func (c *Client) Mirror() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]byte, mirrorSize)
	copy(out, c.mirror[:])
	return out
}

// Run dials addr in a loop until ctx is cancelled, reconnecting with a
// longer backoff on connection failure than on a mid-stream read error.
func (c *Client) Run(ctx context.Context) error {
	log := logging.L("dcsbios")
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", c.addr)
		if err != nil {
			log.Warn("connect failed", "addr", c.addr, "error", err)
			if !sleepOrDone(ctx, connectBackoff) {
				return nil
			}
			continue
		}

		log.Info("connected", "addr", c.addr)
		err = c.serve(ctx, conn)
		conn.Close()
		if err != nil {
			log.Warn("stream error", "error", err)
		}

		if !sleepOrDone(ctx, errorBackoff) {
			return nil
		}
	}
}

func (c *Client) serve(ctx context.Context, conn net.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.pumpUplink(connCtx, conn)

	sr := newStreamReader(conn, c.mirror[:])
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		c.mu.Lock()
		complete, err := sr.step()
		c.mu.Unlock()
		if err != nil {
			return err
		}

		if complete {
			c.refresh()
		}
	}
}

// pumpUplink writes queued inputs to conn as ASCII lines, formatted
// "{name} {value}\n", matching wire rendering.
func (c *Client) pumpUplink(ctx context.Context, conn net.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-c.uplink:
			line := fmt.Sprintf("%s %s\n", in.Name, in.Value.String())
			if _, err := conn.Write([]byte(line)); err != nil {
				return
			}
		}
	}
}

// refresh re-detects the active airframe (if changed) and republishes a
// full output snapshot to subscribers.
func (c *Client) refresh() {
	mirror := c.Mirror()

	if outs, err := c.defs.ControlOutputs(acftNameControl, mirror); err == nil && len(outs) > 0 && outs[0].Text != nil {
		name := *outs[0].Text
		if name != "" && name != c.defs.ActiveAircraft() && controls.IsKnownAircraft(name) {
			if err := c.defs.LoadAircraft(name); err != nil {
				logging.L("dcsbios").Warn("failed to load airframe", "name", name, "error", err)
			}
		}
	}

	c.sender.Send(c.defs.AllOutputs(mirror))
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
