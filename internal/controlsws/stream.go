// Package controlsws implements C10: the GET /api/controls/stream
// WebSocket endpoint clients use to subscribe to and drive DCS-BIOS
// controls.
package controlsws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfdrelay/relay/internal/controls"
	"github.com/mfdrelay/relay/internal/dcsbios"
	"github.com/mfdrelay/relay/internal/logging"
	"github.com/mfdrelay/relay/internal/watch"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// dcsbiosReceiver is the snapshot stream the write pump consumes.
type dcsbiosReceiver = watch.Receiver[map[string]controls.Outputs]

// Handler serves the controls WebSocket endpoint.
type Handler struct {
	dcs *dcsbios.Client
}

// NewHandler constructs a Handler backed by dcs.
func NewHandler(dcs *dcsbios.Client) *Handler {
	return &Handler{dcs: dcs}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.L("controlsws").Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	st := &connState{subscribed: map[string]bool{}, acknowledged: true}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		readPump(conn, h.dcs, st)
	}()
	go func() {
		defer wg.Done()
		writePump(ctx, conn, h.dcs.Subscribe(), st)
	}()
	wg.Wait()
}

// connState is the per-connection subscription and flow-control state
// shared between the read and write pumps.
type connState struct {
	mu           sync.Mutex
	subscribed   map[string]bool
	acknowledged bool
}

func (s *connState) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.subscribed))
	for n := range s.subscribed {
		names = append(names, n)
	}
	return names
}

// readyToPush reports whether the write pump may send a new batch: at
// least one subscription and the previous batch has been acknowledged.
func (s *connState) readyToPush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribed) > 0 && s.acknowledged
}

func (s *connState) markPushed() {
	s.mu.Lock()
	s.acknowledged = false
	s.mu.Unlock()
}

func (s *connState) markAcknowledged() {
	s.mu.Lock()
	s.acknowledged = true
	s.mu.Unlock()
}

type wireRequest struct {
	Type  string     `json:"type"`
	Name  string     `json:"name,omitempty"`
	Input *wireInput `json:"input,omitempty"`
}

type wireInput struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value int64  `json:"value,omitempty"`
}

func (w wireInput) toDomain() controls.Input {
	var kind controls.InputValueKind
	switch w.Kind {
	case "increase":
		kind = controls.InputValueIncrease
	case "decrease":
		kind = controls.InputValueDecrease
	case "toggle":
		kind = controls.InputValueToggle
	default:
		kind = controls.InputValueInteger
	}
	return controls.Input{Name: w.Name, Value: controls.InputValue{Kind: kind, Integer: w.Value}}
}

func readPump(conn *websocket.Conn, dcs *dcsbios.Client, st *connState) {
	log := logging.L("controlsws")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req wireRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Warn("malformed request", "error", err)
			continue
		}

		switch req.Type {
		case "subscribe":
			st.mu.Lock()
			st.subscribed[req.Name] = true
			st.mu.Unlock()
		case "unsubscribe":
			st.mu.Lock()
			delete(st.subscribed, req.Name)
			st.mu.Unlock()
		case "input":
			if req.Input != nil && dcs != nil {
				if !dcs.Send(req.Input.toDomain()) {
					log.Warn("uplink queue full, dropped input", "name", req.Input.Name)
				}
			}
		case "acknowledge":
			st.markAcknowledged()
		default:
			log.Warn("unknown request type", "type", req.Type)
		}
	}
}

type wireOutput struct {
	Integer *int64  `json:"integer,omitempty"`
	Text    *string `json:"text,omitempty"`
}

type wireResponse struct {
	Type    string       `json:"type"`
	Name    string       `json:"name"`
	Outputs []wireOutput `json:"outputs"`
}

type wireAnnounce struct {
	Type string `json:"type"`
	Len  int    `json:"len"`
}

// consumePendingChange advances recv's cursor past whatever change
// HasChanged just observed, without waiting for a future one.
func consumePendingChange(recv *dcsbiosReceiver) {
	done, cancel := context.WithCancel(context.Background())
	cancel()
	_ = recv.Changed(done)
}

func writePump(ctx context.Context, conn *websocket.Conn, recv *dcsbiosReceiver, st *connState) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !st.readyToPush() || !recv.HasChanged() {
			timer := time.NewTimer(50 * time.Millisecond)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
			continue
		}

		names := st.names()
		snapshot := recv.Borrow()
		consumePendingChange(recv)
		st.markPushed()

		responses := make([]wireResponse, 0, len(names))
		for _, name := range names {
			outs, ok := snapshot[name]
			if !ok {
				continue
			}
			wireOuts := make([]wireOutput, len(outs))
			for i, o := range outs {
				wireOuts[i] = wireOutput{Integer: o.Integer, Text: o.Text}
			}
			responses = append(responses, wireResponse{Type: "response", Name: name, Outputs: wireOuts})
		}

		if err := conn.WriteJSON(wireAnnounce{Type: "announce", Len: len(responses)}); err != nil {
			return
		}
		for _, resp := range responses {
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}
}
