// Package signalling implements C11: the SDP offer/answer exchange
// endpoint new MFD viewers use to start a WebRTC session.
package signalling

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mfdrelay/relay/internal/apierror"
	"github.com/mfdrelay/relay/internal/display"
	"github.com/mfdrelay/relay/internal/logging"
)

// sizeLimit caps the request body at 8 KiB; a kind/desc offer payload
// never approaches this.
const sizeLimit = 8192

// sessionCreator is the subset of *mfdrtc.Manager the handler depends on,
// kept as an interface so tests can substitute a fake without pulling in
// pion/webrtc.
type sessionCreator interface {
	CreateSession(ctx context.Context, kind display.Kind, offerSDP string) (string, error)
}

// Handler serves POST /api/mfd.
type Handler struct {
	manager sessionCreator
}

// NewHandler constructs a Handler backed by manager.
func NewHandler(manager sessionCreator) *Handler {
	return &Handler{manager: manager}
}

type mfdRequest struct {
	Kind uint8  `json:"kind"`
	Desc string `json:"desc"`
}

type mfdResponse struct {
	Desc string `json:"desc"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apierror.Request("method not allowed").Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, sizeLimit)
	var req mfdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Request("invalid request body: " + err.Error()).Write(w)
		return
	}

	kind, ok := display.KindFromU8(req.Kind)
	if !ok {
		apierror.DisplayNotFound("unknown").Write(w)
		return
	}

	// The session outlives this request: its context must not be cancelled
	// when ServeHTTP returns, only when the peer connection ends.
	answer, err := h.manager.CreateSession(context.WithoutCancel(r.Context()), kind, req.Desc)
	if err != nil {
		if apiErr, ok := err.(*apierror.Error); ok {
			apiErr.Write(w)
			return
		}
		logging.L("signalling").Error("create session failed", "error", err)
		apierror.Internal("failed to create session").Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(mfdResponse{Desc: answer})
}
