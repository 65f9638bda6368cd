// Package mfdrtc implements C6 (the per-session H.264 encode task) and C7
// (the WebRTC session manager): offer/answer negotiation, one video track
// per display, and a background task that pulls frames off the display
// registry, encodes them, and writes them to the track.
package mfdrtc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/mfdrelay/relay/internal/apierror"
	"github.com/mfdrelay/relay/internal/buffer"
	"github.com/mfdrelay/relay/internal/display"
	"github.com/mfdrelay/relay/internal/logging"
	"github.com/mfdrelay/relay/internal/video"
	"github.com/mfdrelay/relay/internal/workerpool"
)

// statsPollEveryNFrames: every 15th frame, the encode task logs a debug
// line with its frame count and the last sample duration. Peer-connection
// statistics are not queried.
const statsPollEveryNFrames = 15

// nalPoolCap bounds the per-process pool of outbound NAL-unit buffers. A
// single encoded access unit rarely produces more than a handful of NAL
// units, and the relay serves at most a few concurrent sessions.
const nalPoolCap = 30

// Manager creates WebRTC sessions that stream one display's captured
// frames as H.264 over a TrackLocalStaticSample.
type Manager struct {
	registry    *display.Registry
	pool        *workerpool.Pool
	nalPool     *buffer.Pool
	stunServers []string
	bitrateBPS  int
}

// NewManager constructs a Manager. pool is the blocking-thread pool used to
// run CPU-heavy encode calls off the connection-handling goroutines.
func NewManager(registry *display.Registry, pool *workerpool.Pool, stunServers []string, bitrateBPS int) *Manager {
	return &Manager{
		registry:    registry,
		pool:        pool,
		nalPool:     buffer.New(nalPoolCap),
		stunServers: stunServers,
		bitrateBPS:  bitrateBPS,
	}
}

// CreateSession negotiates a new WebRTC session for kind from offerSDP and
// returns the answer SDP. The encode/publish task is started in the
// background and runs until the peer connection disconnects or ctx is
// cancelled.
func (m *Manager) CreateSession(ctx context.Context, kind display.Kind, offerSDP string) (string, error) {
	geom, ok := m.registry.Geometry(kind)
	if !ok {
		return "", apierror.DisplayNotFound(kind.String())
	}

	sessionID := uuid.NewString()
	log := logging.L("mfdrtc").With("session", sessionID, "display", kind.String())

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return "", fmt.Errorf("mfdrtc: register codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return "", fmt.Errorf("mfdrtc: register interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(interceptorRegistry))

	iceServers := make([]webrtc.ICEServer, 0, len(m.stunServers))
	for _, url := range m.stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return "", fmt.Errorf("mfdrtc: new peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "webrtc-rs",
	)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("mfdrtc: new track: %w", err)
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("mfdrtc: add track: %w", err)
	}
	go drainRTCP(sender, log)

	sess := newSession(sessionID, pc, track, log)
	pc.OnConnectionStateChange(sess.onConnectionStateChange)

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		pc.Close()
		return "", fmt.Errorf("mfdrtc: set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("mfdrtc: create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("mfdrtc: set local description: %w", err)
	}
	<-gatherComplete

	sessionCtx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	go m.runFrameTask(sessionCtx, sess, kind, geom)

	return pc.LocalDescription().SDP, nil
}

// drainRTCP reads incoming RTCP packets on sender, which is required for
// pion's interceptors (NACK, RTCP reports) to function, and logs a summary
// of receiver reports as they arrive.
func drainRTCP(sender *webrtc.RTPSender, log *slog.Logger) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		if summary := rtcpSummary(pkts); summary != "" {
			log.Debug("rtcp receiver report", "summary", summary)
		}
	}
}

// rtcpSummary extracts a short human-readable line out of rtcp packets for
// drainRTCP's per-packet debug log, ignoring packet types the relay doesn't
// act on.
func rtcpSummary(pkts []rtcp.Packet) string {
	for _, p := range pkts {
		if rr, ok := p.(*rtcp.ReceiverReport); ok && len(rr.Reports) > 0 {
			return fmt.Sprintf("fraction_lost=%d cumulative_lost=%d", rr.Reports[0].FractionLost, rr.Reports[0].TotalLost)
		}
	}
	return ""
}

// EncoderFactory abstracts the H.264 backend so sessions are testable
// without linking libopenh264.
type EncoderFactory func(video.EncoderConfig) (video.Encoder, error)

var defaultEncoderFactory EncoderFactory = video.NewOpenH264Encoder
