package mfdrtc

import (
	"context"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/mfdrelay/relay/internal/display"
	"github.com/mfdrelay/relay/internal/video"
)

// annexBStartCode precedes every NAL unit written to the track; pion's
// TrackLocalStaticSample expects Annex-B framed H.264.
var annexBStartCode = []byte{0, 0, 0, 1}

// connState is the reduced state machine the frame task reacts to: pion's
// Connected maps to connected; Disconnected, Failed and Closed map to
// disconnected; every other PeerConnectionState is ignored.
type connState int

const (
	stateDisconnected connState = iota
	stateConnected
)

// session bundles one WebRTC peer connection with the channel its
// connection-state callback publishes to.
type session struct {
	id     string
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticSample
	log    *slog.Logger
	cancel context.CancelFunc

	// stateCh is buffered (cap 5) so the callback, which pion invokes
	// synchronously, never blocks on a slow frame task.
	stateCh chan connState
}

func newSession(id string, pc *webrtc.PeerConnection, track *webrtc.TrackLocalStaticSample, log *slog.Logger) *session {
	return &session{id: id, pc: pc, track: track, log: log, stateCh: make(chan connState, 5)}
}

func (s *session) onConnectionStateChange(state webrtc.PeerConnectionState) {
	s.log.Info("connection state changed", "state", state.String())
	switch state {
	case webrtc.PeerConnectionStateConnected:
		select {
		case s.stateCh <- stateConnected:
		default:
		}
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		select {
		case s.stateCh <- stateDisconnected:
		default:
		}
		if s.cancel != nil {
			s.cancel()
		}
	}
}

// runFrameTask waits for the session to reach Connected, then repeatedly
// pulls the latest captured frame for kind, encodes it on the blocking
// thread pool, and writes the result as a media sample. It exits when the
// connection disconnects or ctx is cancelled.
func (m *Manager) runFrameTask(ctx context.Context, sess *session, kind display.Kind, geom display.Geometry) {
	select {
	case st := <-sess.stateCh:
		if st != stateConnected {
			return
		}
	case <-ctx.Done():
		return
	}

	factory := defaultEncoderFactory
	encoder, err := factory(video.EncoderConfig{Width: geom.Width, Height: geom.Height, BitrateBPS: m.bitrateBPS})
	if err != nil {
		sess.log.Error("failed to start encoder", "error", err)
		return
	}
	defer encoder.Close()

	recv := m.registry.Receiver(kind)
	lastSampleTime := time.Now()
	frameCount := 0

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-sess.stateCh:
			if st == stateDisconnected {
				return
			}
		default:
		}

		frame, err := recv.Next(ctx)
		if err != nil {
			return
		}

		type encodeResult struct {
			out video.EncodedFrame
			err error
		}
		resultCh := make(chan encodeResult, 1)

		submitted := m.pool.Submit(func() {
			vf, err := video.NewFrame(geom.Width, geom.Height, frame.Bytes())
			if err != nil {
				resultCh <- encodeResult{err: err}
				return
			}
			out, err := encoder.Encode(vf)
			resultCh <- encodeResult{out: out, err: err}
		})
		if !submitted {
			sess.log.Warn("encode queue full, dropping frame")
			frame.Release()
			continue
		}

		var res encodeResult
		select {
		case res = <-resultCh:
		case <-ctx.Done():
			frame.Release()
			return
		}
		frame.Release()

		if res.err != nil {
			sess.log.Warn("encode failed", "error", res.err)
			continue
		}

		var lastDuration time.Duration
		for _, nal := range res.out.NALUnits {
			now := time.Now()
			lastDuration = now.Sub(lastSampleTime)
			lastSampleTime = now

			view := m.nalPool.Take(len(annexBStartCode) + len(nal))
			view.Append(annexBStartCode)
			view.Append(nal)
			shared := view.Shared()

			if err := sess.track.WriteSample(media.Sample{Data: shared.Bytes(), Duration: lastDuration}); err != nil {
				sess.log.Warn("write sample failed", "error", err)
			}
			shared.Release()
		}

		frameCount++
		if frameCount%statsPollEveryNFrames == 0 {
			sess.log.Debug("encode stats", "frames", frameCount, "last_sample_duration", lastDuration)
		}
	}
}
