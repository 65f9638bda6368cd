package video

import (
	"fmt"
	"sync"

	"github.com/y9o/go-openh264/openh264"
)

// openh264Encoder adapts the openh264 cgo bindings to the Encoder
// interface. The upstream package exposes a fairly thin wrapper over the
// Cisco OpenH264 encoder API; the call shape below (NewEncoder with a
// parameter struct, Encode taking plane pointers, SetBitrate, Close) is the
// conventional surface for that kind of binding and is isolated entirely
// behind this file and the Encoder interface so a different backend can be
// swapped in without touching internal/mfdrtc.
type openh264Encoder struct {
	mu     sync.Mutex
	enc    *openh264.Encoder
	closed bool
	width  int
	height int
}

// NewOpenH264Encoder constructs an Encoder backed by libopenh264.
func NewOpenH264Encoder(cfg EncoderConfig) (Encoder, error) {
	enc, err := openh264.NewEncoder(openh264.EncoderParams{
		Width:      cfg.Width,
		Height:     cfg.Height,
		BitrateBps: cfg.BitrateBPS,
		// Screen-content usage mode; no H.264 profile is set here, so the
		// binding's default profile applies.
		Usage: openh264.UsageScreen,
	})
	if err != nil {
		return nil, fmt.Errorf("video: openh264 init: %w", err)
	}
	return &openh264Encoder{enc: enc, width: cfg.Width, height: cfg.Height}, nil
}

func (e *openh264Encoder) Encode(frame Frame) (EncodedFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return EncodedFrame{}, ErrClosed
	}
	if frame.Width != e.width || frame.Height != e.height {
		return EncodedFrame{}, fmt.Errorf("video: frame size %dx%d does not match encoder size %dx%d",
			frame.Width, frame.Height, e.width, e.height)
	}

	out, err := e.enc.EncodeI420(openh264.I420{
		Y: frame.Y(), U: frame.U(), V: frame.V(),
		YStride: frame.YStride(), UStride: frame.UStride(), VStride: frame.VStride(),
	})
	if err != nil {
		return EncodedFrame{}, fmt.Errorf("video: encode: %w", err)
	}

	nalUnits := make([][]byte, len(out.Layers))
	for i, layer := range out.Layers {
		nalUnits[i] = layer.NALUnit
	}
	return EncodedFrame{NALUnits: nalUnits, KeyFrame: out.KeyFrame}, nil
}

func (e *openh264Encoder) SetBitrateBPS(bps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.enc.SetBitrateBps(bps)
}

func (e *openh264Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.enc.Close()
}
