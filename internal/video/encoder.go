package video

import "errors"

// ErrClosed is returned by an Encoder method called after Close.
var ErrClosed = errors.New("video: encoder closed")

// EncodedFrame is one encoded access unit, split into its constituent NAL
// units. internal/mfdrtc prefixes each NAL unit with an Annex-B start code
// and writes it to pion's TrackLocalStaticSample as its own sample.
type EncodedFrame struct {
	NALUnits [][]byte
	KeyFrame bool
}

// Encoder turns successive I420 frames into H.264 access units. Encode is
// expected to be CPU-bound and is always invoked from internal/workerpool's
// blocking-thread pool rather than a capture-path goroutine.
type Encoder interface {
	Encode(frame Frame) (EncodedFrame, error)
	SetBitrateBPS(bps int) error
	Close() error
}

// EncoderConfig carries the tunables an Encoder is constructed with.
type EncoderConfig struct {
	Width, Height int
	BitrateBPS    int
}
