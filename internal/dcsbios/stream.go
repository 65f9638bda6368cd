// Package dcsbios implements C8: the TCP client that tails the DCS export
// stream and the control-input uplink back to the simulation.
package dcsbios

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// mirrorSize is the fixed size of the DCS-BIOS export memory mirror: every
// address from 0 to 65535 is addressable, so the mirror spans 65536 bytes.
const mirrorSize = 65536

// syncBytes is the literal four-byte marker (0x55 repeated) that opens
// every export cycle.
var syncBytes = [4]byte{0x55, 0x55, 0x55, 0x55}

// ErrFraming is returned when the stream violates the protocol: a sync
// phase that doesn't read four 0x55 bytes, or a data record whose
// addr+length would run past the mirror.
var ErrFraming = errors.New("dcsbios: malformed frame")

// recvState tracks which half of the export cycle streamReader is in.
type recvState int

const (
	recvSync recvState = iota
	recvData
)

// streamReader decodes the DCS-BIOS export protocol off r into mirror. The
// protocol alternates between a fixed four-byte sync marker and a run of
// address/length/data records; a full export cycle is complete exactly
// when a data record's addr+length reaches the end of the mirror, at which
// point the reader returns to the sync phase.
type streamReader struct {
	r      *bufio.Reader
	mirror []byte
	state  recvState
}

func newStreamReader(r io.Reader, mirror []byte) *streamReader {
	return &streamReader{r: bufio.NewReaderSize(r, 4096), mirror: mirror, state: recvSync}
}

// step consumes one unit of protocol framing: in the sync phase, the
// four-byte marker; in the data phase, one address/length/data record.
// complete is true only when a data record's range exactly fills out the
// mirror, signaling a finished export cycle and a transition back to the
// sync phase.
func (s *streamReader) step() (complete bool, err error) {
	switch s.state {
	case recvSync:
		var buf [4]byte
		if _, err := io.ReadFull(s.r, buf[:]); err != nil {
			return false, err
		}
		if buf != syncBytes {
			return false, ErrFraming
		}
		s.state = recvData
		return false, nil

	default: // recvData
		var header [4]byte
		if _, err := io.ReadFull(s.r, header[:]); err != nil {
			return false, err
		}
		addr := binary.LittleEndian.Uint16(header[0:2])
		length := binary.LittleEndian.Uint16(header[2:4])
		end := int(addr) + int(length)
		if end > len(s.mirror) {
			return false, ErrFraming
		}

		if _, err := io.ReadFull(s.r, s.mirror[addr:end]); err != nil {
			return false, err
		}

		if end == len(s.mirror) {
			s.state = recvSync
			return true, nil
		}
		return false, nil
	}
}
