// Package frame implements the fixed-size wire frame exchanged with the
// device under test: a magic header, a fixed-length payload of one byte
// per measurement channel, and a little-endian CRC-16 trailer.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/banshee-data/linkcheck/internal/crc"
)

var (
	ErrPayloadLength = errors.New("payload length does not match frame configuration")
	ErrBadLength     = errors.New("candidate is not a complete frame")
	ErrBadMagic      = errors.New("frame header magic mismatch")
	ErrBadChecksum   = errors.New("frame checksum mismatch")
)

// checksumSize is the width of the CRC-16 trailer on the wire.
const checksumSize = 2

// Payload is the application data carried inside one frame, one unsigned
// byte per measurement channel. Channel order is significant.
type Payload []byte

// Config describes the frame layout. The defaults match the device
// firmware: a 3-byte "$FS" magic and 11 measurement channels, for a
// 16-byte frame overall.
type Config struct {
	Magic      []byte
	PayloadLen int
}

// DefaultConfig returns the layout the firmware speaks.
func DefaultConfig() Config {
	return Config{
		Magic:      []byte{0x24, 0x46, 0x53}, // "$FS"
		PayloadLen: 11,
	}
}

// FrameLen returns the total on-wire frame size for this layout.
func (c Config) FrameLen() int {
	return len(c.Magic) + c.PayloadLen + checksumSize
}

// Validate checks that the layout is usable.
func (c Config) Validate() error {
	if len(c.Magic) == 0 {
		return fmt.Errorf("frame config: magic must not be empty")
	}
	if c.PayloadLen <= 0 {
		return fmt.Errorf("frame config: payload length must be positive, got %d", c.PayloadLen)
	}
	return nil
}

// Encode builds a complete wire frame around p. The checksum covers the
// magic and payload bytes and is appended little-endian, so an encoded
// frame always decodes successfully.
func (c Config) Encode(p Payload) ([]byte, error) {
	if len(p) != c.PayloadLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadLength, len(p), c.PayloadLen)
	}
	buf := make([]byte, 0, c.FrameLen())
	buf = append(buf, c.Magic...)
	buf = append(buf, p...)
	sum := crc.Checksum(buf)
	return binary.LittleEndian.AppendUint16(buf, sum), nil
}

// Decode validates candidate as a single frame and returns a copy of its
// payload. It rejects with ErrBadLength, ErrBadMagic or ErrBadChecksum and
// performs no resynchronisation; scanning for frame boundaries inside a
// byte stream is the Framer's job.
func (c Config) Decode(candidate []byte) (Payload, error) {
	if len(candidate) != c.FrameLen() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadLength, len(candidate), c.FrameLen())
	}
	if !bytes.Equal(candidate[:len(c.Magic)], c.Magic) {
		return nil, ErrBadMagic
	}
	body := len(c.Magic) + c.PayloadLen
	want := binary.LittleEndian.Uint16(candidate[body:])
	if got := crc.Checksum(candidate[:body]); got != want {
		return nil, fmt.Errorf("%w: computed 0x%04X, frame carries 0x%04X", ErrBadChecksum, got, want)
	}
	p := make(Payload, c.PayloadLen)
	copy(p, candidate[len(c.Magic):body])
	return p, nil
}
