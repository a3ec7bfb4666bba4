// Package assembler accumulates offset-addressed color writes from inbound
// datagrams into a fixed-capacity frame buffer.
//
// The buffer is a write-absolute surface, not a transaction: every write is
// idempotent at its position, later packets overwrite earlier ones at
// overlapping offsets, and a partial out-of-range write keeps its in-range
// prefix.
package assembler

import (
	"errors"
	"fmt"

	"github.com/luxbridge/luxbridge/internal/pixel"
)

var (
	ErrMalformedPayload = errors.New("assembler: payload length not a multiple of 3 or 4")
	ErrOutOfRange       = errors.New("assembler: write exceeds buffer capacity")
	ErrBadCapacity      = errors.New("assembler: capacity must be positive")
)

// FrameBuffer is the single LED frame under assembly. Positions never
// written stay black. Owned by the receive task; not safe for concurrent
// use.
type FrameBuffer struct {
	colors []pixel.Color
	dirty  bool
}

// NewFrameBuffer allocates a buffer for capacity LEDs.
func NewFrameBuffer(capacity int) (*FrameBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadCapacity, capacity)
	}
	return &FrameBuffer{colors: make([]pixel.Color, capacity)}, nil
}

// Capacity returns the configured maximum LED count.
func (f *FrameBuffer) Capacity() int {
	return len(f.colors)
}

// Dirty reports whether any write landed since the last Flush.
func (f *FrameBuffer) Dirty() bool {
	return f.dirty
}

// Apply writes one datagram's color records starting at the LED offset.
//
// Record width is inferred from the payload length: a multiple of 4 is
// RGBW (the tie-break when the length divides both), a multiple of 3 is
// RGB with a synthesized zero white channel. Neither divisor matching
// fails with ErrMalformedPayload and leaves the buffer untouched.
//
// Records past capacity fail with ErrOutOfRange after the in-range prefix
// has been applied; the caller logs, nothing is rolled back.
func (f *FrameBuffer) Apply(offset uint16, payload []byte) error {
	var width int
	switch {
	case len(payload) > 0 && len(payload)%4 == 0:
		width = 4
	case len(payload) > 0 && len(payload)%3 == 0:
		width = 3
	default:
		return fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}

	records := len(payload) / width
	for i := 0; i < records; i++ {
		idx := int(offset) + i
		if idx >= len(f.colors) {
			return fmt.Errorf("%w: offset=%d records=%d capacity=%d",
				ErrOutOfRange, offset, records, len(f.colors))
		}
		rec := payload[i*width:]
		if width == 4 {
			f.colors[idx] = pixel.Color{R: rec[0], G: rec[1], B: rec[2], W: rec[3]}
		} else {
			f.colors[idx] = pixel.FromRGB(rec[0], rec[1], rec[2])
		}
		f.dirty = true
	}
	return nil
}

// Snapshot hands the current frame to the color pipeline. The returned
// slice aliases the buffer and is only valid until the next Apply; the
// receive task encodes it before touching the buffer again.
func (f *FrameBuffer) Snapshot() []pixel.Color {
	return f.colors
}

// Flush clears the completion flag after the frame has been handed to the
// transmission engine.
func (f *FrameBuffer) Flush() {
	f.dirty = false
}
