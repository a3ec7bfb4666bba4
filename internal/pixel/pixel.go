// Package pixel holds the canonical color model and the pulse encoding for
// SK6812-RGBW strips. Everything here is pure: no state, no I/O.
package pixel

// Color is one LED in canonical r,g,b,w order. Internal buffers always use
// this order; the chip's channel order is applied only at the output
// boundary by HardwareOrder.
type Color struct {
	R, G, B, W uint8
}

// FromRGB builds a Color with a zero white channel. No luminance-based
// white extraction is performed; channel values pass through unmodified.
func FromRGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// HardwareOrder returns the bytes in the order the SK6812-RGBW shifts them
// in: green, red, blue, white.
func HardwareOrder(c Color) [4]byte {
	return [4]byte{c.G, c.R, c.B, c.W}
}

// FromHardwareOrder is the inverse of HardwareOrder.
func FromHardwareOrder(b [4]byte) Color {
	return Color{R: b[1], G: b[0], B: b[2], W: b[3]}
}

// Pulse is one high/low phase pair on the data line, in nanoseconds.
type Pulse struct {
	HighNs uint32
	LowNs  uint32
}

// SK6812 bit timings. A latch is a continuous low of at least 200µs.
const (
	oneHighNs  = 600
	oneLowNs   = 600
	zeroHighNs = 300
	zeroLowNs  = 900

	ResetLowNs = 200_000

	// BitsPerColor is the pulse count one color contributes to a frame.
	BitsPerColor = 4 * 8
)

// EncodeByte expands one byte into its eight bit pulses, MSB first.
func EncodeByte(b uint8) [8]Pulse {
	var pulses [8]Pulse
	for i := 0; i < 8; i++ {
		if b&(0x80>>i) != 0 {
			pulses[i] = Pulse{HighNs: oneHighNs, LowNs: oneLowNs}
		} else {
			pulses[i] = Pulse{HighNs: zeroHighNs, LowNs: zeroLowNs}
		}
	}
	return pulses
}

// EncodeFrame encodes a full buffer for transmission: every color in
// hardware channel order, then one trailing reset pulse to latch the
// update.
func EncodeFrame(colors []Color) []Pulse {
	pulses := make([]Pulse, 0, len(colors)*BitsPerColor+1)
	for _, c := range colors {
		for _, b := range HardwareOrder(c) {
			bits := EncodeByte(b)
			pulses = append(pulses, bits[:]...)
		}
	}
	return append(pulses, Pulse{LowNs: ResetLowNs})
}
