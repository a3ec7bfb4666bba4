// Package protocol implements the LED bridge wire format.
//
// Datagrams are single UDP payloads with a one-byte header. Color data
// carries a big-endian 16-bit LED offset followed by raw channel bytes.
// The protocol is fire-and-forget: no acknowledgment, no integrity fields.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderKeepAlive byte = 0x01
	HeaderColorData byte = 0x02

	// Reserved headers. Decoded as no-ops so future senders can use them
	// without breaking older bridges.
	HeaderReservedSync byte = 0x03
	HeaderReservedExt  byte = 0x04

	// Minimum length of a color-data datagram: header + 16-bit offset.
	colorDataMinLen = 3
)

var (
	ErrTooShort      = errors.New("protocol: datagram too short")
	ErrUnknownHeader = errors.New("protocol: unknown header")
)

// Kind discriminates decoded operations.
type Kind uint8

const (
	KindKeepAlive Kind = iota
	KindColorWrite
	KindIgnore
)

func (k Kind) String() string {
	switch k {
	case KindKeepAlive:
		return "keep_alive"
	case KindColorWrite:
		return "color_write"
	case KindIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Operation is one decoded datagram. Payload aliases the input buffer and
// must not be retained past the receive loop iteration that produced it.
type Operation struct {
	Kind    Kind
	Offset  uint16
	Payload []byte
}

// Decode classifies a raw datagram.
//
// A bare [0x01] is the connection check and is recognized before the length
// gate; everything else needs at least header plus offset. Reserved headers
// 0x03/0x04 decode successfully as KindIgnore.
func Decode(data []byte) (Operation, error) {
	if len(data) > 0 && data[0] == HeaderKeepAlive {
		return Operation{Kind: KindKeepAlive}, nil
	}
	if len(data) < colorDataMinLen {
		return Operation{}, ErrTooShort
	}
	switch data[0] {
	case HeaderReservedSync, HeaderReservedExt:
		return Operation{Kind: KindIgnore}, nil
	case HeaderColorData:
		return Operation{
			Kind:    KindColorWrite,
			Offset:  binary.BigEndian.Uint16(data[1:3]),
			Payload: data[colorDataMinLen:],
		}, nil
	default:
		return Operation{}, fmt.Errorf("%w: 0x%02x", ErrUnknownHeader, data[0])
	}
}

// AppendKeepAlive appends an encoded keep-alive datagram to dst.
func AppendKeepAlive(dst []byte) []byte {
	return append(dst, HeaderKeepAlive)
}

// AppendColorWrite appends an encoded color-data datagram to dst. The
// payload width (RGB vs RGBW) is the sender's choice; the bridge infers it
// from divisibility.
func AppendColorWrite(dst []byte, offset uint16, payload []byte) []byte {
	dst = append(dst, HeaderColorData)
	dst = binary.BigEndian.AppendUint16(dst, offset)
	return append(dst, payload...)
}
