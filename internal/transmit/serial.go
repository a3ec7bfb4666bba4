package transmit

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/luxbridge/luxbridge/internal/pixel"
)

// Shaper wire framing: one start byte, a big-endian pulse count, then one
// high/low tick pair per pulse. The shaper answers with a single status
// byte once the train has been clocked out.
const (
	shaperStart byte = 0xA5

	shaperStatusOK       byte = 0x00
	shaperStatusDegraded byte = 0x01

	// Shaper tick resolution. 16-bit tick counts at 25ns cover the 200µs
	// latch pulse with headroom.
	shaperTickNs = 25
)

// SerialDriver streams encoded pulse trains to an external UART pulse
// shaper that drives the LED bus.
type SerialDriver struct {
	port serial.Port
}

// OpenSerial opens the shaper device. 8N1 framing at the configured rate.
func OpenSerial(device string, baudRate int) (*SerialDriver, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("transmit: open %s: %w", device, err)
	}
	return &SerialDriver{port: port}, nil
}

// Send writes the full pulse train and blocks on the shaper status byte.
func (d *SerialDriver) Send(pulses []pixel.Pulse) error {
	buf := make([]byte, 0, 5+len(pulses)*4)
	buf = append(buf, shaperStart)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(pulses)))
	for _, p := range pulses {
		buf = binary.BigEndian.AppendUint16(buf, ticks(p.HighNs))
		buf = binary.BigEndian.AppendUint16(buf, ticks(p.LowNs))
	}

	if _, err := d.port.Write(buf); err != nil {
		return fmt.Errorf("transmit: serial write: %w", err)
	}
	if err := d.port.Drain(); err != nil {
		return fmt.Errorf("transmit: serial drain: %w", err)
	}

	var status [1]byte
	if _, err := io.ReadFull(d.port, status[:]); err != nil {
		return fmt.Errorf("transmit: shaper status read: %w", err)
	}
	switch status[0] {
	case shaperStatusOK:
		return nil
	case shaperStatusDegraded:
		return ErrSendDegraded
	default:
		return fmt.Errorf("transmit: shaper rejected send: status 0x%02x", status[0])
	}
}

func (d *SerialDriver) Close() error {
	return d.port.Close()
}

func ticks(ns uint32) uint16 {
	t := ns / shaperTickNs
	if t > 0xFFFF {
		t = 0xFFFF
	}
	return uint16(t)
}
