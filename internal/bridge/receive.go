package bridge

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxbridge/luxbridge/internal/assembler"
	"github.com/luxbridge/luxbridge/internal/lifecycle"
	"github.com/luxbridge/luxbridge/internal/observability"
	"github.com/luxbridge/luxbridge/internal/pixel"
	"github.com/luxbridge/luxbridge/internal/protocol"
)

// maxDatagram bounds one read. 1000 RGBW LEDs plus the 3-byte preamble fit
// in a single fragmented datagram well below this.
const maxDatagram = 8192

// receiver is the datagram task: it feeds the decoder, applies color
// writes to the frame buffer, and drives the pipeline into the
// transmitter. Datagrams are processed strictly in arrival order;
// overlapping writes are last-applied-wins.
type receiver struct {
	svc  *Service
	conn *net.UDPConn
	log  zerolog.Logger
	done chan struct{}

	// Debounce state: when a coalescing window is configured, a flush is
	// deferred until the window passes with no new write.
	window  time.Duration
	pending bool
	flushAt time.Time
}

func newReceiver(svc *Service, port int) (*receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("bridge: bind udp port %d: %w", port, err)
	}
	return &receiver{
		svc:    svc,
		conn:   conn,
		log:    svc.log.With().Str("task", "receive").Logger(),
		done:   make(chan struct{}),
		window: svc.cfg.DebounceWindow.Duration,
	}, nil
}

func (r *receiver) run() {
	defer close(r.done)
	buf := make([]byte, maxDatagram)
	for {
		if r.pending {
			_ = r.conn.SetReadDeadline(r.flushAt)
		} else {
			_ = r.conn.SetReadDeadline(time.Time{})
		}

		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				r.flush()
				return
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				// Debounce window elapsed with no new write.
				r.flush()
				continue
			}
			r.log.Warn().Err(err).Msg("udp read failed")
			continue
		}
		r.handle(buf[:n], addr)
	}
}

func (r *receiver) handle(data []byte, addr *net.UDPAddr) {
	op, err := protocol.Decode(data)
	if err != nil {
		reason := "unknown_header"
		if errors.Is(err, protocol.ErrTooShort) {
			reason = "too_short"
		}
		observability.RecordDecodeError(reason)
		r.log.Debug().Err(err).Int("bytes", len(data)).Msg("dropped datagram")
		return
	}
	observability.RecordDatagram(op.Kind.String())

	switch op.Kind {
	case protocol.KindKeepAlive:
		r.svc.Submit(lifecycle.Event{Kind: lifecycle.ConnectionCheckReceived, Bytes: len(data)})
		// Echo the connection check so the sender can confirm liveness.
		if _, err := r.conn.WriteToUDP([]byte{protocol.HeaderKeepAlive}, addr); err != nil {
			r.log.Debug().Err(err).Msg("keep-alive echo failed")
		}
	case protocol.KindIgnore:
		// Reserved header, classified and dropped.
	case protocol.KindColorWrite:
		r.applyColorWrite(op)
	}
}

func (r *receiver) applyColorWrite(op protocol.Operation) {
	if len(op.Payload) == 0 {
		// Some senders emit empty color datagrams as frame markers; the
		// wire format encodes no framing, so they carry nothing here.
		return
	}
	if err := r.svc.buffer.Apply(op.Offset, op.Payload); err != nil {
		// Protocol-level failure: log and drop the packet, never escalate
		// to a state transition. An out-of-range write keeps its in-range
		// prefix, so the buffer may still be dirty.
		reason := "malformed_payload"
		if errors.Is(err, assembler.ErrOutOfRange) {
			reason = "out_of_range"
		}
		observability.RecordAssembleError(reason)
		r.log.Warn().Err(err).Uint16("offset", op.Offset).Msg("color write rejected")
	}

	if !r.svc.buffer.Dirty() {
		return
	}
	if r.window <= 0 {
		r.flush()
		return
	}
	r.pending = true
	r.flushAt = time.Now().Add(r.window)
}

// flush encodes the current frame and hands it to the transmission engine.
// Encoding happens here, outside the transmitter's exclusive section.
func (r *receiver) flush() {
	r.pending = false
	if !r.svc.buffer.Dirty() {
		return
	}
	pulses := pixel.EncodeFrame(r.svc.buffer.Snapshot())
	if err := r.svc.tx.Transmit(pulses); err != nil {
		r.log.Error().Err(err).Msg("frame transmission failed")
	}
	r.svc.buffer.Flush()
}

// close shuts the socket and waits for run to return, so frame buffer
// ownership transfers cleanly to any replacement receiver.
func (r *receiver) close() {
	_ = r.conn.Close()
	<-r.done
}
