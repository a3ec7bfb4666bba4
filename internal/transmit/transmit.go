// Package transmit owns the pulse-train peripheral and executes atomic
// sends of an encoded buffer.
//
// On the original hardware the send runs with all core interrupts masked so
// the cooperative scheduler cannot corrupt bit timing. Hosted, true
// interrupt masking is unavailable: the narrowest feasible stand-in is a
// mutex held only around the driver send+wait, accepting the residual
// timing risk. Encoding always happens before the lock is taken.
package transmit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxbridge/luxbridge/internal/observability"
	"github.com/luxbridge/luxbridge/internal/pixel"
)

// ErrSendDegraded is returned by drivers when the peripheral reported a
// transmission warning. The frame went out; callers treat it as
// success-with-caveat.
var ErrSendDegraded = errors.New("transmit: peripheral reported degraded send")

// PulseDriver is the narrow interface over the pulse-train peripheral: a
// blocking send-and-wait of one encoded buffer.
type PulseDriver interface {
	Send(pulses []pixel.Pulse) error
	Close() error
}

// Transmitter serializes access to a single PulseDriver. Ownership of the
// peripheral is exclusive for the duration of each Transmit call.
type Transmitter struct {
	mu     sync.Mutex
	driver PulseDriver
	log    zerolog.Logger
}

func NewTransmitter(driver PulseDriver, log zerolog.Logger) *Transmitter {
	return &Transmitter{driver: driver, log: log}
}

// Transmit sends one encoded pulse buffer. Synchronous and blocking for the
// full physical transmission (~19ms worst case at 500 RGBW LEDs); callers
// budget for the stall. A degraded send is logged and reported as success;
// only failure to start the transmission is a hard error.
func (t *Transmitter) Transmit(pulses []pixel.Pulse) error {
	start := time.Now()

	t.mu.Lock()
	err := t.driver.Send(pulses)
	t.mu.Unlock()

	elapsed := time.Since(start)
	switch {
	case errors.Is(err, ErrSendDegraded):
		t.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("transmission degraded")
		observability.RecordTransmit(elapsed, "degraded")
		return nil
	case err != nil:
		observability.RecordTransmit(elapsed, "failed")
		return fmt.Errorf("transmit: %w", err)
	}
	observability.RecordTransmit(elapsed, "ok")
	return nil
}

// Close releases the underlying peripheral.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.driver.Close()
}
