package transmit

import (
	"sync"

	"github.com/luxbridge/luxbridge/internal/pixel"
)

// MockDriver records sent pulse trains. It backs the "mock" driver kind so
// the daemon can run without hardware, and doubles as the test driver.
type MockDriver struct {
	mu     sync.Mutex
	frames [][]pixel.Pulse

	// SendErr, when set, is returned by every Send.
	SendErr error
}

func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

func (d *MockDriver) Send(pulses []pixel.Pulse) error {
	if d.SendErr != nil {
		return d.SendErr
	}
	frame := make([]pixel.Pulse, len(pulses))
	copy(frame, pulses)
	d.mu.Lock()
	d.frames = append(d.frames, frame)
	d.mu.Unlock()
	return nil
}

func (d *MockDriver) Close() error {
	return nil
}

// Frames returns every pulse train sent so far.
func (d *MockDriver) Frames() [][]pixel.Pulse {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]pixel.Pulse, len(d.frames))
	copy(out, d.frames)
	return out
}
