package bridge

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/luxbridge/luxbridge/internal/config"
	"github.com/luxbridge/luxbridge/internal/lifecycle"
	"github.com/luxbridge/luxbridge/internal/pixel"
	"github.com/luxbridge/luxbridge/internal/protocol"
	"github.com/luxbridge/luxbridge/internal/testutil/testlog"
	"github.com/luxbridge/luxbridge/internal/transmit"
)

// fakeLink acquires the network instantly: Connect reports association and
// an address in one shot. The first dhcpFailures attempts report a failed
// lease instead.
type fakeLink struct {
	submit       func(lifecycle.Event)
	dhcpFailures int
	attempts     int
	closed       bool
}

func (l *fakeLink) Connect() {
	l.attempts++
	l.submit(lifecycle.Event{Kind: lifecycle.WiFiConnected})
	if l.attempts <= l.dhcpFailures {
		l.submit(lifecycle.Event{Kind: lifecycle.DHCPFailed})
		return
	}
	l.submit(lifecycle.Event{Kind: lifecycle.DHCPSuccess, Addr: "192.0.2.10"})
}

func (l *fakeLink) Close() error {
	l.closed = true
	return nil
}

func newTestService(t *testing.T, mutate func(*config.Config)) (*Service, *transmit.MockDriver, *fakeLink) {
	t.Helper()
	testlog.Start(t)

	cfg := config.Default()
	cfg.ListenPort = 0 // ephemeral
	cfg.MaxLEDs = 8
	cfg.LivenessInterval = config.Duration{Duration: 60 * time.Millisecond}
	cfg.RecoveryDelay = config.Duration{Duration: time.Minute}
	cfg.Discovery.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	driver := transmit.NewMockDriver()
	link := &fakeLink{}
	svc, err := NewService(cfg, driver, link, zerolog.Nop())
	require.NoError(t, err)
	link.submit = svc.Submit
	return svc, driver, link
}

// pumpUntil plays orchestrator: it dispatches queued events on the test
// goroutine until the machine reaches want. Running dispatch here keeps
// every Service field access on a single goroutine.
func pumpUntil(t *testing.T, svc *Service, want lifecycle.State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if svc.machine.Current() == want {
			return
		}
		select {
		case ev := <-svc.events:
			svc.dispatch(ev)
		case <-deadline:
			t.Fatalf("waiting for %v, stuck at %v", want, svc.machine.Current())
		}
	}
}

// bringUp walks the service from cold boot to UDPListening and returns a
// client socket dialed at the bound port.
func bringUp(t *testing.T, svc *Service) *net.UDPConn {
	t.Helper()
	svc.Submit(lifecycle.Event{Kind: lifecycle.SystemStarted})
	pumpUntil(t, svc, lifecycle.UDPListening)

	port := svc.listener.conn.LocalAddr().(*net.UDPAddr).Port
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBringUpReachesListening(t *testing.T) {
	svc, _, link := newTestService(t, nil)
	bringUp(t, svc)

	state, operational := svc.Status()
	require.Equal(t, "udp_listening", state)
	require.False(t, operational)

	svc.shutdown()
	require.True(t, link.closed)
}

// Keep-alive promotes to Operational and is echoed; silence demotes to
// UDPTimeout; the next keep-alive restores service.
func TestKeepAliveLivenessCycle(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	conn := bringUp(t, svc)
	defer svc.shutdown()

	_, err := conn.Write(protocol.AppendKeepAlive(nil))
	require.NoError(t, err)
	pumpUntil(t, svc, lifecycle.Operational)

	_, operational := svc.Status()
	require.True(t, operational)

	// The bridge echoes the connection check back to the sender.
	echo := make([]byte, 4)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(echo)
	require.NoError(t, err)
	require.Equal(t, []byte{protocol.HeaderKeepAlive}, echo[:n])

	// No traffic for a liveness interval.
	pumpUntil(t, svc, lifecycle.UDPTimeout)

	_, err = conn.Write(protocol.AppendKeepAlive(nil))
	require.NoError(t, err)
	pumpUntil(t, svc, lifecycle.Operational)
}

func waitForFrames(t *testing.T, driver *transmit.MockDriver, want int) [][]pixel.Pulse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		frames := driver.Frames()
		if len(frames) >= want {
			return frames
		}
		if time.Now().After(deadline) {
			t.Fatalf("frames: got %d want %d", len(frames), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestColorWriteReachesDriver(t *testing.T) {
	svc, driver, _ := newTestService(t, nil)
	conn := bringUp(t, svc)
	defer svc.shutdown()

	// A malformed payload first: it must not produce a frame.
	_, err := conn.Write(protocol.AppendColorWrite(nil, 0, make([]byte, 5)))
	require.NoError(t, err)

	// Then red at position 3.
	_, err = conn.Write(protocol.AppendColorWrite(nil, 3, []byte{255, 0, 0}))
	require.NoError(t, err)

	frames := waitForFrames(t, driver, 1)
	require.Len(t, frames, 1)
	pulses := frames[0]

	// Eight LEDs at 32 bits each, plus the trailing reset pulse.
	require.Len(t, pulses, 8*pixel.BitsPerColor+1)
	require.Equal(t, uint32(pixel.ResetLowNs), pulses[len(pulses)-1].LowNs)

	// LED 3 leaves in G,R,B,W order: green byte all zero bits (300ns
	// high), red byte all one bits (600ns high).
	base := 3 * pixel.BitsPerColor
	require.Equal(t, uint32(300), pulses[base].HighNs)
	require.Equal(t, uint32(600), pulses[base+8].HighNs)

	// LED 0 was never written and stays black.
	require.Equal(t, uint32(300), pulses[0].HighNs)
}

func TestBindFailureRecovers(t *testing.T) {
	// Occupy a port so the first bind fails.
	blocker, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := blocker.LocalAddr().(*net.UDPAddr).Port

	svc, _, _ := newTestService(t, func(c *config.Config) {
		c.ListenPort = port
	})
	defer svc.shutdown()

	svc.Submit(lifecycle.Event{Kind: lifecycle.SystemStarted})
	pumpUntil(t, svc, lifecycle.UDPError)

	// Free the port and retry.
	require.NoError(t, blocker.Close())
	svc.Submit(lifecycle.Event{Kind: lifecycle.RecoveryRequested})
	pumpUntil(t, svc, lifecycle.UDPListening)
	require.NotNil(t, svc.listener)
}

// A failed lease parks the bridge in DHCPError; the automatic recovery
// re-runs association and the retried lease completes bring-up.
func TestDHCPFailureRecovers(t *testing.T) {
	svc, _, link := newTestService(t, func(c *config.Config) {
		c.RecoveryDelay = config.Duration{Duration: 30 * time.Millisecond}
	})
	link.dhcpFailures = 1
	defer svc.shutdown()

	svc.Submit(lifecycle.Event{Kind: lifecycle.SystemStarted})
	pumpUntil(t, svc, lifecycle.DHCPError)

	pumpUntil(t, svc, lifecycle.UDPListening)
	require.Equal(t, 2, link.attempts)
}

// A liveness fire that raced the keep-alive re-arming it must not demote
// the restored state; only the current timer generation counts.
func TestStaleLivenessFireIsDiscarded(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	conn := bringUp(t, svc)
	defer svc.shutdown()

	_, err := conn.Write(protocol.AppendKeepAlive(nil))
	require.NoError(t, err)
	pumpUntil(t, svc, lifecycle.Operational)

	svc.dispatch(lifecycle.Event{Kind: lifecycle.UDPTimeoutElapsed, Gen: svc.livenessGen - 1})
	require.Equal(t, lifecycle.Operational, svc.machine.Current())

	svc.dispatch(lifecycle.Event{Kind: lifecycle.UDPTimeoutElapsed, Gen: svc.livenessGen})
	require.Equal(t, lifecycle.UDPTimeout, svc.machine.Current())
}

func TestWiFiDropReconnects(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	bringUp(t, svc)
	defer svc.shutdown()

	svc.Submit(lifecycle.Event{Kind: lifecycle.WiFiDisconnected})
	pumpUntil(t, svc, lifecycle.Reconnecting)
	require.Nil(t, svc.listener)

	// The fake link re-acquires immediately and the bridge comes back.
	pumpUntil(t, svc, lifecycle.UDPListening)
	require.NotNil(t, svc.listener)
}
