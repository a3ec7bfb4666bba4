// Package lifecycle sequences network bring-up, service availability, and
// recovery for the bridge.
//
// The machine is pure with respect to its own state: Handle mutates the
// current state and returns commands for collaborators to execute, but
// never calls network APIs itself. Commands are idempotent so teardown
// edges can emit them unconditionally.
package lifecycle

import "github.com/rs/zerolog"

// Machine is the connectivity state machine. Not safe for concurrent use;
// the orchestration task is its sole owner.
type Machine struct {
	state State
	log   zerolog.Logger
}

// NewMachine starts at SystemInit.
func NewMachine(log zerolog.Logger) *Machine {
	return &Machine{state: SystemInit, log: log}
}

// Current returns the live state.
func (m *Machine) Current() State {
	return m.state
}

// Handle applies one event. Unlisted (state, event) pairs leave the state
// unchanged, emit no commands, and are logged; they are never accepted as
// a new state. There is no terminal state: error and timeout states are
// recoverable and the machine runs for the process lifetime.
func (m *Machine) Handle(ev Event) (State, []Command) {
	next, cmds, ok := transition(m.state, ev.Kind)
	if !ok {
		m.log.Debug().
			Stringer("state", m.state).
			Stringer("event", ev.Kind).
			Msg("ignored event with no transition")
		return m.state, nil
	}

	if next != m.state {
		evt := m.log.Info()
		if next.IsError() {
			evt = m.log.Warn()
		}
		if ev.Cause != nil {
			evt = evt.Err(ev.Cause)
		}
		evt.
			Stringer("from", m.state).
			Stringer("to", next).
			Stringer("event", ev.Kind).
			Msg("state transition")
	}
	m.state = next
	return m.state, cmds
}

// reconnectTeardown discards partial DHCP/UDP progress so the next
// successful association re-acquires an address instead of trusting a
// stale lease.
var reconnectTeardown = []Command{
	CmdStopDiscovery,
	CmdStopUDPListener,
	CmdDisarmLivenessTimer,
	CmdStartWiFiConnect,
}

func transition(s State, k EventKind) (State, []Command, bool) {
	// A WiFi drop routes to Reconnecting from everywhere but SystemInit,
	// regardless of what the per-state table would say.
	if k == WiFiDisconnected && s != SystemInit {
		return Reconnecting, reconnectTeardown, true
	}

	switch s {
	case SystemInit:
		if k == SystemStarted {
			return WiFiConnecting, []Command{CmdStartWiFiConnect}, true
		}
	case WiFiConnecting:
		switch k {
		case WiFiConnected:
			return DHCPRequesting, nil, true
		case WiFiConnectionFailed, StateTimeout:
			return WiFiError, nil, true
		}
	case DHCPRequesting:
		switch k {
		case DHCPSuccess:
			return NetworkReady, []Command{CmdStartUDPListener}, true
		case DHCPFailed, StateTimeout:
			return DHCPError, nil, true
		}
	case NetworkReady:
		if k == UDPServerStarted {
			return UDPStarting, nil, true
		}
	case UDPStarting:
		switch k {
		case UDPServerStarted:
			// Entering UDPListening is the sole trigger for discovery
			// advertisement. Its failure never transitions state.
			return UDPListening, []Command{CmdStartDiscovery, CmdArmLivenessTimer}, true
		case UDPServerFailed:
			return UDPError, nil, true
		}
	case UDPListening:
		switch k {
		case ConnectionCheckReceived:
			return Operational, []Command{CmdArmLivenessTimer}, true
		case UDPTimeoutElapsed:
			return UDPTimeout, []Command{CmdDisarmLivenessTimer}, true
		}
	case Operational:
		switch k {
		case ConnectionCheckReceived:
			return Operational, []Command{CmdArmLivenessTimer}, true
		case UDPTimeoutElapsed:
			return UDPTimeout, []Command{CmdDisarmLivenessTimer}, true
		}
	case UDPTimeout:
		switch k {
		case ConnectionCheckReceived:
			return Operational, []Command{CmdArmLivenessTimer}, true
		case RecoveryRequested:
			return UDPStarting, []Command{CmdStartUDPListener}, true
		}
	case Reconnecting:
		if k == WiFiConnected {
			return DHCPRequesting, nil, true
		}
	case WiFiError:
		if k == RecoveryRequested {
			return WiFiConnecting, []Command{CmdStartWiFiConnect}, true
		}
	case DHCPError:
		if k == RecoveryRequested {
			// Association is re-run so a live link attempt exists to report
			// the next lease outcome; a bare re-entry would wait forever.
			return DHCPRequesting, []Command{CmdStartWiFiConnect}, true
		}
	case UDPError:
		if k == RecoveryRequested {
			return UDPStarting, []Command{CmdStartUDPListener}, true
		}
	}
	return s, nil, false
}
