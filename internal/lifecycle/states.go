package lifecycle

import "fmt"

// State is the single connectivity state. Exactly one live instance exists,
// owned by the orchestration task; other tasks only submit events.
type State uint8

const (
	SystemInit State = iota
	WiFiConnecting
	DHCPRequesting
	NetworkReady
	UDPStarting
	UDPListening
	Operational
	UDPTimeout
	WiFiError
	DHCPError
	UDPError
	Reconnecting
)

func (s State) String() string {
	switch s {
	case SystemInit:
		return "system_init"
	case WiFiConnecting:
		return "wifi_connecting"
	case DHCPRequesting:
		return "dhcp_requesting"
	case NetworkReady:
		return "network_ready"
	case UDPStarting:
		return "udp_starting"
	case UDPListening:
		return "udp_listening"
	case Operational:
		return "operational"
	case UDPTimeout:
		return "udp_timeout"
	case WiFiError:
		return "wifi_error"
	case DHCPError:
		return "dhcp_error"
	case UDPError:
		return "udp_error"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// IsError reports whether s is one of the recoverable error/timeout states
// that an automatic RecoveryRequested can leave.
func (s State) IsError() bool {
	switch s {
	case WiFiError, DHCPError, UDPError, UDPTimeout:
		return true
	default:
		return false
	}
}

// EventKind tags the closed event union consumed by the machine.
type EventKind uint8

const (
	SystemStarted EventKind = iota
	WiFiConnected
	WiFiDisconnected
	DHCPSuccess
	DHCPFailed
	UDPServerStarted
	UDPServerFailed
	ConnectionCheckReceived
	UDPTimeoutElapsed
	RecoveryRequested

	// Specializations of the failure events above: a connect attempt
	// failing outright and a per-state acquisition timeout. They feed the
	// same error edges as their parent events.
	WiFiConnectionFailed
	StateTimeout
)

func (k EventKind) String() string {
	switch k {
	case SystemStarted:
		return "system_started"
	case WiFiConnected:
		return "wifi_connected"
	case WiFiDisconnected:
		return "wifi_disconnected"
	case DHCPSuccess:
		return "dhcp_success"
	case DHCPFailed:
		return "dhcp_failed"
	case UDPServerStarted:
		return "udp_server_started"
	case UDPServerFailed:
		return "udp_server_failed"
	case ConnectionCheckReceived:
		return "connection_check_received"
	case UDPTimeoutElapsed:
		return "udp_timeout_elapsed"
	case RecoveryRequested:
		return "recovery_requested"
	case WiFiConnectionFailed:
		return "wifi_connection_failed"
	case StateTimeout:
		return "state_timeout"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event carries at most a small payload: an error cause for failure
// events, the acquired address for DHCPSuccess, or the byte count of the
// datagram that produced a liveness check.
type Event struct {
	Kind  EventKind
	Cause error
	Addr  string
	Bytes int

	// Gen ties a liveness timer fire to the arming that scheduled it, so a
	// fire that raced a re-arm can be discarded as stale.
	Gen int
}

// Command is a side effect the orchestration task executes on behalf of the
// machine. The machine itself never touches network APIs.
type Command uint8

const (
	CmdStartWiFiConnect Command = iota
	CmdStartUDPListener
	CmdStopUDPListener
	CmdStartDiscovery
	CmdStopDiscovery
	CmdArmLivenessTimer
	CmdDisarmLivenessTimer
)

func (c Command) String() string {
	switch c {
	case CmdStartWiFiConnect:
		return "start_wifi_connect"
	case CmdStartUDPListener:
		return "start_udp_listener"
	case CmdStopUDPListener:
		return "stop_udp_listener"
	case CmdStartDiscovery:
		return "start_discovery"
	case CmdStopDiscovery:
		return "stop_discovery"
	case CmdArmLivenessTimer:
		return "arm_liveness_timer"
	case CmdDisarmLivenessTimer:
		return "disarm_liveness_timer"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}
