package bridge

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxbridge/luxbridge/internal/lifecycle"
)

// Link abstracts the WiFi manager and DHCP client collaborators. Connect
// begins association and address acquisition; implementations report
// progress by submitting lifecycle events, never by calling back into the
// state machine directly.
type Link interface {
	Connect()
	Close() error
}

// Host link timing. Association and lease acquisition are owned by the
// operating system here; these bound how long the bridge waits before
// reporting failure, matching the firmware's acquisition timeouts.
const (
	linkPollInterval   = 2 * time.Second
	linkProbeInterval  = 500 * time.Millisecond
	linkConnectTimeout = 10 * time.Second
	linkDHCPTimeout    = 10 * time.Second
)

// HostLink watches a host network interface and synthesizes the
// WiFi/DHCP event stream from its observable state: carrier up maps to
// WiFiConnected, a global unicast address maps to DHCPSuccess, and loss of
// either maps to WiFiDisconnected.
type HostLink struct {
	ifaceName string
	sink      func(lifecycle.Event)
	log       zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
}

func NewHostLink(ifaceName string, sink func(lifecycle.Event), log zerolog.Logger) *HostLink {
	return &HostLink{
		ifaceName: ifaceName,
		sink:      sink,
		log:       log.With().Str("task", "link").Logger(),
	}
}

// Connect starts one association attempt followed by continuous
// monitoring. A Connect while a previous attempt is live replaces it.
func (l *HostLink) Connect() {
	l.mu.Lock()
	if l.stop != nil {
		close(l.stop)
	}
	stop := make(chan struct{})
	l.stop = stop
	l.mu.Unlock()

	go l.acquire(stop)
}

func (l *HostLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	return nil
}

func (l *HostLink) acquire(stop chan struct{}) {
	if !l.waitFor(stop, linkConnectTimeout, func(up, _ bool) bool { return up }) {
		l.sink(lifecycle.Event{Kind: lifecycle.WiFiConnectionFailed})
		return
	}
	l.sink(lifecycle.Event{Kind: lifecycle.WiFiConnected})

	if !l.waitFor(stop, linkDHCPTimeout, func(_, addressed bool) bool { return addressed }) {
		l.sink(lifecycle.Event{Kind: lifecycle.DHCPFailed})
		return
	}
	_, addr := l.probe()
	l.log.Info().Str("addr", addr).Msg("address acquired")
	l.sink(lifecycle.Event{Kind: lifecycle.DHCPSuccess, Addr: addr})

	l.monitor(stop)
}

// waitFor polls the interface until cond holds or the timeout passes.
func (l *HostLink) waitFor(stop chan struct{}, timeout time.Duration, cond func(up, addressed bool) bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(linkProbeInterval)
	defer ticker.Stop()
	for {
		up, addr := l.probe()
		if cond(up, addr != "") {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-stop:
			return false
		case <-ticker.C:
		}
	}
}

// monitor emits WiFiDisconnected once the carrier or the address is lost,
// then exits; recovery re-runs Connect.
func (l *HostLink) monitor(stop chan struct{}) {
	ticker := time.NewTicker(linkPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			up, addr := l.probe()
			if !up || addr == "" {
				l.log.Warn().Bool("up", up).Msg("link lost")
				l.sink(lifecycle.Event{Kind: lifecycle.WiFiDisconnected})
				return
			}
		}
	}
}

// probe reports whether the watched interface is up and its first global
// unicast IPv4 address.
func (l *HostLink) probe() (bool, string) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, ""
	}
	carrier := false
	for _, iface := range ifaces {
		if l.ifaceName != "" && iface.Name != l.ifaceName {
			continue
		}
		if l.ifaceName == "" && iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		carrier = true
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil || !ip.IsGlobalUnicast() {
				continue
			}
			return true, ip.String()
		}
	}
	return carrier, ""
}
