// Package discovery advertises the bridge over mDNS so desktop senders can
// find it without configuration.
//
// Advertisement is best-effort: start failures are logged by the caller and
// never block the data path.
package discovery

import (
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
)

// Service is the mDNS service type the desktop sender browses for.
const Service = "_ambient_light._udp"

// Advertiser registers and withdraws the bridge's mDNS service record.
// Start and Stop are idempotent.
type Advertiser struct {
	instance string
	port     int

	mu     sync.Mutex
	server *zeroconf.Server
}

func NewAdvertiser(instance string, port int) *Advertiser {
	return &Advertiser{instance: instance, port: port}
}

// Start publishes the service record. A no-op if already advertising.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return nil
	}
	server, err := zeroconf.Register(a.instance, Service, "local.", a.port, nil, nil)
	if err != nil {
		return fmt.Errorf("discovery: register %s.%s: %w", a.instance, Service, err)
	}
	a.server = server
	return nil
}

// Stop withdraws the record. A no-op if not advertising.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}
