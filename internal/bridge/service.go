// Package bridge wires the decoder, assembler, color pipeline, transmitter,
// and connectivity state machine into the running daemon.
//
// Concurrency model: the orchestration loop is the sole owner of the state
// machine; every other task (datagram receive, link monitor, timers)
// communicates with it by submitting events over a bounded channel, never
// by direct mutation. The frame buffer and transmitter are touched only
// from the receive task, so no cross-task contention exists on them.
package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxbridge/luxbridge/internal/assembler"
	"github.com/luxbridge/luxbridge/internal/config"
	"github.com/luxbridge/luxbridge/internal/discovery"
	"github.com/luxbridge/luxbridge/internal/lifecycle"
	"github.com/luxbridge/luxbridge/internal/observability"
	"github.com/luxbridge/luxbridge/internal/transmit"
)

const eventQueueDepth = 64

type statusView struct {
	state       string
	operational bool
}

// Service is the bridge daemon runtime.
type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	machine *lifecycle.Machine
	events  chan lifecycle.Event

	buffer *assembler.FrameBuffer
	tx     *transmit.Transmitter
	adv    *discovery.Advertiser
	link   Link

	listener *receiver

	livenessTimer *time.Timer
	livenessGen   int
	recoveryTimer *time.Timer

	status atomic.Value // statusView
}

// NewService assembles the runtime from configuration. The driver and link
// are injected so tests and the mock driver kind share one code path.
func NewService(cfg config.Config, driver transmit.PulseDriver, link Link, log zerolog.Logger) (*Service, error) {
	buffer, err := assembler.NewFrameBuffer(cfg.MaxLEDs)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg,
		log:     log,
		machine: lifecycle.NewMachine(log),
		events:  make(chan lifecycle.Event, eventQueueDepth),
		buffer:  buffer,
		tx:      transmit.NewTransmitter(driver, log),
		link:    link,
	}
	if cfg.Discovery.Enabled {
		s.adv = discovery.NewAdvertiser(cfg.Discovery.Instance, cfg.ListenPort)
	}
	s.status.Store(statusView{state: lifecycle.SystemInit.String()})
	return s, nil
}

// Submit queues an event for the orchestration loop. Events are dropped
// with a warning when the queue is saturated; producers never block on a
// stalled orchestrator.
func (s *Service) Submit(ev lifecycle.Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Stringer("event", ev.Kind).Msg("event queue full, dropping event")
	}
}

// Status reports the current connectivity state for the ops surface.
func (s *Service) Status() (string, bool) {
	v := s.status.Load().(statusView)
	return v.state, v.operational
}

// Run is the orchestration loop. It blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().
		Int("port", s.cfg.ListenPort).
		Int("max_leds", s.cfg.MaxLEDs).
		Dur("liveness_interval", s.cfg.LivenessInterval.Duration).
		Msg("bridge starting")

	s.Submit(lifecycle.Event{Kind: lifecycle.SystemStarted})

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}

func (s *Service) dispatch(ev lifecycle.Event) {
	// A timer fire that raced the keep-alive re-arming it is still queued
	// with the old generation; dropping it keeps a freshly restored state
	// from flapping back to UDPTimeout.
	if ev.Kind == lifecycle.UDPTimeoutElapsed && ev.Gen != s.livenessGen {
		return
	}

	prev := s.machine.Current()
	state, cmds := s.machine.Handle(ev)
	if state != prev {
		observability.RecordStateTransition(prev.String(), state.String(), int(state))
		s.status.Store(statusView{
			state:       state.String(),
			operational: state == lifecycle.Operational,
		})
		s.adjustRecoveryTimer(prev, state)
	}
	for _, cmd := range cmds {
		s.execute(cmd)
	}
}

func (s *Service) execute(cmd lifecycle.Command) {
	switch cmd {
	case lifecycle.CmdStartWiFiConnect:
		s.link.Connect()
	case lifecycle.CmdStartUDPListener:
		s.startListener()
	case lifecycle.CmdStopUDPListener:
		s.stopListener()
	case lifecycle.CmdStartDiscovery:
		s.startDiscovery()
	case lifecycle.CmdStopDiscovery:
		s.stopDiscovery()
	case lifecycle.CmdArmLivenessTimer:
		s.armLivenessTimer()
	case lifecycle.CmdDisarmLivenessTimer:
		s.disarmLivenessTimer()
	default:
		s.log.Error().Stringer("command", cmd).Msg("unknown command")
	}
}

// startListener brings the UDP server up in two phases, mirroring the
// bring-up edges: an initiation ack moves NetworkReady to UDPStarting, the
// bound socket's ack moves UDPStarting to UDPListening. The initiation ack
// is skipped when recovery re-enters UDPStarting directly.
func (s *Service) startListener() {
	if s.machine.Current() == lifecycle.NetworkReady {
		s.Submit(lifecycle.Event{Kind: lifecycle.UDPServerStarted})
	}

	s.stopListener()
	r, err := newReceiver(s, s.cfg.ListenPort)
	if err != nil {
		s.log.Error().Err(err).Int("port", s.cfg.ListenPort).Msg("udp listener start failed")
		s.Submit(lifecycle.Event{Kind: lifecycle.UDPServerFailed, Cause: err})
		return
	}
	s.listener = r
	go r.run()
	s.log.Info().Int("port", s.cfg.ListenPort).Msg("udp listener started")
	s.Submit(lifecycle.Event{Kind: lifecycle.UDPServerStarted})
}

func (s *Service) stopListener() {
	if s.listener == nil {
		return
	}
	s.listener.close()
	s.listener = nil
}

func (s *Service) startDiscovery() {
	if s.adv == nil {
		return
	}
	// Best-effort: a failed advertisement never blocks service start.
	if err := s.adv.Start(); err != nil {
		s.log.Warn().Err(err).Msg("discovery advertisement failed")
		return
	}
	s.log.Info().
		Str("instance", s.cfg.Discovery.Instance).
		Str("service", discovery.Service).
		Msg("discovery advertisement started")
}

func (s *Service) stopDiscovery() {
	if s.adv == nil {
		return
	}
	s.adv.Stop()
}

// armLivenessTimer schedules the next silence check. Each arming gets a new
// generation; the fire carries it so dispatch can discard stale ones.
func (s *Service) armLivenessTimer() {
	if s.livenessTimer != nil {
		s.livenessTimer.Stop()
	}
	s.livenessGen++
	gen := s.livenessGen
	s.livenessTimer = time.AfterFunc(s.cfg.LivenessInterval.Duration, func() {
		s.Submit(lifecycle.Event{Kind: lifecycle.UDPTimeoutElapsed, Gen: gen})
	})
}

func (s *Service) disarmLivenessTimer() {
	if s.livenessTimer != nil {
		s.livenessTimer.Stop()
	}
}

// adjustRecoveryTimer arms an automatic RecoveryRequested when the machine
// settles in a recoverable error state, and cancels it when any transition
// leaves one. A keep-alive restoring Operational therefore beats the
// recovery attempt.
func (s *Service) adjustRecoveryTimer(prev, next lifecycle.State) {
	if next.IsError() {
		delay := s.cfg.RecoveryDelay.Duration
		if s.recoveryTimer == nil {
			s.recoveryTimer = time.AfterFunc(delay, func() {
				s.Submit(lifecycle.Event{Kind: lifecycle.RecoveryRequested})
			})
			return
		}
		s.recoveryTimer.Stop()
		s.recoveryTimer.Reset(delay)
		return
	}
	if prev.IsError() && s.recoveryTimer != nil {
		s.recoveryTimer.Stop()
	}
}

func (s *Service) shutdown() {
	s.disarmLivenessTimer()
	if s.recoveryTimer != nil {
		s.recoveryTimer.Stop()
	}
	s.stopListener()
	s.stopDiscovery()
	if err := s.link.Close(); err != nil {
		s.log.Warn().Err(err).Msg("link close failed")
	}
	if err := s.tx.Close(); err != nil {
		s.log.Warn().Err(err).Msg("driver close failed")
	}
	s.log.Info().Msg("bridge stopped")
}

// DriverFromConfig opens the configured pulse driver.
func DriverFromConfig(cfg config.DriverConfig) (transmit.PulseDriver, error) {
	switch cfg.Kind {
	case "mock":
		return transmit.NewMockDriver(), nil
	case "serial":
		return transmit.OpenSerial(cfg.Device, cfg.BaudRate)
	default:
		return nil, fmt.Errorf("bridge: unknown driver kind %q", cfg.Kind)
	}
}
