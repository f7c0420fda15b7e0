package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/looplab/fsm"

	"github.com/openesl/eslgate/internal/infrastructure/config"
	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
	"github.com/openesl/eslgate/internal/label"
)

// Connection states for the broker link. Exposed verbatim in API
// responses as connectionStatus.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateError        = "error"
	StateOffline      = "offline"
)

// FSM event names.
const (
	eventStart         = "start"
	eventSettle        = "settle"
	eventBrokerUp      = "broker_up"
	eventBrokerError   = "broker_error"
	eventBrokerOffline = "broker_offline"
)

// Snapshot is a point-in-time view of the supervisor, taken atomically so
// mode and connection status are never observed mid-transition.
type Snapshot struct {
	Mode             string `json:"mode"`
	ConnectionStatus string `json:"connectionStatus"`
}

// statusReport is the payload real labels publish on their status topic.
type statusReport struct {
	Battery *float64 `json:"battery"`
}

// Supervisor owns the gateway's transport: which mode it runs in
// (simulation or production), the broker session lifecycle, and the
// battery simulator that stands in for real hardware.
//
// State transitions are driven through a finite state machine so illegal
// jumps (e.g. connected from disconnected without passing through
// connecting) are structurally impossible.
type Supervisor struct {
	registry *label.Registry
	sim      *Simulator
	dial     Dialer
	clock    clock.Clock
	logger   Logger

	mqttCfg     config.MQTTConfig
	settleDelay time.Duration

	mu     sync.RWMutex
	mode   string
	fsm    *fsm.FSM
	broker BrokerConn

	// settleGen invalidates a pending simulated settle timer when the
	// mode changes underneath it.
	settleGen int
}

// SupervisorConfig bundles the dependencies for NewSupervisor.
type SupervisorConfig struct {
	Registry  *label.Registry
	Simulator *Simulator
	Dialer    Dialer
	Clock     clock.Clock
	Logger    Logger
	MQTT      config.MQTTConfig
	Gateway   config.GatewayConfig

	// SettleDelay is how long the simulated transport takes to connect.
	SettleDelay time.Duration
}

// NewSupervisor creates a connection supervisor in the disconnected state.
// Call Start to bring the configured transport up.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	s := &Supervisor{
		registry:    cfg.Registry,
		sim:         cfg.Simulator,
		dial:        cfg.Dialer,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		mqttCfg:     cfg.MQTT,
		settleDelay: cfg.SettleDelay,
		mode:        cfg.Gateway.Mode,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}

	s.fsm = fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: eventStart, Src: []string{StateDisconnected, StateConnected, StateError, StateOffline}, Dst: StateConnecting},
			{Name: eventSettle, Src: []string{StateConnecting}, Dst: StateConnected},
			{Name: eventBrokerUp, Src: []string{StateConnecting, StateError, StateOffline}, Dst: StateConnected},
			{Name: eventBrokerError, Src: []string{StateConnecting, StateConnected, StateOffline}, Dst: StateError},
			{Name: eventBrokerOffline, Src: []string{StateConnecting, StateConnected}, Dst: StateOffline},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Info("connection state changed", "from", e.Src, "to", e.Dst)
			},
		},
	)

	return s
}

// Start brings up the transport for the configured mode.
//
// In production mode a failed broker dial is not fatal: the gateway logs
// the failure and falls back to simulation so label operations keep
// working against the in-memory fleet.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.RLock()
	mode := s.mode
	s.mu.RUnlock()

	if mode == config.ModeProduction {
		if err := s.connectProduction(ctx); err != nil {
			s.logger.Warn("broker unreachable at startup, falling back to simulation", "error", err)
			s.mu.Lock()
			s.mode = config.ModeSimulation
			s.mu.Unlock()
			s.connectSimulated(ctx)
			return nil
		}
		return nil
	}

	s.connectSimulated(ctx)
	return nil
}

// Stop shuts down the simulator and any live broker session.
func (s *Supervisor) Stop() {
	s.sim.Stop()

	s.mu.Lock()
	broker := s.broker
	s.broker = nil
	s.settleGen++
	s.mu.Unlock()

	if broker != nil {
		if err := broker.Unsubscribe(mqtt.Topics{}.AllLabelStatuses()); err != nil {
			s.logger.Warn("unsubscribing from label status reports", "error", err)
		}
		if err := broker.Close(); err != nil {
			s.logger.Warn("closing broker session", "error", err)
		}
	}
}

// Snapshot returns the current mode and connection status as one
// consistent pair.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Mode:             s.mode,
		ConnectionStatus: s.fsm.Current(),
	}
}

// Mode returns the current transport mode.
func (s *Supervisor) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Broker returns the live broker session, or nil when none exists.
func (s *Supervisor) Broker() BrokerConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broker
}

// transportPath selects how a publish issued right now is delivered.
type transportPath int

const (
	// pathFallback is the delayed simulated send used whenever the link
	// is not connected.
	pathFallback transportPath = iota

	// pathInline applies the update immediately. A connected simulated
	// link has no latency to model.
	pathInline

	// pathBroker dispatches over the live MQTT session.
	pathBroker
)

// publishPath picks the delivery path for a publish. The decision is
// taken under one lock so a mode switch or state transition cannot
// interleave with it; a publish already past this check keeps the path
// it was given.
func (s *Supervisor) publishPath() transportPath {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fsm.Current() != StateConnected {
		return pathFallback
	}
	if s.mode == config.ModeSimulation {
		return pathInline
	}
	if s.broker == nil || !s.broker.IsConnected() {
		return pathFallback
	}
	return pathBroker
}

// SetMode switches the transport mode at runtime.
//
// Switching to production dials the broker synchronously; if the dial
// fails the gateway stays in simulation and the dial error is returned
// alongside the effective mode. Switching to simulation keeps an
// existing broker session alive so switching back is cheap.
//
// Returns:
//   - string: The mode actually in effect after the switch
//   - error: The dial error when a production switch fell back
func (s *Supervisor) SetMode(ctx context.Context, mode string) (string, error) {
	if mode != config.ModeSimulation && mode != config.ModeProduction {
		return s.Mode(), fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	if s.Mode() == mode {
		return mode, nil
	}

	if mode == config.ModeProduction {
		if err := s.connectProduction(ctx); err != nil {
			s.connectSimulated(ctx)
			return config.ModeSimulation, err
		}
		s.mu.Lock()
		s.mode = config.ModeProduction
		s.mu.Unlock()
		s.sim.Stop()
		return config.ModeProduction, nil
	}

	s.mu.Lock()
	s.mode = config.ModeSimulation
	s.mu.Unlock()
	s.connectSimulated(ctx)
	return config.ModeSimulation, nil
}

// connectSimulated runs the simulated connection sequence: the state
// parks in connecting for the settle delay, then flips to connected and
// the battery simulator starts.
func (s *Supervisor) connectSimulated(ctx context.Context) {
	s.mu.Lock()
	if err := s.fsm.Event(ctx, eventStart); err != nil {
		s.logger.Warn("simulated connect transition rejected", "error", err)
		s.mu.Unlock()
		return
	}
	s.settleGen++
	gen := s.settleGen
	s.mu.Unlock()

	s.clock.AfterFunc(s.settleDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.settleGen != gen {
			// Mode changed while the link was settling
			return
		}
		if err := s.fsm.Event(context.Background(), eventSettle); err != nil {
			s.logger.Warn("simulated settle transition rejected", "error", err)
			return
		}
		s.sim.Start()
	})
}

// connectProduction establishes (or reuses) a broker session.
// The state machine moves through connecting and lands in connected on
// success or error on a failed dial.
func (s *Supervisor) connectProduction(ctx context.Context) error {
	s.mu.Lock()
	s.settleGen++ // Cancel any pending simulated settle

	if s.broker != nil && s.broker.IsConnected() {
		// Session kept alive from an earlier production stint
		if s.fsm.Current() != StateConnected {
			if err := s.fsm.Event(ctx, eventBrokerUp); err != nil {
				s.logger.Warn("broker reuse transition rejected", "error", err)
			}
		}
		s.mu.Unlock()
		return nil
	}

	if err := s.fsm.Event(ctx, eventStart); err != nil {
		s.logger.Warn("production connect transition rejected", "error", err)
	}
	s.mu.Unlock()

	conn, err := s.dial(s.mqttCfg)
	if err != nil {
		s.mu.Lock()
		if ferr := s.fsm.Event(ctx, eventBrokerError); ferr != nil {
			s.logger.Warn("broker error transition rejected", "error", ferr)
		}
		s.mu.Unlock()
		return err
	}

	conn.SetOnConnect(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fsm.Current() != StateConnected {
			if err := s.fsm.Event(context.Background(), eventBrokerUp); err != nil {
				s.logger.Warn("broker up transition rejected", "error", err)
			}
		}
	})
	conn.SetOnDisconnect(func(err error) {
		s.logger.Warn("broker connection lost", "error", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		if ferr := s.fsm.Event(context.Background(), eventBrokerOffline); ferr != nil {
			s.logger.Warn("broker offline transition rejected", "error", ferr)
		}
	})

	if err := conn.Subscribe(mqtt.Topics{}.AllLabelStatuses(), byte(s.mqttCfg.QoS), s.handleStatusReport); err != nil {
		s.logger.Warn("subscribing to label status reports", "error", err)
	}

	s.mu.Lock()
	s.broker = conn
	if s.fsm.Current() != StateConnected {
		if err := s.fsm.Event(ctx, eventBrokerUp); err != nil {
			s.logger.Warn("broker up transition rejected", "error", err)
		}
	}
	s.mu.Unlock()

	return nil
}

// handleStatusReport applies a battery report from a real label to the
// registry.
func (s *Supervisor) handleStatusReport(topic string, payload []byte) error {
	id := mqtt.LabelIDFromTopic(topic)
	if id == "" {
		return fmt.Errorf("unrecognised status topic %q", topic)
	}

	var report statusReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding status report from %s: %w", id, err)
	}
	if report.Battery == nil {
		return fmt.Errorf("status report from %s has no battery level", id)
	}

	s.registry.Observe(id, *report.Battery, s.clock.Now())
	return nil
}
