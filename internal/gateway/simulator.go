package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
	"github.com/openesl/eslgate/internal/label"
)

// Simulator stands in for real label hardware: on every tick it drains
// each label's battery by a random amount, refreshes its freshness and
// reclassifies its status.
//
// Tick results are fed to the telemetry sink and, when a broker session
// happens to be live, mirrored onto the per-label status topics so the
// simulated fleet looks real to outside subscribers. Both are strictly
// best-effort.
//
// Start and Stop are idempotent and safe to call from any goroutine.
type Simulator struct {
	registry  *label.Registry
	clock     clock.Clock
	interval  time.Duration
	maxDecay  float64
	rand      func() float64
	telemetry Telemetry
	broker    func() BrokerConn
	logger    Logger

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

// SimulatorConfig bundles the dependencies for NewSimulator.
type SimulatorConfig struct {
	Registry *label.Registry
	Clock    clock.Clock
	Logger   Logger

	// Interval is the tick period.
	Interval time.Duration

	// MaxDecay is the maximum battery units drained per label per tick.
	// The actual drain is uniformly random in [0, MaxDecay).
	MaxDecay float64

	// Rand yields values in [0, 1). Defaults to math/rand; injected in
	// tests for deterministic decay.
	Rand func() float64

	// Telemetry receives battery levels and statuses per tick. Optional.
	Telemetry Telemetry

	// Broker returns the current broker session for best-effort status
	// mirroring. Optional; may return nil.
	Broker func() BrokerConn
}

// NewSimulator creates a stopped simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	s := &Simulator{
		registry:  cfg.Registry,
		clock:     cfg.Clock,
		interval:  cfg.Interval,
		maxDecay:  cfg.MaxDecay,
		rand:      cfg.Rand,
		telemetry: cfg.Telemetry,
		broker:    cfg.Broker,
		logger:    cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.rand == nil {
		s.rand = defaultRand
	}
	if s.telemetry == nil {
		s.telemetry = noopTelemetry{}
	}
	if s.broker == nil {
		s.broker = func() BrokerConn { return nil }
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s
}

// Start launches the tick loop. Calling Start on a running simulator is
// a no-op.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	go s.run(s.stop)
	s.logger.Info("battery simulator started", "interval", s.interval)
}

// Stop halts the tick loop. Calling Stop on a stopped simulator is a
// no-op.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.logger.Info("battery simulator stopped")
}

// Running reports whether the tick loop is active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the tick loop. It exits when the stop channel closes.
func (s *Simulator) run(stop <-chan struct{}) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick performs one ageing pass over the fleet.
func (s *Simulator) tick(now time.Time) {
	aged := s.registry.Age(now, func() float64 {
		return s.rand() * s.maxDecay
	})

	broker := s.broker()
	mirror := broker != nil && broker.IsConnected()

	for _, l := range aged {
		s.telemetry.WriteBatteryLevel(l.ID, l.Battery)
		s.telemetry.WriteLabelStatus(l.ID, string(l.Status))

		if l.Status == label.StatusLowBattery {
			s.logger.Warn("label battery low", "id", l.ID, "battery", l.Battery)
		}

		if mirror {
			s.mirrorStatus(broker, l)
		}
	}

	s.logger.Debug("battery tick complete", "labels", len(aged))
}

// mirrorStatus publishes a simulated status report on the label's status
// topic. Failures are logged and otherwise ignored.
func (s *Simulator) mirrorStatus(broker BrokerConn, l label.Label) {
	payload, err := json.Marshal(map[string]any{
		"battery":  l.Battery,
		"status":   l.Status,
		"lastSeen": l.LastSeen.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	topic := mqtt.Topics{}.LabelStatus(l.ID)
	if err := broker.Publish(topic, payload, 0, false); err != nil {
		s.logger.Debug("status mirror publish failed", "id", l.ID, "error", err)
	}
}
