package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/openesl/eslgate/internal/infrastructure/config"
	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
)

const testSettleDelay = 2 * time.Second

func newTestSupervisor(t *testing.T, mode string, dial Dialer) (*Supervisor, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	registry := seededRegistry(time.Hour)
	sim := NewSimulator(SimulatorConfig{
		Registry: registry,
		Clock:    mock,
		Interval: 30 * time.Second,
		MaxDecay: 2,
	})

	s := NewSupervisor(SupervisorConfig{
		Registry:    registry,
		Simulator:   sim,
		Dialer:      dial,
		Clock:       mock,
		MQTT:        testMQTTConfig(),
		Gateway:     config.GatewayConfig{Mode: mode, StalenessWindow: time.Hour},
		SettleDelay: testSettleDelay,
	})
	t.Cleanup(s.Stop)
	return s, mock
}

func TestSupervisor_SimulatedConnect(t *testing.T) {
	s, mock := newTestSupervisor(t, config.ModeSimulation, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	snap := s.Snapshot()
	if snap.ConnectionStatus != StateConnecting {
		t.Errorf("status during settle = %q, want %q", snap.ConnectionStatus, StateConnecting)
	}
	if s.sim.Running() {
		t.Error("simulator must not run before the link settles")
	}

	mock.Add(testSettleDelay)

	snap = s.Snapshot()
	if snap.ConnectionStatus != StateConnected {
		t.Errorf("status after settle = %q, want %q", snap.ConnectionStatus, StateConnected)
	}
	if snap.Mode != config.ModeSimulation {
		t.Errorf("mode = %q, want %q", snap.Mode, config.ModeSimulation)
	}
	if !s.sim.Running() {
		t.Error("simulator should run once the simulated link is up")
	}
}

func TestSupervisor_ProductionStart(t *testing.T) {
	broker := newFakeBroker()
	dial := func(config.MQTTConfig) (BrokerConn, error) { return broker, nil }

	s, _ := newTestSupervisor(t, config.ModeProduction, dial)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	snap := s.Snapshot()
	if snap.Mode != config.ModeProduction {
		t.Errorf("mode = %q, want %q", snap.Mode, config.ModeProduction)
	}
	if snap.ConnectionStatus != StateConnected {
		t.Errorf("status = %q, want %q", snap.ConnectionStatus, StateConnected)
	}
	if s.sim.Running() {
		t.Error("simulator must not run in production mode")
	}
	if broker.handlerFor(mqtt.Topics{}.AllLabelStatuses()) == nil {
		t.Error("production connect should subscribe to label status reports")
	}
}

func TestSupervisor_ProductionStartFallsBack(t *testing.T) {
	dialErr := errors.New("broker unreachable")
	dial := func(config.MQTTConfig) (BrokerConn, error) { return nil, dialErr }

	s, mock := newTestSupervisor(t, config.ModeProduction, dial)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, fallback must not fail startup", err)
	}

	if s.Mode() != config.ModeSimulation {
		t.Errorf("mode = %q, want fallback to %q", s.Mode(), config.ModeSimulation)
	}

	mock.Add(testSettleDelay)
	if s.Snapshot().ConnectionStatus != StateConnected {
		t.Errorf("status = %q, want %q after simulated fallback", s.Snapshot().ConnectionStatus, StateConnected)
	}
	if !s.sim.Running() {
		t.Error("simulator should run after fallback")
	}
}

func TestSupervisor_SetModeToProduction(t *testing.T) {
	broker := newFakeBroker()
	dial := func(config.MQTTConfig) (BrokerConn, error) { return broker, nil }

	s, mock := newTestSupervisor(t, config.ModeSimulation, dial)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mock.Add(testSettleDelay)

	effective, err := s.SetMode(context.Background(), config.ModeProduction)
	if err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	if effective != config.ModeProduction {
		t.Errorf("effective mode = %q, want %q", effective, config.ModeProduction)
	}
	if s.sim.Running() {
		t.Error("simulator must stop on switch to production")
	}
	if s.Snapshot().ConnectionStatus != StateConnected {
		t.Errorf("status = %q, want %q", s.Snapshot().ConnectionStatus, StateConnected)
	}
}

func TestSupervisor_SetModeToProductionFallsBack(t *testing.T) {
	dialErr := errors.New("broker unreachable")
	dial := func(config.MQTTConfig) (BrokerConn, error) { return nil, dialErr }

	s, mock := newTestSupervisor(t, config.ModeSimulation, dial)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mock.Add(testSettleDelay)

	effective, err := s.SetMode(context.Background(), config.ModeProduction)
	if !errors.Is(err, dialErr) {
		t.Errorf("SetMode() error = %v, want dial error", err)
	}
	if effective != config.ModeSimulation {
		t.Errorf("effective mode = %q, want %q", effective, config.ModeSimulation)
	}

	// The simulated link re-settles after the failed switch
	mock.Add(testSettleDelay)
	if s.Snapshot().ConnectionStatus != StateConnected {
		t.Errorf("status = %q, want %q", s.Snapshot().ConnectionStatus, StateConnected)
	}
}

func TestSupervisor_SetModeBackToSimulationKeepsSession(t *testing.T) {
	broker := newFakeBroker()
	dial := func(config.MQTTConfig) (BrokerConn, error) { return broker, nil }

	s, mock := newTestSupervisor(t, config.ModeProduction, dial)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	effective, err := s.SetMode(context.Background(), config.ModeSimulation)
	if err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	if effective != config.ModeSimulation {
		t.Errorf("effective mode = %q, want %q", effective, config.ModeSimulation)
	}
	if s.Broker() == nil {
		t.Error("broker session should be kept alive across the switch")
	}

	mock.Add(testSettleDelay)
	if !s.sim.Running() {
		t.Error("simulator should run in simulation mode")
	}

	// Switching back reuses the live session without redialling
	effective, err = s.SetMode(context.Background(), config.ModeProduction)
	if err != nil {
		t.Fatalf("SetMode() back to production error = %v", err)
	}
	if effective != config.ModeProduction {
		t.Errorf("effective mode = %q, want %q", effective, config.ModeProduction)
	}
	if s.Snapshot().ConnectionStatus != StateConnected {
		t.Errorf("status = %q, want %q", s.Snapshot().ConnectionStatus, StateConnected)
	}
}

func TestSupervisor_SetModeInvalid(t *testing.T) {
	s, _ := newTestSupervisor(t, config.ModeSimulation, nil)

	_, err := s.SetMode(context.Background(), "hybrid")
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("SetMode() error = %v, want ErrInvalidMode", err)
	}
}

func TestSupervisor_SetModeNoop(t *testing.T) {
	s, _ := newTestSupervisor(t, config.ModeSimulation, nil)

	effective, err := s.SetMode(context.Background(), config.ModeSimulation)
	if err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	if effective != config.ModeSimulation {
		t.Errorf("effective mode = %q, want %q", effective, config.ModeSimulation)
	}
}

func TestSupervisor_StatusReportUpdatesRegistry(t *testing.T) {
	broker := newFakeBroker()
	dial := func(config.MQTTConfig) (BrokerConn, error) { return broker, nil }

	s, _ := newTestSupervisor(t, config.ModeProduction, dial)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := broker.handlerFor(mqtt.Topics{}.AllLabelStatuses())
	if handler == nil {
		t.Fatal("no status subscription registered")
	}

	if err := handler("etiquetas/etiq_001/status", []byte(`{"battery":42.5}`)); err != nil {
		t.Fatalf("status handler error = %v", err)
	}

	l, err := s.registry.Get("etiq_001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if l.Battery != 42.5 {
		t.Errorf("Battery = %v, want 42.5", l.Battery)
	}
}

func TestSupervisor_StatusReportRejectsMalformed(t *testing.T) {
	broker := newFakeBroker()
	dial := func(config.MQTTConfig) (BrokerConn, error) { return broker, nil }

	s, _ := newTestSupervisor(t, config.ModeProduction, dial)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	handler := broker.handlerFor(mqtt.Topics{}.AllLabelStatuses())

	if err := handler("etiquetas/etiq_001/status", []byte(`not json`)); err == nil {
		t.Error("malformed payload should return an error")
	}
	if err := handler("etiquetas/etiq_001/status", []byte(`{}`)); err == nil {
		t.Error("payload without battery should return an error")
	}
	if err := handler("esl/system/status", []byte(`{"battery":10}`)); err == nil {
		t.Error("non-label topic should return an error")
	}
}

func TestSupervisor_StopTearsDownSession(t *testing.T) {
	broker := newFakeBroker()
	dial := func(config.MQTTConfig) (BrokerConn, error) { return broker, nil }

	s, _ := newTestSupervisor(t, config.ModeProduction, dial)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.Stop()

	statusTopic := mqtt.Topics{}.AllLabelStatuses()
	if broker.handlerFor(statusTopic) != nil {
		t.Error("status subscription should be removed on stop")
	}
	unsubs := broker.unsubscribedTopics()
	if len(unsubs) != 1 || unsubs[0] != statusTopic {
		t.Errorf("unsubscribed topics = %v, want [%s]", unsubs, statusTopic)
	}
	if !broker.isClosed() {
		t.Error("broker session should be closed on stop")
	}
	if s.Broker() != nil {
		t.Error("Broker() should return nil after stop")
	}
}

func TestSupervisor_BrokerDropMovesToOffline(t *testing.T) {
	broker := newFakeBroker()
	dial := func(config.MQTTConfig) (BrokerConn, error) { return broker, nil }

	s, _ := newTestSupervisor(t, config.ModeProduction, dial)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	broker.mu.Lock()
	onDisconnect := broker.onDisconnect
	onConnect := broker.onConnect
	broker.mu.Unlock()
	if onDisconnect == nil || onConnect == nil {
		t.Fatal("connection callbacks not registered")
	}

	onDisconnect(errors.New("link lost"))
	if s.Snapshot().ConnectionStatus != StateOffline {
		t.Errorf("status = %q, want %q", s.Snapshot().ConnectionStatus, StateOffline)
	}

	onConnect()
	if s.Snapshot().ConnectionStatus != StateConnected {
		t.Errorf("status = %q, want %q after reconnect", s.Snapshot().ConnectionStatus, StateConnected)
	}
}
