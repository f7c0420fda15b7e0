package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
	"github.com/openesl/eslgate/internal/label"
)

func TestSimulator_TickDrainsBatteries(t *testing.T) {
	registry := seededRegistry(time.Hour)
	telemetry := newFakeTelemetry()

	sim := NewSimulator(SimulatorConfig{
		Registry:  registry,
		Clock:     clock.NewMock(),
		Interval:  30 * time.Second,
		MaxDecay:  2,
		Rand:      func() float64 { return 1 }, // full decay every tick
		Telemetry: telemetry,
	})

	sim.tick(time.Now())

	l, err := registry.Get("etiq_001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if l.Battery != 83 {
		t.Errorf("Battery = %v, want 83 after one full-decay tick", l.Battery)
	}

	got, ok := telemetry.batteryFor("etiq_001")
	if !ok || got != 83 {
		t.Errorf("telemetry battery = %v (ok=%v), want 83", got, ok)
	}
	status, ok := telemetry.statusFor("etiq_004")
	if !ok || status != string(label.StatusLowBattery) {
		t.Errorf("telemetry status for etiq_004 = %q (ok=%v), want low_battery", status, ok)
	}
}

func TestSimulator_TickNeverDrainsBelowZero(t *testing.T) {
	registry := label.NewRegistry(time.Hour)
	registry.Seed([]label.Label{{ID: "etiq_010", Name: "A", Battery: 1}}, time.Now())

	sim := NewSimulator(SimulatorConfig{
		Registry: registry,
		Interval: 30 * time.Second,
		MaxDecay: 2,
		Rand:     func() float64 { return 1 },
	})

	sim.tick(time.Now())
	sim.tick(time.Now())

	l, _ := registry.Get("etiq_010")
	if l.Battery != 0 {
		t.Errorf("Battery = %v, want 0", l.Battery)
	}
	if l.Status != label.StatusLowBattery {
		t.Errorf("Status = %v, want %v", l.Status, label.StatusLowBattery)
	}
}

func TestSimulator_TickMirrorsStatusToBroker(t *testing.T) {
	registry := seededRegistry(time.Hour)
	broker := newFakeBroker()

	sim := NewSimulator(SimulatorConfig{
		Registry: registry,
		Interval: 30 * time.Second,
		MaxDecay: 2,
		Rand:     func() float64 { return 0 },
		Broker:   func() BrokerConn { return broker },
	})

	sim.tick(time.Now())

	if broker.publishedCount() != registry.Count() {
		t.Fatalf("published %d status messages, want %d", broker.publishedCount(), registry.Count())
	}

	msg, _ := broker.lastPublished()
	wantTopic := mqtt.Topics{}.LabelStatus("etiq_004")
	if msg.topic != wantTopic {
		t.Errorf("topic = %q, want %q", msg.topic, wantTopic)
	}

	var report struct {
		Battery float64 `json:"battery"`
		Status  string  `json:"status"`
	}
	if err := json.Unmarshal(msg.payload, &report); err != nil {
		t.Fatalf("unmarshalling status payload: %v", err)
	}
	if report.Battery != 15 {
		t.Errorf("payload battery = %v, want 15", report.Battery)
	}
	if report.Status != string(label.StatusLowBattery) {
		t.Errorf("payload status = %q, want low_battery", report.Status)
	}
}

func TestSimulator_TickSkipsMirrorWhenDisconnected(t *testing.T) {
	registry := seededRegistry(time.Hour)
	broker := newFakeBroker()
	broker.connected = false

	sim := NewSimulator(SimulatorConfig{
		Registry: registry,
		Interval: 30 * time.Second,
		MaxDecay: 2,
		Broker:   func() BrokerConn { return broker },
	})

	sim.tick(time.Now())

	if broker.publishedCount() != 0 {
		t.Errorf("published %d messages on a disconnected broker, want 0", broker.publishedCount())
	}
}

func TestSimulator_StartStopIdempotent(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{
		Registry: label.NewRegistry(time.Hour),
		Clock:    clock.NewMock(),
		Interval: 30 * time.Second,
		MaxDecay: 2,
	})

	if sim.Running() {
		t.Fatal("new simulator should be stopped")
	}

	sim.Start()
	sim.Start()
	if !sim.Running() {
		t.Fatal("simulator should be running after Start")
	}

	sim.Stop()
	sim.Stop()
	if sim.Running() {
		t.Fatal("simulator should be stopped after Stop")
	}

	// Restartable after a stop
	sim.Start()
	if !sim.Running() {
		t.Fatal("simulator should restart after Stop")
	}
	sim.Stop()
}
