package gateway

import (
	"sync"
	"time"

	"github.com/openesl/eslgate/internal/infrastructure/config"
	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
	"github.com/openesl/eslgate/internal/label"
)

// fakeBroker is an in-memory BrokerConn for tests.
type fakeBroker struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	published    []publishedMsg
	subscribed   map[string]mqtt.MessageHandler
	unsubscribed []string
	onConnect    func()
	onDisconnect func(err error)
	closed       bool
}

type publishedMsg struct {
	topic   string
	payload []byte
	qos     byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		connected:  true,
		subscribed: make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeBroker) Publish(topic string, payload []byte, qos byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload, qos: qos})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = handler
	return nil
}

func (f *fakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, topic)
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeBroker) SetOnConnect(callback func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = callback
}

func (f *fakeBroker) SetOnDisconnect(callback func(err error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = callback
}

func (f *fakeBroker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected && !f.closed
}

func (f *fakeBroker) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBroker) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func (f *fakeBroker) lastPublished() (publishedMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return publishedMsg{}, false
	}
	return f.published[len(f.published)-1], true
}

func (f *fakeBroker) handlerFor(topic string) mqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[topic]
}

func (f *fakeBroker) unsubscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribed...)
}

func (f *fakeBroker) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeTelemetry records writes for assertions.
type fakeTelemetry struct {
	mu        sync.Mutex
	batteries map[string]float64
	statuses  map[string]string
	results   []publishOutcome
}

type publishOutcome struct {
	labelID   string
	simulated bool
	success   bool
}

func newFakeTelemetry() *fakeTelemetry {
	return &fakeTelemetry{
		batteries: make(map[string]float64),
		statuses:  make(map[string]string),
	}
}

func (f *fakeTelemetry) WriteBatteryLevel(labelID string, battery float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batteries[labelID] = battery
}

func (f *fakeTelemetry) WriteLabelStatus(labelID string, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[labelID] = status
}

func (f *fakeTelemetry) WritePublishResult(labelID string, simulated bool, success bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, publishOutcome{labelID: labelID, simulated: simulated, success: success})
}

func (f *fakeTelemetry) batteryFor(labelID string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.batteries[labelID]
	return v, ok
}

func (f *fakeTelemetry) statusFor(labelID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.statuses[labelID]
	return v, ok
}

func seededRegistry(staleness time.Duration) *label.Registry {
	r := label.NewRegistry(staleness)
	r.Seed([]label.Label{
		{ID: "etiq_001", Name: "LECHE 1L", Price: 1300, Promo: "10% hoy", Battery: 85},
		{ID: "etiq_002", Name: "PAN BLANCO", Price: 800, Battery: 92},
		{ID: "etiq_004", Name: "ACEITE GIRASOL", Price: 2500, Promo: "3x2", Battery: 15},
	}, time.Now())
	return r
}

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "eslgate-test"},
		QoS:    1,
	}
}
