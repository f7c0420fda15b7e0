package gateway

import (
	"time"

	"github.com/openesl/eslgate/internal/infrastructure/config"
	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the gateway components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BrokerConn is the broker session used by the production transport.
// Implemented by the infrastructure mqtt.Client; mocked in tests.
type BrokerConn interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	IsConnected() bool
	Close() error
}

// Dialer establishes a broker session. Injected so tests can supply a
// fake broker and so dialling stays synchronous: a dead broker must
// surface immediately, not after a background retry.
type Dialer func(cfg config.MQTTConfig) (BrokerConn, error)

// Telemetry is the optional time-series sink fed by the simulator and
// the publish engine. Implemented by the infrastructure influxdb.Client.
type Telemetry interface {
	WriteBatteryLevel(labelID string, battery float64)
	WriteLabelStatus(labelID string, status string)
	WritePublishResult(labelID string, simulated bool, success bool, duration time.Duration)
}

// noopTelemetry discards all writes. Used when InfluxDB is disabled.
type noopTelemetry struct{}

func (noopTelemetry) WriteBatteryLevel(string, float64)                    {}
func (noopTelemetry) WriteLabelStatus(string, string)                      {}
func (noopTelemetry) WritePublishResult(string, bool, bool, time.Duration) {}
