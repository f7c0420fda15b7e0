// Package gateway contains the transport core of the ESL gateway: the
// connection supervisor, the battery simulator and the publish engine.
//
// # Supervisor
//
// The Supervisor owns the transport mode (simulation or production) and
// drives the broker link through a finite state machine with states
// disconnected, connecting, connected, error and offline. Mode switches
// happen at runtime; a failed switch to production falls back to
// simulation so the fleet stays operable without a broker.
//
// # Simulator
//
// In simulation mode a ticker stands in for real hardware, draining
// battery levels and refreshing freshness so status classification and
// low-battery alerting behave as they would against a live fleet.
//
// # Engine
//
// The Engine routes label updates: inline registry application behind a
// modelled latency when simulated, fire-and-forget MQTT publishes when a
// broker session is connected.
package gateway
