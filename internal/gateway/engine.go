package gateway

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
	"github.com/openesl/eslgate/internal/label"
)

// defaultRand yields uniform values in [0, 1).
func defaultRand() float64 { return rand.Float64() }

// Result is the outcome of a label update publish, shaped for direct
// serialisation in API responses.
type Result struct {
	Success bool   `json:"success"`
	LabelID string `json:"etiquetaId"`

	// Simulated is always serialised so production results carry an
	// explicit simulated:false marker.
	Simulated bool   `json:"simulated"`
	Error     string `json:"error,omitempty"`
}

// Engine delivers label updates over whichever transport is live.
//
// Delivery paths:
//
//   - Fallback: when the link is not connected, regardless of mode, the
//     update is applied to the registry after a random delay that models
//     network/radio latency. The caller blocks for the delay, mirroring
//     how a real acknowledgement would arrive.
//   - Inline: connected simulation is treated as instantaneous. The
//     update is applied to the registry synchronously with no delay.
//   - Broker: the update is published on etiquetas/{id}/update at the
//     configured QoS. Delivery is fire-and-forget: the result reports
//     dispatch, and transport failures are logged, not surfaced.
type Engine struct {
	registry  *label.Registry
	sup       *Supervisor
	clock     clock.Clock
	rand      func() float64
	telemetry Telemetry
	logger    Logger

	qos      byte
	minDelay time.Duration
	maxDelay time.Duration
}

// EngineConfig bundles the dependencies for NewEngine.
type EngineConfig struct {
	Registry  *label.Registry
	Super     *Supervisor
	Clock     clock.Clock
	Rand      func() float64
	Telemetry Telemetry
	Logger    Logger

	// QoS for broker publishes.
	QoS byte

	// MinDelay and MaxDelay bound the simulated delivery latency.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewEngine creates a publish engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		registry:  cfg.Registry,
		sup:       cfg.Super,
		clock:     cfg.Clock,
		rand:      cfg.Rand,
		telemetry: cfg.Telemetry,
		logger:    cfg.Logger,
		qos:       cfg.QoS,
		minDelay:  cfg.MinDelay,
		maxDelay:  cfg.MaxDelay,
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.rand == nil {
		e.rand = defaultRand
	}
	if e.telemetry == nil {
		e.telemetry = noopTelemetry{}
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	return e
}

// Publish delivers an update to a label.
//
// The fallback path blocks for the modelled latency before applying the
// update; cancelling the context aborts the wait and reports failure.
// Connected simulation applies the update synchronously. The broker
// path returns as soon as the update is dispatched.
//
// Parameters:
//   - ctx: Caller context; bounds the fallback delivery wait
//   - id: Target label ID
//   - u: Fields to merge into the label
//
// Returns:
//   - Result: Delivery outcome, ready for API serialisation
func (e *Engine) Publish(ctx context.Context, id string, u label.Update) Result {
	if id == "" {
		return Result{Success: false, Error: ErrMissingLabelID.Error()}
	}

	switch e.sup.publishPath() {
	case pathInline:
		return e.publishInline(id, u)
	case pathBroker:
		return e.publishBroker(id, u)
	default:
		return e.publishFallback(ctx, id, u)
	}
}

// publishInline applies the update to the in-memory fleet immediately.
func (e *Engine) publishInline(id string, u label.Update) Result {
	applied := e.registry.Apply(id, u, e.clock.Now())
	e.telemetry.WritePublishResult(id, true, true, 0)
	e.logger.Info("label update applied",
		"id", id,
		"name", applied.Name,
		"price", applied.Price,
		"transport", "simulated",
	)

	return Result{Success: true, LabelID: id, Simulated: true}
}

// publishFallback models network/radio latency, then applies the update
// to the in-memory fleet. Taken whenever the link is not connected so
// callers never block indefinitely on a down transport.
func (e *Engine) publishFallback(ctx context.Context, id string, u label.Update) Result {
	delay := e.simulatedDelay()

	timer := e.clock.Timer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Result{Success: false, LabelID: id, Simulated: true, Error: ctx.Err().Error()}
	case <-timer.C:
	}

	applied := e.registry.Apply(id, u, e.clock.Now())
	e.telemetry.WritePublishResult(id, true, true, delay)
	e.logger.Info("label update applied",
		"id", id,
		"name", applied.Name,
		"price", applied.Price,
		"transport", "simulated",
	)

	return Result{Success: true, LabelID: id, Simulated: true}
}

// publishBroker dispatches the update over MQTT. The registry is updated
// once the broker accepts the message; failures are logged.
func (e *Engine) publishBroker(id string, u label.Update) Result {
	broker := e.sup.Broker()
	if broker == nil {
		// Link dropped between the transport check and here
		return Result{Success: false, LabelID: id, Error: mqtt.ErrNotConnected.Error()}
	}

	// Wire format the labels expect: the update fields plus a dispatch
	// timestamp and the transport marker.
	wire := struct {
		label.Update
		Timestamp string `json:"timestamp"`
		Simulated bool   `json:"simulated"`
	}{
		Update:    u,
		Timestamp: e.clock.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return Result{Success: false, LabelID: id, Error: err.Error()}
	}

	topic := mqtt.Topics{}.LabelUpdate(id)
	start := e.clock.Now()

	go func() {
		if err := broker.Publish(topic, payload, e.qos, false); err != nil {
			e.logger.Error("label update publish failed", "id", id, "topic", topic, "error", err)
			e.telemetry.WritePublishResult(id, false, false, e.clock.Since(start))
			return
		}
		e.registry.Apply(id, u, e.clock.Now())
		e.telemetry.WritePublishResult(id, false, true, e.clock.Since(start))
		e.logger.Info("label update dispatched", "id", id, "topic", topic)
	}()

	return Result{Success: true, LabelID: id}
}

// simulatedDelay picks a uniform random latency in [minDelay, maxDelay).
func (e *Engine) simulatedDelay() time.Duration {
	spread := e.maxDelay - e.minDelay
	if spread <= 0 {
		return e.minDelay
	}
	return e.minDelay + time.Duration(e.rand()*float64(spread))
}
