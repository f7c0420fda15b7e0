package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBatteryLevel records a label's battery level after a simulator tick.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Calls on a disconnected client are silently dropped.
//
// Parameters:
//   - labelID: The label identifier (e.g., "etiq_001")
//   - battery: Battery level in the 0-100 range
func (c *Client) WriteBatteryLevel(labelID string, battery float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"label_battery",
		map[string]string{
			"label_id": labelID,
		},
		map[string]interface{}{
			"level": battery,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLabelStatus records a label's derived status so status transitions
// (online to low_battery, low_battery to offline) can be graphed over time.
//
// Parameters:
//   - labelID: The label identifier
//   - status: The derived status string ("online", "low_battery", "offline")
func (c *Client) WriteLabelStatus(labelID string, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"label_status",
		map[string]string{
			"label_id": labelID,
			"status":   status,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePublishResult records the outcome of a label update publish,
// tagged by transport path so simulated and broker deliveries can be
// compared.
//
// Parameters:
//   - labelID: The label the update was addressed to
//   - simulated: Whether the update went through the simulated transport
//   - success: Whether the publish succeeded
//   - duration: How long the publish took end to end
func (c *Client) WritePublishResult(labelID string, simulated bool, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	transport := "broker"
	if simulated {
		transport = "simulated"
	}

	point := write.NewPoint(
		"publish_results",
		map[string]string{
			"label_id":  labelID,
			"transport": transport,
		},
		map[string]interface{}{
			"success":     success,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
