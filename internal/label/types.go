package label

import "time"

// Status classifies a label's current condition.
type Status string

// Label status values.
const (
	// StatusOnline means the label is reachable and its battery is healthy.
	StatusOnline Status = "online"

	// StatusLowBattery means the battery level has dropped below the
	// low-battery threshold. Takes precedence over online classification.
	StatusLowBattery Status = "low_battery"

	// StatusOffline means the label has not been seen within the
	// staleness window.
	StatusOffline Status = "offline"
)

// LowBatteryThreshold is the battery percentage below which a label is
// classified as low_battery.
const LowBatteryThreshold = 20.0

// Battery bounds.
const (
	minBattery = 0.0
	maxBattery = 100.0
)

// Default field values for labels created on first publish.
const (
	// DefaultName is used when a label is created without an explicit name.
	DefaultName = "Nuevo Producto"

	// DefaultBattery is the battery level assigned to newly created labels.
	DefaultBattery = maxBattery
)

// Label represents an electronic shelf label in the fleet.
type Label struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Price      float64    `json:"price"`
	Promo      string     `json:"promo"`
	Battery    float64    `json:"battery"`
	Status     Status     `json:"status"`
	LastSeen   time.Time  `json:"lastSeen"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
}

// Update carries the fields of a publish request. Pointer fields
// distinguish "explicitly provided" from "absent": a nil Price leaves the
// stored price untouched, while a pointer to 0 sets the price to zero.
// Likewise a pointer to an empty Promo string clears the stored promotion.
type Update struct {
	// Type is the action discriminator (CREATE, UPDATE, TEST_UPDATE, ...).
	// It is forwarded opaquely to the transport message.
	Type string `json:"type,omitempty"`

	Name  *string  `json:"name,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Promo *string  `json:"promo,omitempty"`
}

// DeriveStatus computes a label's status from its battery level and
// freshness. Low battery takes precedence; a label unseen for longer than
// the staleness window is offline; everything else is online.
//
// Parameters:
//   - battery: Current battery level (0-100)
//   - lastSeen: When the label last reported or received anything
//   - now: The current time
//   - staleness: Maximum age of lastSeen before the label counts as offline
//
// Returns:
//   - Status: The derived classification
func DeriveStatus(battery float64, lastSeen, now time.Time, staleness time.Duration) Status {
	if battery < LowBatteryThreshold {
		return StatusLowBattery
	}
	if staleness > 0 && now.Sub(lastSeen) > staleness {
		return StatusOffline
	}
	return StatusOnline
}

// clampBattery bounds a battery level to the valid 0-100 range.
func clampBattery(battery float64) float64 {
	if battery < minBattery {
		return minBattery
	}
	if battery > maxBattery {
		return maxBattery
	}
	return battery
}
