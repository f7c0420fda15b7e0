package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the ESL fleet.
//
// Per-label topics use the scheme: etiquetas/{label_id}/{channel}
// System topics live under esl/system.
const (
	// TopicPrefixLabels is the base for all per-label topics.
	TopicPrefixLabels = "etiquetas"

	// TopicPrefixSystem is the base for gateway system topics.
	TopicPrefixSystem = "esl/system"
)

// Topics provides builders for ESL MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	updateTopic := topics.LabelUpdate("etiq_001")
//	// Returns: "etiquetas/etiq_001/update"
type Topics struct{}

// LabelUpdate returns the topic a label listens on for content updates
// (name, price, promotion).
//
// Example: etiquetas/etiq_001/update
func (Topics) LabelUpdate(labelID string) string {
	return fmt.Sprintf("%s/%s/update", TopicPrefixLabels, labelID)
}

// LabelStatus returns the topic a label reports its status on
// (battery level, liveness).
//
// Example: etiquetas/etiq_001/status
func (Topics) LabelStatus(labelID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixLabels, labelID)
}

// AllLabelUpdates returns the wildcard pattern matching every label's
// update topic.
func (Topics) AllLabelUpdates() string {
	return TopicPrefixLabels + "/+/update"
}

// AllLabelStatuses returns the wildcard pattern matching every label's
// status topic.
func (Topics) AllLabelStatuses() string {
	return TopicPrefixLabels + "/+/status"
}

// SystemStatus returns the topic for gateway online/offline status.
// Used for the Last Will and Testament and graceful shutdown messages.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// LabelIDFromTopic extracts the label ID from a per-label topic.
// Returns an empty string if the topic doesn't match the
// etiquetas/{label_id}/{channel} scheme.
func LabelIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefixLabels {
		return ""
	}
	if parts[1] == "" || parts[2] == "" {
		return ""
	}
	return parts[1]
}
