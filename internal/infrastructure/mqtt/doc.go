// Package mqtt provides the broker transport for production mode.
//
// It wraps paho.mqtt.golang with gateway-specific behaviour:
//
//   - Synchronous initial connection so a dead broker surfaces immediately
//     and the gateway can fall back to simulation mode
//   - Automatic reconnection with subscription restore once a session has
//     been established
//   - Last Will and Testament on esl/system/status so fleet monitors can
//     tell a crashed gateway from a gracefully stopped one
//   - Topic builders for the etiquetas/{label_id}/{channel} scheme
//
// Label content updates go out on etiquetas/{id}/update at the configured
// QoS. Labels report back on etiquetas/{id}/status, which the gateway
// subscribes to with a wildcard.
package mqtt
