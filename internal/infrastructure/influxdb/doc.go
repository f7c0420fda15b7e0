// Package influxdb provides the time-series telemetry sink.
//
// The simulator and publish engine feed it battery levels, status
// transitions and publish outcomes. Writes are batched and non-blocking;
// the sink is optional and strictly best-effort, so a missing or dead
// InfluxDB never affects label operations.
package influxdb
