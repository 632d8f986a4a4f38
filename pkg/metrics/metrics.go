// Package metrics holds the application's instrument definitions. Instruments
// are created from an OpenTelemetry meter and exported through the Prometheus
// registry wired up at service start.
package metrics

// DefaultBuckets is a common set of latency histogram buckets in seconds,
// reusable wherever request-scale latencies are recorded.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// PhaseBuckets covers scan phases, which run far longer than an HTTP handler:
// navigation and consent waits routinely take tens of seconds.
var PhaseBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120} //nolint: gochecknoglobals
