package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder bundles the counters and histograms the scan pipeline reports
// into. A nil Recorder is valid and drops every measurement, so tests and
// tools can run without a meter.
type Recorder struct {
	scansStarted     metric.Int64Counter
	scansCompleted   metric.Int64Counter
	scansFailed      metric.Int64Counter
	targetsSkipped   metric.Int64Counter
	cookiesFound     metric.Int64Counter
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	upstreamFailures metric.Int64Counter
	phaseDuration    metric.Float64Histogram
}

// NewRecorder creates all scan instruments on the given meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	var (
		r   Recorder
		err error
	)

	if r.scansStarted, err = meter.Int64Counter("scans_started_total",
		metric.WithDescription("Scans whose engine began browser work")); err != nil {
		return nil, fmt.Errorf("could not create scans_started_total: %w", err)
	}

	if r.scansCompleted, err = meter.Int64Counter("scans_completed_total",
		metric.WithDescription("Scans that reached COMPLETED")); err != nil {
		return nil, fmt.Errorf("could not create scans_completed_total: %w", err)
	}

	if r.scansFailed, err = meter.Int64Counter("scans_failed_total",
		metric.WithDescription("Scans that reached FAILED")); err != nil {
		return nil, fmt.Errorf("could not create scans_failed_total: %w", err)
	}

	if r.targetsSkipped, err = meter.Int64Counter("scan_targets_skipped_total",
		metric.WithDescription("Scan targets abandoned after navigation or automation errors")); err != nil {
		return nil, fmt.Errorf("could not create scan_targets_skipped_total: %w", err)
	}

	if r.cookiesFound, err = meter.Int64Counter("cookies_discovered_total",
		metric.WithDescription("Distinct cookies discovered across all scans")); err != nil {
		return nil, fmt.Errorf("could not create cookies_discovered_total: %w", err)
	}

	if r.cacheHits, err = meter.Int64Counter("categorization_cache_hits_total",
		metric.WithDescription("Cookie names served from the categorization cache")); err != nil {
		return nil, fmt.Errorf("could not create categorization_cache_hits_total: %w", err)
	}

	if r.cacheMisses, err = meter.Int64Counter("categorization_cache_misses_total",
		metric.WithDescription("Cookie names that had to go to the categorization upstream")); err != nil {
		return nil, fmt.Errorf("could not create categorization_cache_misses_total: %w", err)
	}

	if r.upstreamFailures, err = meter.Int64Counter("categorization_upstream_failures_total",
		metric.WithDescription("Categorization batches that fell back to uncategorized")); err != nil {
		return nil, fmt.Errorf("could not create categorization_upstream_failures_total: %w", err)
	}

	if r.phaseDuration, err = meter.Float64Histogram("scan_phase_duration_seconds",
		metric.WithDescription("Wall time per scan phase"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(PhaseBuckets...)); err != nil {
		return nil, fmt.Errorf("could not create scan_phase_duration_seconds: %w", err)
	}

	return &r, nil
}

// ScanStarted counts a scan whose engine began work.
func (r *Recorder) ScanStarted(ctx context.Context) {
	if r == nil {
		return
	}

	r.scansStarted.Add(ctx, 1)
}

// ScanCompleted counts a scan that reached COMPLETED.
func (r *Recorder) ScanCompleted(ctx context.Context) {
	if r == nil {
		return
	}

	r.scansCompleted.Add(ctx, 1)
}

// ScanFailed counts a scan that reached FAILED.
func (r *Recorder) ScanFailed(ctx context.Context) {
	if r == nil {
		return
	}

	r.scansFailed.Add(ctx, 1)
}

// TargetSkipped counts a target abandoned after repeated navigation failures.
func (r *Recorder) TargetSkipped(ctx context.Context) {
	if r == nil {
		return
	}

	r.targetsSkipped.Add(ctx, 1)
}

// CookiesDiscovered counts newly deduplicated cookies attributed to a label.
func (r *Recorder) CookiesDiscovered(ctx context.Context, label string, n int) {
	if r == nil || n == 0 {
		return
	}

	r.cookiesFound.Add(ctx, int64(n), metric.WithAttributes(attribute.String("subdomain", label)))
}

// CacheHits counts names answered from the cache in one lookup pass.
func (r *Recorder) CacheHits(ctx context.Context, n int) {
	if r == nil || n == 0 {
		return
	}

	r.cacheHits.Add(ctx, int64(n))
}

// CacheMisses counts names missing from the cache in one lookup pass.
func (r *Recorder) CacheMisses(ctx context.Context, n int) {
	if r == nil || n == 0 {
		return
	}

	r.cacheMisses.Add(ctx, int64(n))
}

// UpstreamFailure counts a categorization batch that exhausted its retries or
// was rejected by the circuit breaker.
func (r *Recorder) UpstreamFailure(ctx context.Context) {
	if r == nil {
		return
	}

	r.upstreamFailures.Add(ctx, 1)
}

// TrackPhase starts timing a named phase and returns the function that records
// the duration. Intended use:
//
//	defer r.TrackPhase(ctx, "navigate")()
func (r *Recorder) TrackPhase(ctx context.Context, phase string) func() {
	if r == nil {
		return func() {}
	}

	start := time.Now()

	return func() {
		r.phaseDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("phase", phase)))
	}
}
