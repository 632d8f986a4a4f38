package categorizer

import (
	"context"
	"errors"
	"maps"
	"time"

	"cookiescan/pkg/logger"
	"cookiescan/pkg/metrics"
	"cookiescan/pkg/retry"
	"cookiescan/pkg/serrors"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig describes the circuit breaker guarding the upstream. The
// breaker tracks the failure rate over a rolling window; once the rate
// crosses the threshold it opens and rejects calls without a network attempt
// until the cool-down elapses, after which a single trial call may close it.
type BreakerConfig struct {
	// FailureRateThreshold opens the breaker once failures/requests reaches it (0..1].
	FailureRateThreshold float64
	// MinRequests is the minimum number of calls in the window before the rate is evaluated.
	MinRequests uint32
	// Interval is the length of the rolling window the rate is computed over.
	Interval time.Duration
	// Cooldown is how long the breaker stays open before allowing a trial call.
	Cooldown time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		c.FailureRateThreshold = 0.5
	}

	if c.MinRequests == 0 {
		c.MinRequests = 5
	}

	if c.Interval <= 0 {
		c.Interval = time.Minute
	}

	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}

	return c
}

// ResilientOptions wires a Resilient client together. Upstream is required,
// everything else has usable defaults; a nil Cache disables caching entirely.
type ResilientOptions struct {
	// Upstream is the raw categorization client the wrapper protects.
	Upstream Client
	// Cache is the shared lookaside cache, nil to disable caching.
	Cache *Cache
	// Retry bounds the attempts against the upstream per batch.
	Retry retry.Config
	// Breaker configures the circuit breaker shared by all scans.
	Breaker BreakerConfig
	// Recorder receives cache and upstream counters, may be nil.
	Recorder *metrics.Recorder
}

// Resilient is the categorization client the scan engine consumes. It layers
// the lookaside cache, a bounded retry policy and a process-wide circuit
// breaker over the raw upstream client, and degrades to returning whatever
// subset it could resolve instead of failing. Its Categorize therefore
// returns no error: missing names simply stay absent from the result map.
type Resilient struct {
	upstream Client
	cache    *Cache
	retryCfg retry.Config
	breaker  *gobreaker.CircuitBreaker[map[string]Categorization]
	recorder *metrics.Recorder
}

// NewResilient builds the composed client.
func NewResilient(opts ResilientOptions) *Resilient {
	breakerCfg := opts.Breaker.withDefaults()

	breaker := gobreaker.NewCircuitBreaker[map[string]Categorization](gobreaker.Settings{
		Name:        "categorizer",
		MaxRequests: 1,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerCfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerCfg.FailureRateThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Resilient{
		upstream: opts.Upstream,
		cache:    opts.Cache,
		retryCfg: opts.Retry,
		breaker:  breaker,
		recorder: opts.Recorder,
	}
}

// Categorize resolves the given cookie names to their categorizations. Names
// the cache knows are answered locally; the rest go to the upstream behind
// retry and breaker. On final upstream failure the unresolved names are left
// out of the returned map, never surfaced as an error.
func (r *Resilient) Categorize(ctx context.Context, names []string) map[string]Categorization {
	unique := dedupe(names)
	out := make(map[string]Categorization, len(unique))

	if len(unique) == 0 {
		return out
	}

	missing := unique
	if r.cache != nil {
		var hits map[string]Categorization
		hits, missing = r.cache.Lookup(unique)
		maps.Copy(out, hits)

		r.recorder.CacheHits(ctx, len(hits))
		r.recorder.CacheMisses(ctx, len(missing))
	}

	if len(missing) == 0 {
		return out
	}

	fresh, err := r.fetch(ctx, missing)
	if err != nil {
		r.recorder.UpstreamFailure(ctx)
		logger.Warn(ctx, "categorization unavailable, cookies stay uncategorized",
			zap.Int("names", len(missing)), zap.Error(err))

		return out
	}

	if r.cache != nil {
		r.cache.Store(fresh)
	}

	maps.Copy(out, fresh)

	return out
}

// fetch performs the retry-wrapped, breaker-guarded upstream call for the
// uncached names. A rejection by the open breaker stops the retry loop
// immediately since further attempts would be rejected as well.
func (r *Resilient) fetch(ctx context.Context, names []string) (map[string]Categorization, error) {
	var result map[string]Categorization

	err := retry.Do(ctx, r.retryCfg, func() error {
		out, err := r.breaker.Execute(func() (map[string]Categorization, error) {
			return r.upstream.Categorize(ctx, names)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return retry.Stop(serrors.Wrap(serrors.ErrUnavailable, err, "categorization circuit open"))
			}

			return err
		}

		result = out

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// dedupe drops empty and repeated names while keeping first-seen order.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))

	for _, name := range names {
		if name == "" {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out
}
