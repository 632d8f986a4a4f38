package categorizer_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"cookiescan/pkg/categorizer"
	"cookiescan/pkg/logger"
	"cookiescan/pkg/retry"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	os.Exit(m.Run())
}

// fakeUpstream is a categorizer.Client recording every batch it receives.
type fakeUpstream struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(names []string) (map[string]categorizer.Categorization, error)
}

func (f *fakeUpstream) Categorize(_ context.Context, names []string) (map[string]categorizer.Categorization, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), names...))
	f.mu.Unlock()

	return f.fn(names)
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func knownCookies(names []string) (map[string]categorizer.Categorization, error) {
	known := map[string]categorizer.Categorization{
		"_ga":       {Name: "_ga", Category: "Analytics", Description: "Distinguishes users", Provider: "Google"},
		"sessionid": {Name: "sessionid", Category: "Necessary", Description: "Session handle", Provider: "Site"},
	}

	out := make(map[string]categorizer.Categorization)
	for _, name := range names {
		if c, ok := known[name]; ok {
			out[name] = c
		}
	}

	return out, nil
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
}

func TestResilientCategorizeHappyPath(t *testing.T) {
	t.Parallel()

	upstream := &fakeUpstream{fn: knownCookies}
	client := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: upstream,
		Cache:    categorizer.NewCache(time.Hour),
		Retry:    fastRetry(3),
	})

	out := client.Categorize(context.Background(), []string{"_ga", "sessionid"})

	require.Len(t, out, 2)
	require.Equal(t, "Analytics", out["_ga"].Category)
	require.Equal(t, 1, upstream.callCount(), "one batch call for the whole pass")
}

func TestResilientServesFromCache(t *testing.T) {
	t.Parallel()

	upstream := &fakeUpstream{fn: knownCookies}
	client := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: upstream,
		Cache:    categorizer.NewCache(time.Hour),
		Retry:    fastRetry(3),
	})

	first := client.Categorize(context.Background(), []string{"_ga"})
	second := client.Categorize(context.Background(), []string{"_ga"})

	require.Equal(t, first, second)
	require.Equal(t, 1, upstream.callCount(), "second lookup must be answered by the cache")
}

func TestResilientRetryBound(t *testing.T) {
	t.Parallel()

	upstream := &fakeUpstream{fn: func([]string) (map[string]categorizer.Categorization, error) {
		return nil, context.DeadlineExceeded
	}}
	client := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: upstream,
		Retry:    fastRetry(3),
		// breaker must not trip before the retry budget is observable
		Breaker: categorizer.BreakerConfig{MinRequests: 100},
	})

	out := client.Categorize(context.Background(), []string{"_ga"})

	require.Empty(t, out, "total upstream failure degrades to an empty map")
	require.Equal(t, 3, upstream.callCount(), "attempts must not exceed the configured budget")
}

func TestResilientBreakerFailsFastWhenOpen(t *testing.T) {
	t.Parallel()

	upstream := &fakeUpstream{fn: func([]string) (map[string]categorizer.Categorization, error) {
		return nil, context.DeadlineExceeded
	}}
	client := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: upstream,
		Retry:    fastRetry(5),
		Breaker: categorizer.BreakerConfig{
			FailureRateThreshold: 0.5,
			MinRequests:          2,
			Interval:             time.Minute,
			Cooldown:             time.Minute,
		},
	})

	// the breaker opens on the second consecutive failure, so the remaining
	// retry attempts are rejected without reaching the upstream
	out := client.Categorize(context.Background(), []string{"_ga"})
	require.Empty(t, out)
	require.Equal(t, 2, upstream.callCount())

	// while open, calls never touch the upstream at all
	out = client.Categorize(context.Background(), []string{"sessionid"})
	require.Empty(t, out)
	require.Equal(t, 2, upstream.callCount(), "open breaker must reject without a network attempt")
}

func TestResilientPartialUpstreamKnowledge(t *testing.T) {
	t.Parallel()

	upstream := &fakeUpstream{fn: knownCookies}
	client := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: upstream,
		Retry:    fastRetry(3),
	})

	out := client.Categorize(context.Background(), []string{"_ga", "obscure_cookie"})

	require.Len(t, out, 1)
	require.Contains(t, out, "_ga")
	require.NotContains(t, out, "obscure_cookie", "unknown names stay absent, callers treat them as uncategorized")
}

func TestResilientCacheIsPureLookaside(t *testing.T) {
	t.Parallel()

	withCache := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: &fakeUpstream{fn: knownCookies},
		Cache:    categorizer.NewCache(time.Hour),
		Retry:    fastRetry(3),
	})
	withoutCache := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: &fakeUpstream{fn: knownCookies},
		Retry:    fastRetry(3),
	})

	names := []string{"_ga", "sessionid", "obscure_cookie"}
	require.Equal(t,
		withoutCache.Categorize(context.Background(), names),
		withCache.Categorize(context.Background(), names),
		"caching must not change which names resolve")
}

func TestResilientDedupesAndDropsEmptyNames(t *testing.T) {
	t.Parallel()

	upstream := &fakeUpstream{fn: knownCookies}
	client := categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: upstream,
		Retry:    fastRetry(3),
	})

	client.Categorize(context.Background(), []string{"_ga", "", "_ga", "sessionid"})

	require.Equal(t, 1, upstream.callCount())
	require.Equal(t, [][]string{{"_ga", "sessionid"}}, upstream.calls)
}

func TestResilientEmptyInput(t *testing.T) {
	t.Parallel()

	upstream := &fakeUpstream{fn: knownCookies}
	client := categorizer.NewResilient(categorizer.ResilientOptions{Upstream: upstream})

	out := client.Categorize(context.Background(), nil)

	require.Empty(t, out)
	require.Zero(t, upstream.callCount())
}

func TestNormalizeCategory(t *testing.T) {
	t.Parallel()

	known := []string{"Necessary", "Analytics", "Marketing"}

	cases := []struct {
		name string
		in   string
		out  string
	}{
		{name: "exact match", in: "Analytics", out: "Analytics"},
		{name: "case-insensitive match uses known spelling", in: "analytics", out: "Analytics"},
		{name: "unknown falls back", in: "Telemetry", out: categorizer.DefaultCategory},
		{name: "empty falls back", in: "", out: categorizer.DefaultCategory},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.out, categorizer.NormalizeCategory(tc.in, known))
		})
	}
}
