// Package chromium drives a headless Chromium through chromedp, implementing
// the browser.Launcher and browser.Session interfaces.
package chromium

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"cookiescan/pkg/browser"
	"cookiescan/pkg/logger"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	// closeGrace bounds how long a graceful shutdown may take before the
	// chromium process tree is force-killed. Chrome child processes can block
	// indefinitely during cleanup.
	closeGrace = 5 * time.Second

	// interactionPause is the settle time between simulated interaction steps.
	interactionPause = 300 * time.Millisecond

	scrollSteps = 4
)

// Launcher starts chromium-backed browser sessions.
type Launcher struct {
	opts browser.Options
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher returns a Launcher producing sessions with the given options.
// Zero option fields fall back to the browser package defaults.
func NewLauncher(opts browser.Options) *Launcher {
	return &Launcher{opts: withDefaults(opts)}
}

func withDefaults(o browser.Options) browser.Options {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = browser.DefaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = browser.DefaultViewportHeight
	}
	if o.UserAgent == "" {
		o.UserAgent = browser.DefaultUserAgent
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = browser.DefaultNavigationTimeout
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = browser.DefaultActionTimeout
	}
	if o.NetworkIdleWait <= 0 {
		o.NetworkIdleWait = browser.DefaultNetworkIdleWait
	}

	return o
}

func execOptions(o browser.Options) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.WindowSize(o.ViewportWidth, o.ViewportHeight),
		chromedp.UserAgent(o.UserAgent),
	)
	if !o.Headless {
		// later flags win, this overrides the headless default
		opts = append(opts, chromedp.Flag("headless", false))
	}

	return opts
}

// Launch starts a chromium process with an isolated browsing context. The
// returned session inherits cancellation from ctx.
func (l *Launcher) Launch(ctx context.Context) (browser.Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, execOptions(l.opts)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &session{
		opts:          l.opts,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		requestURLs:   make(map[network.RequestID]string),
	}
	s.listen()

	// the first Run starts the browser process
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(l.opts.ViewportWidth), int64(l.opts.ViewportHeight)),
	); err != nil {
		s.Close(ctx)

		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}

	return s, nil
}

// session is one chromium browsing context scoped to a single scan.
type session struct {
	opts          browser.Options
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	mu           sync.Mutex
	inflight     int
	lastActivity time.Time
	requestURLs  map[network.RequestID]string
	observations []browser.HeaderObservation
}

var _ browser.Session = (*session)(nil)

// navTier is one wait strategy attempted during navigation.
type navTier struct {
	name    string
	timeout time.Duration
	run     func(s *session, ctx context.Context, url string) error
}

func tiers(navigationTimeout time.Duration) []navTier {
	return []navTier{
		{name: "network-idle", timeout: navigationTimeout, run: (*session).navigateNetworkIdle},
		{name: "dom-content-loaded", timeout: navigationTimeout / 2, run: (*session).navigateDOMContent},
		{name: "load", timeout: navigationTimeout / 4, run: (*session).navigateLoad},
	}
}

// Navigate loads the URL, trying each wait tier in turn with a progressively
// shorter budget. Only when every tier fails does Navigate return an error.
func (s *session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck
	}

	var errs []error
	for _, tier := range tiers(s.opts.NavigationTimeout) {
		tctx, cancel := context.WithTimeout(s.browserCtx, tier.timeout)
		err := tier.run(s, tctx, url)
		cancel()
		if err == nil {
			logger.Debug(ctx, "navigation settled",
				zap.String("url", url),
				zap.String("tier", tier.name))

			return nil
		}

		logger.Warn(ctx, "navigation tier failed",
			zap.String("url", url),
			zap.String("tier", tier.name),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", tier.name, err))
	}

	return fmt.Errorf("all navigation tiers failed for %s: %w", url, errors.Join(errs...))
}

func (s *session) navigateNetworkIdle(ctx context.Context, url string) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("could not navigate: %w", err)
	}

	return s.waitNetworkIdle(ctx)
}

// waitNetworkIdle blocks until no request has been in flight for the
// configured quiet period.
func (s *session) waitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("network idle wait: %w", ctx.Err())
		case <-ticker.C:
			s.mu.Lock()
			quiet := s.inflight == 0 && time.Since(s.lastActivity) >= s.opts.NetworkIdleWait
			s.mu.Unlock()
			if quiet {
				return nil
			}
		}
	}
}

func (s *session) navigateDOMContent(ctx context.Context, url string) error {
	ready := make(chan struct{})
	var once sync.Once

	// listener scope ends with this navigation attempt
	lctx, lcancel := context.WithCancel(ctx)
	defer lcancel()
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			once.Do(func() { close(ready) })
		}
	})

	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err //nolint: wrapcheck
		}
		if errText != "" {
			return errors.New(errText)
		}

		return nil
	})); err != nil {
		return fmt.Errorf("could not start navigation: %w", err)
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dom content wait: %w", ctx.Err())
	}
}

func (s *session) navigateLoad(ctx context.Context, url string) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("could not navigate: %w", err)
	}

	return nil
}

// SimulateInteraction scrolls through the page in increments and toggles the
// viewport, dispatching scroll/resize events so lazily initialized trackers
// get a chance to set their cookies.
func (s *session) SimulateInteraction(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck
	}

	tctx, cancel := context.WithTimeout(s.browserCtx, s.opts.ActionTimeout)
	defer cancel()

	var actions []chromedp.Action
	for i := 1; i <= scrollSteps; i++ {
		fraction := float64(i) / float64(scrollSteps)
		actions = append(actions,
			chromedp.Evaluate(fmt.Sprintf(
				`window.scrollTo(0, document.body.scrollHeight * %f); window.dispatchEvent(new Event('scroll'));`,
				fraction), nil),
			chromedp.Sleep(interactionPause),
		)
	}
	actions = append(actions,
		chromedp.EmulateViewport(int64(s.opts.ViewportWidth/2), int64(s.opts.ViewportHeight/2)),
		chromedp.Evaluate(`window.dispatchEvent(new Event('resize'));`, nil),
		chromedp.Sleep(interactionPause),
		chromedp.EmulateViewport(int64(s.opts.ViewportWidth), int64(s.opts.ViewportHeight)),
		chromedp.Evaluate(`window.dispatchEvent(new Event('resize')); window.scrollTo(0, 0);`, nil),
	)

	if err := chromedp.Run(tctx, actions...); err != nil {
		return fmt.Errorf("could not simulate interaction: %w", err)
	}

	return nil
}

// Cookies reads the browsing context's cookie jar.
func (s *session) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint: wrapcheck
	}

	tctx, cancel := context.WithTimeout(s.browserCtx, s.opts.ActionTimeout)
	defer cancel()

	var out []browser.Cookie
	if err := chromedp.Run(tctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := cookieJar(ctx)
		if err != nil {
			return err
		}
		out = convertCookies(cookies)

		return nil
	})); err != nil {
		return nil, fmt.Errorf("could not read cookie jar: %w", err)
	}

	return out, nil
}

// HTML returns the serialized DOM of the current page.
func (s *session) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err //nolint: wrapcheck
	}

	tctx, cancel := context.WithTimeout(s.browserCtx, s.opts.ActionTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(tctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("could not serialize page: %w", err)
	}

	return html, nil
}

// Close releases the browsing context, then the browser, then the allocator.
// A shutdown that exceeds closeGrace force-kills the chromium process so a
// wedged browser can never leak past the scan that owned it.
func (s *session) Close(ctx context.Context) {
	// capture the process before cancelling, afterwards the reference is gone
	var proc *os.Process
	if c := chromedp.FromContext(s.browserCtx); c != nil && c.Browser != nil {
		proc = c.Browser.Process()
	}

	done := make(chan struct{})
	go func() {
		s.cancelBrowser()
		s.cancelAlloc()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(closeGrace):
		if proc != nil {
			if err := proc.Kill(); err != nil {
				logger.Warn(ctx, "could not kill chromium process", zap.Error(err))
			}
		}
		logger.Warn(ctx, "browser shutdown timed out, chromium process killed")
	}
}
