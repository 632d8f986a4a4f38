// Package browser defines the headless-browser surface the scan engine drives.
// Implementations live in subpackages (e.g. chromium); the engine only depends
// on the interfaces here so tests can substitute a fake session.
package browser

import (
	"context"
	"time"
)

// Defaults applied by implementations when the corresponding option is zero.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	DefaultNavigationTimeout = 30 * time.Second
	DefaultActionTimeout     = 10 * time.Second
	DefaultNetworkIdleWait   = 2 * time.Second

	// DefaultUserAgent identifies the engine to the sites it visits while still
	// looking like a current browser to consent platforms.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/126.0.0.0 Safari/537.36 CookieScan/1.0"
)

// Options configures a launched browser session.
type Options struct {
	// Headless controls whether the browser runs without a visible window.
	Headless bool
	// ViewportWidth and ViewportHeight fix the browsing context's viewport.
	ViewportWidth  int
	ViewportHeight int
	// UserAgent is sent on every request the session makes.
	UserAgent string
	// NavigationTimeout bounds the first (most patient) navigation tier; the
	// fallback tiers derive progressively shorter budgets from it.
	NavigationTimeout time.Duration
	// ActionTimeout bounds non-navigation operations such as reading the cookie
	// jar or serializing the page.
	ActionTimeout time.Duration
	// NetworkIdleWait is the quiet period with no in-flight requests that
	// counts as "network idle" during navigation.
	NetworkIdleWait time.Duration
}

// Cookie is one cookie read from the browsing context's jar.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  *time.Time
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// HeaderObservation is one Set-Cookie header seen on a network response while
// the session was loading pages.
type HeaderObservation struct {
	// ResponseURL is the URL of the response that carried the header. Empty
	// when the response could not be correlated to its request.
	ResponseURL string
	// Header is the raw Set-Cookie line.
	Header string
}

// Launcher starts browser sessions. Every scan acquires its own session;
// sessions are never shared or pooled across scans.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one isolated browsing context driving one scan.
//
// Close must be safe on every exit path: it releases the context, then the
// browser, then the automation runtime, logging release failures instead of
// returning them so cleanup can never mask the error that got us there.
type Session interface {
	// Navigate loads the URL, falling back through progressively cheaper wait
	// conditions (network idle, DOM content loaded, basic load). It returns an
	// error only when every tier failed.
	Navigate(ctx context.Context, url string) error
	// DismissConsent makes a best-effort attempt to accept a consent banner
	// within the given timeout and reports whether a banner was clicked.
	DismissConsent(ctx context.Context, timeout time.Duration) bool
	// SimulateInteraction scrolls through the page in increments and dispatches
	// scroll/resize events to trigger lazily loaded trackers.
	SimulateInteraction(ctx context.Context) error
	// Cookies returns the browsing context's cookie jar.
	Cookies(ctx context.Context) ([]Cookie, error)
	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)
	// TakeHeaderObservations drains the Set-Cookie headers observed since the
	// previous call.
	TakeHeaderObservations() []HeaderObservation
	// Close tears the session down.
	Close(ctx context.Context)
}
