package chromium

import (
	"context"
	"fmt"
	"time"

	"cookiescan/pkg/browser"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
)

func cookieJar(ctx context.Context) ([]*network.Cookie, error) {
	cookies, err := storage.GetCookies().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get cookies: %w", err)
	}

	return cookies, nil
}

func convertCookies(cookies []*network.Cookie) []browser.Cookie {
	out := make([]browser.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, browser.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expiryTime(c.Expires),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite.String(),
		})
	}

	return out
}

// expiryTime converts the CDP expiry (seconds since epoch, negative for
// session cookies) to a timestamp.
func expiryTime(sec float64) *time.Time {
	if sec <= 0 {
		return nil
	}

	t := time.Unix(int64(sec), 0).UTC()

	return &t
}
