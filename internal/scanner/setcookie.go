package scanner

import (
	"net/http"
	"strings"

	"cookiescan/pkg/browser"
)

// parseSetCookie parses one raw Set-Cookie header line into a cookie
// observation. The first ";"-separated token must be a name=value pair;
// the remaining tokens are attributes matched case-insensitively. A cookie
// without an explicit Domain attribute belongs to the host of the response
// that set it, a cookie without a Path attribute to "/". Lines that do not
// carry a well-formed name=value pair are rejected.
func parseSetCookie(header, responseURL string) (browser.Cookie, bool) {
	parts := strings.Split(header, ";")

	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return browser.Cookie{}, false
	}

	cookie := browser.Cookie{
		Name:  name,
		Value: strings.TrimSpace(value),
		Path:  "/",
	}

	for _, attr := range parts[1:] {
		key, val, _ := strings.Cut(strings.TrimSpace(attr), "=")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		switch key {
		case "domain":
			cookie.Domain = strings.ToLower(strings.TrimPrefix(val, "."))
		case "path":
			if val != "" {
				cookie.Path = val
			}
		case "secure":
			cookie.Secure = true
		case "httponly":
			cookie.HTTPOnly = true
		case "samesite":
			cookie.SameSite = val
		case "expires":
			if t, err := http.ParseTime(val); err == nil {
				expires := t.UTC()
				cookie.Expires = &expires
			}
		}
	}

	if cookie.Domain == "" {
		cookie.Domain = hostOnly(responseURL)
	}

	return cookie, true
}
