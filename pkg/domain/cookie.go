package domain

import (
	"strings"
	"time"
)

// Uncategorized is the sentinel filled into the enrichment fields of a
// CookieRecord when categorization is unavailable or knows nothing about the
// cookie.
const Uncategorized = "Unknown"

// SameSite is the SameSite attribute of a cookie as observed in the browser
// or on a Set-Cookie header.
type SameSite string

const (
	// SameSiteStrict means the cookie is only sent in a first-party context.
	SameSiteStrict SameSite = "STRICT"
	// SameSiteLax means the cookie is withheld on cross-site subrequests.
	SameSiteLax SameSite = "LAX"
	// SameSiteNone means the cookie is sent in all contexts.
	SameSiteNone SameSite = "NONE"
	// SameSiteUnspecified means the attribute was absent or unrecognized.
	SameSiteUnspecified SameSite = "UNSPECIFIED"
)

// ParseSameSite maps an attribute value, in whatever casing the browser or
// header used, to its SameSite constant. Unrecognized values map to
// SameSiteUnspecified.
func ParseSameSite(raw string) SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return SameSiteStrict
	case "lax":
		return SameSiteLax
	case "none":
		return SameSiteNone
	default:
		return SameSiteUnspecified
	}
}

// CookieSource classifies who set a cookie relative to the scanned site.
type CookieSource string

const (
	// SourceFirstParty means the cookie's registrable domain matches the scanned site's.
	SourceFirstParty CookieSource = "FIRST_PARTY"
	// SourceThirdParty means the cookie belongs to a different registrable domain.
	SourceThirdParty CookieSource = "THIRD_PARTY"
	// SourceUnknown means the cookie carried no usable domain information.
	SourceUnknown CookieSource = "UNKNOWN"
)

// CookieKey is the identity of a cookie within one scan. Two observations
// with the same key describe the same cookie regardless of which capture
// source saw them first.
type CookieKey struct {
	// Name is the cookie name as sent by the site.
	Name string
	// Domain is the cookie domain, lowercased.
	Domain string
	// Subdomain is the scan-target label the cookie was attributed to.
	Subdomain string
}

// CookieRecord is one distinct cookie discovered during a scan. A record is
// created once per CookieKey and never overwritten afterwards, except for the
// enrichment fields Category, Description and Provider.
type CookieRecord struct {
	// Name is the cookie name.
	Name string `json:"name"`
	// Domain is the host scope the cookie applies to.
	Domain string `json:"domain"`
	// Path is the path scope the cookie applies to.
	Path string `json:"path"`
	// PageURL is the page the engine was on when the cookie was first observed.
	PageURL string `json:"pageUrl"`

	// ExpiresAt is the expiry timestamp, nil for session cookies.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	// Secure reports whether the cookie is restricted to secure transports.
	Secure bool `json:"secure"`
	// HTTPOnly reports whether the cookie is hidden from page scripts.
	HTTPOnly bool `json:"httpOnly"`
	// SameSite is the cookie's SameSite attribute.
	SameSite SameSite `json:"sameSite"`

	// Source classifies the cookie as first-party or third-party relative to
	// the scanned site's registrable domain.
	Source CookieSource `json:"source"`

	// Category is the purpose category from the categorization upstream,
	// Uncategorized when enrichment was unavailable.
	Category string `json:"category"`
	// Description is a human-readable explanation of the cookie's purpose.
	Description string `json:"description"`
	// Provider names the party known to operate this cookie.
	Provider string `json:"provider"`

	// SubdomainName is the scan-target label this cookie was attributed to.
	SubdomainName string `json:"subdomainName"`
}

// Key returns the dedup identity of the record. The domain is lowercased so
// observations from headers and browser storage collapse onto the same key.
func (c CookieRecord) Key() CookieKey {
	return CookieKey{
		Name:      c.Name,
		Domain:    strings.ToLower(c.Domain),
		Subdomain: c.SubdomainName,
	}
}
