package scanner

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"cookiescan/pkg/domain"
	"cookiescan/pkg/serrors"
)

// hostOnly returns the hostname of a URL without port or brackets. An empty
// string is returned when the URL cannot be parsed.
func hostOnly(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}

// registrableDomain reduces a hostname to its registrable root domain,
// e.g. "shop.example.co.uk" -> "example.co.uk". The public suffix list
// handles multi-part TLDs; when it cannot (IP addresses, single-label
// hosts), the last two labels are used instead.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.Trim(host, "."))

	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		parts := strings.Split(host, ".")
		if len(parts) >= 2 {
			return strings.Join(parts[len(parts)-2:], ".")
		}

		return host
	}

	return root
}

// subdomainLabel derives the bucket label for a subdomain host by stripping
// the root domain, e.g. ("shop.example.com", "example.com") -> "shop". A host
// equal to the root domain keeps the full host as its label.
func subdomainLabel(host, rootDomain string) string {
	host = strings.ToLower(host)
	label := strings.TrimSuffix(host, "."+strings.ToLower(rootDomain))
	if label == "" || label == host {
		// host is the root domain itself or carries no extra labels
		return host
	}

	return label
}

// appliesTo reports whether a cookie scoped to cookieDomain would be sent to
// the given host. A leading dot on the cookie domain is ignored, matching how
// browsers treat domain attributes.
func appliesTo(cookieDomain, host string) bool {
	d := strings.TrimPrefix(strings.ToLower(cookieDomain), ".")
	host = strings.ToLower(host)

	return d != "" && (host == d || strings.HasSuffix(host, "."+d))
}

// classifySource decides whether a cookie domain is first or third party
// relative to the scanned site's registrable root domain. Cookies without
// usable domain information are UNKNOWN.
func classifySource(cookieDomain, siteRoot string) domain.CookieSource {
	d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cookieDomain)), ".")
	if d == "" || siteRoot == "" {
		return domain.SourceUnknown
	}

	if strings.EqualFold(registrableDomain(d), siteRoot) {
		return domain.SourceFirstParty
	}

	return domain.SourceThirdParty
}

// buildTargets normalizes and validates the scan input into the ordered
// target list: the root URL labeled "main" first, then each subdomain in the
// order it was supplied. Every subdomain must share the root URL's registrable
// domain; a foreign host rejects the whole request. Duplicate subdomain URLs
// are dropped, keeping the first occurrence.
func buildTargets(rootURL string, subdomains []string) ([]domain.ScanTarget, error) {
	normalizedRoot, err := NormalizeURL(rootURL)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrBadRequest, err, "invalid URL")
	}

	rootDomain := registrableDomain(hostOnly(normalizedRoot))
	if rootDomain == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "could not derive a root domain from %q", rootURL)
	}

	targets := []domain.ScanTarget{{URL: normalizedRoot, SubdomainLabel: domain.MainSubdomainLabel}}
	seen := map[string]struct{}{normalizedRoot: {}}

	for _, sub := range subdomains {
		normalized, err := NormalizeURL(sub)
		if err != nil {
			return nil, serrors.Wrap(serrors.ErrBadRequest, err, "invalid subdomain URL %q", sub)
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}

		host := hostOnly(normalized)
		if !strings.EqualFold(registrableDomain(host), rootDomain) {
			return nil, serrors.With(serrors.ErrBadRequest,
				"subdomain %q does not belong to %q", sub, rootDomain)
		}

		targets = append(targets, domain.ScanTarget{
			URL:            normalized,
			SubdomainLabel: subdomainLabel(host, rootDomain),
		})
	}

	return targets, nil
}
