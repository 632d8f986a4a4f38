package scanner

import (
	"strings"

	"cookiescan/pkg/browser"
	"cookiescan/pkg/domain"
)

// nameDomain identifies a cookie independent of the label it was filed under.
type nameDomain struct {
	name   string
	domain string
}

// collector holds the dedup state of one scan. The first observation of a
// (name, domain, label) key wins; later observations of the same key are
// dropped no matter which capture source or pass produced them.
type collector struct {
	seen     map[domain.CookieKey]struct{}
	anywhere map[nameDomain]struct{}
}

func newCollector() *collector {
	return &collector{
		seen:     make(map[domain.CookieKey]struct{}),
		anywhere: make(map[nameDomain]struct{}),
	}
}

// merge filters observations down to records not seen before and returns them
// in observation order. label is the subdomain bucket the records are
// attributed to, pageURL is stamped on each record, and classifyRoot is the
// registrable domain the first/third-party decision is made against.
func (c *collector) merge(observed []browser.Cookie, label, pageURL, classifyRoot string) []domain.CookieRecord {
	var records []domain.CookieRecord

	for _, cookie := range observed {
		if cookie.Name == "" {
			continue
		}

		record := domain.CookieRecord{
			Name:          cookie.Name,
			Domain:        strings.TrimPrefix(cookie.Domain, "."),
			Path:          cookie.Path,
			PageURL:       pageURL,
			ExpiresAt:     cookie.Expires,
			Secure:        cookie.Secure,
			HTTPOnly:      cookie.HTTPOnly,
			SameSite:      domain.ParseSameSite(cookie.SameSite),
			Source:        classifySource(cookie.Domain, classifyRoot),
			Category:      domain.Uncategorized,
			Description:   domain.Uncategorized,
			Provider:      domain.Uncategorized,
			SubdomainName: label,
		}
		if record.Path == "" {
			record.Path = "/"
		}

		key := record.Key()
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		c.anywhere[nameDomain{name: key.Name, domain: key.Domain}] = struct{}{}

		records = append(records, record)
	}

	return records
}

// mergeUnrecorded behaves like merge but only accepts cookies that no label
// has recorded yet. The final catch-all pass uses it so late cookies are not
// lost without re-filing everything the per-target passes already saw.
func (c *collector) mergeUnrecorded(observed []browser.Cookie,
	label, pageURL, classifyRoot string) []domain.CookieRecord {
	fresh := observed[:0:0]
	for _, cookie := range observed {
		nd := nameDomain{
			name:   cookie.Name,
			domain: strings.ToLower(strings.TrimPrefix(cookie.Domain, ".")),
		}
		if _, ok := c.anywhere[nd]; ok {
			continue
		}
		fresh = append(fresh, cookie)
	}

	return c.merge(fresh, label, pageURL, classifyRoot)
}
