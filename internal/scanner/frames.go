package scanner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// frameURLs extracts the distinct child frame URLs from rendered HTML. Blank
// frames and javascript/data pseudo sources are skipped, relative sources are
// resolved against the page URL, and order of first appearance is kept.
func frameURLs(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var frames []string
	seen := make(map[string]struct{})

	doc.Find("iframe[src], frame[src]").Each(func(_ int, sel *goquery.Selection) {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if src == "" || src == "about:blank" ||
			strings.HasPrefix(src, "javascript:") || strings.HasPrefix(src, "data:") {
			return
		}

		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
			return
		}

		resolved := ref.String()
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}

		frames = append(frames, resolved)
	})

	return frames
}
