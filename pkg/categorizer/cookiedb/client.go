// Package cookiedb provides a categorizer.Client implementation backed by an
// HTTP cookie-category database service.
package cookiedb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cookiescan/pkg/categorizer"
	"cookiescan/pkg/serrors"
)

// Client talks to the categorization endpoint and fulfills the
// categorizer.Client interface. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs HTTP requests to the categorization service
	endpoint   string       // endpoint is the full URL of the categorization API
}

// New constructs a Client that uses the provided http.Client and endpoint URL.
// The http.Client's timeout bounds each individual categorization attempt.
func New(httpClient *http.Client, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
	}
}

// Categorize sends the cookie names to the categorization service and returns
// the enrichment keyed by name. Any non-2xx status, unparsable body or empty
// result is reported as an error so the caller's retry policy can treat it as
// transient.
func (c *Client) Categorize(ctx context.Context, names []string) (map[string]categorizer.Categorization, error) {
	type categorizeReq struct {
		Names []string `json:"names"`
	}

	bodyBytes, err := json.Marshal(categorizeReq{Names: names})
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(bodyBytes)))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, serrors.With(serrors.ErrRateLimited, "rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serrors.With(serrors.ErrUnavailable,
			"categorize returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var results []categorizer.Categorization
	if err := json.Unmarshal(b, &results); err != nil {
		return nil, serrors.Wrap(serrors.ErrUnavailable, err, "could not decode response")
	}
	if len(results) == 0 {
		return nil, serrors.With(serrors.ErrUnavailable, "empty categorization response")
	}

	out := make(map[string]categorizer.Categorization, len(results))
	for _, result := range results {
		if result.Name == "" {
			continue
		}

		out[result.Name] = result
	}

	return out, nil
}

// Ensure Client conforms to the categorizer.Client interface at compile time.
var _ categorizer.Client = (*Client)(nil)
