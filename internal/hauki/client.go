// Package hauki talks to the external opening-hours provider. The provider
// exposes a rule hash and a list of open intervals per physical resource; any
// transport, status or decode failure surfaces as ErrProviderUnavailable so
// callers can fall back to cached data.
package hauki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrProviderUnavailable is returned for any provider failure. The caller
// must keep serving the previously cached spans.
var ErrProviderUnavailable = errors.New("hauki: provider unavailable")

// RuleSet is the provider's answer for one resource: an opaque fingerprint of
// the current rules and the open intervals derived from them.
type RuleSet struct {
	Hash  string
	Spans []Span
}

// Span is one open interval, half-open [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Client fetches opening-hours rules over HTTP. The zero value is not usable;
// construct with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client. An empty timeout defaults to ten
// seconds so a stalled provider cannot hold a refresh open indefinitely.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rulesPayload struct {
	Hash  string `json:"hash"`
	Spans []struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"spans"`
}

// FetchRules loads the current rule hash and open intervals for one resource
// over the [from, until) window. The result is complete or an error; partial
// data is never returned.
func (c *Client) FetchRules(ctx context.Context, resourceID int64, from, until time.Time) (RuleSet, error) {
	endpoint := fmt.Sprintf("%s/v1/resources/%d/opening_hours", c.baseURL, resourceID)
	query := url.Values{}
	query.Set("start_date", from.Format("2006-01-02"))
	query.Set("end_date", until.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return RuleSet{}, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RuleSet{}, fmt.Errorf("%w: fetch rules for resource %d: %v", ErrProviderUnavailable, resourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RuleSet{}, fmt.Errorf("%w: fetch rules for resource %d: status %d", ErrProviderUnavailable, resourceID, resp.StatusCode)
	}

	var payload rulesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return RuleSet{}, fmt.Errorf("%w: decode rules for resource %d: %v", ErrProviderUnavailable, resourceID, err)
	}

	rules := RuleSet{Hash: payload.Hash, Spans: make([]Span, 0, len(payload.Spans))}
	for _, s := range payload.Spans {
		if !s.End.After(s.Start) {
			continue
		}
		rules.Spans = append(rules.Spans, Span{Start: s.Start, End: s.End})
	}
	return rules, nil
}
