package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsloop/sentinel/security"
)

// maxSearchResponseBytes bounds how much of a PublicKnowledge response
// body gets buffered.
const maxSearchResponseBytes = 2 << 20

// HTTPPublicKnowledgeSource queries an operator-configured search gateway
// restricted to a documentation/Q&A domain allow-list. Search keeps the
// results in the order the gateway returns them, query by query, and
// truncates them to 2x the caller's max result count before
// URL-deduplication happens in Gather; the gateway's score is not used
// for ordering (§4.2 Query derivation).
type HTTPPublicKnowledgeSource struct {
	client         *http.Client
	endpoint       string
	apiKey         string
	allowedDomains []string
	maxResults     int
}

// searchResponse is the gateway's expected JSON shape:
// {"results": [{"url": "...", "title": "...", "snippet": "...", "score": 0.9}]}
type searchResponse struct {
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Snippet string  `json:"snippet"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// NewHTTPPublicKnowledgeSource builds a source against endpoint, restricted
// to allowedDomains (e.g. documentation and Q&A hosts), using the shared
// SSRF-safe client since this source reaches the public internet.
func NewHTTPPublicKnowledgeSource(endpoint, apiKey string, allowedDomains []string) *HTTPPublicKnowledgeSource {
	return &HTTPPublicKnowledgeSource{
		client:         security.NewClient(security.ClientConfig{Timeout: 10 * time.Second}),
		endpoint:       endpoint,
		apiKey:         apiKey,
		allowedDomains: allowedDomains,
		maxResults:     MaxWebKnowledge,
	}
}

// Search implements PublicKnowledgeSource.
func (s *HTTPPublicKnowledgeSource) Search(ctx context.Context, queries []string) ([]WebResult, error) {
	var all []WebResult
	for _, q := range queries {
		results, err := s.searchOne(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}
		all = append(all, results...)
	}

	if len(all) > 2*s.maxResults {
		all = all[:2*s.maxResults]
	}
	return all, nil
}

func (s *HTTPPublicKnowledgeSource) searchOne(ctx context.Context, query string) ([]WebResult, error) {
	reqURL, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("q", query)
	if len(s.allowedDomains) > 0 {
		q.Set("site", strings.Join(s.allowedDomains, ","))
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := security.ReadCapped(resp.Body, maxSearchResponseBytes)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]WebResult, len(parsed.Results))
	for i, r := range parsed.Results {
		out[i] = WebResult{URL: r.URL, Title: r.Title, Snippet: r.Snippet}
	}
	return out, nil
}
