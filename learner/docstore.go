package learner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsloop/sentinel/security"
)

// PostMortem is the document the Learner optionally files for a resolved
// incident (§4.5 step 3).
type PostMortem struct {
	IncidentID string `json:"incident_id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Service    string `json:"service,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// DocStore files a post-mortem document in an external store. A DocStore
// is optional — when unset the Learner skips step 3 entirely.
type DocStore interface {
	Create(ctx context.Context, doc PostMortem) error
}

// HTTPDocStore posts a PostMortem as JSON to an operator-configured
// webhook endpoint (e.g. a wiki or incident-management integration),
// using the shared SSRF-safe client since the endpoint is operator
// configuration, not a fixed internal address — the same posture as
// enrich.HTTPPublicKnowledgeSource.
type HTTPDocStore struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPDocStore builds a DocStore against endpoint.
func NewHTTPDocStore(endpoint, apiKey string) *HTTPDocStore {
	return &HTTPDocStore{
		client:   security.NewClient(security.ClientConfig{Timeout: 10 * time.Second}),
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

// Create implements DocStore.
func (d *HTTPDocStore) Create(ctx context.Context, doc PostMortem) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal post-mortem: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("doc store returned http %d", resp.StatusCode)
	}
	return nil
}
