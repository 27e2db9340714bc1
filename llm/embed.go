package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/opsloop/sentinel/model"
)

// EmbeddingRequest requests a vector embedding for a single text under a
// capability (normally "embedding").
type EmbeddingRequest struct {
	Capability string
	Input      string
}

// EmbeddingResponse carries the resulting vector.
type EmbeddingResponse struct {
	RequestID string
	Embedding []float64
	Model     string
}

// EmbeddingProvider is implemented by providers that expose a vector
// embedding endpoint alongside chat completions. It's kept separate from
// Provider rather than added to it because not every provider has an
// embeddings API (Anthropic's chat API has no embeddings equivalent);
// Client.Embed type-asserts instead of requiring every Provider to
// implement it.
type EmbeddingProvider interface {
	BuildEmbeddingURL(baseURL string) string
	BuildEmbeddingRequestBody(model, input string) ([]byte, error)
	ParseEmbeddingResponse(body []byte) ([]float64, error)
}

// Embed resolves capability to a fallback chain exactly as Complete does,
// skipping any endpoint whose provider doesn't implement EmbeddingProvider.
func (c *Client) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if req.Input == "" {
		return nil, fmt.Errorf("input is required")
	}

	capVal := model.ParseCapability(req.Capability)
	if capVal == "" {
		capVal = model.CapabilityEmbedding
	}
	chain := c.registry.GetAvailableFallbackChain(capVal)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}

	var lastErr error
	for _, modelName := range chain {
		endpoint := c.registry.GetEndpoint(modelName)
		if endpoint == nil {
			continue
		}
		if !c.registry.IsEndpointAvailable(modelName) {
			continue
		}

		provider := GetProvider(endpoint.Provider)
		if provider == nil {
			continue
		}
		embProvider, ok := provider.(EmbeddingProvider)
		if !ok {
			lastErr = fmt.Errorf("provider %s does not support embeddings", endpoint.Provider)
			continue
		}

		resp, err := c.doEmbeddingRequest(ctx, endpoint, provider, embProvider, req.Input)
		if err != nil {
			c.registry.MarkEndpointFailure(modelName)
			lastErr = err
			continue
		}
		c.registry.MarkEndpointSuccess(modelName)
		resp.RequestID = newRequestID()
		resp.Model = modelName
		return resp, nil
	}

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

func (c *Client) doEmbeddingRequest(ctx context.Context, ep *model.EndpointConfig, provider Provider, emb EmbeddingProvider, input string) (*EmbeddingResponse, error) {
	url := emb.BuildEmbeddingURL(ep.URL)
	body, err := emb.BuildEmbeddingRequestBody(ep.Model, input)
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, respBody)
	}

	vec, err := emb.ParseEmbeddingResponse(respBody)
	if err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	return &EmbeddingResponse{Embedding: vec}, nil
}
