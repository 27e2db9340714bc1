package learner

import (
	"context"
	"fmt"

	"github.com/opsloop/sentinel/llm"
	"github.com/opsloop/sentinel/model"
)

// LLMEmbedder adapts llm.Client.Embed onto the enrich.Embedder interface,
// so both the Learner's index write and the Context Enricher's
// HistoryIndex similarity lookup share one embedding-generation path
// (§4.5 "same provider/registry capability abstraction as chat
// completions").
type LLMEmbedder struct {
	Client *llm.Client
}

// Embed implements enrich.Embedder.
func (e *LLMEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.Client.Embed(ctx, llm.EmbeddingRequest{
		Capability: string(model.CapabilityEmbedding),
		Input:      text,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return resp.Embedding, nil
}
