package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/animavtuber/core/internal/metrics"
)

// Retriever embeds a query, searches a Qdrant collection, and formats the
// hits as a context block for the LLM prompt. Implements
// internal/orchestrator.Knowledge.
type Retriever struct {
	embedder       *EmbeddingClient
	qdrant         *QdrantClient
	collection     string
	topK           int
	scoreThreshold float64
}

// RetrieverConfig configures a Retriever.
type RetrieverConfig struct {
	Embedder       *EmbeddingClient
	Qdrant         *QdrantClient
	Collection     string
	TopK           int
	ScoreThreshold float64
}

// NewRetriever creates a knowledge Retriever.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	return &Retriever{
		embedder:       cfg.Embedder,
		qdrant:         cfg.Qdrant,
		collection:     cfg.Collection,
		topK:           cfg.TopK,
		scoreThreshold: cfg.ScoreThreshold,
	}
}

// Retrieve implements internal/orchestrator.Knowledge: returns an empty
// string, not an error, when nothing relevant is found.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	start := time.Now()

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("knowledge: embed query: %w", err)
	}

	results, err := r.qdrant.Search(ctx, r.collection, vector, r.topK, r.scoreThreshold)
	if err != nil {
		return "", fmt.Errorf("knowledge: search: %w", err)
	}

	metrics.RAGDuration.Observe(time.Since(start).Seconds())

	if len(results) == 0 {
		return "", nil
	}
	return formatResults(results), nil
}

func formatResults(results []SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		text, ok := r.Payload["text"].(string)
		if !ok {
			text = fmt.Sprintf("%v", r.Payload["text"])
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n---\n")
}
