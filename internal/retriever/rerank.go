package retriever

import (
	"context"
	"fmt"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Reranker reorders candidate documents by relevance to the query. The
// returned slice holds indices into docs, best first, one per document.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

// CohereReranker calls the Cohere v2 rerank API.
type CohereReranker struct {
	client *cohereclient.Client
	model  string
}

// NewCohereReranker creates a reranker with the given API key and model.
func NewCohereReranker(apiKey, model string) *CohereReranker {
	return &CohereReranker{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}
}

func (c *CohereReranker) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	topN := len(docs)
	resp, err := c.client.V2.Rerank(ctx, &cohere.V2RerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: docs,
		TopN:      &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere rerank: %w", err)
	}

	order := make([]int, 0, len(resp.Results))
	seen := make(map[int]bool)
	for _, res := range resp.Results {
		order = append(order, res.Index)
		seen[res.Index] = true
	}
	// The API returns at most top_n results; keep any leftovers in their
	// original relative order so the caller gets a full permutation.
	for i := range docs {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order, nil
}
