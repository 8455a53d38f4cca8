package rag

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"smartagri-server-go/internal/platform/errors"
)

// Embedder turns text into vectors. Tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder produces embeddings via the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder wraps an existing client with the configured model.
func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: client, model: model}
}

// Embed requests embeddings for all texts in one call, preserving order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindRetrieval, "rag.Embed", "create embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New(errors.KindRetrieval, "rag.Embed", "embedding count mismatch")
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
