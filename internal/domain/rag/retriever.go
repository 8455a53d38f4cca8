// Package rag retrieves agricultural knowledge passages by vector similarity.
// The index is a JSON file with pre-computed embeddings; queries embed the
// search text and rank documents by cosine similarity.
package rag

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"smartagri-server-go/internal/platform/errors"
)

// Document is one knowledge passage with its source metadata.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type indexedDocument struct {
	Document
	Embedding []float32 `json:"embedding"`
}

type indexFile struct {
	EmbeddingModel string            `json:"embedding_model"`
	Documents      []indexedDocument `json:"documents"`
}

// Retriever answers similarity queries over a persisted index.
type Retriever struct {
	embedder Embedder
	topK     int

	mu    sync.RWMutex
	index indexFile
	path  string
}

// NewRetriever loads the index at path. A missing file yields an empty
// retriever; queries against it return no documents.
func NewRetriever(path string, embedder Embedder, topK int) (*Retriever, error) {
	if topK <= 0 {
		topK = 3
	}
	r := &Retriever{
		embedder: embedder,
		topK:     topK,
		path:     path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, errors.Wrap(errors.KindRetrieval, "rag.NewRetriever",
			fmt.Sprintf("read index %s", path), err)
	}
	if err := sonic.Unmarshal(data, &r.index); err != nil {
		return nil, errors.Wrap(errors.KindRetrieval, "rag.NewRetriever",
			fmt.Sprintf("parse index %s", path), err)
	}
	return r, nil
}

// Len reports how many documents are indexed.
func (r *Retriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index.Documents)
}

// Add embeds the documents and appends them to the index, persisting the
// result. Used by the ingestion command.
func (r *Retriever) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range docs {
		r.index.Documents = append(r.index.Documents, indexedDocument{
			Document:  d,
			Embedding: vectors[i],
		})
	}
	return r.persistLocked()
}

func (r *Retriever) persistLocked() error {
	data, err := sonic.Marshal(&r.index)
	if err != nil {
		return errors.Wrap(errors.KindRetrieval, "rag.persist", "encode index", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return errors.Wrap(errors.KindRetrieval, "rag.persist",
			fmt.Sprintf("write index %s", r.path), err)
	}
	return nil
}

// Query returns the topK most similar documents to the query text.
func (r *Retriever) Query(ctx context.Context, queryText string, topK int) ([]Document, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, errors.New(errors.KindRetrieval, "rag.Query", "query text is empty")
	}
	if topK <= 0 {
		topK = r.topK
	}

	r.mu.RLock()
	docCount := len(r.index.Documents)
	r.mu.RUnlock()
	if docCount == 0 {
		return nil, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, err
	}
	queryVec := vectors[0]

	type scored struct {
		doc   Document
		score float64
	}

	r.mu.RLock()
	ranked := make([]scored, 0, docCount)
	for _, d := range r.index.Documents {
		ranked = append(ranked, scored{doc: d.Document, score: cosineSimilarity(queryVec, d.Embedding)})
	}
	r.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if topK > len(ranked) {
		topK = len(ranked)
	}

	results := make([]Document, topK)
	for i := 0; i < topK; i++ {
		results[i] = ranked[i].doc
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
