// Command smartagri-ingest loads Markdown and plain-text documents from a
// directory, splits them into overlapping chunks, embeds the chunks through
// the configured OpenAI-compatible API, and appends them to the knowledge
// index used by the diagnosis retriever.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"smartagri-server-go/internal/domain/rag"
	"smartagri-server-go/internal/platform/config"
	"smartagri-server-go/internal/platform/logging"
)

const embedBatchSize = 16

func main() {
	var (
		path      = flag.String("path", "data/knowledge", "directory of .md/.txt documents to ingest")
		chunkSize = flag.Int("chunk-size", 1500, "maximum chunk size in runes")
		overlap   = flag.Int("overlap", 300, "overlap between consecutive chunks in runes")
		reset     = flag.Bool("reset", false, "delete the existing index before ingesting")
	)
	flag.Parse()

	if err := run(*path, *chunkSize, *overlap, *reset); err != nil {
		fmt.Fprintf(os.Stderr, "ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func run(root string, chunkSize, overlap int, reset bool) error {
	result, err := config.NewLoader().Load()
	if err != nil {
		return err
	}
	cfg := result.Config

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	log := logger.Slog()

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not configured")
	}

	if reset {
		if err := os.Remove(cfg.RAG.IndexPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reset index %s: %w", cfg.RAG.IndexPath, err)
		}
		log.Info("index reset", "path", cfg.RAG.IndexPath)
	}

	docs, err := collectDocuments(root, chunkSize, overlap)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		log.Warn("no documents found, nothing to ingest", "path", root)
		return nil
	}
	log.Info("documents chunked", "path", root, "chunks", len(docs))

	clientCfg := openai.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.BaseURL != "" {
		clientCfg.BaseURL = cfg.LLM.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	embedder := rag.NewOpenAIEmbedder(client, cfg.RAG.EmbeddingModel)
	retriever, err := rag.NewRetriever(cfg.RAG.IndexPath, embedder, cfg.RAG.TopK)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := retriever.Add(ctx, docs[start:end]); err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		log.Info("batch indexed", "done", end, "total", len(docs))
	}

	log.Info("ingestion complete", "documents", retriever.Len(), "index", cfg.RAG.IndexPath)
	return nil
}

// collectDocuments walks root, reading .md and .txt files and splitting them
// into chunk documents keyed by relative path and chunk ordinal.
func collectDocuments(root string, chunkSize, overlap int) ([]rag.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("knowledge directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge path %s is not a directory", root)
	}

	var docs []rag.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		for i, chunk := range rag.SplitText(string(data), chunkSize, overlap) {
			docs = append(docs, rag.Document{
				ID:      fmt.Sprintf("%s#%d", rel, i),
				Content: chunk,
				Source:  rel,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
