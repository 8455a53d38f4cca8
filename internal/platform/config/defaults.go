package config

import "time"

// Defaults returns the configuration used when no file or environment
// overrides are present. Fetch limits mirror the documented service defaults:
// 10 MiB cap, 30s end-to-end timeout, 5s DNS budget, raster-image MIME types.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Web: WebConfig{
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:8501"},
		},
		Database: DatabaseConfig{
			Path: "data/smartagri.db",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Queue: QueueConfig{
			PendingKey:  "diagnosis:pending",
			ResultTTL:   Duration(24 * time.Hour),
			Concurrency: 4,
		},
		Fetch: FetchConfig{
			MaxBytes:   10 * 1024 * 1024,
			Timeout:    Duration(30 * time.Second),
			DNSTimeout: Duration(5 * time.Second),
			AllowedContentTypes: []string{
				"image/jpeg",
				"image/jpg",
				"image/png",
				"image/gif",
				"image/webp",
				"image/bmp",
			},
		},
		LLM: LLMConfig{
			ModelName:   "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   2048,
		},
		RAG: RAGConfig{
			IndexPath:      "data/knowledge_index.json",
			EmbeddingModel: "text-embedding-3-small",
			TopK:           3,
		},
		Taxonomy: TaxonomyConfig{
			Path: "data/taxonomy_standard_v1.json",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "localhost:9000",
			Region:   "us-east-1",
			Bucket:   "smart-agriculture",
		},
	}
}
