package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "30s" / "24h" style values in YAML and bare integers as
// seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Web         WebConfig         `yaml:"web"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Queue       QueueConfig       `yaml:"queue"`
	Fetch       FetchConfig       `yaml:"fetch"`
	LLM         LLMConfig         `yaml:"llm"`
	RAG         RAGConfig         `yaml:"rag"`
	Taxonomy    TaxonomyConfig    `yaml:"taxonomy"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"log_level"`
	Format string `yaml:"log_format"`
	Dir    string `yaml:"log_dir"`
	File   string `yaml:"log_file"`
}

type WebConfig struct {
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// QueueConfig controls the asynchronous diagnosis queue.
type QueueConfig struct {
	PendingKey  string   `yaml:"pending_key"`
	ResultTTL   Duration `yaml:"result_ttl"`
	Concurrency int      `yaml:"concurrency"`
}

// FetchConfig is the externally tunable surface of the secure fetcher.
// Every field has a safe default applied by Defaults.
type FetchConfig struct {
	MaxBytes            int64    `yaml:"max_bytes"`
	Timeout             Duration `yaml:"timeout"`
	DNSTimeout          Duration `yaml:"dns_timeout"`
	AllowedContentTypes []string `yaml:"allowed_content_types"`
}

type LLMConfig struct {
	ModelName   string  `yaml:"model_name"`
	BaseURL     string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type RAGConfig struct {
	IndexPath      string `yaml:"index_path"`
	EmbeddingModel string `yaml:"embedding_model"`
	TopK           int    `yaml:"top_k"`
}

type TaxonomyConfig struct {
	Path string `yaml:"path"`
}

type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}
