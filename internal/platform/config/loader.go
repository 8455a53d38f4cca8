package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from an optional YAML file with environment
// variable overrides layered on top of Defaults.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader for the default config path. The path can be
// overridden via the CONFIG_PATH environment variable.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration: defaults, then the YAML file when
// present, then environment overrides.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	path := l.path
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		path = env
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		path = ""
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.LLM.ModelName, "OPENAI_MODEL")
	setString(&cfg.RAG.EmbeddingModel, "OPENAI_EMBEDDING_MODEL")
	setString(&cfg.ObjectStore.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.ObjectStore.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.ObjectStore.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.ObjectStore.Bucket, "MINIO_BUCKET_NAME")
	setBool(&cfg.ObjectStore.Secure, "MINIO_SECURE")

	setInt64(&cfg.Fetch.MaxBytes, "MAX_IMAGE_SIZE_BYTES")
	setSeconds(&cfg.Fetch.Timeout, "DOWNLOAD_TIMEOUT")
	if v := os.Getenv("ALLOWED_IMAGE_TYPES"); v != "" {
		parts := strings.Split(v, ",")
		types := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				types = append(types, strings.ToLower(p))
			}
		}
		if len(types) > 0 {
			cfg.Fetch.AllowedContentTypes = types
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func setSeconds(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = Duration(time.Duration(parsed) * time.Second)
		}
	}
}
