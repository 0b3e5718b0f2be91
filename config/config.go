// Package config loads quarry's YAML configuration file.
//
// Values not present in the file keep their defaults. ${VAR} references
// anywhere in the file are replaced from the environment before parsing, so
// API keys can stay out of the file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Search provider names.
const (
	ProviderSerpAPI = "serpapi"
	ProviderBrave   = "brave"
)

// Config is the complete quarry configuration.
type Config struct {
	AI      AIConfig      `yaml:"ai"`
	Search  SearchConfig  `yaml:"search"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Rerank  RerankConfig  `yaml:"rerank"`
	Store   StoreConfig   `yaml:"store"`
	Filter  FilterConfig  `yaml:"filter"`
	Session SessionConfig `yaml:"session"`
}

// AIConfig selects the OpenAI-compatible endpoints for the oracle and embeddings.
type AIConfig struct {
	EmbeddingHost  string  `yaml:"embedding_host"`
	OracleHost     string  `yaml:"oracle_host"`
	EmbeddingModel string  `yaml:"embedding_model"`
	OracleModel    string  `yaml:"oracle_model"`
	APIKey         string  `yaml:"api_key"`
	Temperature    float64 `yaml:"temperature"`
}

// SearchConfig selects the web search provider and bounds its request rate.
type SearchConfig struct {
	Provider      string        `yaml:"provider"`
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	MaxResults    int           `yaml:"max_results"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	Retries       int           `yaml:"retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// FetchConfig controls how pages are downloaded.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	MaxBytes  int64         `yaml:"max_bytes"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RerankConfig points at a cross-encoder rerank endpoint. When URL is empty
// candidates are rescored by embedding similarity instead.
type RerankConfig struct {
	URL      string `yaml:"url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	PoolSize int    `yaml:"pool_size"`
}

// StoreConfig locates the chunk store.
type StoreConfig struct {
	Path           string `yaml:"path"`
	InMemory       bool   `yaml:"in_memory"`
	EmbedBatchSize int    `yaml:"embed_batch_size"`
}

// FilterConfig holds relevance thresholds and page chunking sizes.
type FilterConfig struct {
	HeaderThreshold float32 `yaml:"header_threshold"`
	ChunkThreshold  float32 `yaml:"chunk_threshold"`
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
}

// SessionConfig holds the budgets of one research session.
type SessionConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	MaxCrawlDepth int           `yaml:"max_crawl_depth"`
	FetchCap      int           `yaml:"fetch_cap"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		AI: AIConfig{
			EmbeddingHost:  defaultHost,
			OracleHost:     defaultHost,
			EmbeddingModel: "embeddinggemma",
			OracleModel:    "qwen2.5:7b",
			APIKey:         "none",
			Temperature:    0.2,
		},
		Search: SearchConfig{
			Provider:      ProviderSerpAPI,
			MaxResults:    5,
			RatePerSecond: 1,
			Burst:         1,
			Retries:       2,
			RetryDelay:    time.Second,
		},
		Fetch: FetchConfig{
			UserAgent: "QuarryBot/1.0",
			MaxBytes:  2 << 20,
			Timeout:   30 * time.Second,
		},
		Rerank: RerankConfig{
			PoolSize: 15,
		},
		Store: StoreConfig{
			Path:           "./quarry.db",
			EmbedBatchSize: 32,
		},
		Filter: FilterConfig{
			HeaderThreshold: 0.3,
			ChunkThreshold:  0.3,
			ChunkSize:       5000,
			ChunkOverlap:    50,
		},
		Session: SessionConfig{
			MaxIterations: 5,
			MaxCrawlDepth: 3,
			FetchCap:      10,
			CallTimeout:   60 * time.Second,
		},
	}
}

// Load reads a configuration file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and returns all problems found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Search.Provider {
	case ProviderSerpAPI, ProviderBrave:
	default:
		add("search.provider: unknown provider %q", c.Search.Provider)
	}
	if c.Search.MaxResults < 1 {
		add("search.max_results: must be positive")
	}
	if c.Fetch.MaxBytes < 1 {
		add("fetch.max_bytes: must be positive")
	}
	if c.Rerank.PoolSize < 1 {
		add("rerank.pool_size: must be positive")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		add("store.path: required unless store.in_memory is set")
	}
	if c.Filter.HeaderThreshold < 0 || c.Filter.HeaderThreshold > 1 {
		add("filter.header_threshold: must be between 0 and 1")
	}
	if c.Filter.ChunkThreshold < 0 || c.Filter.ChunkThreshold > 1 {
		add("filter.chunk_threshold: must be between 0 and 1")
	}
	if c.Filter.ChunkSize < 1 {
		add("filter.chunk_size: must be positive")
	}
	if c.Filter.ChunkOverlap < 0 || c.Filter.ChunkOverlap >= c.Filter.ChunkSize {
		add("filter.chunk_overlap: must be between 0 and chunk_size")
	}
	if c.Session.MaxIterations < 1 {
		add("session.max_iterations: must be positive")
	}
	if c.Session.MaxCrawlDepth < 0 {
		add("session.max_crawl_depth: must not be negative")
	}
	if c.Session.FetchCap < 1 {
		add("session.fetch_cap: must be positive")
	}
	if c.Session.CallTimeout <= 0 {
		add("session.call_timeout: must be positive")
	}

	return errors.Join(errs...)
}
