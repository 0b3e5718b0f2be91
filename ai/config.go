package ai

import (
	"errors"
	"strings"
)

type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// OracleHost is the base URL for the chat completion service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	OracleHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// OracleModel is the model identifier used for query analysis, planning,
	// answer generation and evaluation.
	// Example: "qwen2.5:7b", "gpt-4o-mini"
	OracleModel string

	// APIKey is sent as the bearer token. Local servers accept any value.
	// Default: "none"
	APIKey string

	// Temperature for answer generation. Structured judgments always use 0.
	// Default: 0.2
	Temperature float64
}

type ConfigOption func(*Config)

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithOracleHost(host string) ConfigOption {
	return func(c *Config) {
		c.OracleHost = host
	}
}

func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.OracleHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithOracleModel(model string) ConfigOption {
	return func(c *Config) {
		c.OracleModel = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		OracleHost:     defaultHost,
		EmbeddingModel: "embeddinggemma",
		OracleModel:    "qwen2.5:7b",
		APIKey:         "none",
		Temperature:    0.2,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) Normalize() {
	c.EmbeddingHost = withV1Suffix(c.EmbeddingHost)
	c.OracleHost = withV1Suffix(c.OracleHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

// withV1Suffix ensures a host ends with /v1 for OpenAI-compatible APIs.
func withV1Suffix(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.OracleHost == "" {
		return errors.New("ai config: OracleHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.OracleModel == "" {
		return errors.New("ai config: OracleModel is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}
