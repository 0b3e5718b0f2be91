package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.OracleHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:7b", cfg.OracleModel)
	assert.Equal(t, "none", cfg.APIKey)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.OracleHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithOracleHost("http://chat:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.OracleHost)
	})

	t.Run("with custom models and key", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithOracleModel("gpt-4o-mini"),
			WithAPIKey("sk-test"),
			WithTemperature(0.7),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.OracleModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name           string
		embeddingHost  string
		oracleHost     string
		expectedEmbed  string
		expectedOracle string
	}{
		{
			name:           "already has /v1",
			embeddingHost:  "http://localhost:11434/v1",
			oracleHost:     "http://localhost:11434/v1",
			expectedEmbed:  "http://localhost:11434/v1",
			expectedOracle: "http://localhost:11434/v1",
		},
		{
			name:           "missing /v1",
			embeddingHost:  "http://localhost:11434",
			oracleHost:     "http://localhost:11434",
			expectedEmbed:  "http://localhost:11434/v1",
			expectedOracle: "http://localhost:11434/v1",
		},
		{
			name:           "has trailing slash",
			embeddingHost:  "http://localhost:11434/",
			oracleHost:     "http://localhost:11434/",
			expectedEmbed:  "http://localhost:11434/v1",
			expectedOracle: "http://localhost:11434/v1",
		},
		{
			name:           "empty hosts",
			embeddingHost:  "",
			oracleHost:     "",
			expectedEmbed:  "",
			expectedOracle: "",
		},
		{
			name:           "different formats",
			embeddingHost:  "http://embed:8080",
			oracleHost:     "http://chat:9090/v1",
			expectedEmbed:  "http://embed:8080/v1",
			expectedOracle: "http://chat:9090/v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingHost: tt.embeddingHost,
				OracleHost:    tt.oracleHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedEmbed, cfg.EmbeddingHost)
			assert.Equal(t, tt.expectedOracle, cfg.OracleHost)
			assert.Equal(t, "none", cfg.APIKey)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EmbeddingHost:  "http://localhost:11434",
			OracleHost:     "http://localhost:11434",
			EmbeddingModel: "embeddinggemma",
			OracleModel:    "qwen2.5:7b",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()

		require.NoError(t, cfg.Validate())

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.OracleHost)
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing oracle host", func(c *Config) { c.OracleHost = "" }, "OracleHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing oracle model", func(c *Config) { c.OracleModel = "" }, "OracleModel"},
		{"negative temperature", func(c *Config) { c.Temperature = -0.1 }, "Temperature"},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, "Temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
