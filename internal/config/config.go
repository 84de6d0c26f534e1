// Package config loads the tripscout YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// CompletionsConfig points at the OpenAI-compatible chat endpoint that backs
// the extractor, summarizer, keyword expander and reranker.
type CompletionsConfig struct {
	Host        string  `yaml:"host"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     int     `yaml:"timeout"` // seconds
}

// EmbeddingsConfig points at the OpenAI-compatible embeddings endpoint.
// EmbedPrefix/SearchPrefix are prepended per task type for models that
// expect instruction-prefixed inputs.
type EmbeddingsConfig struct {
	Host         string `yaml:"host"`
	Path         string `yaml:"path"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	EmbedPrefix  string `yaml:"embed_prefix"`
	SearchPrefix string `yaml:"search_prefix"`
	Timeout      int    `yaml:"timeout"`
}

// PlacesConfig configures the external place provider (text-search API).
type PlacesConfig struct {
	Endpoint         string  `yaml:"endpoint"`
	APIKey           string  `yaml:"api_key"`
	LanguageCode     string  `yaml:"language_code"`
	BiasRadiusMeters float64 `yaml:"bias_radius_meters"`
	Timeout          int     `yaml:"timeout"`
}

// WebSearchConfig configures the SearXNG-compatible search endpoint.
type WebSearchConfig struct {
	Endpoint   string `yaml:"endpoint"`
	ResultSize int    `yaml:"result_size"` // URLs fetched per keyword
	Timeout    int    `yaml:"timeout"`
}

// ReaderConfig bounds the content reader.
type ReaderConfig struct {
	Timeout  int   `yaml:"timeout"`
	MaxBytes int64 `yaml:"max_bytes"`
}

// VectorStoreConfig locates the qdrant collection holding POI embeddings.
type VectorStoreConfig struct {
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
}

// PipelineConfig carries the retrieval pipeline knobs.
type PipelineConfig struct {
	KeywordK        int     `yaml:"keyword_k"`
	EmbeddingK      int     `yaml:"embedding_k"`
	FinalPOICount   int     `yaml:"final_poi_count"`
	RerankMinScore  float64 `yaml:"rerank_min_score"`
	RelevanceFloor  float64 `yaml:"relevance_floor"`
	WebWeight       float64 `yaml:"web_weight"`
	EmbeddingWeight float64 `yaml:"embedding_weight"`
	BatchSize       int     `yaml:"batch_size"`
	SemaphoreLimit  int     `yaml:"semaphore_limit"`
}

type Config struct {
	DataPath    string            `yaml:"data_path"`
	Completions CompletionsConfig `yaml:"completions"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	Places      PlacesConfig      `yaml:"places"`
	WebSearch   WebSearchConfig   `yaml:"web_search"`
	Reader      ReaderConfig      `yaml:"reader"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
}

// Load reads the YAML config, applies defaults and environment overrides.
// A .env file next to the process is honored if present.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.applyEnv()

	log.Info().Str("file", filename).Msg("configuration loaded")
	return &cfg, nil
}

// ApplyDefaults fills every unset option with its documented default.
func (c *Config) ApplyDefaults() {
	if c.DataPath == "" {
		c.DataPath = "data"
	}
	if c.Completions.Temperature == 0 {
		c.Completions.Temperature = 0.2
	}
	if c.Completions.MaxTokens == 0 {
		c.Completions.MaxTokens = 2048
	}
	if c.Completions.Timeout == 0 {
		c.Completions.Timeout = 30
	}
	if c.Embeddings.Path == "" {
		c.Embeddings.Path = "/v1/embeddings"
	}
	if c.Embeddings.Timeout == 0 {
		c.Embeddings.Timeout = 30
	}
	if c.Places.Endpoint == "" {
		c.Places.Endpoint = "https://places.googleapis.com/v1/places:searchText"
	}
	if c.Places.BiasRadiusMeters == 0 {
		c.Places.BiasRadiusMeters = 50000
	}
	if c.Places.Timeout == 0 {
		c.Places.Timeout = 10
	}
	if c.WebSearch.ResultSize == 0 {
		c.WebSearch.ResultSize = 3
	}
	if c.WebSearch.Timeout == 0 {
		c.WebSearch.Timeout = 12
	}
	if c.Reader.Timeout == 0 {
		c.Reader.Timeout = 10
	}
	if c.Reader.MaxBytes == 0 {
		c.Reader.MaxBytes = 8 * 1000 * 1000
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "poi_embeddings"
	}
	p := &c.Pipeline
	if p.KeywordK == 0 {
		p.KeywordK = 3
	}
	if p.EmbeddingK == 0 {
		p.EmbeddingK = 5
	}
	if p.FinalPOICount == 0 {
		p.FinalPOICount = 20
	}
	if p.RerankMinScore == 0 {
		p.RerankMinScore = 0.5
	}
	if p.RelevanceFloor == 0 {
		p.RelevanceFloor = 0.3
	}
	if p.WebWeight == 0 {
		p.WebWeight = 0.6
	}
	if p.EmbeddingWeight == 0 {
		p.EmbeddingWeight = 0.4
	}
	if p.BatchSize == 0 {
		p.BatchSize = 10
	}
	if p.SemaphoreLimit == 0 {
		p.SemaphoreLimit = 5
	}
}

func (c *Config) applyEnv() {
	if c.Completions.APIKey == "" {
		c.Completions.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = os.Getenv("EMBEDDINGS_API_KEY")
	}
	if c.Places.APIKey == "" {
		c.Places.APIKey = os.Getenv("PLACES_API_KEY")
	}
	if v := os.Getenv("SEARXNG_URL"); v != "" && c.WebSearch.Endpoint == "" {
		c.WebSearch.Endpoint = v
	}
}
