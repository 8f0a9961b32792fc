package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration (graph store)
	Database DatabaseConfig `mapstructure:"database"`

	// Index configuration (lexical/vector store)
	Index IndexConfig `mapstructure:"index"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Extraction configuration
	Extraction ExtractionConfig `mapstructure:"extraction"`

	// Graph build configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// IndexConfig holds lexical/vector index configuration
type IndexConfig struct {
	Backend   string `mapstructure:"backend"` // opensearch, badger
	BaseURL   string `mapstructure:"base_url"`
	IndexName string `mapstructure:"index_name"`
	Path      string `mapstructure:"path"` // badger data directory
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, local
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ExtractionConfig holds concept extraction configuration
type ExtractionConfig struct {
	// NERModel is a HuggingFace model ID or local path for the span model.
	// Empty disables the NER strategy.
	NERModel string `mapstructure:"ner_model"`

	// EmbeddingThreshold is the minimum cosine similarity for the
	// embedding strategy to report a concept.
	EmbeddingThreshold float64 `mapstructure:"embedding_threshold"`

	// MaxKeywords caps the keyword-statistics strategy output.
	MaxKeywords int `mapstructure:"max_keywords"`
}

// GraphConfig holds knowledge-graph build configuration
type GraphConfig struct {
	Namespace            string `mapstructure:"namespace"`
	TopConcepts          int    `mapstructure:"top_concepts"`
	CooccurrenceMinCount int    `mapstructure:"cooccurrence_min_count"`

	// StopListPath and PatternsPath point at optional YAML overrides for
	// the built-in stop list and prerequisite patterns.
	StopListPath string `mapstructure:"stop_list_path"`
	PatternsPath string `mapstructure:"patterns_path"`

	// CheckpointDir enables build checkpointing when non-empty.
	CheckpointDir string `mapstructure:"checkpoint_dir"`
}

// RetrievalConfig holds retrieval configuration
type RetrievalConfig struct {
	TopK              int    `mapstructure:"top_k"`
	RRFK              int    `mapstructure:"rrf_k"`
	BackendMode       string `mapstructure:"backend_mode"` // lexical_vector, graph_native, both
	UseGraphExpansion bool   `mapstructure:"use_graph_expansion"`
	UseWindow         bool   `mapstructure:"use_window"`
	WindowSize        int    `mapstructure:"window_size"`
	ExpansionHops     int    `mapstructure:"expansion_hops"`
	MaxQueryConcepts  int    `mapstructure:"max_query_concepts"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "neo4j")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	// Index defaults
	viper.SetDefault("index.backend", "badger")
	viper.SetDefault("index.base_url", "http://localhost:9200")
	viper.SetDefault("index.index_name", "studygraph_chunks")
	viper.SetDefault("index.path", "./studygraph_index")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.dimensions", 384)

	// Extraction defaults
	viper.SetDefault("extraction.ner_model", "")
	viper.SetDefault("extraction.embedding_threshold", 0.5)
	viper.SetDefault("extraction.max_keywords", 10)

	// Graph defaults
	viper.SetDefault("graph.namespace", "studygraph")
	viper.SetDefault("graph.top_concepts", 200)
	viper.SetDefault("graph.cooccurrence_min_count", 5)
	viper.SetDefault("graph.checkpoint_dir", "")

	// Retrieval defaults
	viper.SetDefault("retrieval.top_k", 10)
	viper.SetDefault("retrieval.rrf_k", 60)
	viper.SetDefault("retrieval.backend_mode", "lexical_vector")
	viper.SetDefault("retrieval.use_graph_expansion", true)
	viper.SetDefault("retrieval.use_window", false)
	viper.SetDefault("retrieval.window_size", 1)
	viper.SetDefault("retrieval.expansion_hops", 1)
	viper.SetDefault("retrieval.max_query_concepts", 5)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.studygraph/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Embedding credentials
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	// Index settings
	if url := os.Getenv("OPENSEARCH_URL"); url != "" {
		config.Index.Backend = "opensearch"
		config.Index.BaseURL = url
	}
	if path := os.Getenv("STUDYGRAPH_INDEX_PATH"); path != "" {
		config.Index.Path = path
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
