// Package config provides configuration management for wolfmem.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for wolfmem.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP query surface configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Store is the memory store (Postgres + pgvector) configuration.
	Store StoreConfig `mapstructure:"store" validate:"required"`

	// Intake is the intake pipeline configuration.
	Intake IntakeConfig `mapstructure:"intake"`

	// Fleet is the embedding backfill fleet configuration.
	Fleet FleetConfig `mapstructure:"fleet"`

	// Graph is the Neo4j graph projection configuration.
	Graph GraphConfig `mapstructure:"graph"`

	// Steno is the session transcriber configuration.
	Steno StenoConfig `mapstructure:"steno"`

	// Supervisor is the session supervisor configuration.
	Supervisor SupervisorConfig `mapstructure:"supervisor"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`

	// DataDir is the root directory for queue directories and per-service logs.
	DataDir string `mapstructure:"data_dir"`
}

// ServerConfig holds the HTTP query surface configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host" validate:"omitempty,host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RequestTimeout is the per-request timeout applied by middleware.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StoreConfig holds memory store (Postgres + pgvector) settings.
type StoreConfig struct {
	// Host is the Postgres host.
	Host string `mapstructure:"host" validate:"required,host"`

	// Port is the Postgres port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// Database is the database name.
	Database string `mapstructure:"database" validate:"required"`

	// User is the database user.
	User string `mapstructure:"user" validate:"required"`

	// Password is the database password.
	Password string `mapstructure:"password"`

	// SSLMode is the Postgres sslmode parameter.
	SSLMode string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	// MaxConns is the connection pool size.
	MaxConns int `mapstructure:"max_conns" validate:"min=0"`

	// EmbeddingModel is the single model used for both ingest-time and
	// query-time embeddings. Using the same model on both sides keeps
	// query vectors comparable to stored vectors.
	EmbeddingModel string `mapstructure:"embedding_model" validate:"required"`

	// EmbeddingDim is the declared vector dimension; vectors of any
	// other length are refused.
	EmbeddingDim int `mapstructure:"embedding_dim" validate:"min=1"`

	// OllamaURL is the base URL of the Ollama server used for query
	// embeddings.
	OllamaURL string `mapstructure:"ollama_url"`
}

// DSN returns the Postgres connection string.
func (s StoreConfig) DSN() string {
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Database, sslMode)
}

// IntakeConfig holds intake pipeline settings.
type IntakeConfig struct {
	// DumpDir is the directory producers drop raw exchange records into.
	DumpDir string `mapstructure:"dump_dir"`

	// QueueDir is the directory enriched records await insertion in.
	QueueDir string `mapstructure:"queue_dir"`

	// ProcessedDir is the audit directory for successfully inserted records.
	ProcessedDir string `mapstructure:"processed_dir"`

	// FailedDir is where permanently rejected records are parked.
	FailedDir string `mapstructure:"failed_dir"`

	// ArchiveDir is where raw exchange files land after enrichment.
	ArchiveDir string `mapstructure:"archive_dir"`

	// PollInterval is the interval between enrich passes.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// EnrichTimeout is the per-call language model timeout.
	EnrichTimeout time.Duration `mapstructure:"enrich_timeout"`

	// Workers is the size of the bounded enrich worker pool.
	Workers int `mapstructure:"workers" validate:"min=1"`

	// OllamaURL is the base URL of the Ollama server for enrichment.
	OllamaURL string `mapstructure:"ollama_url"`

	// KeywordModel is the model used for keyword extraction.
	KeywordModel string `mapstructure:"keyword_model"`

	// SentimentModel is the model used for sentiment scoring.
	SentimentModel string `mapstructure:"sentiment_model"`

	// SummaryModel is the model used for summarization.
	SummaryModel string `mapstructure:"summary_model"`

	// RateLimit is the maximum language model calls per second (0 = unlimited).
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// MaxRetries is the number of insert attempts for transient failures.
	MaxRetries int `mapstructure:"max_retries" validate:"min=1"`
}

// FleetConfig holds embedding backfill fleet settings.
type FleetConfig struct {
	// Models is the fleet of embedding models, assigned round-robin.
	Models []string `mapstructure:"models" validate:"min=1"`

	// BatchSize is the maximum rows claimed per pass.
	BatchSize int `mapstructure:"batch_size" validate:"min=1"`

	// Workers is the size of the bounded worker pool.
	Workers int `mapstructure:"workers" validate:"min=1"`

	// Lookback restricts backfill to rows created within this window.
	Lookback time.Duration `mapstructure:"lookback"`

	// Interval is the pause between passes in continuous mode.
	Interval time.Duration `mapstructure:"interval"`

	// OllamaURL is the base URL of the Ollama server for embeddings.
	OllamaURL string `mapstructure:"ollama_url"`
}

// GraphConfig holds Neo4j graph projection settings.
type GraphConfig struct {
	// URI is the Neo4j bolt URI.
	URI string `mapstructure:"uri"`

	// User is the Neo4j user.
	User string `mapstructure:"user"`

	// Password is the Neo4j password.
	Password string `mapstructure:"password"`

	// BatchSize is the number of memories streamed per batch.
	BatchSize int `mapstructure:"batch_size" validate:"min=1"`

	// SimilarityThreshold is the minimum cosine similarity for RELATED_TO edges.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"min=0,max=1"`

	// KNeighbors is the number of nearest neighbors considered per memory.
	KNeighbors int `mapstructure:"k_neighbors" validate:"min=1"`

	// WriteTimeout is the per-batch write timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Similarity enables the RELATED_TO similarity pass.
	Similarity bool `mapstructure:"similarity"`
}

// StenoConfig holds session transcriber settings.
type StenoConfig struct {
	// QueueDir is where emitted exchange records are written.
	QueueDir string `mapstructure:"queue_dir"`

	// PollInterval is the tail polling interval.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Source tags emitted records with their producing agent CLI.
	Source string `mapstructure:"source" validate:"omitempty,oneof=claude gemini"`
}

// SupervisorConfig holds session supervisor settings.
type SupervisorConfig struct {
	// SessionsDir is the root directory scanned for session files.
	SessionsDir string `mapstructure:"sessions_dir"`

	// CheckInterval is how often active sessions are re-enumerated.
	CheckInterval time.Duration `mapstructure:"check_interval"`

	// StaleThreshold is the mtime age beyond which a session is inactive.
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`

	// GracePeriod is how long a child gets after SIGTERM before SIGKILL.
	GracePeriod time.Duration `mapstructure:"grace_period"`

	// Source selects which agent CLI's session layout is scanned.
	Source string `mapstructure:"source" validate:"omitempty,oneof=claude gemini"`

	// LogsDir is where per-session child logs are written.
	LogsDir string `mapstructure:"logs_dir"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the span exporter. Only "otlp" is supported.
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the OTLP gRPC collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout bounds each export call.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are extra gRPC metadata headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`

	// Sampler selects the sampling strategy: parent_ratio (default),
	// always_on, or always_off.
	Sampler string `mapstructure:"sampler"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Store: %s/%s, Env: %s}",
		c.App.Name, c.Server.Port, c.Store.Host, c.Store.Database, c.App.Environment)
}
