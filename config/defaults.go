package config

import "time"

// DefaultEmbedFleet is the default set of lightweight embedding models the
// backfill fleet rotates through.
var DefaultEmbedFleet = []string{
	"nomic-embed-text:v1.5",
	"mxbai-embed-large:latest",
	"snowflake-arctic-embed:137m",
	"jina/jina-embeddings-v2-base-en:latest",
	"embeddinggemma:latest",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "wolfmem",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
			DataDir:     "./data",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8765,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				RequestTimeout:  60 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
				MaxAge:         300,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Store: StoreConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "wolfmem",
			User:           "wolfmem",
			Password:       "",
			SSLMode:        "disable",
			MaxConns:       8,
			EmbeddingModel: "nomic-embed-text:v1.5",
			EmbeddingDim:   768,
			OllamaURL:      "http://localhost:11434",
		},
		Intake: IntakeConfig{
			DumpDir:        "./data/client-dumps",
			QueueDir:       "./data/pgai-queue",
			ProcessedDir:   "./data/pgai-processed",
			FailedDir:      "./data/failed",
			ArchiveDir:     "./data/intake-processed",
			PollInterval:   30 * time.Second,
			EnrichTimeout:  30 * time.Second,
			Workers:        4,
			OllamaURL:      "http://localhost:11434",
			KeywordModel:   "llama3.2:latest",
			SentimentModel: "llama3.2:latest",
			SummaryModel:   "llama3.2:latest",
			RateLimit:      2,
			MaxRetries:     3,
		},
		Fleet: FleetConfig{
			Models:    DefaultEmbedFleet,
			BatchSize: 100,
			Workers:   4,
			Lookback:  1 * time.Hour,
			Interval:  60 * time.Second,
			OllamaURL: "http://localhost:11434",
		},
		Graph: GraphConfig{
			URI:                 "bolt://localhost:7687",
			User:                "neo4j",
			Password:            "",
			BatchSize:           1000,
			SimilarityThreshold: 0.7,
			KNeighbors:          5,
			WriteTimeout:        30 * time.Second,
			Similarity:          true,
		},
		Steno: StenoConfig{
			QueueDir:     "./data/client-dumps",
			PollInterval: 2 * time.Second,
			Source:       "claude",
		},
		Supervisor: SupervisorConfig{
			SessionsDir:    "~/.claude/projects",
			CheckInterval:  10 * time.Second,
			StaleThreshold: 5 * time.Minute,
			GracePeriod:    5 * time.Second,
			Source:         "claude",
			LogsDir:        "./data/logs",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "parent_ratio",
			SampleRate: 0.1,
		},
	}
}
