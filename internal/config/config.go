// Package config defines process configuration and its loading layers.
package config

import (
	"time"
)

// Search modes.
const (
	SearchVector = "vector"
	SearchText   = "text"
)

// Oracle backends.
const (
	OracleGemini = "gemini"
	OracleGRPC   = "grpc"
)

// Config contains process configuration. Keys are flat so env vars map one to one.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	PlayersCSV     string `koanf:"players_csv"`
	ActionsCSV     string `koanf:"actions_csv"`
	SocialCSV      string `koanf:"social_csv"`
	EmbeddingsPath string `koanf:"embeddings_path"`

	// GraphBackend is sqlite or neo4j.
	GraphBackend  string `koanf:"graph_backend"`
	GraphDSN      string `koanf:"graph_dsn"`
	Neo4jURI      string `koanf:"neo4j_uri"`
	Neo4jUser     string `koanf:"neo4j_user"`
	Neo4jPassword string `koanf:"neo4j_password"`
	Neo4jDatabase string `koanf:"neo4j_database"`

	// OracleBackend is gemini or grpc.
	OracleBackend     string        `koanf:"oracle_backend"`
	OracleModel       string        `koanf:"oracle_model"`
	APIKey            string        `koanf:"api_key"`
	OracleGRPCAddr    string        `koanf:"oracle_grpc_addr"`
	OracleTimeout     time.Duration `koanf:"oracle_timeout"`
	OracleMaxAttempts int           `koanf:"oracle_max_attempts"`
	BackoffInitial    time.Duration `koanf:"backoff_initial"`
	BackoffMax        time.Duration `koanf:"backoff_max"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	BackoffJitter     bool          `koanf:"backoff_jitter"`
	Temperature       float64       `koanf:"temperature"`

	// StepBudget bounds how many players one run processes.
	StepBudget int `koanf:"step_budget"`
	// SampleSize picks that many players at random; 0 keeps every player.
	SampleSize int    `koanf:"sample_size"`
	Seed       uint64 `koanf:"seed"`
	TopK       int    `koanf:"top_k"`
	SearchMode string `koanf:"search_mode"`
	EmbedModel string `koanf:"embed_model"`

	WorkerCount int `koanf:"worker_count"`
	QueueSize   int `koanf:"queue_size"`

	// ReportPath receives JSON-lines reports; empty writes to stdout.
	ReportPath string `koanf:"report_path"`
	// MetricsAddr serves /metrics and /healthz when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`
	// MetricsNamespace prefixes every exported metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	// MetricsPlayers toggles the per-player counter and latency histogram.
	MetricsPlayers bool `koanf:"metrics_players"`
	IngestOnRun    bool `koanf:"ingest_on_run"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		PlayersCSV:        "data/player_info.csv",
		ActionsCSV:        "data/player_actions.csv",
		SocialCSV:         "data/social_diversity.csv",
		EmbeddingsPath:    "data/player_embeddings.npy",
		GraphBackend:      "sqlite",
		GraphDSN:          "botscope.db",
		Neo4jDatabase:     "neo4j",
		OracleBackend:     OracleGemini,
		OracleModel:       "gemini-2.5-flash",
		OracleTimeout:     60 * time.Second,
		OracleMaxAttempts: 3,
		BackoffInitial:    500 * time.Millisecond,
		BackoffMax:        8 * time.Second,
		BackoffMultiplier: 2,
		BackoffJitter:     true,
		Temperature:       0.2,
		StepBudget:        100,
		SampleSize:        30,
		Seed:              42,
		TopK:              3,
		SearchMode:        SearchVector,
		EmbedModel:        "gemini-embedding-001",
		WorkerCount:       1,
		QueueSize:         64,
		MetricsNamespace:  "botscope",
		MetricsPlayers:    true,
	}
}
