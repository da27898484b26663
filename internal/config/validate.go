package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, env and unmarshal failures in Load.
	ErrLoadConfig = errors.New("load config failed")
)

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, invalid("log_level %q", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, invalid("log_format %q", c.LogFormat))
	}
	if c.PlayersCSV == "" {
		errs = append(errs, invalid("players_csv must not be empty"))
	}
	switch c.GraphBackend {
	case "sqlite":
		if c.GraphDSN == "" {
			errs = append(errs, invalid("graph_dsn must not be empty for sqlite"))
		}
	case "neo4j":
		if c.Neo4jURI == "" {
			errs = append(errs, invalid("neo4j_uri must not be empty for neo4j"))
		}
	default:
		errs = append(errs, invalid("graph_backend %q", c.GraphBackend))
	}
	switch c.OracleBackend {
	case OracleGemini:
	case OracleGRPC:
		if c.OracleGRPCAddr == "" {
			errs = append(errs, invalid("oracle_grpc_addr must not be empty for grpc"))
		}
	default:
		errs = append(errs, invalid("oracle_backend %q", c.OracleBackend))
	}
	if c.SearchMode != SearchVector && c.SearchMode != SearchText {
		errs = append(errs, invalid("search_mode %q", c.SearchMode))
	}
	if c.OracleTimeout <= 0 {
		errs = append(errs, invalid("oracle_timeout must be positive"))
	}
	if c.OracleMaxAttempts < 1 {
		errs = append(errs, invalid("oracle_max_attempts must be at least 1"))
	}
	if c.BackoffMultiplier < 1 {
		errs = append(errs, invalid("backoff_multiplier must be at least 1"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, invalid("temperature %v outside [0, 2]", c.Temperature))
	}
	if c.StepBudget < 0 {
		errs = append(errs, invalid("step_budget must not be negative"))
	}
	if c.SampleSize < 0 {
		errs = append(errs, invalid("sample_size must not be negative"))
	}
	if c.TopK < 0 {
		errs = append(errs, invalid("top_k must not be negative"))
	}
	if !metricName.MatchString(c.MetricsNamespace) {
		errs = append(errs, invalid("metrics_namespace %q is not a valid metric name prefix", c.MetricsNamespace))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, invalid("worker_count must be at least 1"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, invalid("queue_size must be at least 1"))
	}
	return errors.Join(errs...)
}
