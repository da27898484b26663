package main

import (
	"context"
	"fmt"
	"io"

	oracleadapter "github.com/okian/botscope/internal/adapters/oracle"
	"github.com/okian/botscope/internal/adapters/repository"
	"github.com/okian/botscope/internal/adapters/tabular"
	service "github.com/okian/botscope/internal/app"
	"github.com/okian/botscope/internal/config"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/oracle"
	"github.com/okian/botscope/internal/domain/similarity"
	"github.com/okian/botscope/pkg/logger"
)

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	store, err := repository.Open(ctx, repository.Config{
		Backend: cfg.GraphBackend,
		DSN:     cfg.GraphDSN,
		Neo4j: repository.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		},
	}, repository.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return store, nil
}

func retryPolicy(cfg *config.Config) oracle.RetryPolicy {
	return oracle.RetryPolicy{
		MaxAttempts:    cfg.OracleMaxAttempts,
		Timeout:        cfg.OracleTimeout,
		InitialBackoff: cfg.BackoffInitial,
		MaxBackoff:     cfg.BackoffMax,
		Multiplier:     cfg.BackoffMultiplier,
		Jitter:         cfg.BackoffJitter,
	}
}

// nopCloser closes nothing.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newBackend returns the raw oracle for cfg. Failures are configuration failures.
func newBackend(ctx context.Context, cfg *config.Config) (oracle.TextOracle, io.Closer, error) {
	switch cfg.OracleBackend {
	case config.OracleGRPC:
		g, err := oracleadapter.DialGRPC(cfg.OracleGRPCAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", model.ErrConfiguration, err)
		}
		return g, g, nil
	default:
		g, err := oracleadapter.NewGemini(ctx, cfg.APIKey,
			oracleadapter.WithModel(cfg.OracleModel),
			oracleadapter.WithTemperature(float32(cfg.Temperature)),
		)
		if err != nil {
			return nil, nil, err
		}
		return g, nopCloser{}, nil
	}
}

// newOracle wraps the configured backend with timeout and retry.
func newOracle(ctx context.Context, cfg *config.Config, log logger.Logger) (oracle.TextOracle, io.Closer, error) {
	backend, closer, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return oracle.WithRetry(backend, retryPolicy(cfg), oracle.WithLogger(log)), closer, nil
}

// newSearcher builds the similarity lookup. Vector rows line up with the raw Actor column
// of the profile export, duplicates and blanks included.
// It returns nil when top_k is zero.
func newSearcher(ctx context.Context, cfg *config.Config, log logger.Logger) (service.Searcher, error) {
	if cfg.TopK == 0 {
		return nil, nil
	}
	if cfg.SearchMode == config.SearchText {
		idx, err := newTextIndex(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	rows, err := tabular.LoadActors(cfg.PlayersCSV)
	if err != nil {
		return nil, err
	}
	vectors, err := similarity.LoadNPYFile(cfg.EmbeddingsPath)
	if err != nil {
		return nil, err
	}
	idx, err := similarity.New(rows, vectors, similarity.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func newTextIndex(ctx context.Context, cfg *config.Config, log logger.Logger) (*similarity.TextIndex, error) {
	players, err := tabular.LoadPlayers(cfg.PlayersCSV)
	if err != nil {
		return nil, err
	}
	embedder, err := oracleadapter.NewGeminiEmbedder(ctx, cfg.APIKey, cfg.EmbedModel)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(players))
	texts := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
		texts[i] = similarity.Describe(p)
	}
	return similarity.NewTextIndex(ctx, embedder, ids, texts, similarity.WithLogger(log))
}
