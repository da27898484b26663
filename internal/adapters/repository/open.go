package repository

import (
	"context"
	"fmt"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config selects and addresses a backend.
type Config struct {
	Backend string
	DSN     string
	Neo4j   Neo4jConfig
}

// Open returns the configured graph store.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return OpenSQLite(ctx, cfg.DSN, opts...)
	case BackendNeo4j:
		return OpenNeo4j(ctx, cfg.Neo4j, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
}
