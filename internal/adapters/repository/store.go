// Package repository stores players, their feature views and their classifications in a
// property graph. Two backends share the same node and edge model: SQLite for local runs
// and tests, Neo4j for the shared knowledge graph.
package repository

import (
	"context"
	"time"

	"github.com/okian/botscope/internal/domain/model"
)

// Graph vocabulary shared by the backends.
const (
	LabelPlayer         = "Player"
	LabelAction         = "Action"
	LabelClassification = "Classification"

	EdgePerformed         = "PERFORMED"
	EdgeHasClassification = "HAS_CLASSIFICATION"
)

// Classification is a stored HAS_CLASSIFICATION edge.
type Classification struct {
	Label      string
	Confidence *float64
	Reasoning  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FeatureReader returns the first matching record of each feature view.
// A player without a record yields an error wrapping ErrNotFound.
type FeatureReader interface {
	Profile(ctx context.Context, playerID string) (model.PlayerRecord, error)
	Social(ctx context.Context, playerID string) (model.SocialRecord, error)
	Actions(ctx context.Context, playerID string) (model.ActionRecord, error)
}

// ClassificationWriter persists verdicts.
type ClassificationWriter interface {
	// UpsertClassification merges the Classification node keyed by the verdict label and the edge
	// from the player to it. created_at is set once; updated_at is refreshed on every call.
	UpsertClassification(ctx context.Context, playerID string, v model.Verdict) error
	// Classifications lists the stored edges of playerID ordered by label.
	Classifications(ctx context.Context, playerID string) ([]Classification, error)
}

// Ingester loads tabular data into the graph.
type Ingester interface {
	UpsertPlayers(ctx context.Context, players []model.PlayerRecord) error
	UpsertActions(ctx context.Context, actions []model.ActionRecord) error
	UpsertSocial(ctx context.Context, social []model.SocialRecord) error
	PlayerIDs(ctx context.Context) ([]string, error)
}

// Store is the full graph store.
type Store interface {
	FeatureReader
	ClassificationWriter
	Ingester
	// Query runs a backend-native read statement with named parameters.
	Query(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error)
	Close() error
}
