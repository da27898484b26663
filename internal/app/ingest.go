package service

import (
	"context"
	"fmt"

	"github.com/okian/botscope/internal/adapters/repository"
	"github.com/okian/botscope/internal/adapters/tabular"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
)

// IngestPaths names the CSV files to load. Only Players is required.
type IngestPaths struct {
	Players string
	Actions string
	Social  string
}

// IngestStats counts the records written per view.
type IngestStats struct {
	Players int `json:"players"`
	Actions int `json:"actions"`
	Social  int `json:"social"`
}

// Ingest loads the CSV views into store. Any failure aborts the ingest.
func Ingest(ctx context.Context, store repository.Ingester, paths IngestPaths, log logger.Logger) (IngestStats, error) {
	if log == nil {
		log = logger.Nop()
	}
	var stats IngestStats

	players, err := tabular.LoadPlayers(paths.Players)
	if err != nil {
		return stats, fmt.Errorf("%s players: %w", model.StageIngest, err)
	}
	if err := store.UpsertPlayers(ctx, players); err != nil {
		return stats, fmt.Errorf("%s players: %w", model.StageIngest, err)
	}
	stats.Players = len(players)

	if paths.Actions != "" {
		actions, err := tabular.LoadActions(paths.Actions)
		if err != nil {
			return stats, fmt.Errorf("%s actions: %w", model.StageIngest, err)
		}
		if err := store.UpsertActions(ctx, actions); err != nil {
			return stats, fmt.Errorf("%s actions: %w", model.StageIngest, err)
		}
		stats.Actions = len(actions)
	}

	if paths.Social != "" {
		social, err := tabular.LoadSocial(paths.Social)
		if err != nil {
			return stats, fmt.Errorf("%s social: %w", model.StageIngest, err)
		}
		if err := store.UpsertSocial(ctx, social); err != nil {
			return stats, fmt.Errorf("%s social: %w", model.StageIngest, err)
		}
		stats.Social = len(social)
	}

	log.Info(ctx, "ingest complete",
		logger.Int("players", stats.Players),
		logger.Int("actions", stats.Actions),
		logger.Int("social", stats.Social),
	)
	return stats, nil
}
