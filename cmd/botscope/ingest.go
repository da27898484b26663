package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	service "github.com/okian/botscope/internal/app"
	"github.com/okian/botscope/internal/config"
)

func ingestPaths(cfg *config.Config) service.IngestPaths {
	return service.IngestPaths{Players: cfg.PlayersCSV, Actions: cfg.ActionsCSV, Social: cfg.SocialCSV}
}

func newIngestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Load the player, action and social CSV exports into the graph store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := service.Ingest(ctx, store, ingestPaths(c.cfg), c.log.Named("ingest"))
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}
}
