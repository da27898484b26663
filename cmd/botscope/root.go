package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/botscope/internal/config"
	"github.com/okian/botscope/pkg/logger"
	"github.com/okian/botscope/pkg/metrics"
)

// cli carries what every subcommand shares once the root pre-run has loaded it.
type cli struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "botscope",
		Short:         "Classify game players as bots or humans",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
				return err
			}
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
				_ = logger.SetLevelString("info")
			}
			metrics.Init(
				metrics.WithNamespace(cfg.MetricsNamespace),
				metrics.WithMetricsEnabled(cfg.MetricsPlayers),
			)
			c.cfg = cfg
			c.log = logger.Get()
			return nil
		},
	}
	root.AddCommand(
		newRunCmd(c),
		newIngestCmd(c),
		newSimilarCmd(c),
		newSynthCmd(c),
		newServeOracleCmd(c),
	)
	return root
}
