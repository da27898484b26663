package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/botscope/internal/synth"
	"github.com/okian/botscope/pkg/logger"
)

func newSynthCmd(c *cli) *cobra.Command {
	cfg := synth.Config{}
	var dir string
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic dataset with known bots for demos and smoke tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := synth.Generate(cmd.Context(), cfg)
			paths, err := synth.WriteDir(dir, d)
			if err != nil {
				return err
			}
			c.log.Info(cmd.Context(), "synthetic dataset written",
				logger.String("players", paths.Players),
				logger.String("embeddings", paths.Embeddings),
				logger.Int("bots", len(d.Bots)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "out", "o", "data", "output directory")
	cmd.Flags().IntVar(&cfg.Players, "players", synth.DefaultPlayers, "number of players")
	cmd.Flags().Float64Var(&cfg.BotRatio, "bot-ratio", synth.DefaultBotRatio, "share of bots")
	cmd.Flags().IntVar(&cfg.Dimension, "dim", synth.DefaultDimension, "embedding dimension")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 42, "random seed")
	return cmd
}
