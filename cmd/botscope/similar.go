package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	service "github.com/okian/botscope/internal/app"
	"github.com/okian/botscope/internal/config"
	"github.com/okian/botscope/internal/domain/model"
)

func newSimilarCmd(c *cli) *cobra.Command {
	var (
		k    int
		text string
	)
	cmd := &cobra.Command{
		Use:   "similar [player-id]",
		Short: "List the players nearest to a player or to a free-text description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if k <= 0 {
				k = c.cfg.TopK
			}
			if k <= 0 {
				k = service.DefaultTopK
			}

			var (
				res model.SimilarityResult
				err error
			)
			switch {
			case text != "":
				idx, ierr := newTextIndex(ctx, c.cfg, c.log.Named("similarity"))
				if ierr != nil {
					return ierr
				}
				res, err = idx.Query(ctx, text, k)
			case len(args) == 1:
				cfg := *c.cfg
				cfg.TopK = k
				cfg.SearchMode = config.SearchVector
				s, ierr := newSearcher(ctx, &cfg, c.log.Named("similarity"))
				if ierr != nil {
					return ierr
				}
				res, err = s.Neighbors(args[0], k)
			default:
				return errors.New("give a player id or --text")
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "RANK\tPLAYER\tDISTANCE")
			for i, n := range res {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%.4f\n", i+1, n.ID, n.Distance)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of neighbors (defaults to top_k)")
	cmd.Flags().StringVar(&text, "text", "", "search by description instead of player id")
	return cmd
}
