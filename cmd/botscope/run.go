package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/botscope/internal/adapters/http/api"
	"github.com/okian/botscope/internal/adapters/tabular"
	service "github.com/okian/botscope/internal/app"
	"github.com/okian/botscope/internal/domain/classify"
	"github.com/okian/botscope/internal/domain/features"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/prompt"
	"github.com/okian/botscope/internal/domain/scoring"
	"github.com/okian/botscope/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type runFlags struct {
	budget  int
	sample  int
	workers int
	ingest  bool
}

func newRunCmd(c *cli) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [player-id...]",
		Short: "Run the classification pipeline",
		Long: `Run the classification pipeline over the players of the profile export,
or over the player ids given as arguments.

Reports are written as JSON lines to report_path (stdout when unset) and a
"Player <id>: <label>" summary is printed to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("budget") {
				c.cfg.StepBudget = f.budget
			}
			if cmd.Flags().Changed("sample") {
				c.cfg.SampleSize = f.sample
			}
			if cmd.Flags().Changed("workers") {
				c.cfg.WorkerCount = f.workers
			}
			if cmd.Flags().Changed("ingest") {
				c.cfg.IngestOnRun = f.ingest
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			return c.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().IntVar(&f.budget, "budget", 0, "step budget (overrides step_budget)")
	cmd.Flags().IntVar(&f.sample, "sample", 0, "random sample size, 0 for every player (overrides sample_size)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "players analyzed at once (overrides worker_count)")
	cmd.Flags().BoolVar(&f.ingest, "ingest", false, "load the CSV exports into the graph store first")
	return cmd
}

func (c *cli) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, log := c.cfg, c.log

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if cfg.IngestOnRun {
		if _, err := service.Ingest(ctx, store, ingestPaths(cfg), log); err != nil {
			return err
		}
	}

	// The profile export is required even with explicit ids.
	allIDs, err := tabular.LoadIDs(cfg.PlayersCSV)
	if err != nil {
		return err
	}
	ids := args
	if len(ids) == 0 {
		ids = service.Sample(allIDs, cfg.SampleSize, cfg.Seed)
	}

	catalog, err := prompt.Default()
	if err != nil {
		return err
	}
	o, closer, err := newOracle(ctx, cfg, log.Named("oracle"))
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	searcher, err := newSearcher(ctx, cfg, log.Named("similarity"))
	if errors.Is(err, model.ErrConfiguration) {
		return err
	}
	if err != nil {
		log.Warn(ctx, "similarity index unavailable; running without similar players", logger.Error(err))
		searcher = nil
	}

	ext := features.NewExtractor(store)
	scoreOpts := []scoring.Option{scoring.WithLogger(log.Named("scoring"))}
	scorers := []scoring.Scorer{
		scoring.NewAnomaly(o, catalog, append(scoreOpts, scoring.WithComparisons(ext))...),
		scoring.NewSocial(o, catalog, scoreOpts...),
		scoring.NewAction(o, catalog, scoreOpts...),
	}
	clf, err := classify.New(o, catalog, classify.WithLogger(log.Named("classify")))
	if err != nil {
		return err
	}

	board := api.NewBoard()
	opts := []service.Option{
		service.WithPersister(store),
		service.WithBudget(cfg.StepBudget),
		service.WithTopK(cfg.TopK),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithReportSink(board.Add),
		service.WithLogger(log.Named("pipeline")),
	}
	if searcher != nil {
		opts = append(opts, service.WithSearcher(searcher))
	}
	controller := service.New(ext, scorers, clf, opts...)

	if cfg.MetricsAddr != "" {
		srv := startOpsServer(ctx, cfg.MetricsAddr, board, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "ops server shutdown failed", logger.Error(err))
			}
		}()
	}

	reports, runErr := controller.Run(ctx, ids)

	out := stdout
	if cfg.ReportPath != "" {
		f, err := os.Create(cfg.ReportPath)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := writeReports(out, reports); err != nil {
		return err
	}
	printSummary(stderr, reports)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func startOpsServer(ctx context.Context, addr string, board *api.Board, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(board).Register(ctx, mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "starting ops server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "ops server failed", logger.Error(err))
		}
	}()
	return srv
}
