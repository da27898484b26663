// Package service drives players through the analysis pipeline.
package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/botscope/internal/adapters/mq/queue"
	"github.com/okian/botscope/internal/adapters/mq/worker"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/scoring"
	"github.com/okian/botscope/pkg/logger"
	"github.com/okian/botscope/pkg/metrics"
)

// Defaults used when an option is not given.
const (
	DefaultBudget    = 100
	DefaultTopK      = 3
	DefaultQueueSize = 64
)

// FeatureExtractor reads the three feature bundles of a player.
type FeatureExtractor interface {
	Extract(ctx context.Context, playerID string) (model.Features, error)
}

// Searcher returns the players closest to playerID.
type Searcher interface {
	Neighbors(playerID string, k int) (model.SimilarityResult, error)
}

// Classifier merges signal scores into a verdict.
type Classifier interface {
	Classify(ctx context.Context, playerID string, scores map[model.Signal]model.SignalScore) (model.Verdict, error)
}

// Persister stores verdicts.
type Persister interface {
	UpsertClassification(ctx context.Context, playerID string, v model.Verdict) error
}

// Controller runs the pipeline state machine.
type Controller struct {
	extractor  FeatureExtractor
	searcher   Searcher
	scorers    []scoring.Scorer
	classifier Classifier
	persister  Persister

	budget    int
	topK      int
	workers   int
	queueSize int
	newRunID  func() string
	now       func() time.Time
	sink      func(model.Report)
	stateSink func(model.PipelineState)

	logger logger.Logger
}

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithSearcher sets the similarity lookup. Without one the search stage yields no neighbors.
func WithSearcher(s Searcher) Option {
	return func(c *Controller) { c.searcher = s }
}

// WithPersister sets where verdicts are written. Without one every verdict is skipped.
func WithPersister(p Persister) Option {
	return func(c *Controller) { c.persister = p }
}

// WithBudget sets the step budget.
func WithBudget(n int) Option {
	return func(c *Controller) { c.budget = n }
}

// WithTopK sets how many similar players each analysis gets.
func WithTopK(k int) Option {
	return func(c *Controller) {
		if k >= 0 {
			c.topK = k
		}
	}
}

// WithWorkerCount sets the number of players analyzed at once.
func WithWorkerCount(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets the capacity of the task queue used by the worker pool.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.newRunID = func() string { return id }
		}
	}
}

// WithClock sets the time source for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithReportSink is called with every report as soon as its player completes.
// It may be called from several workers at once.
func WithReportSink(fn func(model.Report)) Option {
	return func(c *Controller) { c.sink = fn }
}

// WithStateSink is called once per Run with the terminal pipeline state.
func WithStateSink(fn func(model.PipelineState)) Option {
	return func(c *Controller) { c.stateSink = fn }
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Controller.
func New(extractor FeatureExtractor, scorers []scoring.Scorer, classifier Classifier, opts ...Option) *Controller {
	c := &Controller{
		extractor:  extractor,
		scorers:    scorers,
		classifier: classifier,
		budget:     DefaultBudget,
		topK:       DefaultTopK,
		workers:    1,
		queueSize:  DefaultQueueSize,
		newRunID:   uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.Get().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes ids in order until the budget or the queue is exhausted and
// returns one report per processed player. On cancellation it stops at the next
// advance and returns the reports completed so far with ctx's error.
func (c *Controller) Run(ctx context.Context, ids []string) ([]model.Report, error) {
	st := model.NewPipelineState(c.newRunID(), ids, c.budget)
	log := c.logger.With(logger.String("run_id", st.RunID))
	log.Info(ctx, "pipeline started",
		logger.Int("players", len(ids)),
		logger.Int("budget", c.budget),
		logger.Int("workers", c.workers),
	)
	start := time.Now()

	var err error
	if c.workers > 1 {
		err = c.runPool(ctx, st)
	} else {
		err = c.runSequential(ctx, st)
	}

	log.Info(ctx, "pipeline finished",
		logger.Int("processed", len(st.Reports)),
		logger.Int("budget_remaining", st.Remaining),
		logger.Int("queue_remaining", len(st.Queue)),
		logger.Duration("elapsed", time.Since(start)),
	)
	if c.stateSink != nil {
		c.stateSink(*st)
	}
	return st.Reports, err
}

func (c *Controller) runSequential(ctx context.Context, st *model.PipelineState) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.advance(st) {
			return nil
		}
		rep := c.analyze(ctx, st.RunID, st.Seq, st.Current, &st.Analysis)
		st.Reports = append(st.Reports, rep)
		c.emit(rep)
	}
}

func (c *Controller) runPool(ctx context.Context, st *model.PipelineState) error {
	q := queue.NewInMemoryQueue(queue.WithCapacity(c.queueSize))
	col := &collector{}

	handle := worker.HandlerFunc(func(ctx context.Context, task model.PlayerTask) error {
		metrics.UpdateTaskQueueDepth(q.Len())
		a := model.Analysis{Scores: make(map[model.Signal]model.SignalScore, len(model.Signals))}
		rep := c.analyze(ctx, st.RunID, task.Seq, task.PlayerID, &a)
		col.add(rep)
		c.emit(rep)
		return nil
	})
	pool := worker.NewPool(c.workers, q, handle, worker.WithLogger(c.logger))
	c.logger.Debug(ctx, "worker pool ready",
		logger.String("run_id", st.RunID),
		logger.Int("workers", pool.Size()),
		logger.Int("queue_capacity", c.queueSize),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error {
		defer func() { _ = q.Close() }()
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !c.advance(st) {
				return nil
			}
			if err := q.Put(gctx, model.PlayerTask{Seq: st.Seq, PlayerID: st.Current}); err != nil {
				return err
			}
			metrics.UpdateTaskQueueDepth(q.Len())
		}
	})
	err := g.Wait()
	metrics.UpdateTaskQueueDepth(0)
	st.Reports = col.ordered()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Controller) emit(r model.Report) {
	if c.sink != nil {
		c.sink(r)
	}
}

func (c *Controller) advance(st *model.PipelineState) bool {
	ok := st.Advance()
	metrics.UpdateBudgetRemaining(st.Remaining)
	metrics.UpdateQueueRemaining(len(st.Queue))
	return ok
}

// collector keeps reports from concurrent workers.
type collector struct {
	mu      sync.Mutex
	reports []model.Report
}

func (c *collector) add(r model.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

// ordered returns the reports in pop order.
func (c *collector) ordered() []model.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.reports)
	slices.SortFunc(out, func(a, b model.Report) int { return a.Seq - b.Seq })
	return out
}
