package worker

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
	"github.com/okian/botscope/pkg/metrics"
)

// Source is where workers read tasks from.
type Source interface {
	Dequeue() <-chan model.PlayerTask
}

// Handler analyzes one player. Errors are logged and do not stop the worker.
type Handler interface {
	Handle(ctx context.Context, task model.PlayerTask) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task model.PlayerTask) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, task model.PlayerTask) error {
	return f(ctx, task)
}

// InMemoryWorker drains a Source until it is closed or ctx ends.
type InMemoryWorker struct {
	source  Source
	handler Handler
	name    string
	logger  logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(source Source, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:  source,
		handler: handler,
		name:    "worker",
		logger:  logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes tasks. It returns nil once the source is drained and closed, or ctx's error.
func (w *InMemoryWorker) Run(ctx context.Context) error {
	tasks := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s stopped: %w", w.name, ctx.Err())
		case task, ok := <-tasks:
			if !ok {
				return nil
			}
			if err := w.handler.Handle(ctx, task); err != nil {
				w.logger.Error(ctx, "error processing player",
					logger.String("player_id", task.PlayerID),
					logger.Int("seq", task.Seq),
					logger.Error(err),
				)
			}
		}
	}
}

// Pool runs a fixed number of workers over one source.
type Pool struct {
	workers []*InMemoryWorker
	logger  logger.Logger
}

// NewPool creates a pool of size workers. Sizes below one are raised to one.
func NewPool(size int, source Source, handler Handler, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, size),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(source, handler, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Run starts every worker and waits for all of them. The first worker error cancels the others.
func (p *Pool) Run(ctx context.Context) error {
	metrics.UpdateWorkerCount(p.Size())
	defer metrics.UpdateWorkerCount(0)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn(ctx, "worker pool stopped early", logger.Error(err))
		return err
	}
	return nil
}
