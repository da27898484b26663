package worker_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/okian/botscope/internal/adapters/mq/queue"
	"github.com/okian/botscope/internal/adapters/mq/worker"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handle(_ context.Context, task model.PlayerTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, task.PlayerID)
	if task.PlayerID == "bad" {
		return errors.New("analysis failed")
	}
	return nil
}

func fill(q *queue.InMemoryQueue, ids ...string) {
	for i, id := range ids {
		_ = q.Put(context.Background(), model.PlayerTask{Seq: i + 1, PlayerID: id})
	}
}

func TestPool(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a closed queue of five tasks", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		fill(q, "a", "b", "bad", "c", "d")
		convey.So(q.Close(), convey.ShouldBeNil)

		r := &recorder{}
		pool := worker.NewPool(3, q, worker.HandlerFunc(r.handle))

		convey.Convey("When the pool runs", func() {
			err := pool.Run(context.Background())

			convey.Convey("Then every task is handled once and handler errors do not stop it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				sort.Strings(r.seen)
				convey.So(r.seen, convey.ShouldResemble, []string{"a", "b", "bad", "c", "d"})
			})
		})
	})

	convey.Convey("Given an open queue and a cancelled context", t, func() {
		q := queue.NewInMemoryQueue()
		r := &recorder{}
		pool := worker.NewPool(2, q, worker.HandlerFunc(r.handle))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := pool.Run(ctx)
		convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		_ = q.Close()
	})

	convey.Convey("Pool sizes below one get a single worker", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), worker.HandlerFunc(func(context.Context, model.PlayerTask) error { return nil }))
		convey.So(pool.Size(), convey.ShouldEqual, 1)
	})
}
