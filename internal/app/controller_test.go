package service_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	service "github.com/okian/botscope/internal/app"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/scoring"
	"github.com/okian/botscope/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type stubExtractor struct {
	err error
}

func (s stubExtractor) Extract(_ context.Context, id string) (model.Features, error) {
	return model.Features{
		Profile: model.PlayerRecord{ID: id, Attributes: map[string]float64{model.AttrPlaytime: 1}},
		Social:  model.SocialRecord{PlayerID: id},
		Action:  model.ActionRecord{PlayerID: id},
	}, s.err
}

type stubSearcher struct {
	err error
}

func (s stubSearcher) Neighbors(id string, k int) (model.SimilarityResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(model.SimilarityResult, 0, k)
	for i := range k {
		out = append(out, model.Neighbor{ID: fmt.Sprintf("%s-n%d", id, i), Distance: float64(i)})
	}
	return out, nil
}

type stubScorer struct {
	sig   model.Signal
	score *int
	err   error
	calls atomic.Int32
}

func (s *stubScorer) Signal() model.Signal { return s.sig }

func (s *stubScorer) Score(context.Context, scoring.Input) (model.SignalScore, error) {
	s.calls.Add(1)
	return model.SignalScore{Signal: s.sig, Score: s.score, Reasoning: string(s.sig) + " reasoning"}, s.err
}

type stubClassifier struct {
	verdict model.Verdict
	err     error
	onCall  func()
}

func (s stubClassifier) Classify(context.Context, string, map[model.Signal]model.SignalScore) (model.Verdict, error) {
	if s.onCall != nil {
		s.onCall()
	}
	return s.verdict, s.err
}

type stubPersister struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (s *stubPersister) UpsertClassification(_ context.Context, id string, _ model.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, id)
	return nil
}

func scorers(score *int) []scoring.Scorer {
	return []scoring.Scorer{
		&stubScorer{sig: model.SignalAnomaly, score: score},
		&stubScorer{sig: model.SignalSocial, score: score},
		&stubScorer{sig: model.SignalAction, score: score},
	}
}

func bot() stubClassifier {
	return stubClassifier{verdict: model.Verdict{Label: model.LabelBot, Confidence: model.Float64Ptr(90), Reasoning: "r"}}
}

func players(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "p" + strconv.Itoa(i)
	}
	return ids
}

func TestController_ProcessesMinOfBudgetAndQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("For every budget and queue length", t, func() {
		for _, workers := range []int{1, 3} {
			for b := 0; b <= 5; b++ {
				for l := 0; l <= 5; l++ {
					c := service.New(stubExtractor{}, scorers(model.IntPtr(50)), bot(),
						service.WithBudget(b),
						service.WithWorkerCount(workers),
						service.WithQueueSize(2),
						service.WithLogger(logger.Nop()),
					)
					ids := players(l)
					reports, err := c.Run(context.Background(), ids)
					So(err, ShouldBeNil)

					want := min(b, l)
					So(reports, ShouldHaveLength, want)
					for i, r := range reports {
						So(r.Seq, ShouldEqual, i+1)
						So(r.PlayerID, ShouldEqual, ids[i])
					}
				}
			}
		}
	})
}

func TestController_Run(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a healthy pipeline", t, func() {
		p := &stubPersister{}
		var sunk []string
		c := service.New(stubExtractor{}, scorers(model.IntPtr(88)), bot(),
			service.WithReportSink(func(r model.Report) { sunk = append(sunk, r.PlayerID) }),
			service.WithSearcher(stubSearcher{}),
			service.WithPersister(p),
			service.WithTopK(2),
			service.WithRunID("run-1"),
			service.WithClock(func() time.Time { return fixed }),
			service.WithLogger(logger.Nop()),
		)

		reports, err := c.Run(ctx, []string{"a", "b"})

		Convey("Then each player gets a full report", func() {
			So(err, ShouldBeNil)
			So(p.saved, ShouldResemble, []string{"a", "b"})
			want := model.Report{
				RunID:          "run-1",
				Seq:            1,
				PlayerID:       "a",
				Classification: model.LabelBot,
				Confidence:     model.Float64Ptr(90),
				Reasoning:      "r",
				AnomalyScore:   model.IntPtr(88),
				SocialScore:    model.IntPtr(88),
				ActionScore:    model.IntPtr(88),
				SimilarPlayers: []string{"a-n0", "a-n1"},
				PersistStatus:  model.PersistSuccess,
				CompletedAt:    fixed,
			}
			So(cmp.Diff(want, reports[0]), ShouldBeEmpty)
			So(reports[1].Seq, ShouldEqual, 2)
			So(sunk, ShouldResemble, []string{"a", "b"})
		})
	})

	Convey("Given every stage degraded", t, func() {
		p := &stubPersister{}
		c := service.New(
			stubExtractor{err: fmt.Errorf("social x: %w", model.ErrNotFound)},
			[]scoring.Scorer{&stubScorer{sig: model.SignalAnomaly, err: model.Upstream("oracle", errors.New("timeout"))}},
			stubClassifier{verdict: model.Verdict{Label: model.LabelUnclassified}, err: fmt.Errorf("verdict: %w", model.ErrParseFailure)},
			service.WithSearcher(stubSearcher{err: fmt.Errorf("vector x: %w", model.ErrNotFound)}),
			service.WithPersister(p),
			service.WithLogger(logger.Nop()),
		)

		reports, err := c.Run(ctx, []string{"x"})

		Convey("Then the player is still reported with one failure per stage", func() {
			So(err, ShouldBeNil)
			So(reports, ShouldHaveLength, 1)
			r := reports[0]
			So(r.Classification, ShouldEqual, model.LabelUnclassified)
			So(r.PersistStatus, ShouldEqual, model.PersistSkipped)
			So(r.AnomalyScore, ShouldBeNil)
			So(r.SimilarPlayers, ShouldBeEmpty)
			So(p.saved, ShouldBeEmpty)

			kinds := map[model.Stage]string{}
			for _, f := range r.Failures {
				kinds[f.Stage] = f.Kind
			}
			So(kinds, ShouldResemble, map[model.Stage]string{
				model.StageExtractFeature: "not_found",
				model.StageSemanticSearch: "not_found",
				model.StageAnalyzePlayer:  "upstream_unavailable",
				model.StageClassify:       "parse_failure",
			})
		})
	})

	Convey("Given a store that rejects writes", t, func() {
		p := &stubPersister{err: model.Upstream("sqlite", errors.New("disk full"))}
		c := service.New(stubExtractor{}, scorers(model.IntPtr(10)), bot(),
			service.WithPersister(p), service.WithLogger(logger.Nop()))

		reports, err := c.Run(ctx, []string{"a"})

		Convey("Then the failure becomes a report status", func() {
			So(err, ShouldBeNil)
			So(reports[0].PersistStatus, ShouldEqual, model.PersistFailed)
			So(reports[0].Failures, ShouldHaveLength, 1)
			So(reports[0].Failures[0].Stage, ShouldEqual, model.StagePersist)
		})
	})

	Convey("Given no persister", t, func() {
		c := service.New(stubExtractor{}, scorers(model.IntPtr(10)), bot(), service.WithLogger(logger.Nop()))
		reports, err := c.Run(ctx, []string{"a"})
		So(err, ShouldBeNil)
		So(reports[0].PersistStatus, ShouldEqual, model.PersistSkipped)
	})
}

func TestController_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given a context cancelled after the first classification", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cl := bot()
		cl.onCall = cancel
		c := service.New(stubExtractor{}, scorers(model.IntPtr(10)), cl, service.WithLogger(logger.Nop()))

		reports, err := c.Run(ctx, players(5))

		Convey("Then the run stops at the next advance", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(reports, ShouldHaveLength, 1)
		})
	})

	Convey("Given an already cancelled context in pool mode", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := service.New(stubExtractor{}, scorers(model.IntPtr(10)), bot(),
			service.WithWorkerCount(4), service.WithLogger(logger.Nop()))

		reports, err := c.Run(ctx, players(5))
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(reports, ShouldBeEmpty)
	})
}

func TestController_PoolOrdering(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given workers that finish out of order", t, func() {
		var n atomic.Int32
		slow := stubClassifier{verdict: model.Verdict{Label: model.LabelHuman}, onCall: func() {
			if n.Add(1)%2 == 1 {
				time.Sleep(5 * time.Millisecond)
			}
		}}
		c := service.New(stubExtractor{}, scorers(model.IntPtr(10)), slow,
			service.WithWorkerCount(4), service.WithLogger(logger.Nop()))

		ids := players(12)
		reports, err := c.Run(context.Background(), ids)

		Convey("Then reports come back in pop order", func() {
			So(err, ShouldBeNil)
			So(reports, ShouldHaveLength, 12)
			for i, r := range reports {
				So(r.PlayerID, ShouldEqual, ids[i])
				So(r.Seq, ShouldEqual, i+1)
			}
		})
	})
}

func TestSample(t *testing.T) {
	Convey("Sample is deterministic per seed and never repeats ids", t, func() {
		ids := players(50)
		a := service.Sample(ids, 10, 42)
		b := service.Sample(ids, 10, 42)
		So(a, ShouldResemble, b)
		So(a, ShouldHaveLength, 10)
		seen := map[string]bool{}
		for _, id := range a {
			So(seen[id], ShouldBeFalse)
			seen[id] = true
		}
	})

	Convey("Sizes outside 1..len keep every id in order", t, func() {
		ids := players(3)
		So(service.Sample(ids, 0, 1), ShouldResemble, ids)
		So(service.Sample(ids, 10, 1), ShouldResemble, ids)
	})
}
