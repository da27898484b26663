package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/botscope/internal/adapters/repository"
	service "github.com/okian/botscope/internal/app"
	"github.com/okian/botscope/internal/domain/classify"
	"github.com/okian/botscope/internal/domain/features"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/oracle"
	"github.com/okian/botscope/internal/domain/prompt"
	"github.com/okian/botscope/internal/domain/scoring"
	"github.com/okian/botscope/internal/domain/similarity"
	"github.com/okian/botscope/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	playersCSV = "Actor,A_Acc,Login_day_count,Logout_day_count,Playtime,playtime_per_day,avg_money,Login_count,ip_count,Max_level\n" +
		"bot-1,11,30,30,2500000,86000,900000,31,1,80\n" +
		"human-1,12,12,11,40000,3300,5000,20,3,25\n"
	actionsCSV = "Actor,A_Acc,sit_ratio,teleport_count\n" +
		"bot-1,11,0.01,900\n" +
		"human-1,12,1.2,4\n"
	socialCSV = "Actor,A_Acc,Social_diversity\n" +
		"bot-1,11,0.02\n" +
		"human-1,12,1.4\n"
)

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// scripted answers by prompt content: bot-1 scores 92 on every signal, human-1 scores 15.
func scripted(_ context.Context, p string) (string, error) {
	if strings.Contains(p, "Combine the results") {
		if strings.Contains(p, "Score: 92/100") {
			return `{"classification": "Bot", "confidence": 92, "reasoning": "uniform extreme signals"}`, nil
		}
		return `{"classification": "Human", "confidence": 85, "reasoning": "varied play"}`, nil
	}
	if strings.Contains(p, "Actor: bot-1") {
		return "Anomaly Score: 92\nReasoning: farming pattern", nil
	}
	return "Anomaly Score: 15\nReasoning: ordinary pattern", nil
}

func TestPipeline_EndToEnd(t *testing.T) {
	Convey("Given two ingested players and a scripted oracle", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		paths := service.IngestPaths{
			Players: writeCSV(t, dir, "players.csv", playersCSV),
			Actions: writeCSV(t, dir, "actions.csv", actionsCSV),
			Social:  writeCSV(t, dir, "social.csv", socialCSV),
		}

		store, err := repository.OpenSQLite(ctx, ":memory:")
		So(err, ShouldBeNil)
		defer store.Close()

		stats, err := service.Ingest(ctx, store, paths, logger.Nop())
		So(err, ShouldBeNil)
		So(stats, ShouldResemble, service.IngestStats{Players: 2, Actions: 2, Social: 2})

		ids, err := store.PlayerIDs(ctx)
		So(err, ShouldBeNil)

		idx, err := similarity.New(ids, [][]float32{{0, 0}, {1, 1}})
		So(err, ShouldBeNil)

		catalog, err := prompt.Default()
		So(err, ShouldBeNil)
		o := oracle.Func(scripted)
		ext := features.NewExtractor(store)
		clf, err := classify.New(o, catalog)
		So(err, ShouldBeNil)

		c := service.New(ext, []scoring.Scorer{
			scoring.NewAnomaly(o, catalog, scoring.WithComparisons(ext)),
			scoring.NewSocial(o, catalog),
			scoring.NewAction(o, catalog),
		}, clf,
			service.WithSearcher(idx),
			service.WithPersister(store),
			service.WithLogger(logger.Nop()),
		)

		Convey("When the pipeline runs with a large budget", func() {
			reports, err := c.Run(ctx, ids)
			So(err, ShouldBeNil)

			Convey("Then both players are classified and persisted in order", func() {
				So(reports, ShouldHaveLength, 2)
				So(reports[0].PlayerID, ShouldEqual, "bot-1")
				So(reports[0].Classification, ShouldEqual, model.LabelBot)
				So(*reports[0].AnomalyScore, ShouldEqual, 92)
				So(*reports[0].SocialScore, ShouldEqual, 92)
				So(*reports[0].ActionScore, ShouldEqual, 92)
				So(reports[0].SimilarPlayers, ShouldResemble, []string{"human-1"})
				So(reports[0].Failures, ShouldBeEmpty)

				So(reports[1].PlayerID, ShouldEqual, "human-1")
				So(reports[1].Classification, ShouldEqual, model.LabelHuman)
				So(*reports[1].AnomalyScore, ShouldEqual, 15)

				for _, r := range reports {
					So(r.PersistStatus, ShouldEqual, model.PersistSuccess)
					stored, err := store.Classifications(ctx, r.PlayerID)
					So(err, ShouldBeNil)
					So(stored, ShouldHaveLength, 1)
					So(stored[0].Label, ShouldEqual, r.Classification)
				}
			})
		})

		Convey("When the pipeline runs twice the stored edge is reused", func() {
			_, err := c.Run(ctx, ids)
			So(err, ShouldBeNil)
			_, err = c.Run(ctx, ids)
			So(err, ShouldBeNil)
			stored, err := store.Classifications(ctx, "bot-1")
			So(err, ShouldBeNil)
			So(stored, ShouldHaveLength, 1)
		})
	})
}

func TestPipeline_TwoSeededPlayers(t *testing.T) {
	Convey("Given two seeded profiles and an oracle with fixed anomaly scores", t, func() {
		ctx := context.Background()
		store, err := repository.OpenSQLite(ctx, ":memory:")
		So(err, ShouldBeNil)
		defer store.Close()

		So(store.UpsertPlayers(ctx, []model.PlayerRecord{
			{ID: "1001", Attributes: map[string]float64{
				model.AttrLoginDayCount: 88, model.AttrPlaytimePerDay: 65497, model.AttrIPCount: 19,
			}},
			{ID: "1002", Attributes: map[string]float64{
				model.AttrLoginDayCount: 71, model.AttrPlaytimePerDay: 1284, model.AttrIPCount: 7,
			}},
		}), ShouldBeNil)

		o := oracle.Func(func(_ context.Context, p string) (string, error) {
			if strings.Contains(p, "Combine the results") {
				if strings.Contains(p, "Score: 92/100") {
					return `{"classification": "Bot", "confidence": 92, "reasoning": "extreme playtime"}`, nil
				}
				return `{"classification": "Human", "confidence": 85, "reasoning": "ordinary playtime"}`, nil
			}
			if strings.Contains(p, "Actor: 1001") {
				return "Anomaly Score: 92", nil
			}
			return "Anomaly Score: 15", nil
		})
		catalog, err := prompt.Default()
		So(err, ShouldBeNil)
		ext := features.NewExtractor(store)
		clf, err := classify.New(o, catalog)
		So(err, ShouldBeNil)

		var final model.PipelineState
		terminated := 0
		c := service.New(ext, []scoring.Scorer{
			scoring.NewAnomaly(o, catalog),
			scoring.NewSocial(o, catalog),
			scoring.NewAction(o, catalog),
		}, clf,
			service.WithPersister(store),
			service.WithStateSink(func(st model.PipelineState) {
				terminated++
				final = st
			}),
			service.WithLogger(logger.Nop()),
		)

		reports, err := c.Run(ctx, []string{"1001", "1002"})
		So(err, ShouldBeNil)

		Convey("Then each report carries its fixed anomaly score", func() {
			So(reports, ShouldHaveLength, 2)
			So(reports[0].PlayerID, ShouldEqual, "1001")
			So(*reports[0].AnomalyScore, ShouldEqual, 92)
			So(reports[1].PlayerID, ShouldEqual, "1002")
			So(*reports[1].AnomalyScore, ShouldEqual, 15)
		})

		Convey("Then the run terminates after two iterations with an empty queue", func() {
			So(terminated, ShouldEqual, 1)
			So(final.Done, ShouldBeTrue)
			So(final.Seq, ShouldEqual, 2)
			So(final.Queue, ShouldBeEmpty)
			So(final.Remaining, ShouldEqual, service.DefaultBudget-2)
		})
	})
}

func TestIngest_MissingFile(t *testing.T) {
	Convey("A missing players file aborts the ingest", t, func() {
		ctx := context.Background()
		store, err := repository.OpenSQLite(ctx, ":memory:")
		So(err, ShouldBeNil)
		defer store.Close()

		_, err = service.Ingest(ctx, store, service.IngestPaths{Players: filepath.Join(t.TempDir(), "none.csv")}, nil)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})
}
