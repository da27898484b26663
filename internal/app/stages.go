package service

import (
	"context"
	"time"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/scoring"
	"github.com/okian/botscope/pkg/logger"
	"github.com/okian/botscope/pkg/metrics"
)

// analyze runs every per-player stage and builds the report. A failing stage
// records a StageFailure and hands a neutral result to the next one.
func (c *Controller) analyze(ctx context.Context, runID string, seq int, playerID string, a *model.Analysis) model.Report {
	start := time.Now()
	log := c.logger.With(logger.String("run_id", runID), logger.String("player_id", playerID))
	log.Debug(ctx, "analyzing player", logger.Int("seq", seq))

	c.extract(ctx, log, playerID, a)
	c.search(ctx, log, playerID, a)
	c.score(ctx, log, playerID, a)
	c.classify(ctx, log, playerID, a)
	c.persist(ctx, log, playerID, a)

	metrics.RecordPlayerProcessed(float64(time.Since(start).Microseconds()) / 1000)
	return c.report(runID, seq, playerID, a)
}

func (c *Controller) fail(ctx context.Context, log logger.Logger, a *model.Analysis, stage model.Stage, err error) {
	a.Fail(stage, err)
	kind := model.ErrorKind(err)
	metrics.RecordStageFailure(string(stage), kind)
	log.Warn(ctx, "stage degraded",
		logger.String("stage", string(stage)),
		logger.String("kind", kind),
		logger.Error(err),
	)
}

func (c *Controller) extract(ctx context.Context, log logger.Logger, playerID string, a *model.Analysis) {
	f, err := c.extractor.Extract(ctx, playerID)
	if err != nil {
		c.fail(ctx, log, a, model.StageExtractFeature, err)
	}
	a.Features = f
}

func (c *Controller) search(ctx context.Context, log logger.Logger, playerID string, a *model.Analysis) {
	if c.searcher == nil || c.topK == 0 {
		return
	}
	res, err := c.searcher.Neighbors(playerID, c.topK)
	if err != nil {
		c.fail(ctx, log, a, model.StageSemanticSearch, err)
		return
	}
	a.Similar = res.IDs()
}

func (c *Controller) score(ctx context.Context, log logger.Logger, playerID string, a *model.Analysis) {
	in := scoring.Input{PlayerID: playerID, Features: a.Features, Similar: a.Similar}
	for _, s := range c.scorers {
		res, err := s.Score(ctx, in)
		if err != nil {
			c.fail(ctx, log, a, model.StageAnalyzePlayer, err)
		}
		res.Signal = s.Signal()
		a.Scores[s.Signal()] = res
	}
}

func (c *Controller) classify(ctx context.Context, log logger.Logger, playerID string, a *model.Analysis) {
	v, err := c.classifier.Classify(ctx, playerID, a.Scores)
	if err != nil {
		c.fail(ctx, log, a, model.StageClassify, err)
	}
	if v.Label == "" {
		v.Label = model.LabelUnclassified
	}
	a.Verdict = v
	metrics.RecordVerdict(v.Label)
}

func (c *Controller) persist(ctx context.Context, log logger.Logger, playerID string, a *model.Analysis) {
	a.PersistStatus = model.PersistSkipped
	if c.persister != nil && a.Verdict.Classified() {
		if err := c.persister.UpsertClassification(ctx, playerID, a.Verdict); err != nil {
			c.fail(ctx, log, a, model.StagePersist, err)
			a.PersistStatus = model.PersistFailed
		} else {
			a.PersistStatus = model.PersistSuccess
		}
	}
	metrics.RecordPersist(a.PersistStatus)
}

func (c *Controller) report(runID string, seq int, playerID string, a *model.Analysis) model.Report {
	return model.Report{
		RunID:          runID,
		Seq:            seq,
		PlayerID:       playerID,
		Classification: a.Verdict.Label,
		Confidence:     a.Verdict.Confidence,
		Reasoning:      a.Verdict.Reasoning,
		AnomalyScore:   a.Score(model.SignalAnomaly),
		SocialScore:    a.Score(model.SignalSocial),
		ActionScore:    a.Score(model.SignalAction),
		SimilarPlayers: a.Similar,
		PersistStatus:  a.PersistStatus,
		Failures:       a.Failures,
		CompletedAt:    c.now(),
	}
}
