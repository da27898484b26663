// Package scoring turns one player's feature bundles into three oracle-backed signal scores.
package scoring

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/oracle"
	"github.com/okian/botscope/internal/domain/prompt"
	"github.com/okian/botscope/pkg/logger"
	"github.com/okian/botscope/pkg/metrics"
)

// Default scoring configuration constants.
const (
	defaultMaxComparisons = 3
	maxDiagnosticRaw      = 200
)

// Input carries what a scorer may read for one player.
type Input struct {
	PlayerID string
	Features model.Features
	Similar  []string
}

// Scorer produces one signal score. The returned SignalScore is always usable; a non-nil
// error explains why its Score is absent and never aborts the pipeline.
type Scorer interface {
	Signal() model.Signal
	Score(ctx context.Context, in Input) (model.SignalScore, error)
}

// ProfileSource looks up comparison players.
type ProfileSource interface {
	Profile(ctx context.Context, playerID string) (model.PlayerRecord, error)
}

// Option applies a configuration option to a scorer.
type Option func(*base)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithComparisons lets the anomaly scorer include similar players' profiles in its prompt.
func WithComparisons(src ProfileSource) Option {
	return func(b *base) {
		b.profiles = src
	}
}

// WithMaxComparisons caps how many similar players are described to the oracle.
func WithMaxComparisons(n int) Option {
	return func(b *base) {
		if n > 0 {
			b.maxComparisons = n
		}
	}
}

type renderFunc func(ctx context.Context, in Input) (text string, ok bool, err error)

type base struct {
	signal         model.Signal
	oracle         oracle.TextOracle
	render         renderFunc
	logger         logger.Logger
	profiles       ProfileSource
	maxComparisons int
}

func newBase(sig model.Signal, o oracle.TextOracle, opts []Option) *base {
	b := &base{
		signal:         sig,
		oracle:         o,
		logger:         logger.Nop(),
		maxComparisons: defaultMaxComparisons,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Signal returns the scored dimension.
func (b *base) Signal() model.Signal { return b.signal }

// Score renders the prompt, calls the oracle and parses the reply.
func (b *base) Score(ctx context.Context, in Input) (model.SignalScore, error) {
	out := model.SignalScore{Signal: b.signal}

	text, ok, err := b.render(ctx, in)
	if err != nil {
		out.Reasoning = fmt.Sprintf("%s prompt could not be rendered", b.signal)
		return out, fmt.Errorf("%s prompt: %w: %w", b.signal, model.ErrConfiguration, err)
	}
	if !ok {
		out.Reasoning = fmt.Sprintf("no %s features available for player %s", b.signal, in.PlayerID)
		return out, nil
	}

	reply, err := b.oracle.Complete(ctx, text)
	if err != nil {
		out.Reasoning = fmt.Sprintf("%s oracle unavailable: %v", b.signal, err)
		return out, model.Upstream(string(b.signal)+" oracle", err)
	}
	out.Raw = reply

	score, reasoning, err := ParseScore(reply)
	if err != nil {
		metrics.RecordParseFailure(string(b.signal))
		b.logger.Warn(ctx, "could not parse oracle reply",
			logger.String("player_id", in.PlayerID),
			logger.String("signal", string(b.signal)),
			logger.Error(err),
		)
		out.Reasoning = fmt.Sprintf("could not reliably parse oracle reply: %v (reply: %s)", err, truncate(reply, maxDiagnosticRaw))
		return out, fmt.Errorf("%s score: %w", b.signal, err)
	}
	out.Score = model.IntPtr(score)
	out.Reasoning = reasoning
	return out, nil
}

// NewAnomaly scores the profile bundle. With WithComparisons, similar players'
// profiles are described in the prompt.
func NewAnomaly(o oracle.TextOracle, catalog *prompt.Catalog, opts ...Option) Scorer {
	b := newBase(model.SignalAnomaly, o, opts)
	b.render = func(ctx context.Context, in Input) (string, bool, error) {
		p := in.Features.Profile
		if p.Empty() {
			return "", false, nil
		}
		if p.ID == "" {
			p.ID = in.PlayerID
		}
		text, err := catalog.Anomaly(p, b.insights(ctx, in))
		return text, true, err
	}
	return b
}

// NewSocial scores the social-diversity bundle.
func NewSocial(o oracle.TextOracle, catalog *prompt.Catalog, opts ...Option) Scorer {
	b := newBase(model.SignalSocial, o, opts)
	b.render = func(_ context.Context, in Input) (string, bool, error) {
		if in.Features.Social.Empty() {
			return "", false, nil
		}
		text, err := catalog.Social(in.PlayerID, in.Features.Social)
		return text, true, err
	}
	return b
}

// NewAction scores the action-counter bundle.
func NewAction(o oracle.TextOracle, catalog *prompt.Catalog, opts ...Option) Scorer {
	b := newBase(model.SignalAction, o, opts)
	b.render = func(_ context.Context, in Input) (string, bool, error) {
		a := in.Features.Action
		if a.Empty() {
			return "", false, nil
		}
		if a.PlayerID == "" {
			a.PlayerID = in.PlayerID
		}
		text, err := catalog.Action(a)
		return text, true, err
	}
	return b
}

// insights describes comparison players. Lookup failures only shorten the list.
func (b *base) insights(ctx context.Context, in Input) string {
	if b.profiles == nil || len(in.Similar) == 0 {
		return ""
	}
	var sb strings.Builder
	n := 0
	for _, id := range in.Similar {
		if n == b.maxComparisons {
			break
		}
		if id == in.PlayerID {
			continue
		}
		p, err := b.profiles.Profile(ctx, id)
		if err != nil || p.Empty() {
			b.logger.Debug(ctx, "comparison profile unavailable",
				logger.String("player_id", in.PlayerID),
				logger.String("similar_id", id),
			)
			continue
		}
		fmt.Fprintf(&sb, "- %s:", id)
		for _, k := range model.ProfileKeys {
			if v, ok := p.Value(k); ok {
				fmt.Fprintf(&sb, " %s=%s", k, model.FormatNumber(v))
			}
		}
		sb.WriteByte('\n')
		n++
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
