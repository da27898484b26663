// Package synth generates telemetry datasets with a known mix of bots and humans
// for demos and end-to-end tests.
package synth

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
)

// Default generation parameters.
const (
	DefaultPlayers   = 50
	DefaultBotRatio  = 0.3
	DefaultDimension = 8
	firstPlayerID    = 1000
	playersPerAcct   = 3
	embeddingNoise   = 0.35
)

// Config holds generation parameters.
type Config struct {
	Players   int     // Number of players to generate
	BotRatio  float64 // Share of players generated with bot behavior
	Dimension int     // Embedding dimension
	Seed      uint64  // Random seed; equal seeds give equal datasets
}

// Dataset is one generated population. Rows are in player order everywhere.
type Dataset struct {
	Players    []model.PlayerRecord
	Actions    []model.ActionRecord
	Social     []model.SocialRecord
	Embeddings [][]float32
	Bots       map[string]bool
}

// IDs returns the player ids in order.
func (d Dataset) IDs() []string {
	ids := make([]string, len(d.Players))
	for i, p := range d.Players {
		ids[i] = p.ID
	}
	return ids
}

type gen struct {
	r *rand.Rand
}

// between returns a uniform value in [lo, hi).
func (g gen) between(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}

func (g gen) whole(lo, hi float64) float64 {
	return math.Floor(g.between(lo, hi))
}

// Generate builds a dataset from cfg.
func Generate(ctx context.Context, cfg Config) Dataset {
	if cfg.Players <= 0 {
		cfg.Players = DefaultPlayers
	}
	if cfg.BotRatio < 0 || cfg.BotRatio > 1 {
		cfg.BotRatio = DefaultBotRatio
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	logger.Get().Info(ctx, "generating synthetic players",
		logger.Int("players", cfg.Players),
		logger.Float64("bot_ratio", cfg.BotRatio),
	)

	g := gen{r: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))}
	d := Dataset{Bots: make(map[string]bool)}
	for i := range cfg.Players {
		id := strconv.Itoa(firstPlayerID + i)
		acct := float64(1 + i/playersPerAcct)
		bot := g.r.Float64() < cfg.BotRatio
		if bot {
			d.Bots[id] = true
		}
		d.Players = append(d.Players, g.profile(id, acct, bot))
		d.Actions = append(d.Actions, g.actions(id, bot))
		d.Social = append(d.Social, g.social(id, acct, bot))
		d.Embeddings = append(d.Embeddings, g.embedding(cfg.Dimension, bot))
	}
	return d
}

func (g gen) profile(id string, acct float64, bot bool) model.PlayerRecord {
	var days, logout, perDay, money, logins, ips, level float64
	if bot {
		// Bots log in and out every day, play nearly around the clock, from one address.
		days = g.whole(20, 60)
		logout = days
		perDay = g.whole(70000, 86400)
		money = g.whole(200000, 1000000)
		logins = days + g.whole(0, 3)
		ips = 1
		level = g.whole(60, 90)
	} else {
		days = g.whole(3, 40)
		logout = math.Max(1, days-g.whole(0, 3))
		perDay = g.whole(1800, 14400)
		money = g.whole(1000, 80000)
		logins = math.Floor(days * g.between(1, 4))
		ips = g.whole(1, 5)
		level = g.whole(5, 60)
	}
	return model.PlayerRecord{ID: id, Attributes: map[string]float64{
		model.AttrAccount:        acct,
		model.AttrLoginDayCount:  days,
		model.AttrLogoutDayCount: logout,
		model.AttrPlaytime:       perDay * days,
		model.AttrPlaytimePerDay: perDay,
		model.AttrAvgMoney:       money,
		model.AttrLoginCount:     logins,
		model.AttrIPCount:        ips,
		model.AttrMaxLevel:       level,
	}}
}

func (g gen) actions(id string, bot bool) model.ActionRecord {
	counters := make(map[string]float64, len(model.ActionKeys))
	for _, k := range model.ActionKeys {
		var v float64
		switch {
		case strings.HasSuffix(k, "_ratio"):
			v = g.between(0.2, 3)
			if bot {
				v = g.between(0, 0.08)
			}
		case strings.HasPrefix(k, "killed_") || strings.HasPrefix(k, "reborn_"):
			v = g.whole(5, 60)
			if bot {
				v = g.whole(0, 2)
			}
		case strings.HasPrefix(k, "use_portal"):
			v = g.whole(10, 80)
			if bot {
				v = 0
			}
		default:
			v = g.whole(10, 400)
			if bot {
				v = g.whole(2000, 9000)
			}
		}
		if strings.HasSuffix(k, "_per_day") {
			v = math.Round(v/30*100) / 100
		}
		counters[k] = v
	}
	if bot {
		counters["collect_max_count"] = 0
	}
	return model.ActionRecord{PlayerID: id, Counters: counters}
}

func (g gen) social(id string, acct float64, bot bool) model.SocialRecord {
	div := math.Round(g.between(0.5, 2)*1000) / 1000
	if bot {
		div = math.Round(g.between(0, 0.1)*1000) / 1000
	}
	return model.SocialRecord{PlayerID: id, Account: model.Float64Ptr(acct), Diversity: model.Float64Ptr(div)}
}

// embedding places bots and humans in two separated clusters.
func (g gen) embedding(dim int, bot bool) []float32 {
	center := -1.0
	if bot {
		center = 1.0
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(center + g.r.NormFloat64()*embeddingNoise)
	}
	return v
}
