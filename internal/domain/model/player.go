// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strconv"
)

// Profile attribute keys. Keys are lower-snake versions of the telemetry columns.
const (
	AttrAccount        = "a_acc"
	AttrLoginDayCount  = "login_day_count"
	AttrLogoutDayCount = "logout_day_count"
	AttrPlaytime       = "playtime"
	AttrPlaytimePerDay = "playtime_per_day"
	AttrAvgMoney       = "avg_money"
	AttrLoginCount     = "login_count"
	AttrIPCount        = "ip_count"
	AttrMaxLevel       = "max_level"
	AttrSocialDiv      = "social_diversity"
)

// ProfileKeys lists the profile attributes the anomaly signal reads, in prompt order.
var ProfileKeys = []string{
	AttrAccount,
	AttrLoginDayCount,
	AttrLogoutDayCount,
	AttrPlaytime,
	AttrPlaytimePerDay,
	AttrAvgMoney,
	AttrLoginCount,
	AttrIPCount,
	AttrMaxLevel,
}

// ActionKeys lists the action counters the action-pattern signal reads.
var ActionKeys = []string{
	"collect_max_count",
	"sit_ratio", "sit_count", "sit_count_per_day",
	"exp_get_ratio", "exp_get_count", "exp_get_count_per_day",
	"item_get_ratio", "item_get_count", "item_get_count_per_day",
	"money_get_ratio", "money_get_count", "money_get_count_per_day",
	"abyss_get_ratio", "abyss_get_count", "abyss_get_count_per_day",
	"exp_repair_count", "exp_repair_count_per_day",
	"use_portal_count", "use_portal_count_per_day",
	"killed_bypc_count", "killed_bypc_count_per_day",
	"killed_bynpc_count", "killed_bynpc_count_per_day",
	"teleport_count", "teleport_count_per_day",
	"reborn_count", "reborn_count_per_day",
}

// PlayerRecord is the profile view of a player. It is read-only for a pipeline pass.
type PlayerRecord struct {
	ID         string             `json:"player_id"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
}

// Empty reports whether the record carries no attributes.
func (p PlayerRecord) Empty() bool { return len(p.Attributes) == 0 }

// Value returns the attribute and whether it was present.
func (p PlayerRecord) Value(key string) (float64, bool) {
	v, ok := p.Attributes[key]
	return v, ok
}

// ActionRecord holds per-player action counters and ratios.
type ActionRecord struct {
	PlayerID string             `json:"player_id"`
	Counters map[string]float64 `json:"counters,omitempty"`
}

// Empty reports whether the record carries no counters.
func (a ActionRecord) Empty() bool { return len(a.Counters) == 0 }

// SocialRecord holds the social diversity measure, in [0,2]. Nil means absent.
type SocialRecord struct {
	PlayerID  string   `json:"player_id"`
	Account   *float64 `json:"a_acc,omitempty"`
	Diversity *float64 `json:"social_diversity,omitempty"`
}

// Empty reports whether no diversity value is known.
func (s SocialRecord) Empty() bool { return s.Diversity == nil }

// Features bundles the three views fetched for one player.
type Features struct {
	Profile PlayerRecord `json:"profile"`
	Social  SocialRecord `json:"social"`
	Action  ActionRecord `json:"action"`
}

// Neighbor is one similarity hit.
type Neighbor struct {
	ID       string  `json:"player_id"`
	Distance float64 `json:"distance"`
}

// SimilarityResult is ordered by ascending distance.
type SimilarityResult []Neighbor

// IDs returns the neighbor ids in rank order.
func (r SimilarityResult) IDs() []string {
	ids := make([]string, len(r))
	for i, n := range r {
		ids[i] = n.ID
	}
	return ids
}

// SortedKeys returns the map keys in lexical order.
func SortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatNumber renders a telemetry value without a trailing ".0" for integers.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
