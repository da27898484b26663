// Package prompt loads the oracle prompt templates and renders them from player features.
//
// Templates are embedded at build time and validated once at startup; a missing or broken
// template is a configuration failure, never a per-player one.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"text/template"

	"github.com/okian/botscope/internal/domain/model"
)

// Template names.
const (
	NameAnomaly  = "anomaly"
	NameSocial   = "social"
	NameAction   = "action"
	NameClassify = "classify"
)

const (
	notAvailable = "n/a"
	unavailable  = "unavailable"
)

// Names lists every template the catalog requires.
var Names = []string{NameAnomaly, NameSocial, NameAction, NameClassify}

//go:embed templates/*.tmpl
var embedded embed.FS

// Catalog holds the parsed templates.
type Catalog struct {
	templates map[string]*template.Template
}

// Default loads the templates compiled into the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("prompt: %w: %w", model.ErrConfiguration, err)
	}
	return Load(sub)
}

// Load parses <name>.tmpl for every required name from fsys and dry-runs each one.
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]*template.Template, len(Names))}
	for _, name := range Names {
		file := name + ".tmpl"
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w: %w", name, model.ErrConfiguration, err)
		}
		t, err := template.New(name).Option("missingkey=error").Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w: %w", name, model.ErrConfiguration, err)
		}
		c.templates[name] = t
	}

	// Every template must render against empty inputs.
	checks := map[string]map[string]any{
		NameAnomaly:  AnomalyData(model.PlayerRecord{}, ""),
		NameSocial:   SocialData("", model.SocialRecord{}),
		NameAction:   ActionData(model.ActionRecord{}),
		NameClassify: ClassifyData(nil),
	}
	for name, data := range checks {
		if _, err := c.Render(name, data); err != nil {
			return nil, fmt.Errorf("prompt %s: %w: %w", name, model.ErrConfiguration, err)
		}
	}
	return c, nil
}

// Render executes the named template.
func (c *Catalog) Render(name string, data map[string]any) (string, error) {
	t, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt %s: %w: unknown template", name, model.ErrConfiguration)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Anomaly renders the profile prompt with optional comparison text.
func (c *Catalog) Anomaly(p model.PlayerRecord, insights string) (string, error) {
	return c.Render(NameAnomaly, AnomalyData(p, insights))
}

// Social renders the social-diversity prompt.
func (c *Catalog) Social(playerID string, s model.SocialRecord) (string, error) {
	return c.Render(NameSocial, SocialData(playerID, s))
}

// Action renders the action-pattern prompt.
func (c *Catalog) Action(a model.ActionRecord) (string, error) {
	return c.Render(NameAction, ActionData(a))
}

// Classify renders the merge rubric from the three signal scores.
func (c *Catalog) Classify(scores map[model.Signal]model.SignalScore) (string, error) {
	return c.Render(NameClassify, ClassifyData(scores))
}

// AnomalyData maps a profile to template fields. Missing attributes render as "n/a".
func AnomalyData(p model.PlayerRecord, insights string) map[string]any {
	data := map[string]any{
		"actor":                   orNA(p.ID),
		"similar_player_insights": insights,
	}
	for _, k := range model.ProfileKeys {
		data[k] = attr(p.Attributes, k)
	}
	return data
}

// SocialData maps a social record to template fields.
func SocialData(playerID string, s model.SocialRecord) map[string]any {
	id := s.PlayerID
	if id == "" {
		id = playerID
	}
	return map[string]any{
		"actor":            orNA(id),
		"a_acc":            numOrNA(s.Account),
		"social_diversity": numOrNA(s.Diversity),
	}
}

// ActionData maps action counters to template fields in a stable order.
func ActionData(a model.ActionRecord) map[string]any {
	counters := make([]map[string]string, 0, len(a.Counters))
	seen := make(map[string]bool, len(model.ActionKeys))
	for _, k := range model.ActionKeys {
		seen[k] = true
		counters = append(counters, map[string]string{"name": k, "value": attr(a.Counters, k)})
	}
	for _, k := range model.SortedKeys(a.Counters) {
		if !seen[k] {
			counters = append(counters, map[string]string{"name": k, "value": model.FormatNumber(a.Counters[k])})
		}
	}
	return map[string]any{
		"actor":    orNA(a.PlayerID),
		"counters": counters,
	}
}

// ClassifyData maps signal scores to the rubric fields. Absent scores render as "unavailable".
func ClassifyData(scores map[model.Signal]model.SignalScore) map[string]any {
	field := func(sig model.Signal) (string, string) {
		s, ok := scores[sig]
		if !ok || s.Score == nil {
			reason := s.Reasoning
			if reason == "" {
				reason = "no analysis available"
			}
			return unavailable, reason
		}
		return strconv.Itoa(*s.Score), s.Reasoning
	}
	as, ar := field(model.SignalAnomaly)
	ss, sr := field(model.SignalSocial)
	ps, pr := field(model.SignalAction)
	return map[string]any{
		"anomaly_score":           as,
		"anomaly_reasoning":       ar,
		"social_diversity_score":  ss,
		"social_reasoning":        sr,
		"player_action_score":     ps,
		"player_action_reasoning": pr,
	}
}

func attr(m map[string]float64, key string) string {
	v, ok := m[key]
	if !ok {
		return notAvailable
	}
	return model.FormatNumber(v)
}

func numOrNA(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return model.FormatNumber(*v)
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
