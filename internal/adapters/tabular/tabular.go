// Package tabular reads the player telemetry CSV exports.
//
// Headers are normalized to lower-snake keys ("Login_day_count" becomes "login_day_count"),
// every column except Actor is parsed as a number, and blank or non-numeric cells are
// left out of the record.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/botscope/internal/domain/model"
)

// ActorColumn is the player id column every export carries.
const ActorColumn = "actor"

// ErrMissingColumn means a required column is absent from the header.
var ErrMissingColumn = errors.New("missing column")

type table struct {
	header []string
	actor  int
	rows   [][]string
}

func read(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w: %s (empty file)", model.ErrConfiguration, ErrMissingColumn, ActorColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = normalize(h)
	}

	t := &table{header: header, actor: -1}
	for _, want := range append([]string{ActorColumn}, required...) {
		idx := indexOf(header, want)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %w: %s", model.ErrConfiguration, ErrMissingColumn, want)
		}
		if want == ActorColumn {
			t.actor = idx
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.rows)+2, err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// id returns the trimmed Actor cell of rec, or "" when the row has none.
func (t *table) id(rec []string) string {
	if t.actor >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[t.actor])
}

func (t *table) each(fn func(id string, values map[string]float64)) {
	for _, rec := range t.rows {
		id := t.id(rec)
		if id == "" {
			continue
		}
		values := make(map[string]float64, len(t.header)-1)
		for i, cell := range rec {
			if i == t.actor || i >= len(t.header) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
				values[t.header[i]] = v
			}
		}
		fn(id, values)
	}
}

// ReadPlayers decodes the player information export.
func ReadPlayers(r io.Reader) ([]model.PlayerRecord, error) {
	t, err := read(r)
	if err != nil {
		return nil, fmt.Errorf("players: %w", err)
	}
	out := make([]model.PlayerRecord, 0, len(t.rows))
	t.each(func(id string, values map[string]float64) {
		out = append(out, model.PlayerRecord{ID: id, Attributes: values})
	})
	return out, nil
}

// ReadActions decodes the player actions export.
func ReadActions(r io.Reader) ([]model.ActionRecord, error) {
	t, err := read(r)
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	out := make([]model.ActionRecord, 0, len(t.rows))
	t.each(func(id string, values map[string]float64) {
		delete(values, model.AttrAccount)
		out = append(out, model.ActionRecord{PlayerID: id, Counters: values})
	})
	return out, nil
}

// ReadSocial decodes the social interaction diversity export.
func ReadSocial(r io.Reader) ([]model.SocialRecord, error) {
	t, err := read(r, model.AttrSocialDiv)
	if err != nil {
		return nil, fmt.Errorf("social: %w", err)
	}
	out := make([]model.SocialRecord, 0, len(t.rows))
	t.each(func(id string, values map[string]float64) {
		rec := model.SocialRecord{PlayerID: id}
		if v, ok := values[model.AttrAccount]; ok {
			rec.Account = model.Float64Ptr(v)
		}
		if v, ok := values[model.AttrSocialDiv]; ok {
			rec.Diversity = model.Float64Ptr(v)
		}
		out = append(out, rec)
	})
	return out, nil
}

// ReadIDs returns the Actor column in file order, first occurrence wins.
func ReadIDs(r io.Reader) ([]string, error) {
	t, err := read(r)
	if err != nil {
		return nil, fmt.Errorf("player ids: %w", err)
	}
	seen := make(map[string]bool, len(t.rows))
	ids := make([]string, 0, len(t.rows))
	for _, rec := range t.rows {
		id := t.id(rec)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ReadActors returns the Actor cell of every data row in file order. Duplicates are
// kept and rows without an Actor yield "", so the result lines up row for row with
// artifacts exported from the same file.
func ReadActors(r io.Reader) ([]string, error) {
	t, err := read(r)
	if err != nil {
		return nil, fmt.Errorf("actor rows: %w", err)
	}
	out := make([]string, len(t.rows))
	for i, rec := range t.rows {
		out[i] = t.id(rec)
	}
	return out, nil
}

// LoadPlayers reads the player export at path.
func LoadPlayers(path string) ([]model.PlayerRecord, error) {
	return withFile(path, ReadPlayers)
}

// LoadActions reads the action export at path.
func LoadActions(path string) ([]model.ActionRecord, error) {
	return withFile(path, ReadActions)
}

// LoadSocial reads the social export at path.
func LoadSocial(path string) ([]model.SocialRecord, error) {
	return withFile(path, ReadSocial)
}

// LoadIDs reads the distinct Actor ids of the export at path.
func LoadIDs(path string) ([]string, error) {
	return withFile(path, ReadIDs)
}

// LoadActors reads the row-aligned Actor column of the export at path.
func LoadActors(path string) ([]string, error) {
	return withFile(path, ReadActors)
}

func withFile[T any](path string, fn func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, model.ErrConfiguration, err)
	}
	defer f.Close()
	out, err := fn(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func normalize(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

func indexOf(header []string, want string) int {
	for i, h := range header {
		if h == want {
			return i
		}
	}
	return -1
}
