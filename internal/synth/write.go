package synth

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/similarity"
)

// File names written by WriteDir.
const (
	PlayersFile    = "player_info.csv"
	ActionsFile    = "player_actions.csv"
	SocialFile     = "social_diversity.csv"
	EmbeddingsFile = "player_embeddings.npy"
	LabelsFile     = "labels.csv"
)

// Paths lists the files of a written dataset.
type Paths struct {
	Players    string
	Actions    string
	Social     string
	Embeddings string
	Labels     string
}

// WriteDir writes d into dir as CSV exports plus the embedding matrix.
func WriteDir(dir string, d Dataset) (Paths, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create %s: %w", dir, err)
	}
	p := Paths{
		Players:    filepath.Join(dir, PlayersFile),
		Actions:    filepath.Join(dir, ActionsFile),
		Social:     filepath.Join(dir, SocialFile),
		Embeddings: filepath.Join(dir, EmbeddingsFile),
		Labels:     filepath.Join(dir, LabelsFile),
	}

	players := [][]string{append([]string{"Actor"}, model.ProfileKeys...)}
	for _, r := range d.Players {
		players = append(players, row(r.ID, model.ProfileKeys, r.Attributes))
	}
	actionHeader := append([]string{"Actor"}, model.ActionKeys...)
	actions := [][]string{actionHeader}
	for _, r := range d.Actions {
		actions = append(actions, row(r.PlayerID, model.ActionKeys, r.Counters))
	}
	social := [][]string{{"Actor", model.AttrAccount, model.AttrSocialDiv}}
	for _, r := range d.Social {
		social = append(social, []string{r.PlayerID, num(r.Account), num(r.Diversity)})
	}
	labels := [][]string{{"Actor", "label"}}
	for _, r := range d.Players {
		label := model.LabelHuman
		if d.Bots[r.ID] {
			label = model.LabelBot
		}
		labels = append(labels, []string{r.ID, label})
	}

	for path, rows := range map[string][][]string{
		p.Players: players, p.Actions: actions, p.Social: social, p.Labels: labels,
	} {
		if err := writeCSV(path, rows); err != nil {
			return Paths{}, err
		}
	}
	if err := similarity.WriteNPYFile(p.Embeddings, d.Embeddings); err != nil {
		return Paths{}, err
	}
	return p, nil
}

func row(id string, keys []string, values map[string]float64) []string {
	out := make([]string, 0, len(keys)+1)
	out = append(out, id)
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			out = append(out, "")
			continue
		}
		out = append(out, model.FormatNumber(v))
	}
	return out
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return model.FormatNumber(*v)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path) //nolint:gosec // path is built from the output directory
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
