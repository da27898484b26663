package similarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/botscope/internal/domain/model"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TextIndex serves free-text queries. It embeds player descriptions with the same model it
// uses for queries, so it never shares vectors with the player-feature Index.
type TextIndex struct {
	index    *Index
	embedder Embedder
}

// NewTextIndex embeds one description per player and indexes the result.
func NewTextIndex(ctx context.Context, embedder Embedder, ids, descriptions []string, opts ...Option) (*TextIndex, error) {
	if len(ids) != len(descriptions) {
		return nil, fmt.Errorf("build text index: %d ids for %d descriptions", len(ids), len(descriptions))
	}
	var vectors [][]float32
	if len(descriptions) > 0 {
		var err error
		vectors, err = embedder.Embed(ctx, descriptions)
		if err != nil {
			return nil, model.Upstream("embed player descriptions", err)
		}
	}
	idx, err := New(ids, vectors, opts...)
	if err != nil {
		return nil, err
	}
	return &TextIndex{index: idx, embedder: embedder}, nil
}

// Query returns the k players whose descriptions are closest to text.
func (t *TextIndex) Query(ctx context.Context, text string, k int) (model.SimilarityResult, error) {
	vecs, err := t.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, model.Upstream("embed query", err)
	}
	if len(vecs) != 1 {
		return nil, model.Upstream("embed query", fmt.Errorf("got %d embeddings for one text", len(vecs)))
	}
	return t.index.Search(vecs[0], k)
}

// Neighbors returns the players whose descriptions are closest to playerID's.
func (t *TextIndex) Neighbors(playerID string, k int) (model.SimilarityResult, error) {
	return t.index.Neighbors(playerID, k)
}

// Describe renders a profile as the text that gets embedded.
func Describe(p model.PlayerRecord) string {
	var sb strings.Builder
	sb.WriteString("player ")
	sb.WriteString(p.ID)
	for _, k := range model.ProfileKeys {
		if v, ok := p.Value(k); ok {
			fmt.Fprintf(&sb, " %s=%s", k, model.FormatNumber(v))
		}
	}
	return sb.String()
}
