// Package similarity answers nearest-neighbor queries over player vectors with an exact
// flat L2 index. Indexes are immutable after construction and safe for concurrent use.
package similarity

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
)

// Searcher returns the players closest to a known player, excluding the player itself.
type Searcher interface {
	Neighbors(playerID string, k int) (model.SimilarityResult, error)
}

// Option applies a configuration option to an index.
type Option func(*options)

type options struct {
	dimension int
	logger    logger.Logger
}

// WithDimension sets the expected vector dimension. A mismatch with the data is logged and
// the data's dimension wins.
func WithDimension(d int) Option {
	return func(o *options) {
		if d > 0 {
			o.dimension = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Index is a flat exact L2 index over rows aligned with ids.
type Index struct {
	ids     []string
	vectors [][]float32
	dim     int
}

// New builds an index. Ragged rows or a row count different from len(ids) fail the build.
func New(ids []string, vectors [][]float32, opts ...Option) (*Index, error) {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("build index: %w: %d ids for %d vectors", model.ErrConfiguration, len(ids), len(vectors))
	}

	dim := o.dimension
	if len(vectors) > 0 {
		dim = len(vectors[0])
		for i, v := range vectors {
			if len(v) != dim {
				return nil, fmt.Errorf("build index: %w: row %d has %d values, want %d", model.ErrConfiguration, i, len(v), dim)
			}
		}
		if o.dimension > 0 && o.dimension != dim {
			o.logger.Warn(context.Background(), "embedding dimension adapted to artifact",
				logger.Int("configured", o.dimension),
				logger.Int("actual", dim),
			)
		}
	}

	idx := &Index{
		ids:     make([]string, len(ids)),
		vectors: make([][]float32, len(vectors)),
		dim:     dim,
	}
	copy(idx.ids, ids)
	for i, v := range vectors {
		idx.vectors[i] = slices.Clone(v)
	}
	return idx, nil
}

// Len returns the number of indexed rows.
func (x *Index) Len() int { return len(x.ids) }

// Dimension returns the vector length.
func (x *Index) Dimension() int { return x.dim }

// Vector returns the stored vector of playerID.
func (x *Index) Vector(playerID string) ([]float32, error) {
	row := slices.Index(x.ids, playerID)
	if row < 0 {
		return nil, fmt.Errorf("embedding for %s: %w", playerID, model.ErrNotFound)
	}
	return slices.Clone(x.vectors[row]), nil
}

// Neighbors returns the k players closest to playerID. Rows of the player itself and
// rows without an id are excluded.
func (x *Index) Neighbors(playerID string, k int) (model.SimilarityResult, error) {
	row := slices.Index(x.ids, playerID)
	if row < 0 {
		return nil, fmt.Errorf("embedding for %s: %w", playerID, model.ErrNotFound)
	}
	return x.search(x.vectors[row], k, func(i int) bool {
		return x.ids[i] == playerID || x.ids[i] == ""
	}), nil
}

// Search returns the k rows closest to vec, ascending by distance, ties by row order.
// k larger than the index returns every row.
func (x *Index) Search(vec []float32, k int) (model.SimilarityResult, error) {
	if len(vec) != x.dim {
		return nil, fmt.Errorf("search: query has %d values, index has %d", len(vec), x.dim)
	}
	return x.search(vec, k, nil), nil
}

func (x *Index) search(vec []float32, k int, skip func(row int) bool) model.SimilarityResult {
	if k <= 0 {
		return model.SimilarityResult{}
	}
	type hit struct {
		row  int
		dist float64
	}
	hits := make([]hit, 0, len(x.vectors))
	for i, v := range x.vectors {
		if skip != nil && skip(i) {
			continue
		}
		hits = append(hits, hit{row: i, dist: l2(vec, v)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if k < len(hits) {
		hits = hits[:k]
	}
	out := make(model.SimilarityResult, len(hits))
	for i, h := range hits {
		out[i] = model.Neighbor{ID: x.ids[h.row], Distance: h.dist}
	}
	return out
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
