// Package features fetches the three feature views of a player from the graph store.
package features

import (
	"context"
	"errors"

	"github.com/okian/botscope/internal/domain/model"
)

// Reader is the subset of the graph store the extractor needs.
type Reader interface {
	Profile(ctx context.Context, playerID string) (model.PlayerRecord, error)
	Social(ctx context.Context, playerID string) (model.SocialRecord, error)
	Actions(ctx context.Context, playerID string) (model.ActionRecord, error)
}

// Extractor reads feature bundles. It has no side effects.
type Extractor struct {
	reader Reader
}

// NewExtractor wraps reader.
func NewExtractor(reader Reader) *Extractor {
	return &Extractor{reader: reader}
}

// Extract returns every view it could read. A view without a record stays empty and is
// reported through the returned error, which joins one error per degraded view. Callers
// treat the bundle as usable whatever the error.
func (e *Extractor) Extract(ctx context.Context, playerID string) (model.Features, error) {
	var f model.Features
	var errs []error

	profile, err := e.reader.Profile(ctx, playerID)
	if err != nil {
		errs = append(errs, err)
		profile = model.PlayerRecord{ID: playerID}
	}
	f.Profile = profile

	social, err := e.reader.Social(ctx, playerID)
	if err != nil {
		errs = append(errs, err)
		social = model.SocialRecord{PlayerID: playerID}
	}
	f.Social = social

	actions, err := e.reader.Actions(ctx, playerID)
	if err != nil {
		errs = append(errs, err)
		actions = model.ActionRecord{PlayerID: playerID}
	}
	f.Action = actions

	return f, errors.Join(errs...)
}

// Profile returns playerID's profile. It lets the extractor serve comparison lookups.
func (e *Extractor) Profile(ctx context.Context, playerID string) (model.PlayerRecord, error) {
	return e.reader.Profile(ctx, playerID)
}
