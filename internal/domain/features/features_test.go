package features_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/botscope/internal/domain/features"
	"github.com/okian/botscope/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type reader struct {
	profiles map[string]model.PlayerRecord
	socialFn func(id string) (model.SocialRecord, error)
}

func (r reader) Profile(_ context.Context, id string) (model.PlayerRecord, error) {
	if p, ok := r.profiles[id]; ok {
		return p, nil
	}
	return model.PlayerRecord{}, fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
}

func (r reader) Social(_ context.Context, id string) (model.SocialRecord, error) {
	return r.socialFn(id)
}

func (r reader) Actions(_ context.Context, id string) (model.ActionRecord, error) {
	return model.ActionRecord{}, fmt.Errorf("actions %s: %w", id, model.ErrNotFound)
}

func TestExtract(t *testing.T) {
	Convey("Given a store with only a profile and a failing social view", t, func() {
		r := reader{
			profiles: map[string]model.PlayerRecord{"p1": {ID: "p1", Attributes: map[string]float64{"playtime": 1}}},
			socialFn: func(string) (model.SocialRecord, error) {
				return model.SocialRecord{}, fmt.Errorf("social: %w", model.ErrUpstreamUnavailable)
			},
		}
		f, err := features.NewExtractor(r).Extract(context.Background(), "p1")

		Convey("Then the profile is kept and the other views are empty", func() {
			So(f.Profile.Empty(), ShouldBeFalse)
			So(f.Social.Empty(), ShouldBeTrue)
			So(f.Social.PlayerID, ShouldEqual, "p1")
			So(f.Action.Empty(), ShouldBeTrue)
		})

		Convey("Then each degraded view is reported", func() {
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, model.ErrUpstreamUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given an unknown player", t, func() {
		r := reader{socialFn: func(id string) (model.SocialRecord, error) {
			return model.SocialRecord{}, model.ErrNotFound
		}}
		f, err := features.NewExtractor(r).Extract(context.Background(), "ghost")
		So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		So(f.Profile.ID, ShouldEqual, "ghost")
		So(f.Profile.Empty(), ShouldBeTrue)
	})
}
