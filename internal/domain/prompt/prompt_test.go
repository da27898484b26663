package prompt_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/prompt"
	. "github.com/smartystreets/goconvey/convey"
)

func validFS() fstest.MapFS {
	return fstest.MapFS{
		"anomaly.tmpl":  {Data: []byte("A {{.actor}} {{.playtime}}{{if .similar_player_insights}} [{{.similar_player_insights}}]{{end}}")},
		"social.tmpl":   {Data: []byte("S {{.actor}} {{.social_diversity}}")},
		"action.tmpl":   {Data: []byte("P {{.actor}}{{range .counters}} {{.name}}={{.value}}{{end}}")},
		"classify.tmpl": {Data: []byte("C {{.anomaly_score}} {{.social_diversity_score}} {{.player_action_score}}")},
	}
}

func TestLoad(t *testing.T) {
	Convey("Given the embedded templates", t, func() {
		c, err := prompt.Default()

		Convey("Then they load and render against real data", func() {
			So(err, ShouldBeNil)
			out, err := c.Anomaly(model.PlayerRecord{ID: "p1", Attributes: map[string]float64{model.AttrPlaytime: 3600}}, "")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Actor: p1")
			So(out, ShouldContainSubstring, "Playtime: 3600")
			So(out, ShouldContainSubstring, "Max_level: n/a")
			So(out, ShouldNotContainSubstring, "Comparable players")
		})
	})

	Convey("Given a catalog missing one template", t, func() {
		fsys := validFS()
		delete(fsys, "classify.tmpl")
		_, err := prompt.Load(fsys)

		Convey("Then loading is a configuration failure", func() {
			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "classify")
		})
	})

	Convey("Given a template that does not parse", t, func() {
		fsys := validFS()
		fsys["social.tmpl"] = &fstest.MapFile{Data: []byte("S {{.actor")}
		_, err := prompt.Load(fsys)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given a template referencing an unknown field", t, func() {
		fsys := validFS()
		fsys["social.tmpl"] = &fstest.MapFile{Data: []byte("S {{.guild_name}}")}
		_, err := prompt.Load(fsys)
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})
}

func TestRender(t *testing.T) {
	Convey("Given a catalog", t, func() {
		c, err := prompt.Load(validFS())
		So(err, ShouldBeNil)

		Convey("The anomaly prompt adds comparison text when present", func() {
			out, err := c.Anomaly(model.PlayerRecord{ID: "p1"}, "p2 plays 2h")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "A p1 n/a [p2 plays 2h]")
		})

		Convey("The social prompt falls back to the queried id", func() {
			out, err := c.Social("p9", model.SocialRecord{Diversity: model.Float64Ptr(0.25)})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "S p9 0.25")
		})

		Convey("The action prompt lists known counters first then extras", func() {
			out, err := c.Action(model.ActionRecord{PlayerID: "p1", Counters: map[string]float64{
				"sit_ratio": 0.05,
				"zz_extra":  7,
			}})
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "P p1 collect_max_count=n/a sit_ratio=0.05")
			So(out, ShouldEndWith, "reborn_count_per_day=n/a zz_extra=7")
		})

		Convey("The classify prompt marks absent scores unavailable", func() {
			out, err := c.Classify(map[model.Signal]model.SignalScore{
				model.SignalAnomaly: {Signal: model.SignalAnomaly, Score: model.IntPtr(92)},
				model.SignalAction:  {Signal: model.SignalAction, Score: model.IntPtr(15)},
			})
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "C 92 unavailable 15")
		})

		Convey("Unknown names are configuration failures", func() {
			_, err := c.Render("nope", nil)
			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})
	})
}
