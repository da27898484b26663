package model_test

import (
	"errors"
	"fmt"
	"testing"

	model "github.com/okian/botscope/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestPipelineStateAdvance(t *testing.T) {
	convey.Convey("Given a pipeline state over a queue of players", t, func() {
		ids := []string{"8085", "2554", "6187", "4401", "1212"}

		for _, tc := range []struct{ budget, length int }{
			{0, 5}, {1, 5}, {3, 5}, {5, 5}, {9, 5}, {4, 0}, {2, 1},
		} {
			tc := tc
			convey.Convey(fmt.Sprintf("When the budget is %d and the queue holds %d ids", tc.budget, tc.length), func() {
				st := model.NewPipelineState("run", ids[:tc.length], tc.budget)
				var popped []string
				for st.Advance() {
					popped = append(popped, st.Current)
				}

				convey.Convey("Then exactly min(budget, length) players are popped in FIFO order", func() {
					want := min(tc.budget, tc.length)
					convey.So(len(popped), convey.ShouldEqual, want)
					convey.So(popped, convey.ShouldResemble, append([]string(nil), ids[:want]...))
					convey.So(st.Done, convey.ShouldBeTrue)
					convey.So(st.Remaining, convey.ShouldEqual, tc.budget-want)
				})
			})
		}

		convey.Convey("When the caller's slice is modified after seeding", func() {
			src := []string{"1", "2"}
			st := model.NewPipelineState("run", src, 10)
			src[0] = "999"
			st.Advance()
			convey.So(st.Current, convey.ShouldEqual, "1")
		})
	})
}

func TestErrorKind(t *testing.T) {
	convey.Convey("Given wrapped taxonomy errors", t, func() {
		convey.So(model.ErrorKind(nil), convey.ShouldEqual, "")
		convey.So(model.ErrorKind(fmt.Errorf("x: %w", model.ErrNotFound)), convey.ShouldEqual, "not_found")
		convey.So(model.ErrorKind(fmt.Errorf("x: %w", model.ErrParseFailure)), convey.ShouldEqual, "parse_failure")
		convey.So(model.ErrorKind(errors.New("socket closed")), convey.ShouldEqual, "upstream_unavailable")

		convey.Convey("Upstream keeps both the sentinel and the cause", func() {
			cause := errors.New("dial tcp: refused")
			err := model.Upstream("query profile", cause)
			convey.So(errors.Is(err, model.ErrUpstreamUnavailable), convey.ShouldBeTrue)
			convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
			convey.So(model.Upstream("x", nil), convey.ShouldBeNil)

			nf := model.Upstream("lookup", model.ErrNotFound)
			convey.So(errors.Is(nf, model.ErrUpstreamUnavailable), convey.ShouldBeFalse)
		})
	})
}
