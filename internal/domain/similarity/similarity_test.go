package similarity_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func line() ([]string, [][]float32) {
	return []string{"p0", "p1", "p2", "p3", "p4"},
		[][]float32{{0, 0}, {1, 0}, {3, 0}, {6, 0}, {10, 0}}
}

func TestIndex(t *testing.T) {
	Convey("Given five players on a line", t, func() {
		ids, vecs := line()
		idx, err := similarity.New(ids, vecs, similarity.WithDimension(4))
		So(err, ShouldBeNil)
		So(idx.Dimension(), ShouldEqual, 2)

		Convey("Search with k=3 returns the three nearest ascending", func() {
			res, err := idx.Search([]float32{2.9, 0}, 3)
			So(err, ShouldBeNil)
			So(res.IDs(), ShouldResemble, []string{"p2", "p1", "p0"})
			So(res[0].Distance, ShouldBeLessThan, res[1].Distance)
		})

		Convey("k above N returns every row", func() {
			res, err := idx.Search([]float32{0, 0}, 10)
			So(err, ShouldBeNil)
			So(res.IDs(), ShouldResemble, []string{"p0", "p1", "p2", "p3", "p4"})
		})

		Convey("Neighbors excludes the query player and breaks ties by row", func() {
			res, err := idx.Neighbors("p2", 3)
			So(err, ShouldBeNil)
			So(res.IDs(), ShouldResemble, []string{"p1", "p0", "p3"})
		})

		Convey("Unknown players are not found", func() {
			_, err := idx.Neighbors("ghost", 3)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Queries of the wrong length are rejected", func() {
			_, err := idx.Search([]float32{1}, 1)
			So(err, ShouldNotBeNil)
		})

		Convey("Non-positive k yields nothing", func() {
			res, err := idx.Search([]float32{0, 0}, 0)
			So(err, ShouldBeNil)
			So(res, ShouldBeEmpty)
		})
	})

	Convey("Given equidistant rows", t, func() {
		idx, err := similarity.New([]string{"a", "b", "c"}, [][]float32{{1, 0}, {-1, 0}, {0, 1}})
		So(err, ShouldBeNil)
		res, _ := idx.Search([]float32{0, 0}, 3)
		So(res.IDs(), ShouldResemble, []string{"a", "b", "c"})
	})

	Convey("Given malformed inputs", t, func() {
		_, err := similarity.New([]string{"a"}, [][]float32{{1}, {2}})
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		_, err = similarity.New([]string{"a", "b"}, [][]float32{{1, 2}, {3}})
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given rows aligned with a raw Actor column holding a duplicate and a blank", t, func() {
		idx, err := similarity.New(
			[]string{"1", "2", "2", "", "3"},
			[][]float32{{0}, {1}, {1.1}, {1.2}, {5}},
		)
		So(err, ShouldBeNil)

		Convey("Then the build keeps every row", func() {
			So(idx.Len(), ShouldEqual, 5)
		})

		Convey("Then neighbors skip every row of the player and unnamed rows", func() {
			res, err := idx.Neighbors("2", 5)
			So(err, ShouldBeNil)
			So(res.IDs(), ShouldResemble, []string{"1", "3"})
		})
	})
}

func npyBytes(descr string, rows, cols int, values any) []byte {
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", descr, rows, cols)
	pad := 64 - (10+len(header)+1)%64
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	_ = binary.Write(&buf, binary.LittleEndian, values)
	return buf.Bytes()
}

func TestLoadNPY(t *testing.T) {
	Convey("Given a float32 matrix", t, func() {
		raw := npyBytes("<f4", 2, 3, []float32{1, 2, 3, 4, 5, 6})
		m, err := similarity.LoadNPY(bytes.NewReader(raw))
		So(err, ShouldBeNil)
		So(cmp.Diff([][]float32{{1, 2, 3}, {4, 5, 6}}, m), ShouldBeEmpty)
	})

	Convey("Given a float64 matrix", t, func() {
		raw := npyBytes("<f8", 1, 2, []float64{0.5, -1})
		m, err := similarity.LoadNPY(bytes.NewReader(raw))
		So(err, ShouldBeNil)
		So(cmp.Diff([][]float32{{0.5, -1}}, m), ShouldBeEmpty)
	})

	Convey("Given unsupported inputs", t, func() {
		_, err := similarity.LoadNPY(bytes.NewReader(npyBytes("<i8", 1, 1, []int64{1})))
		So(err, ShouldNotBeNil)
		_, err = similarity.LoadNPY(strings.NewReader("not numpy at all"))
		So(err, ShouldNotBeNil)
		_, err = similarity.LoadNPY(bytes.NewReader(npyBytes("<f4", 2, 2, []float32{1, 2})))
		So(err, ShouldNotBeNil)
	})

	Convey("Written matrices load back and start data on a 64-byte boundary", t, func() {
		var buf bytes.Buffer
		want := [][]float32{{1.5, -2}, {0, 3}, {7, 8}}
		So(similarity.WriteNPY(&buf, want), ShouldBeNil)
		headerLen := int(binary.LittleEndian.Uint16(buf.Bytes()[8:10]))
		So((10+headerLen)%64, ShouldEqual, 0)
		got, err := similarity.LoadNPY(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)
		So(cmp.Diff(want, got), ShouldBeEmpty)

		So(similarity.WriteNPY(&bytes.Buffer{}, [][]float32{{1, 2}, {3}}), ShouldNotBeNil)
	})
}

type lengthEmbedder struct{ calls int }

// Embed maps a text to (len, count of 'x').
func (e *lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), float32(strings.Count(t, "x"))}
	}
	return out, nil
}

func TestTextIndex(t *testing.T) {
	Convey("Given a text index", t, func() {
		emb := &lengthEmbedder{}
		idx, err := similarity.NewTextIndex(context.Background(), emb,
			[]string{"a", "b", "c"}, []string{"xx", "xxxxxxxx", "xxx"})
		So(err, ShouldBeNil)

		Convey("Queries are embedded with the same embedder", func() {
			res, err := idx.Query(context.Background(), "xxxx", 2)
			So(err, ShouldBeNil)
			So(res.IDs(), ShouldResemble, []string{"c", "a"})
			So(emb.calls, ShouldEqual, 2)
		})

		Convey("Neighbors exclude the player", func() {
			res, err := idx.Neighbors("a", 1)
			So(err, ShouldBeNil)
			So(res.IDs(), ShouldResemble, []string{"c"})
		})
	})

	Convey("Describe lists present attributes in prompt order", t, func() {
		got := similarity.Describe(model.PlayerRecord{ID: "p1", Attributes: map[string]float64{
			model.AttrMaxLevel: 50, model.AttrPlaytime: 7200,
		}})
		So(got, ShouldEqual, "player p1 playtime=7200 max_level=50")
	})
}
