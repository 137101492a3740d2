package trim

import (
	"errors"
	"testing"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// scores builds a [2, 2, 3] tensor where dialogue 1 has one real turn.
func scores(t *testing.T) *tensor.Float {
	t.Helper()
	s, err := tensor.FromFloats([]float64{
		0.1, 0.9, 0.0, // d0 t0 -> 1
		2.0, 1.0, 0.5, // d0 t1 -> 0
		0.0, 0.0, 3.0, // d1 t0 -> 2
		9.0, 9.0, 9.0, // d1 t1 padding
	}, 2, 2, 3)
	if err != nil {
		t.Fatalf("FromFloats: %v", err)
	}
	return s
}

func TestFlattenDropsPadding(t *testing.T) {
	m, err := Flatten(scores(t), []int{2, 1})
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	r, c := m.Dims()
	if r != 3 || c != 3 {
		t.Fatalf("expected 3x3, got %dx%d", r, c)
	}
	if m.At(2, 2) != 3.0 {
		t.Errorf("expected last kept row to be dialogue 1 turn 0, got %v", m.RawRowView(2))
	}
}

func TestFlattenRejectsBadCounts(t *testing.T) {
	var se *tensor.ShapeError
	if _, err := Flatten(scores(t), []int{2}); !errors.As(err, &se) {
		t.Fatalf("expected ShapeError for dialogue count, got %v", err)
	}
	if _, err := Flatten(scores(t), []int{3, 1}); !errors.As(err, &se) {
		t.Fatalf("expected ShapeError for oversized count, got %v", err)
	}
	if _, err := Flatten(scores(t), []int{0, 0}); err == nil {
		t.Fatal("expected error when nothing is kept")
	}
}

func TestArgMaxAndNest(t *testing.T) {
	m, err := Flatten(scores(t), []int{2, 1})
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	top := ArgMax(m)
	want := []int{1, 0, 2}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, top)
		}
	}
	nested, err := Nest(top, []int{2, 1})
	if err != nil {
		t.Fatalf("Nest: %v", err)
	}
	if len(nested) != 2 || len(nested[0]) != 2 || len(nested[1]) != 1 {
		t.Fatalf("unexpected nesting %v", nested)
	}
	if nested[1][0] != 2 {
		t.Errorf("expected 2, got %d", nested[1][0])
	}
}

func TestNestLengthMismatch(t *testing.T) {
	var se *tensor.ShapeError
	if _, err := Nest([]int{1, 2}, []int{2, 1}); !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
}

func TestNestGroupsDoNotAlias(t *testing.T) {
	nested, _ := Nest([]int{1, 2, 3}, []int{1, 2})
	nested[0] = append(nested[0], 99)
	if nested[1][0] != 2 {
		t.Fatal("appending to a group must not clobber the next group")
	}
}

func TestRoundTripCardinality(t *testing.T) {
	counts := []int{3, 1, 2}
	nested, err := Nest(Concat([][]string{{"a", "b", "c"}, {"d"}, {"e", "f"}}), counts)
	if err != nil {
		t.Fatalf("Nest: %v", err)
	}
	for i, c := range counts {
		if len(nested[i]) != c {
			t.Errorf("group %d: expected %d, got %d", i, c, len(nested[i]))
		}
	}
}

func TestLabelsAndIndices(t *testing.T) {
	a := vocab.NewAlphabet("act", false, false)
	for _, l := range []string{"inform", "question", "directive"} {
		a.Add(l)
	}
	got, err := Labels([][]int{{1, 0}, {2}}, a)
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if got[0][0] != "question" || got[1][0] != "directive" {
		t.Errorf("unexpected labels %v", got)
	}
	idx, err := Indices(got, a)
	if err != nil {
		t.Fatalf("Indices: %v", err)
	}
	if idx[0][0] != 1 || idx[1][0] != 2 {
		t.Errorf("unexpected indices %v", idx)
	}
	if _, err := Labels([][]int{{7}}, a); err == nil {
		t.Fatal("expected lookup error for out-of-range index")
	}
}
