package trim

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region flatten
// Flatten drops the padded turns of a [B, T, C] score tensor and concatenates
// the remaining rows dialogue-major, turn-minor into an [N, C] matrix where N
// is the sum of counts.
func Flatten(scores *tensor.Float, counts []int) (*mat.Dense, error) {
	if err := tensor.CheckDim("score tensor rank", scores.Dims(), 3); err != nil {
		return nil, err
	}
	if err := tensor.CheckDim("score tensor dialogues", scores.Shape[0], len(counts)); err != nil {
		return nil, err
	}
	maxLen, width := scores.Shape[1], scores.Shape[2]
	total := 0
	for i, c := range counts {
		if c < 0 || c > maxLen {
			return nil, &tensor.ShapeError{Field: fmt.Sprintf("turn count of dialogue %d", i), Got: c, Want: maxLen}
		}
		total += c
	}
	if total == 0 || width == 0 {
		return nil, errors.New("flatten: no rows to keep")
	}

	data := make([]float64, 0, total*width)
	for d, c := range counts {
		for i := 0; i < c; i++ {
			data = append(data, scores.Row(d, i)...)
		}
	}
	return mat.NewDense(total, width, data), nil
}

// #endregion flatten

// #region argmax
// ArgMax returns the column of the highest score in each row. Ties resolve to
// the lowest column.
func ArgMax(m *mat.Dense) []int {
	r, _ := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return out
}

// #endregion argmax

// #region nest
// Nest splits a flat sequence back into groups of the given sizes.
func Nest[T any](flat []T, counts []int) ([][]T, error) {
	total := 0
	for _, c := range counts {
		total += c
	}
	if err := tensor.CheckDim("flat sequence length", len(flat), total); err != nil {
		return nil, err
	}
	out := make([][]T, len(counts))
	off := 0
	for i, c := range counts {
		out[i] = flat[off : off+c : off+c]
		off += c
	}
	return out, nil
}

// Concat flattens nested groups dialogue-major, turn-minor.
func Concat[T any](nested [][]T) []T {
	var out []T
	for _, g := range nested {
		out = append(out, g...)
	}
	return out
}

// #endregion nest

// #region labels
// Labels maps nested indices to label strings.
func Labels(nested [][]int, l vocab.Labeler) ([][]string, error) {
	out := make([][]string, len(nested))
	for d, idxs := range nested {
		out[d] = make([]string, len(idxs))
		for i, idx := range idxs {
			s, err := l.Get(idx)
			if err != nil {
				return nil, err
			}
			out[d][i] = s
		}
	}
	return out, nil
}

// Indices maps nested label strings to indices.
func Indices(nested [][]string, l vocab.Indexer) ([][]int, error) {
	out := make([][]int, len(nested))
	for d, labels := range nested {
		out[d] = make([]int, len(labels))
		for i, s := range labels {
			idx, err := l.Index(s)
			if err != nil {
				return nil, err
			}
			out[d][i] = idx
		}
	}
	return out, nil
}

// #endregion labels
