package loss

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
)

// #region log-softmax
// LogSoftmax normalizes each row of scores into log-probabilities.
func LogSoftmax(scores *mat.Dense) *mat.Dense {
	r, c := scores.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := scores.RawRowView(i)
		lse := floats.LogSumExp(row)
		dst := out.RawRowView(i)
		for j, v := range row {
			dst[j] = v - lse
		}
	}
	return out
}

// #endregion log-softmax

// #region nll
// NLL is the summed negative log-likelihood of gold under logp.
func NLL(logp *mat.Dense, gold []int) float64 {
	var sum float64
	for i, g := range gold {
		sum -= logp.At(i, g)
	}
	return sum
}

// #endregion nll

// #region margin
// Margin sums max(0, prev - cur) over gold cells. In Aligned mode row i is read
// at gold[i]; in Cross mode every row is read at every gold column.
func Margin(prev, cur *mat.Dense, gold []int, mode Mode) float64 {
	var sum float64
	if mode == Cross {
		r, _ := prev.Dims()
		for i := 0; i < r; i++ {
			for _, g := range gold {
				sum += math.Max(0, prev.At(i, g)-cur.At(i, g))
			}
		}
		return sum
	}
	for i, g := range gold {
		sum += math.Max(0, prev.At(i, g)-cur.At(i, g))
	}
	return sum
}

// #endregion margin

// #region fold
// Fold computes the cross-entropy summed over every pass and the margin summed
// over every adjacent pair of passes. passes holds raw [N, C] scores in stack
// order; gold holds N label indices. A single pass yields a zero margin.
func Fold(passes []*mat.Dense, gold []int, mode Mode) (Terms, error) {
	if err := validate(passes, gold); err != nil {
		return Terms{}, err
	}
	logps := make([]*mat.Dense, len(passes))
	for j, p := range passes {
		logps[j] = LogSoftmax(p)
	}
	ce := foldEach(logps, func(lp *mat.Dense) float64 { return NLL(lp, gold) })
	margin := foldAdjacent(logps, func(prev, cur *mat.Dense) float64 { return Margin(prev, cur, gold, mode) })
	return Terms{CE: ce, Margin: margin, Passes: len(passes)}, nil
}

// Combine weights the margin terms by lambda and sums everything.
func Combine(sent, act Terms, lambda float64) Breakdown {
	return Breakdown{
		SentCE:     sent.CE,
		SentMargin: sent.Margin,
		ActCE:      act.CE,
		ActMargin:  act.Margin,
		Lambda:     lambda,
		Passes:     sent.Passes,
		Total:      sent.CE + lambda*sent.Margin + act.CE + lambda*act.Margin,
	}
}

func foldEach[T any](xs []T, f func(T) float64) float64 {
	var acc float64
	for _, x := range xs {
		acc += f(x)
	}
	return acc
}

func foldAdjacent[T any](xs []T, f func(prev, cur T) float64) float64 {
	var acc float64
	for j := 1; j < len(xs); j++ {
		acc += f(xs[j-1], xs[j])
	}
	return acc
}

// #endregion fold

// #region validate
func validate(passes []*mat.Dense, gold []int) error {
	if len(passes) == 0 {
		return errors.New("loss: empty label stack")
	}
	_, width := passes[0].Dims()
	for j, p := range passes {
		r, c := p.Dims()
		if err := tensor.CheckDim(fmt.Sprintf("pass %d rows", j), r, len(gold)); err != nil {
			return err
		}
		if err := tensor.CheckDim(fmt.Sprintf("pass %d label space", j), c, width); err != nil {
			return err
		}
	}
	for i, g := range gold {
		if g < 0 || g >= width {
			return &tensor.ShapeError{Field: fmt.Sprintf("gold index at position %d", i), Got: g, Want: width}
		}
	}
	return nil
}

// #endregion validate
