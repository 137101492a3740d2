package eval

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
	"github.com/danielpatrickdp/relgraph-tagger/internal/trim"
)

// #region eval-harness
// EvalHarness scores predicted labels against gold labels.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run scores one label space. gold and pred are nested per dialogue and must
// have the same shape. Labels seen in either side take part in the average;
// a label with no predictions or no gold turns scores zero.
func (h *EvalHarness) Run(space string, gold, pred [][]string) (EvalResult, error) {
	if err := tensor.CheckDim(space+" predicted dialogues", len(pred), len(gold)); err != nil {
		return EvalResult{}, err
	}
	for i := range gold {
		if err := tensor.CheckDim(fmt.Sprintf("%s predicted turns of dialogue %d", space, i), len(pred[i]), len(gold[i])); err != nil {
			return EvalResult{}, err
		}
	}
	g, p := trim.Concat(gold), trim.Concat(pred)

	type counts struct{ tp, fp, fn int }
	per := make(map[string]*counts)
	get := func(l string) *counts {
		c, ok := per[l]
		if !ok {
			c = &counts{}
			per[l] = c
		}
		return c
	}
	correct := 0
	for i := range g {
		if g[i] == p[i] {
			correct++
			get(g[i]).tp++
			continue
		}
		get(g[i]).fn++
		get(p[i]).fp++
	}

	labels := make([]string, 0, len(per))
	for l := range per {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	res := EvalResult{Space: space, Turns: len(g)}
	if len(g) == 0 {
		return res, nil
	}
	res.Accuracy = float64(correct) / float64(len(g))

	var sum, weight float64
	for _, l := range labels {
		c := per[l]
		m := EvalMetric{
			Label:     l,
			Precision: ratio(c.tp, c.tp+c.fp),
			Recall:    ratio(c.tp, c.tp+c.fn),
			Support:   c.tp + c.fn,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		res.Metrics = append(res.Metrics, m)

		if h.config.Average == Weighted {
			sum += m.F1 * float64(m.Support)
			weight += float64(m.Support)
		} else {
			sum += m.F1
			weight++
		}
	}
	if weight > 0 {
		res.F1 = sum / weight
	}
	return res, nil
}

// #endregion eval-harness

// #region helpers
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// #endregion helpers
