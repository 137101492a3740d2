package eval

// Averaging modes for F1 over labels.
const (
	Macro    = "macro"
	Weighted = "weighted"
)

// #region eval-config
// EvalConfig selects how per-label F1 scores are averaged.
type EvalConfig struct {
	Average string // Macro or Weighted
}

// DefaultEvalConfig returns macro averaging.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{Average: Macro}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures one score of one label.
type EvalMetric struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the score of one label space.
type EvalResult struct {
	Space    string
	Turns    int
	Accuracy float64
	F1       float64
	Metrics  []EvalMetric // sorted by label
}

// #endregion eval-result
