package loss

import "fmt"

// #region mode
// Mode selects how the margin term pairs rows with gold columns.
type Mode string

const (
	// Aligned compares each position at its own gold column.
	Aligned Mode = "aligned"
	// Cross compares every position at every gold column in the batch.
	Cross Mode = "cross"
)

// ParseMode validates a configured mode. Empty means Aligned.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Aligned:
		return Aligned, nil
	case Cross:
		return Cross, nil
	default:
		return "", fmt.Errorf("unknown margin mode %q", s)
	}
}

// #endregion mode

// #region terms
// Terms is the folded loss of one label space across a decoder stack.
type Terms struct {
	CE     float64
	Margin float64
	Passes int
}

// Breakdown is the combined training loss with its components.
type Breakdown struct {
	SentCE     float64
	SentMargin float64
	ActCE      float64
	ActMargin  float64
	Lambda     float64
	Passes     int
	Total      float64
}

// #endregion terms
