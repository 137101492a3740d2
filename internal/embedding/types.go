package embedding

import "errors"

// #region source
// Source supplies pretrained vectors for the wanted words. Words it does not
// know are simply absent from the result.
type Source interface {
	Vectors(dim int, wanted map[string]bool) (map[string][]float64, error)
}

// #endregion source

// #region errors
// ErrDimMismatch is returned when a cached matrix or a vector line has the
// wrong width.
var ErrDimMismatch = errors.New("embedding dimension mismatch")

// ErrRowMismatch is returned when a cached matrix was built for a vocabulary
// of a different size.
var ErrRowMismatch = errors.New("embedding row count mismatch")

// #endregion errors
