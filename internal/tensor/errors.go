package tensor

import "fmt"

// ShapeError reports two structures whose sizes must agree but do not.
type ShapeError struct {
	Field string
	Got   int
	Want  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: %s is %d, want %d", e.Field, e.Got, e.Want)
}

// CheckDim returns a *ShapeError when got != want.
func CheckDim(field string, got, want int) error {
	if got != want {
		return &ShapeError{Field: field, Got: got, Want: want}
	}
	return nil
}
