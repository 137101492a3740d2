package vocab

import "fmt"

// #region sentinels
// Sentinel tokens shared by the word and piece vocabularies.
const (
	PadSign = "[PAD]"
	UnkSign = "[UNK]"
	ClsSign = "[CLS]"
	SepSign = "[SEP]"
)

// #endregion sentinels

// #region lookup-error
// LookupError reports an element or index missing from a vocabulary.
type LookupError struct {
	Vocab string
	Elem  string
	Index int
}

func (e *LookupError) Error() string {
	if e.Elem != "" {
		return fmt.Sprintf("vocab %s: unknown element %q", e.Vocab, e.Elem)
	}
	return fmt.Sprintf("vocab %s: index %d out of range", e.Vocab, e.Index)
}

// #endregion lookup-error

// #region interfaces
// Indexer maps elements to indices.
type Indexer interface {
	Index(elem string) (int, error)
}

// Labeler maps indices back to elements and reports the vocabulary size.
type Labeler interface {
	Indexer
	Get(idx int) (string, error)
	Len() int
}

// #endregion interfaces
