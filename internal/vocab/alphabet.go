package vocab

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// #region alphabet
// Alphabet is an insertion-ordered bijection between elements and indices.
// The pad sentinel, when enabled, always sits at index 0 and unk right after it.
type Alphabet struct {
	name      string
	withPad   bool
	withUnk   bool
	elemToIdx map[string]int
	idxToElem []string
}

// NewAlphabet creates an empty alphabet with the requested sentinels.
func NewAlphabet(name string, withPad, withUnk bool) *Alphabet {
	a := &Alphabet{
		name:      name,
		withPad:   withPad,
		withUnk:   withUnk,
		elemToIdx: make(map[string]int),
	}
	if withPad {
		a.Add(PadSign)
	}
	if withUnk {
		a.Add(UnkSign)
	}
	return a
}

// Name returns the alphabet's name.
func (a *Alphabet) Name() string { return a.name }

// Add inserts elem if absent and returns its index.
func (a *Alphabet) Add(elem string) int {
	if idx, ok := a.elemToIdx[elem]; ok {
		return idx
	}
	idx := len(a.idxToElem)
	a.elemToIdx[elem] = idx
	a.idxToElem = append(a.idxToElem, elem)
	return idx
}

// Index returns the index of elem. Unknown elements map to the unk sentinel
// when the alphabet has one and are a *LookupError otherwise.
func (a *Alphabet) Index(elem string) (int, error) {
	if idx, ok := a.elemToIdx[elem]; ok {
		return idx, nil
	}
	if a.withUnk {
		return a.elemToIdx[UnkSign], nil
	}
	return 0, &LookupError{Vocab: a.name, Elem: elem}
}

// IndexAll maps a sequence of elements.
func (a *Alphabet) IndexAll(elems []string) ([]int, error) {
	out := make([]int, len(elems))
	for i, e := range elems {
		idx, err := a.Index(e)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Get returns the element stored at idx.
func (a *Alphabet) Get(idx int) (string, error) {
	if idx < 0 || idx >= len(a.idxToElem) {
		return "", &LookupError{Vocab: a.name, Index: idx}
	}
	return a.idxToElem[idx], nil
}

// Len returns the number of elements including sentinels.
func (a *Alphabet) Len() int { return len(a.idxToElem) }

// Reserved returns how many leading indices are taken by sentinels.
func (a *Alphabet) Reserved() int {
	n := 0
	if a.withPad {
		n++
	}
	if a.withUnk {
		n++
	}
	return n
}

// Mapping returns a copy of the element-to-index table.
func (a *Alphabet) Mapping() map[string]int {
	out := make(map[string]int, len(a.elemToIdx))
	for k, v := range a.elemToIdx {
		out[k] = v
	}
	return out
}

// #endregion alphabet

// #region persistence
// Save writes one element per line in index order, sentinels excluded.
func (a *Alphabet) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range a.idxToElem[a.Reserved():] {
		if _, err := fmt.Fprintln(bw, e); err != nil {
			return fmt.Errorf("write alphabet %s: %w", a.name, err)
		}
	}
	return bw.Flush()
}

// LoadAlphabet reads an alphabet written by Save.
func LoadAlphabet(name string, r io.Reader, withPad, withUnk bool) (*Alphabet, error) {
	a := NewAlphabet(name, withPad, withUnk)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		a.Add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read alphabet %s: %w", name, err)
	}
	return a, nil
}

// #endregion persistence
