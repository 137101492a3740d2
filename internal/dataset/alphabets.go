package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region alphabet-files
type alphabetFile struct {
	name    string
	withPad bool
	withUnk bool
	get     func(*Alphabets) **vocab.Alphabet
}

var alphabetFiles = []alphabetFile{
	{"word", true, true, func(a *Alphabets) **vocab.Alphabet { return &a.Words }},
	{"sentiment", false, false, func(a *Alphabets) **vocab.Alphabet { return &a.Sentiment }},
	{"act", false, false, func(a *Alphabets) **vocab.Alphabet { return &a.Act }},
	{"relation", false, false, func(a *Alphabets) **vocab.Alphabet { return &a.Relation }},
}

// #endregion alphabet-files

// #region persistence
// SaveAlphabets writes one <name>.txt file per vocabulary into dir.
func SaveAlphabets(dir string, a Alphabets) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create alphabet dir: %w", err)
	}
	for _, af := range alphabetFiles {
		alpha := *af.get(&a)
		if alpha == nil {
			return fmt.Errorf("alphabet %s is nil", af.name)
		}
		if err := writeAlphabet(filepath.Join(dir, af.name+".txt"), alpha); err != nil {
			return err
		}
	}
	return nil
}

func writeAlphabet(path string, a *vocab.Alphabet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := a.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadAlphabets reads the vocabularies written by SaveAlphabets. A missing
// file yields an error wrapping fs.ErrNotExist.
func LoadAlphabets(dir string) (Alphabets, error) {
	var a Alphabets
	for _, af := range alphabetFiles {
		path := filepath.Join(dir, af.name+".txt")
		f, err := os.Open(path)
		if err != nil {
			return Alphabets{}, fmt.Errorf("open alphabet %s: %w", path, err)
		}
		alpha, err := vocab.LoadAlphabet(af.name, f, af.withPad, af.withUnk)
		f.Close()
		if err != nil {
			return Alphabets{}, err
		}
		*af.get(&a) = alpha
	}
	return a, nil
}

// #endregion persistence
