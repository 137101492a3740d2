package vocab

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxPieceChars bounds the word length the piece tokenizer will try to split.
const maxPieceChars = 100

// #region piece-alphabet
// PieceAlphabet is a word-piece vocabulary in the one-piece-per-line format.
type PieceAlphabet struct {
	elemToIdx map[string]int
	lower     bool
}

// LoadPieceAlphabet reads a piece vocabulary. The file must contain the
// [PAD], [UNK], [CLS] and [SEP] sentinels.
func LoadPieceAlphabet(r io.Reader, lower bool) (*PieceAlphabet, error) {
	p := &PieceAlphabet{elemToIdx: make(map[string]int), lower: lower}
	sc := bufio.NewScanner(r)
	idx := 0
	for sc.Scan() {
		piece := strings.TrimRight(sc.Text(), "\r")
		if _, ok := p.elemToIdx[piece]; !ok {
			p.elemToIdx[piece] = idx
		}
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read piece vocab: %w", err)
	}
	for _, s := range []string{PadSign, UnkSign, ClsSign, SepSign} {
		if _, ok := p.elemToIdx[s]; !ok {
			return nil, fmt.Errorf("piece vocab missing sentinel %s", s)
		}
	}
	return p, nil
}

// Index returns the piece index, falling back to [UNK].
func (p *PieceAlphabet) Index(piece string) (int, error) {
	if idx, ok := p.elemToIdx[piece]; ok {
		return idx, nil
	}
	return p.elemToIdx[UnkSign], nil
}

// Len returns the number of distinct pieces.
func (p *PieceAlphabet) Len() int { return len(p.elemToIdx) }

// Tokenize splits every token of a turn into pieces using greedy
// longest-match-first search with "##" continuation pieces.
func (p *PieceAlphabet) Tokenize(turn []string) []string {
	var out []string
	for _, tok := range turn {
		if p.lower {
			tok = strings.ToLower(tok)
		}
		out = append(out, p.split(tok)...)
	}
	return out
}

func (p *PieceAlphabet) split(word string) []string {
	runes := []rune(word)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) > maxPieceChars {
		return []string{UnkSign}
	}
	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := ""
		for start < end {
			cand := string(runes[start:end])
			if start > 0 {
				cand = "##" + cand
			}
			if _, ok := p.elemToIdx[cand]; ok {
				found = cand
				break
			}
			end--
		}
		if found == "" {
			return []string{UnkSign}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

// #endregion piece-alphabet
