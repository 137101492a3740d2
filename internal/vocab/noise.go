package vocab

import "math/rand/v2"

// #region augment
// Sampler exposes what noise augmentation needs from a word vocabulary.
type Sampler interface {
	Get(idx int) (string, error)
	Len() int
	Reserved() int
}

// Augment returns a copy of turn where each token is replaced, with
// probability rate/100, by a word drawn uniformly from the non-sentinel part
// of the vocabulary. The turn length never changes.
func Augment(rng *rand.Rand, words Sampler, turn []string, rate float64) []string {
	out := make([]string, len(turn))
	copy(out, turn)
	lo := words.Reserved()
	span := words.Len() - lo
	if span <= 0 || rate <= 0 {
		return out
	}
	p := rate / 100.0
	for i := range out {
		if rng.Float64() >= p {
			continue
		}
		if w, err := words.Get(lo + rng.IntN(span)); err == nil {
			out[i] = w
		}
	}
	return out
}

// #endregion augment
