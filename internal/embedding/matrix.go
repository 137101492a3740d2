package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// #region build
// BuildMatrix returns the (len(word2idx)+2) × dim embedding matrix. Row 0 is
// the zero padding row, row 1 is uniform in ±1/√dim, and every word the source
// knows gets its pretrained vector. Values are held at float32 precision so
// that a cached matrix equals a freshly built one. When cachePath is not empty
// the matrix is read from it if present and written to it otherwise. A cache
// built for a vocabulary of another size is rebuilt.
func BuildMatrix(word2idx map[string]int, dim int, cachePath string, src Source, rng *rand.Rand) (*mat.Dense, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dim %d must be positive", dim)
	}

	rows := len(word2idx) + 2
	var cache *Cache
	if cachePath != "" {
		var err error
		cache, err = OpenCache(cachePath)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		defer cache.Close()
		m, err := cache.Load(rows, dim)
		switch {
		case errors.Is(err, ErrRowMismatch):
			// built for another vocabulary; rebuilt and overwritten below
		case err != nil:
			return nil, fmt.Errorf("load embedding cache: %w", err)
		case m != nil:
			return m, nil
		}
	}

	m := mat.NewDense(rows, dim, nil)
	bound := 1 / math.Sqrt(float64(dim))
	for k := 0; k < dim; k++ {
		m.Set(1, k, float64(float32(bound*(2*rng.Float64()-1))))
	}

	wanted := make(map[string]bool, len(word2idx))
	for w := range word2idx {
		wanted[w] = true
	}
	vecs, err := src.Vectors(dim, wanted)
	if err != nil {
		return nil, fmt.Errorf("read pretrained vectors: %w", err)
	}
	for w, idx := range word2idx {
		vec, ok := vecs[w]
		if !ok {
			continue
		}
		if idx < 0 || idx >= rows {
			return nil, fmt.Errorf("word %q index %d outside %d rows", w, idx, rows)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("word %q has %d values, want %d: %w", w, len(vec), dim, ErrDimMismatch)
		}
		row := m.RawRowView(idx)
		for k, v := range vec {
			row[k] = float64(float32(v))
		}
	}

	if cache != nil {
		if err := cache.Save(m); err != nil {
			return nil, fmt.Errorf("save embedding cache: %w", err)
		}
	}
	return m, nil
}

// #endregion build

// #region glove
// LoadGloVe reads GloVe text vectors for the wanted words. The last dim fields
// of a line are the vector and the fields before them form the word, so words
// containing spaces survive.
func LoadGloVe(r io.Reader, dim int, wanted map[string]bool) (map[string][]float64, error) {
	out := make(map[string][]float64)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) <= dim {
			return nil, fmt.Errorf("line %d: %d fields, want more than %d: %w", line, len(fields), dim, ErrDimMismatch)
		}
		word := strings.Join(fields[:len(fields)-dim], " ")
		if !wanted[word] {
			continue
		}
		vec := make([]float64, dim)
		for k, f := range fields[len(fields)-dim:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse %q: %w", line, f, err)
			}
			vec[k] = v
		}
		out[word] = vec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vectors: %w", err)
	}
	return out, nil
}

// GloVeFile is a Source backed by a GloVe text file.
type GloVeFile struct {
	Path string
}

// Vectors implements Source.
func (g GloVeFile) Vectors(dim int, wanted map[string]bool) (map[string][]float64, error) {
	f, err := os.Open(g.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", g.Path, err)
	}
	defer f.Close()
	return LoadGloVe(f, dim, wanted)
}

// Random is a Source that knows no words, leaving every word row zero.
type Random struct{}

// Vectors implements Source.
func (Random) Vectors(int, map[string]bool) (map[string][]float64, error) {
	return map[string][]float64{}, nil
}

// #endregion glove
