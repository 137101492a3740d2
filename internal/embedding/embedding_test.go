package embedding

import (
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

type mapSource map[string][]float64

func (m mapSource) Vectors(_ int, wanted map[string]bool) (map[string][]float64, error) {
	out := map[string][]float64{}
	for w, v := range m {
		if wanted[w] {
			out[w] = v
		}
	}
	return out, nil
}

func testRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestLoadGloVe(t *testing.T) {
	text := "the 0.1 0.2 0.3\nnew york 1 2 3\nskip 9 9 9\n\n"
	got, err := LoadGloVe(strings.NewReader(text), 3, map[string]bool{"the": true, "new york": true})
	if err != nil {
		t.Fatalf("LoadGloVe: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 words, got %d", len(got))
	}
	if got["new york"][2] != 3 {
		t.Errorf("expected multi-word entry, got %v", got["new york"])
	}
	if _, ok := got["skip"]; ok {
		t.Error("unwanted word loaded")
	}
}

func TestLoadGloVeShortLine(t *testing.T) {
	_, err := LoadGloVe(strings.NewReader("the 0.1 0.2\n"), 3, map[string]bool{"the": true})
	if !errors.Is(err, ErrDimMismatch) {
		t.Fatalf("expected ErrDimMismatch, got %v", err)
	}
}

func TestBuildMatrixLayout(t *testing.T) {
	word2idx := map[string]int{"hello": 2, "world": 3}
	src := mapSource{"hello": {0.5, -0.5, 0.25, 1}}
	m, err := BuildMatrix(word2idx, 4, "", src, testRand())
	if err != nil {
		t.Fatalf("BuildMatrix: %v", err)
	}
	r, c := m.Dims()
	if r != 4 || c != 4 {
		t.Fatalf("expected 4x4, got %dx%d", r, c)
	}
	bound := 1 / math.Sqrt(4)
	for k := 0; k < 4; k++ {
		if m.At(0, k) != 0 {
			t.Errorf("row 0 must be zero, got %f", m.At(0, k))
		}
		if v := m.At(1, k); v < -bound || v > bound {
			t.Errorf("row 1 value %f outside ±%f", v, bound)
		}
		if m.At(3, k) != 0 {
			t.Errorf("unknown word row must be zero, got %f", m.At(3, k))
		}
	}
	if m.At(2, 1) != -0.5 {
		t.Errorf("expected pretrained value, got %f", m.At(2, 1))
	}
}

func TestBuildMatrixCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed.db")
	word2idx := map[string]int{"hello": 2}
	first, err := BuildMatrix(word2idx, 3, path, mapSource{"hello": {0.1, 0.2, 0.3}}, testRand())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// the second source would change row 2 if the cache were ignored
	second, err := BuildMatrix(word2idx, 3, path, mapSource{"hello": {9, 9, 9}}, testRand())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !mat.Equal(first, second) {
		t.Fatalf("cached matrix differs:\n%v\n%v", mat.Formatted(first), mat.Formatted(second))
	}
}

func TestBuildMatrixCachedDimMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed.db")
	if _, err := BuildMatrix(map[string]int{"a": 2}, 3, path, Random{}, testRand()); err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err := BuildMatrix(map[string]int{"a": 2}, 5, path, Random{}, testRand())
	if !errors.Is(err, ErrDimMismatch) {
		t.Fatalf("expected ErrDimMismatch, got %v", err)
	}
}

func TestBuildMatrixRebuildsForNewVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed.db")
	if _, err := BuildMatrix(map[string]int{"a": 2}, 3, path, Random{}, testRand()); err != nil {
		t.Fatalf("build: %v", err)
	}
	grown := map[string]int{"a": 2, "b": 3}
	m, err := BuildMatrix(grown, 3, path, mapSource{"b": {1, 2, 3}}, testRand())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if r, _ := m.Dims(); r != 4 {
		t.Fatalf("expected 4 rows after rebuild, got %d", r)
	}
	if m.At(3, 2) != 3 {
		t.Errorf("expected new word vector, got %f", m.At(3, 2))
	}

	cache, err := OpenCache(path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()
	if _, err := cache.Load(3, 3); !errors.Is(err, ErrRowMismatch) {
		t.Fatalf("expected ErrRowMismatch for stale row count, got %v", err)
	}
	cached, err := cache.Load(4, 3)
	if err != nil || cached == nil {
		t.Fatalf("expected rebuilt matrix in cache, got %v %v", cached, err)
	}
}

func TestBuildMatrixWrongVectorWidth(t *testing.T) {
	_, err := BuildMatrix(map[string]int{"a": 2}, 3, "", mapSource{"a": {1, 2}}, testRand())
	if !errors.Is(err, ErrDimMismatch) {
		t.Fatalf("expected ErrDimMismatch, got %v", err)
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	v := []float64{0.5, -1.25, 3}
	got := decodeVector(encodeVector(v), 3)
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("index %d: expected %f, got %f", i, v[i], got[i])
		}
	}
}
