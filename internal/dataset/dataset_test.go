package dataset

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/danielpatrickdp/relgraph-tagger/internal/batch"
)

func loadSample(t *testing.T) *Corpus {
	t.Helper()
	c, err := Load(filepath.Join("testdata", "sample.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoad_TokenizesUtterances(t *testing.T) {
	c := loadSample(t)
	if len(c.Dialogues) != 3 {
		t.Fatalf("expected 3 dialogues, got %d", len(c.Dialogues))
	}
	got := c.Dialogues[0].Turns[0].Tokens
	want := []string{"is", "the", "new", "release", "out", "yet"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if c.Dialogues[0].Turns[2].Tokens[0] != "mine" {
		t.Error("explicit tokens must be kept")
	}
}

func TestRead_Errors(t *testing.T) {
	if _, err := Read(strings.NewReader("{")); err == nil {
		t.Error("expected parse error")
	}
	_, err := Read(strings.NewReader(`{"dialogues":[{"id":"x","turns":[]}]}`))
	if err == nil || !strings.Contains(err.Error(), batch.ErrEmptyDialogue.Error()) {
		t.Errorf("expected empty dialogue error, got %v", err)
	}
	if _, err := Load("/nonexistent/corpus.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildAlphabets(t *testing.T) {
	a := BuildAlphabets(loadSample(t))
	if a.Sentiment.Len() != 3 {
		t.Errorf("expected 3 sentiment labels, got %d", a.Sentiment.Len())
	}
	if a.Act.Len() != 4 {
		t.Errorf("expected 4 act labels, got %d", a.Act.Len())
	}
	if a.Relation.Len() != 2 {
		t.Errorf("expected 2 relations, got %d", a.Relation.Len())
	}
	if _, err := a.Words.Index("crashing"); err != nil {
		t.Errorf("corpus word missing: %v", err)
	}
	if a.Words.Reserved() != 2 {
		t.Errorf("expected pad and unk reserved, got %d", a.Words.Reserved())
	}
}

func TestBatches(t *testing.T) {
	c := loadSample(t)
	a := BuildAlphabets(c)
	batches, err := c.Batches(2, a.Relation)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	first := batches[0]
	if !reflect.DeepEqual(first.IDs, []string{"d1", "d2"}) {
		t.Errorf("unexpected ids %v", first.IDs)
	}
	if len(first.Input.Dialogues) != 2 || len(first.Input.Local) != 2 || len(first.Sentiment) != 2 {
		t.Fatalf("unexpected batch layout %+v", first)
	}
	if !reflect.DeepEqual(first.Input.ByRelation[0][2], []int{0, 2, 0}) {
		t.Errorf("unexpected relation row %v", first.Input.ByRelation[0][2])
	}
	if !reflect.DeepEqual(first.Act[1], []string{"thanking"}) {
		t.Errorf("unexpected gold acts %v", first.Act[1])
	}
	if len(batches[1].IDs) != 1 {
		t.Errorf("expected remainder batch of 1, got %d", len(batches[1].IDs))
	}
}

func TestBatchesRejectsBadSize(t *testing.T) {
	c := loadSample(t)
	if _, err := c.Batches(0, BuildAlphabets(c).Relation); err == nil {
		t.Fatal("expected error for zero batch size")
	}
}
