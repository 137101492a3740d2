package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/danielpatrickdp/relgraph-tagger/internal/batch"
	"github.com/danielpatrickdp/relgraph-tagger/internal/graph"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region loader
// Load reads and parses a JSON corpus file.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	return c, nil
}

// Read parses a JSON corpus and fills in missing tokens.
func Read(r io.Reader) (*Corpus, error) {
	var c Corpus
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, err
	}
	for d := range c.Dialogues {
		dial := &c.Dialogues[d]
		if len(dial.Turns) == 0 {
			return nil, fmt.Errorf("dialogue %q: %w", dial.ID, batch.ErrEmptyDialogue)
		}
		for i := range dial.Turns {
			t := &dial.Turns[i]
			if len(t.Tokens) == 0 {
				t.Tokens = strings.Fields(strings.ToLower(t.Utterance))
			}
		}
	}
	return &c, nil
}

// #endregion loader

// #region alphabets
// BuildAlphabets collects the word, label, and relation vocabularies of the
// given corpora. Words reserve the padding and unknown sentinels.
func BuildAlphabets(corpora ...*Corpus) Alphabets {
	a := Alphabets{
		Words:     vocab.NewAlphabet("word", true, true),
		Sentiment: vocab.NewAlphabet("sentiment", false, false),
		Act:       vocab.NewAlphabet("act", false, false),
		Relation:  vocab.NewAlphabet("relation", false, false),
	}
	for _, c := range corpora {
		for _, d := range c.Dialogues {
			for _, t := range d.Turns {
				for _, w := range t.Tokens {
					a.Words.Add(w)
				}
				a.Sentiment.Add(t.Sentiment)
				a.Act.Add(t.Act)
			}
			for _, e := range d.Edges {
				a.Relation.Add(e.Relation)
			}
		}
	}
	return a
}

// #endregion alphabets

// #region batches
// Shuffle reorders the dialogues in place.
func (c *Corpus) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(c.Dialogues), func(i, j int) {
		c.Dialogues[i], c.Dialogues[j] = c.Dialogues[j], c.Dialogues[i]
	})
}

// Batches splits the corpus into batches of at most size dialogues, building
// each dialogue's adjacency families from its edges.
func (c *Corpus) Batches(size int, relations vocab.Indexer) ([]Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size %d must be positive", size)
	}
	var out []Batch
	for start := 0; start < len(c.Dialogues); start += size {
		end := min(start+size, len(c.Dialogues))
		b, err := buildBatch(c.Dialogues[start:end], relations)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func buildBatch(dialogues []Dialogue, relations vocab.Indexer) (Batch, error) {
	var b Batch
	for _, d := range dialogues {
		adj, err := graph.BuildAdjacency(len(d.Turns), d.Edges, relations)
		if err != nil {
			return Batch{}, fmt.Errorf("dialogue %q: %w", d.ID, err)
		}
		turns := make([][]string, len(d.Turns))
		sent := make([]string, len(d.Turns))
		act := make([]string, len(d.Turns))
		for i, t := range d.Turns {
			turns[i] = t.Tokens
			sent[i] = t.Sentiment
			act[i] = t.Act
		}
		b.IDs = append(b.IDs, d.ID)
		b.Input.Dialogues = append(b.Input.Dialogues, turns)
		b.Input.Local = append(b.Input.Local, adj.Local)
		b.Input.Full = append(b.Input.Full, adj.Full)
		b.Input.ByRelation = append(b.Input.ByRelation, adj.ByRelation)
		b.Sentiment = append(b.Sentiment, sent)
		b.Act = append(b.Act, act)
	}
	return b, nil
}

// #endregion batches
