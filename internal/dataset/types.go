package dataset

import (
	"github.com/danielpatrickdp/relgraph-tagger/internal/batch"
	"github.com/danielpatrickdp/relgraph-tagger/internal/graph"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region corpus-types
// Corpus is the top-level JSON structure of a dialogue corpus file.
type Corpus struct {
	Name      string     `json:"name"`
	Dialogues []Dialogue `json:"dialogues"`
}

// Dialogue is one conversation with its discourse edges.
type Dialogue struct {
	ID    string       `json:"id"`
	Turns []Turn       `json:"turns"`
	Edges []graph.Edge `json:"edges"`
}

// Turn is one utterance with its gold labels. Tokens may be omitted, in which
// case the utterance is lowercased and split on whitespace.
type Turn struct {
	Speaker   string   `json:"speaker"`
	Utterance string   `json:"utterance"`
	Tokens    []string `json:"tokens"`
	Sentiment string   `json:"sentiment"`
	Act       string   `json:"act"`
}

// #endregion corpus-types

// #region batch-types
// Alphabets bundles the vocabularies built from a corpus.
type Alphabets struct {
	Words     *vocab.Alphabet
	Sentiment *vocab.Alphabet
	Act       *vocab.Alphabet
	Relation  *vocab.Alphabet
}

// Batch is a padded-ready input batch with its gold labels.
type Batch struct {
	IDs       []string
	Input     batch.Input
	Sentiment [][]string
	Act       [][]string
}

// #endregion batch-types
