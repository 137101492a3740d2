package batch

import (
	"errors"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// DefaultNoiseRate is the substitution rate used by training-time augmentation.
const DefaultNoiseRate = 5.0

// #region errors
var (
	// ErrEmptyBatch is returned for a batch with no dialogues.
	ErrEmptyBatch = errors.New("batch has no dialogues")
	// ErrEmptyDialogue is returned for a dialogue with no turns.
	ErrEmptyDialogue = errors.New("dialogue has no turns")
)

// #endregion errors

// #region input
// Input is one batch of raw dialogues plus the three parallel adjacency families.
// Dialogues[d][t] is the token list of turn t; Local/Full/ByRelation[d][t] is the
// adjacency row of that turn.
type Input struct {
	Dialogues  [][][]string
	Local      [][][]int
	Full       [][][]int
	ByRelation [][][]int
}

// #endregion input

// #region batch
// Batch holds the rectangular tensors and length metadata for one forward pass.
//
//	Words       [B, T, maxTurnLen]     word indices, pad sentinel filled
//	Pieces/Mask [B, T, maxPieceLen]    piece indices and 0/1 mask
//	Local       [B, T, maxLocalRow]
//	Full        [B, T, maxFullRow]
//	ByRelation  [B, T, maxRelationRow]
//	Relational  [B, 2T, 2*maxFullRow]
type Batch struct {
	Words      *tensor.Int
	Pieces     *tensor.Int
	Mask       *tensor.Int
	Local      *tensor.Int
	Full       *tensor.Int
	ByRelation *tensor.Int
	Relational *tensor.Int

	TurnCounts []int   // real turns per dialogue
	TurnLens   [][]int // real tokens per real turn
	PieceLens  [][]int // pieces per turn, padded turns included

	MaxDialogueLen int
	Device         string
}

// Size returns the number of dialogues in the batch.
func (b *Batch) Size() int { return len(b.TurnCounts) }

// TotalTurns returns the number of real turns across the batch.
func (b *Batch) TotalTurns() int {
	n := 0
	for _, c := range b.TurnCounts {
		n += c
	}
	return n
}

// #endregion batch

// #region vocab-contracts
// WordVocab is what the padder needs from the word vocabulary.
type WordVocab interface {
	vocab.Indexer
	vocab.Sampler
}

// PieceVocab is what the padder needs from the sub-token vocabulary.
type PieceVocab interface {
	vocab.Indexer
	Tokenize(turn []string) []string
}

// #endregion vocab-contracts
