package batch

import (
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/relgraph-tagger/internal/device"
	"github.com/danielpatrickdp/relgraph-tagger/internal/logging"
	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region padder
// Padder turns ragged dialogue batches into rectangular index tensors.
// A Padder is not safe for concurrent use when augmentation is enabled.
type Padder struct {
	words     WordVocab
	pieces    PieceVocab
	noiseRate float64
	rng       *rand.Rand
	placement device.Placement
	logger    *logging.Logger
}

// Option configures a Padder.
type Option func(*Padder)

// WithNoiseRate sets the augmentation substitution rate.
func WithNoiseRate(rate float64) Option { return func(p *Padder) { p.noiseRate = rate } }

// WithRand sets the random source used by augmentation.
func WithRand(rng *rand.Rand) Option { return func(p *Padder) { p.rng = rng } }

// WithPlacement sets where finished tensors are placed.
func WithPlacement(pl device.Placement) Option { return func(p *Padder) { p.placement = pl } }

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option { return func(p *Padder) { p.logger = l } }

// NewPadder creates a padder. pieces may be nil for word-only models, in which
// case the piece and mask tensors are left nil.
func NewPadder(words WordVocab, pieces PieceVocab, opts ...Option) *Padder {
	p := &Padder{
		words:     words,
		pieces:    pieces,
		noiseRate: DefaultNoiseRate,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		placement: device.Host{},
		logger:    logging.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// #endregion padder

// #region pad
// Pad builds a Batch from in. augment enables token noise and must be false at
// inference time.
func (p *Padder) Pad(in Input, augment bool) (*Batch, error) {
	maxDial, err := checkShapes(in)
	if err != nil {
		return nil, err
	}

	local := padAdjacency(in.Local, maxDial)
	full := padAdjacency(in.Full, maxDial)
	byRel := padAdjacency(in.ByRelation, maxDial)
	relational := doubleRelational(full)

	words, turnLens, err := p.padWords(in.Dialogues, maxDial, augment)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		Words:          words,
		Local:          local,
		Full:           full,
		ByRelation:     byRel,
		Relational:     relational,
		TurnCounts:     make([]int, len(in.Dialogues)),
		TurnLens:       turnLens,
		MaxDialogueLen: maxDial,
	}
	for i, d := range in.Dialogues {
		b.TurnCounts[i] = len(d)
	}

	if p.pieces != nil {
		b.Pieces, b.Mask, b.PieceLens, err = p.padPieces(in.Dialogues, maxDial)
		if err != nil {
			return nil, err
		}
	}

	placed := []*tensor.Int{b.Words, b.Local, b.Full, b.ByRelation, b.Relational}
	if b.Pieces != nil {
		placed = append(placed, b.Pieces, b.Mask)
	}
	p.placement.Place(placed...)
	b.Device = p.placement.Name()

	p.logger.Debug("padded batch",
		"dialogues", b.Size(),
		"max_dialogue_len", maxDial,
		"words", words.Shape,
		"relational", relational.Shape,
		"augment", augment,
		"device", b.Device,
	)
	return b, nil
}

// #endregion pad

// #region shape-checks
// checkShapes validates the batch and returns the max dialogue length. The
// three adjacency families must agree with the dialogues on dialogue count, on
// max per-dialogue length, and on every dialogue's own turn count.
func checkShapes(in Input) (int, error) {
	if len(in.Dialogues) == 0 {
		return 0, ErrEmptyBatch
	}
	n := len(in.Dialogues)
	if err := tensor.CheckDim("local adjacency dialogues", len(in.Local), n); err != nil {
		return 0, err
	}
	if err := tensor.CheckDim("full adjacency dialogues", len(in.Full), n); err != nil {
		return 0, err
	}
	if err := tensor.CheckDim("relation adjacency dialogues", len(in.ByRelation), n); err != nil {
		return 0, err
	}
	for i, d := range in.Dialogues {
		if len(d) == 0 {
			return 0, fmt.Errorf("dialogue %d: %w", i, ErrEmptyDialogue)
		}
	}

	maxDial := maxOuter(in.Dialogues)
	maxLocal := maxOuter(in.Local)
	maxFull := maxOuter(in.Full)
	maxRel := maxOuter(in.ByRelation)
	if err := tensor.CheckDim("local adjacency max length", maxLocal, maxDial); err != nil {
		return 0, err
	}
	if err := tensor.CheckDim("full adjacency max length", maxFull, maxLocal); err != nil {
		return 0, err
	}
	if err := tensor.CheckDim("relation adjacency max length", maxRel, maxFull); err != nil {
		return 0, err
	}
	for d, turns := range in.Dialogues {
		if err := tensor.CheckDim(fmt.Sprintf("local adjacency turns of dialogue %d", d), len(in.Local[d]), len(turns)); err != nil {
			return 0, err
		}
		if err := tensor.CheckDim(fmt.Sprintf("full adjacency turns of dialogue %d", d), len(in.Full[d]), len(turns)); err != nil {
			return 0, err
		}
		if err := tensor.CheckDim(fmt.Sprintf("relation adjacency turns of dialogue %d", d), len(in.ByRelation[d]), len(turns)); err != nil {
			return 0, err
		}
	}
	return maxDial, nil
}

func maxOuter[T any](xs [][]T) int {
	m := 0
	for _, x := range xs {
		if len(x) > m {
			m = len(x)
		}
	}
	return m
}

func maxInner[T any](xs [][][]T) int {
	m := 0
	for _, d := range xs {
		for _, row := range d {
			if len(row) > m {
				m = len(row)
			}
		}
	}
	return m
}

// #endregion shape-checks

// #region adjacency
// padAdjacency right-pads every row with zeros to the widest row in the family
// and pads missing turns with zero rows up to maxDial.
func padAdjacency(fam [][][]int, maxDial int) *tensor.Int {
	width := maxInner(fam)
	t := tensor.NewInt(len(fam), maxDial, width)
	for d, rows := range fam {
		for i, row := range rows {
			dst := t.Row(d, i)
			for k, v := range row {
				dst[k] = int64(v)
			}
		}
	}
	return t
}

// doubleRelational builds the [B, 2T, 2W] relational tensor from the padded
// full adjacency. Every row is the full row concatenated with itself; the
// first T rows are the forward half and the next T rows the backward half,
// both built from the same full rows.
func doubleRelational(full *tensor.Int) *tensor.Int {
	b, n, w := full.Shape[0], full.Shape[1], full.Shape[2]
	rel := tensor.NewInt(b, 2*n, 2*w)
	for d := 0; d < b; d++ {
		for half := 0; half < 2; half++ {
			for i := 0; i < n; i++ {
				src := full.Row(d, i)
				dst := rel.Row(d, half*n+i)
				copy(dst[:w], src)
				copy(dst[w:], src)
			}
		}
	}
	return rel
}

// #endregion adjacency

// #region words
func (p *Padder) padWords(dialogues [][][]string, maxDial int, augment bool) (*tensor.Int, [][]int, error) {
	turnLens := make([][]int, len(dialogues))
	maxTurn := 0
	for d, turns := range dialogues {
		turnLens[d] = make([]int, len(turns))
		for i, turn := range turns {
			turnLens[d][i] = len(turn)
			if len(turn) > maxTurn {
				maxTurn = len(turn)
			}
		}
	}

	padIdx, err := p.words.Index(vocab.PadSign)
	if err != nil {
		return nil, nil, fmt.Errorf("word pad sentinel: %w", err)
	}

	t := tensor.NewInt(len(dialogues), maxDial, maxTurn)
	t.Fill(int64(padIdx))
	for d, turns := range dialogues {
		for i, turn := range turns {
			if augment {
				turn = vocab.Augment(p.rng, p.words, turn, p.noiseRate)
			}
			dst := t.Row(d, i)
			for k, tok := range turn {
				idx, err := p.words.Index(tok)
				if err != nil {
					return nil, nil, fmt.Errorf("index word %q: %w", tok, err)
				}
				dst[k] = int64(idx)
			}
		}
	}
	return t, turnLens, nil
}

// #endregion words

// #region pieces
func (p *Padder) padPieces(dialogues [][][]string, maxDial int) (*tensor.Int, *tensor.Int, [][]int, error) {
	seqs := make([][][]string, len(dialogues))
	pieceLens := make([][]int, len(dialogues))
	maxLen := 0
	for d, turns := range dialogues {
		seqs[d] = make([][]string, maxDial)
		pieceLens[d] = make([]int, maxDial)
		for i := 0; i < maxDial; i++ {
			seq := []string{vocab.ClsSign}
			if i < len(turns) {
				seq = append(seq, p.pieces.Tokenize(turns[i])...)
			}
			seq = append(seq, vocab.SepSign)
			seqs[d][i] = seq
			pieceLens[d][i] = len(seq)
			if len(seq) > maxLen {
				maxLen = len(seq)
			}
		}
	}

	padIdx, err := p.pieces.Index(vocab.PadSign)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("piece pad sentinel: %w", err)
	}

	pieces := tensor.NewInt(len(dialogues), maxDial, maxLen)
	pieces.Fill(int64(padIdx))
	mask := tensor.NewInt(len(dialogues), maxDial, maxLen)
	for d := range seqs {
		for i, seq := range seqs[d] {
			dst := pieces.Row(d, i)
			m := mask.Row(d, i)
			for k, piece := range seq {
				idx, err := p.pieces.Index(piece)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("index piece %q: %w", piece, err)
				}
				dst[k] = int64(idx)
				m[k] = 1
			}
		}
	}
	return pieces, mask, pieceLens, nil
}

// #endregion pieces
