package tagger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/relgraph-tagger/internal/batch"
	"github.com/danielpatrickdp/relgraph-tagger/internal/logging"
	"github.com/danielpatrickdp/relgraph-tagger/internal/loss"
	"github.com/danielpatrickdp/relgraph-tagger/internal/model"
	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
	"github.com/danielpatrickdp/relgraph-tagger/internal/trim"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region config
// Config holds the tagger's fixed coefficients.
type Config struct {
	MarginCoefficient float64   // λ weighting both margin terms
	UsePieces         bool      // feed piece indices and mask instead of words
	MarginMode        loss.Mode // how margin rows pair with gold columns
}

// DefaultConfig returns the defaults used for training runs.
func DefaultConfig() Config {
	return Config{
		MarginCoefficient: 1.0,
		MarginMode:        loss.Aligned,
	}
}

// #endregion config

// #region tagger
// Tagger pads dialogue batches, runs the network, and turns its label stacks
// into predictions or a training loss. It is not safe for concurrent use.
type Tagger struct {
	padder *batch.Padder
	net    model.Network
	sent   vocab.Labeler
	act    vocab.Labeler
	cfg    Config
	logger *logging.Logger

	db    *sql.DB
	runID string
	step  int
}

// Option configures a Tagger.
type Option func(*Tagger)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option { return func(t *Tagger) { t.logger = l } }

// WithStepLog records every call in the step_log table of db under runID.
func WithStepLog(db *sql.DB, runID string) Option {
	return func(t *Tagger) {
		t.db = db
		t.runID = runID
	}
}

// New creates a Tagger.
func New(padder *batch.Padder, net model.Network, sent, act vocab.Labeler, cfg Config, opts ...Option) *Tagger {
	t := &Tagger{
		padder: padder,
		net:    net,
		sent:   sent,
		act:    act,
		cfg:    cfg,
		logger: logging.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SentVocab returns the sentiment label vocabulary.
func (t *Tagger) SentVocab() vocab.Labeler { return t.sent }

// ActVocab returns the act label vocabulary.
func (t *Tagger) ActVocab() vocab.Labeler { return t.act }

// #endregion tagger

// #region forward
func (t *Tagger) forward(ctx context.Context, in batch.Input, augment bool) (*batch.Batch, model.Stacks, error) {
	b, err := t.padder.Pad(in, augment)
	if err != nil {
		return nil, model.Stacks{}, fmt.Errorf("pad batch: %w", err)
	}
	inputs := model.Inputs{
		Tokens:     b.Words,
		Local:      b.Local,
		Full:       b.Full,
		Relational: b.Relational,
		TurnLens:   b.TurnLens,
	}
	if t.cfg.UsePieces {
		if b.Pieces == nil {
			return nil, model.Stacks{}, errors.New("piece input requested but padder has no piece vocabulary")
		}
		inputs.Tokens, inputs.Mask = b.Pieces, b.Mask
	}
	stacks, err := t.net.Forward(ctx, inputs)
	if err != nil {
		return nil, model.Stacks{}, fmt.Errorf("forward: %w", err)
	}
	if err := stacks.Validate(b.Size(), b.MaxDialogueLen, t.sent.Len(), t.act.Len()); err != nil {
		return nil, model.Stacks{}, err
	}
	return b, stacks, nil
}

// #endregion forward

// #region predict
// Predict returns the sentiment and act labels of every real turn, nested per
// dialogue. Only the last pass of each stack is used.
func (t *Tagger) Predict(ctx context.Context, in batch.Input) ([][]string, [][]string, error) {
	b, stacks, err := t.forward(ctx, in, false)
	if err != nil {
		return nil, nil, err
	}

	sent, err := t.decodeLast(stacks.Sent, b.TurnCounts, t.sent)
	if err != nil {
		return nil, nil, fmt.Errorf("sentiment labels: %w", err)
	}
	act, err := t.decodeLast(stacks.Act, b.TurnCounts, t.act)
	if err != nil {
		return nil, nil, fmt.Errorf("act labels: %w", err)
	}

	t.record(logging.StepEntry{Mode: "predict", Dialogues: b.Size(), Turns: b.TotalTurns(), Passes: len(stacks.Sent)})
	return sent, act, nil
}

func (t *Tagger) decodeLast(stack []*tensor.Float, counts []int, labels vocab.Labeler) ([][]string, error) {
	flat, err := trim.Flatten(stack[len(stack)-1], counts)
	if err != nil {
		return nil, err
	}
	nested, err := trim.Nest(trim.ArgMax(flat), counts)
	if err != nil {
		return nil, err
	}
	return trim.Labels(nested, labels)
}

// #endregion predict

// #region measure
// Measure pads with augmentation, runs the network, and returns the summed
// cross-entropy and λ-weighted margin loss over every pass of both stacks.
// The total is not normalized by batch size.
func (t *Tagger) Measure(ctx context.Context, in batch.Input, sentGold, actGold [][]string) (loss.Breakdown, error) {
	if err := checkGold("sentiment", sentGold, in.Dialogues); err != nil {
		return loss.Breakdown{}, err
	}
	if err := checkGold("act", actGold, in.Dialogues); err != nil {
		return loss.Breakdown{}, err
	}
	sentIdx, err := trim.Indices(sentGold, t.sent)
	if err != nil {
		return loss.Breakdown{}, fmt.Errorf("index sentiment labels: %w", err)
	}
	actIdx, err := trim.Indices(actGold, t.act)
	if err != nil {
		return loss.Breakdown{}, fmt.Errorf("index act labels: %w", err)
	}

	b, stacks, err := t.forward(ctx, in, true)
	if err != nil {
		return loss.Breakdown{}, err
	}

	sentTerms, err := t.fold(stacks.Sent, b.TurnCounts, trim.Concat(sentIdx))
	if err != nil {
		return loss.Breakdown{}, fmt.Errorf("sentiment loss: %w", err)
	}
	actTerms, err := t.fold(stacks.Act, b.TurnCounts, trim.Concat(actIdx))
	if err != nil {
		return loss.Breakdown{}, fmt.Errorf("act loss: %w", err)
	}
	out := loss.Combine(sentTerms, actTerms, t.cfg.MarginCoefficient)

	t.logger.Debug("measured batch",
		"passes", out.Passes,
		"sent_ce", out.SentCE,
		"sent_margin", out.SentMargin,
		"act_ce", out.ActCE,
		"act_margin", out.ActMargin,
		"total", out.Total,
	)
	t.record(logging.StepEntry{
		Mode:       "measure",
		Dialogues:  b.Size(),
		Turns:      b.TotalTurns(),
		Passes:     out.Passes,
		SentCE:     out.SentCE,
		SentMargin: out.SentMargin,
		ActCE:      out.ActCE,
		ActMargin:  out.ActMargin,
		Total:      out.Total,
	})
	return out, nil
}

func (t *Tagger) fold(stack []*tensor.Float, counts, gold []int) (loss.Terms, error) {
	passes := make([]*mat.Dense, len(stack))
	for j, s := range stack {
		flat, err := trim.Flatten(s, counts)
		if err != nil {
			return loss.Terms{}, fmt.Errorf("pass %d: %w", j, err)
		}
		passes[j] = flat
	}
	return loss.Fold(passes, gold, t.cfg.MarginMode)
}

func checkGold(name string, gold [][]string, dialogues [][][]string) error {
	if err := tensor.CheckDim(name+" gold dialogues", len(gold), len(dialogues)); err != nil {
		return err
	}
	for i := range gold {
		if err := tensor.CheckDim(fmt.Sprintf("%s gold turns of dialogue %d", name, i), len(gold[i]), len(dialogues[i])); err != nil {
			return err
		}
	}
	return nil
}

// #endregion measure

// #region record
func (t *Tagger) record(entry logging.StepEntry) {
	t.step++
	if t.db == nil {
		return
	}
	entry.RunID = t.runID
	entry.Step = t.step
	if err := logging.LogStep(t.db, entry); err != nil {
		t.logger.Warn("step log write failed", "error", err, "step", t.step)
	}
}

// #endregion record
