package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
)

// #region inputs
// Inputs is everything the encoder and decoder consume for one batch.
type Inputs struct {
	Tokens     *tensor.Int // word or piece indices [B, T, L]
	Mask       *tensor.Int // piece mask, nil for word input
	Local      *tensor.Int
	Full       *tensor.Int
	Relational *tensor.Int
	TurnLens   [][]int
}

// Stacks holds one score tensor per decoding pass for each label space.
type Stacks struct {
	Sent []*tensor.Float
	Act  []*tensor.Float
}

// #endregion inputs

// #region collaborators
// Network runs the full encoder and decoder.
type Network interface {
	Forward(ctx context.Context, in Inputs) (Stacks, error)
}

// Encoder produces a hidden representation whose first two axes match the batch.
type Encoder interface {
	Encode(ctx context.Context, tokens, local, full, mask *tensor.Int) (*tensor.Float, error)
}

// Decoder produces the sentiment and act stacks from a hidden representation.
type Decoder interface {
	Decode(ctx context.Context, hidden *tensor.Float, turnLens [][]int, relational *tensor.Int) (Stacks, error)
}

// Composite chains an Encoder and a Decoder into a Network.
type Composite struct {
	Encoder Encoder
	Decoder Decoder
}

// Forward encodes then decodes.
func (c Composite) Forward(ctx context.Context, in Inputs) (Stacks, error) {
	hidden, err := c.Encoder.Encode(ctx, in.Tokens, in.Local, in.Full, in.Mask)
	if err != nil {
		return Stacks{}, fmt.Errorf("encode: %w", err)
	}
	if hidden == nil {
		return Stacks{}, errors.New("encoder returned no hidden representation")
	}
	if hidden.Dims() < 2 {
		return Stacks{}, tensor.CheckDim("hidden rank", hidden.Dims(), 3)
	}
	if err := tensor.CheckDim("hidden batch axis", hidden.Shape[0], in.Tokens.Shape[0]); err != nil {
		return Stacks{}, err
	}
	if err := tensor.CheckDim("hidden dialogue axis", hidden.Shape[1], in.Tokens.Shape[1]); err != nil {
		return Stacks{}, err
	}
	stacks, err := c.Decoder.Decode(ctx, hidden, in.TurnLens, in.Relational)
	if err != nil {
		return Stacks{}, fmt.Errorf("decode: %w", err)
	}
	return stacks, nil
}

// #endregion collaborators

// #region validate
// Validate checks that both stacks are non-empty, equally deep, and that every
// entry is shaped [batch, maxLen, width] for its label space.
func (s Stacks) Validate(batch, maxLen, sentWidth, actWidth int) error {
	if len(s.Sent) == 0 {
		return errors.New("decoder returned an empty label stack")
	}
	if err := tensor.CheckDim("act stack depth", len(s.Act), len(s.Sent)); err != nil {
		return err
	}
	check := func(name string, xs []*tensor.Float, width int) error {
		for j, x := range xs {
			if x == nil {
				return fmt.Errorf("%s pass %d: missing score tensor", name, j)
			}
			if err := tensor.CheckDim(fmt.Sprintf("%s pass %d rank", name, j), x.Dims(), 3); err != nil {
				return err
			}
			want := []int{batch, maxLen, width}
			axes := []string{"batch axis", "dialogue axis", "label axis"}
			for k := range want {
				if err := tensor.CheckDim(fmt.Sprintf("%s pass %d %s", name, j, axes[k]), x.Shape[k], want[k]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := check("sentiment", s.Sent, sentWidth); err != nil {
		return err
	}
	return check("act", s.Act, actWidth)
}

// #endregion validate
