package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/relgraph-tagger/internal/loss"
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Compute the multi-pass training loss of a corpus",
	Long: `Pad every batch with augmentation noise, run the network, and report
the summed cross-entropy and margin loss of both label spaces.

Examples:
  tagger measure --corpus data/train.json
  tagger measure --corpus data/train.json --shuffle --seed 7`,
	RunE: runMeasure,
}

var shuffle bool

func init() {
	measureCmd.Flags().BoolVar(&shuffle, "shuffle", false, "shuffle dialogues before batching")
}

// #region measure
type measureOutput struct {
	RunID   string           `json:"run_id"`
	Batches []loss.Breakdown `json:"batches"`
	Total   float64          `json:"total"`
}

func runMeasure(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if shuffle {
		s.corpus.Shuffle(s.rng)
	}
	batches, err := s.corpus.Batches(s.cfg.Data.BatchSize, s.alpha.Relation)
	if err != nil {
		return err
	}

	out := measureOutput{RunID: s.runID}
	for i, b := range batches {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.Timeout)
		br, err := s.tagger.Measure(callCtx, b.Input, b.Sentiment, b.Act)
		cancel()
		if err != nil {
			return fmt.Errorf("measure batch %d: %w", i, err)
		}
		out.Batches = append(out.Batches, br)
		out.Total += br.Total
	}

	if outputJSON {
		return writeJSON(out)
	}
	fmt.Printf("run %s\n", out.RunID)
	fmt.Printf("%-6s %-6s %-10s %-10s %-10s %-10s %-10s\n", "BATCH", "PASSES", "SENT_CE", "SENT_MRG", "ACT_CE", "ACT_MRG", "TOTAL")
	for i, b := range out.Batches {
		fmt.Printf("%-6d %-6d %-10.4f %-10.4f %-10.4f %-10.4f %-10.4f\n",
			i, b.Passes, b.SentCE, b.SentMargin, b.ActCE, b.ActMargin, b.Total)
	}
	fmt.Printf("total %.4f\n", out.Total)
	return nil
}

// #endregion measure
