package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/relgraph-tagger/internal/eval"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Tag every turn of a corpus",
	Long: `Tag every turn of a corpus with a sentiment and an act label, then
score the predictions against the corpus labels.

Examples:
  tagger predict --corpus data/test.json
  tagger predict --corpus data/test.json --json | jq '.dialogues[0]'`,
	RunE: runPredict,
}

// #region predict
type taggedDialogue struct {
	ID        string   `json:"id"`
	Sentiment []string `json:"sentiment"`
	Act       []string `json:"act"`
}

type predictOutput struct {
	RunID     string            `json:"run_id"`
	Dialogues []taggedDialogue  `json:"dialogues"`
	Scores    []eval.EvalResult `json:"scores"`
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	batches, err := s.corpus.Batches(s.cfg.Data.BatchSize, s.alpha.Relation)
	if err != nil {
		return err
	}

	out := predictOutput{RunID: s.runID}
	var goldSent, goldAct, predSent, predAct [][]string
	for i, b := range batches {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.Timeout)
		sent, act, err := s.tagger.Predict(callCtx, b.Input)
		cancel()
		if err != nil {
			return fmt.Errorf("predict batch %d: %w", i, err)
		}
		for d, id := range b.IDs {
			out.Dialogues = append(out.Dialogues, taggedDialogue{ID: id, Sentiment: sent[d], Act: act[d]})
		}
		goldSent = append(goldSent, b.Sentiment...)
		goldAct = append(goldAct, b.Act...)
		predSent = append(predSent, sent...)
		predAct = append(predAct, act...)
	}

	harness := eval.NewEvalHarness(eval.EvalConfig{Average: s.cfg.Eval.Average})
	for _, space := range []struct {
		name       string
		gold, pred [][]string
	}{
		{"sentiment", goldSent, predSent},
		{"act", goldAct, predAct},
	} {
		res, err := harness.Run(space.name, space.gold, space.pred)
		if err != nil {
			return err
		}
		out.Scores = append(out.Scores, res)
	}

	if outputJSON {
		return writeJSON(out)
	}
	for _, d := range out.Dialogues {
		fmt.Printf("%s\n", d.ID)
		for i := range d.Sentiment {
			fmt.Printf("  turn %-3d %-12s %s\n", i, d.Sentiment[i], d.Act[i])
		}
	}
	fmt.Println()
	for _, r := range out.Scores {
		fmt.Printf("%-10s turns=%d acc=%.4f f1(%s)=%.4f\n", r.Space, r.Turns, r.Accuracy, s.cfg.Eval.Average, r.F1)
	}
	return nil
}

// #endregion predict
