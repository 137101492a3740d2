package tagger

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/relgraph-tagger/internal/batch"
	"github.com/danielpatrickdp/relgraph-tagger/internal/logging"
	"github.com/danielpatrickdp/relgraph-tagger/internal/model"
	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region fakes
type fakeNet struct {
	sent, act []*tensor.Float
	err       error
	got       model.Inputs
	calls     int
}

func (f *fakeNet) Forward(_ context.Context, in model.Inputs) (model.Stacks, error) {
	f.got = in
	f.calls++
	return model.Stacks{Sent: f.sent, Act: f.act}, f.err
}

// scoresFor puts a high score on the given label of every listed turn.
// Turns not listed (padding) favour label 0.
func scoresFor(b, t, c int, labels [][]int) *tensor.Float {
	s := tensor.NewFloat(b, t, c)
	for d := 0; d < b; d++ {
		for i := 0; i < t; i++ {
			s.Set(1, d, i, 0)
		}
	}
	for d, turns := range labels {
		for i, l := range turns {
			s.Set(0, d, i, 0)
			s.Set(5, d, i, l)
		}
	}
	return s
}

// #endregion fakes

// #region helpers
func fixture(t *testing.T) (*batch.Padder, *vocab.Alphabet, *vocab.Alphabet) {
	t.Helper()
	words := vocab.NewAlphabet("word", true, true)
	for _, w := range []string{"hi", "there", "ok", "go", "yes"} {
		words.Add(w)
	}
	pieces, err := vocab.LoadPieceAlphabet(strings.NewReader("[PAD]\n[UNK]\n[CLS]\n[SEP]\nhi\nok\n"), true)
	if err != nil {
		t.Fatalf("load pieces: %v", err)
	}
	sent := vocab.NewAlphabet("sentiment", false, false)
	for _, l := range []string{"positive", "negative", "neutral"} {
		sent.Add(l)
	}
	act := vocab.NewAlphabet("act", false, false)
	for _, l := range []string{"inform", "question"} {
		act.Add(l)
	}
	return batch.NewPadder(words, pieces), sent, act
}

func scenario() batch.Input {
	return batch.Input{
		Dialogues: [][][]string{
			{{"hi", "there"}, {"ok", "go"}},
			{{"yes"}},
		},
		Local:      [][][]int{{{1, 1}, {1, 1}}, {{1}}},
		Full:       [][][]int{{{1, 0}, {1, 1}}, {{1}}},
		ByRelation: [][][]int{{{0, 0}, {2, 0}}, {{0}}},
	}
}

// #endregion helpers

// #region predict-tests
func TestPredictUsesLastPassAndDropsPadding(t *testing.T) {
	padder, sent, act := fixture(t)
	net := &fakeNet{
		sent: []*tensor.Float{
			scoresFor(2, 2, 3, [][]int{{0, 0}, {0}}),
			scoresFor(2, 2, 3, [][]int{{2, 0}, {1}}),
		},
		act: []*tensor.Float{
			scoresFor(2, 2, 2, [][]int{{0, 0}, {0}}),
			scoresFor(2, 2, 2, [][]int{{1, 0}, {1}}),
		},
	}
	tg := New(padder, net, sent, act, DefaultConfig())

	gotSent, gotAct, err := tg.Predict(context.Background(), scenario())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(gotSent) != 2 || len(gotSent[0]) != 2 || len(gotSent[1]) != 1 {
		t.Fatalf("expected sentiment shape [2 1], got %v", gotSent)
	}
	if len(gotAct) != 2 || len(gotAct[0]) != 2 || len(gotAct[1]) != 1 {
		t.Fatalf("expected act shape [2 1], got %v", gotAct)
	}
	if gotSent[0][0] != "neutral" || gotSent[0][1] != "positive" || gotSent[1][0] != "negative" {
		t.Errorf("unexpected sentiment labels %v", gotSent)
	}
	if gotAct[0][0] != "question" || gotAct[0][1] != "inform" || gotAct[1][0] != "question" {
		t.Errorf("unexpected act labels %v", gotAct)
	}
	if net.got.Mask != nil {
		t.Error("word input must not carry a mask")
	}
	if net.got.Tokens.Shape[2] != 2 {
		t.Errorf("expected word tokens of width 2, got %v", net.got.Tokens.Shape)
	}
}

func TestPredictWithPieces(t *testing.T) {
	padder, sent, act := fixture(t)
	net := &fakeNet{
		sent: []*tensor.Float{scoresFor(2, 2, 3, nil)},
		act:  []*tensor.Float{scoresFor(2, 2, 2, nil)},
	}
	cfg := DefaultConfig()
	cfg.UsePieces = true
	if _, _, err := New(padder, net, sent, act, cfg).Predict(context.Background(), scenario()); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if net.got.Mask == nil {
		t.Fatal("piece input must carry a mask")
	}
	if net.got.Tokens.Shape[0] != net.got.Mask.Shape[0] || net.got.Tokens.Shape[2] != net.got.Mask.Shape[2] {
		t.Errorf("pieces %v and mask %v differ", net.got.Tokens.Shape, net.got.Mask.Shape)
	}
}

func TestPredictRejectsMisshapedStack(t *testing.T) {
	padder, sent, act := fixture(t)
	net := &fakeNet{
		sent: []*tensor.Float{tensor.NewFloat(2, 3, 3)},
		act:  []*tensor.Float{tensor.NewFloat(2, 3, 2)},
	}
	_, _, err := New(padder, net, sent, act, DefaultConfig()).Predict(context.Background(), scenario())
	var se *tensor.ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
}

func TestPredictPropagatesNetworkError(t *testing.T) {
	padder, sent, act := fixture(t)
	boom := errors.New("server down")
	_, _, err := New(padder, &fakeNet{err: boom}, sent, act, DefaultConfig()).Predict(context.Background(), scenario())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped network error, got %v", err)
	}
}

func TestPredictRejectsEmptyBatch(t *testing.T) {
	padder, sent, act := fixture(t)
	net := &fakeNet{}
	_, _, err := New(padder, net, sent, act, DefaultConfig()).Predict(context.Background(), batch.Input{})
	if !errors.Is(err, batch.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if net.calls != 0 {
		t.Fatal("network must not run on a rejected batch")
	}
}

// #endregion predict-tests

// #region measure-tests
var (
	sentGold = [][]string{{"positive", "neutral"}, {"negative"}}
	actGold  = [][]string{{"inform", "question"}, {"inform"}}
)

func TestMeasureSinglePassEqualsCrossEntropy(t *testing.T) {
	padder, sent, act := fixture(t)
	net := &fakeNet{
		sent: []*tensor.Float{tensor.NewFloat(2, 2, 3)},
		act:  []*tensor.Float{tensor.NewFloat(2, 2, 2)},
	}
	cfg := DefaultConfig()
	cfg.MarginCoefficient = 3
	got, err := New(padder, net, sent, act, cfg).Measure(context.Background(), scenario(), sentGold, actGold)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got.SentMargin != 0 || got.ActMargin != 0 {
		t.Fatalf("expected zero margins, got %+v", got)
	}
	want := 3*math.Log(3) + 3*math.Log(2)
	if math.Abs(got.Total-want) > 1e-9 {
		t.Fatalf("expected total %f, got %f", want, got.Total)
	}
}

func TestMeasureSumsAcrossPasses(t *testing.T) {
	padder, sent, act := fixture(t)
	// pass 2 is less confident than pass 1 on every gold label
	first := scoresFor(2, 2, 3, [][]int{{0, 2}, {1}})
	second := tensor.NewFloat(2, 2, 3)
	net := &fakeNet{
		sent: []*tensor.Float{first, second},
		act:  []*tensor.Float{tensor.NewFloat(2, 2, 2), tensor.NewFloat(2, 2, 2)},
	}
	cfg := DefaultConfig()
	cfg.MarginCoefficient = 0.5
	got, err := New(padder, net, sent, act, cfg).Measure(context.Background(), scenario(), sentGold, actGold)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got.Passes != 2 {
		t.Fatalf("expected 2 passes, got %d", got.Passes)
	}
	if got.SentMargin <= 0 {
		t.Fatalf("expected positive sentiment margin, got %f", got.SentMargin)
	}
	if got.ActMargin != 0 {
		t.Fatalf("expected zero act margin for identical passes, got %f", got.ActMargin)
	}
	if math.Abs(got.ActCE-2*3*math.Log(2)) > 1e-9 {
		t.Errorf("expected act CE summed over both passes, got %f", got.ActCE)
	}
	want := got.SentCE + 0.5*got.SentMargin + got.ActCE + 0.5*got.ActMargin
	if math.Abs(got.Total-want) > 1e-9 {
		t.Errorf("expected total %f, got %f", want, got.Total)
	}
}

func TestMeasureGoldShapeMismatch(t *testing.T) {
	padder, sent, act := fixture(t)
	net := &fakeNet{}
	tg := New(padder, net, sent, act, DefaultConfig())
	bad := [][]string{{"positive"}, {"negative"}}
	_, err := tg.Measure(context.Background(), scenario(), bad, actGold)
	var se *tensor.ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
	if net.calls != 0 {
		t.Fatal("network must not run when gold labels are misaligned")
	}
}

func TestMeasureUnknownGoldLabel(t *testing.T) {
	padder, sent, act := fixture(t)
	tg := New(padder, &fakeNet{}, sent, act, DefaultConfig())
	bad := [][]string{{"positive", "ecstatic"}, {"negative"}}
	_, err := tg.Measure(context.Background(), scenario(), bad, actGold)
	var lerr *vocab.LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LookupError, got %v", err)
	}
}

func TestMeasureRecordsSteps(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(logging.Schema); err != nil {
		t.Fatalf("schema: %v", err)
	}

	padder, sent, act := fixture(t)
	net := &fakeNet{
		sent: []*tensor.Float{tensor.NewFloat(2, 2, 3)},
		act:  []*tensor.Float{tensor.NewFloat(2, 2, 2)},
	}
	tg := New(padder, net, sent, act, DefaultConfig(), WithStepLog(db, "run-x"))
	for i := 0; i < 2; i++ {
		if _, err := tg.Measure(context.Background(), scenario(), sentGold, actGold); err != nil {
			t.Fatalf("Measure: %v", err)
		}
	}
	if _, _, err := tg.Predict(context.Background(), scenario()); err != nil {
		t.Fatalf("Predict: %v", err)
	}

	steps, err := logging.ListSteps(db, "run-x", 10)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[0].Step != 1 || steps[2].Step != 3 || steps[2].Mode != "predict" {
		t.Errorf("unexpected steps %+v", steps)
	}
	if steps[0].Turns != 3 || steps[0].Dialogues != 2 {
		t.Errorf("unexpected counts %+v", steps[0])
	}
}

// #endregion measure-tests
