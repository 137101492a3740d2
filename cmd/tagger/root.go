package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/relgraph-tagger/internal/batch"
	"github.com/danielpatrickdp/relgraph-tagger/internal/codec"
	"github.com/danielpatrickdp/relgraph-tagger/internal/config"
	"github.com/danielpatrickdp/relgraph-tagger/internal/dataset"
	"github.com/danielpatrickdp/relgraph-tagger/internal/device"
	"github.com/danielpatrickdp/relgraph-tagger/internal/graph"
	"github.com/danielpatrickdp/relgraph-tagger/internal/logging"
	"github.com/danielpatrickdp/relgraph-tagger/internal/loss"
	"github.com/danielpatrickdp/relgraph-tagger/internal/tagger"
	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

var (
	// Global flags
	cfgFile    string
	corpusFile string
	outputJSON bool
	verbose    bool
	seed       uint64
)

var rootCmd = &cobra.Command{
	Use:   "tagger",
	Short: "Relational dialogue act and sentiment tagger",
	Long: `Tagger pads dialogue corpora into batches, runs them through the
remote relational graph network, and either decodes sentiment and act labels
or measures the multi-pass training loss.

Examples:
  # Tag a corpus and print per-space scores
  tagger predict --corpus data/test.json

  # Measure the loss with a custom configuration
  tagger measure --config tagger.yaml --corpus data/train.json

  # Show the last logged steps
  tagger inspect --last 10`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&corpusFile, "corpus", "", "dialogue corpus (JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 1, "seed for augmentation and shuffling")

	rootCmd.AddCommand(predictCmd, measureCmd, embedCmd, inspectCmd)
}

// #region session
// session is everything a corpus-driven command needs.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	corpus *dataset.Corpus
	alpha  dataset.Alphabets
	db     *sql.DB
	runID  string
	client *codec.Client
	tagger *tagger.Tagger
	rng    *rand.Rand
}

func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	mode := cfg.Logging.Mode
	if verbose {
		mode = "development"
	}
	logger, err := logging.New(mode)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

func loadCorpus() (*dataset.Corpus, error) {
	if corpusFile == "" {
		return nil, fmt.Errorf("--corpus is required")
	}
	return dataset.Load(corpusFile)
}

// loadAlphabets reuses the vocabularies saved by embed so that label and word
// indices stay fixed across corpora. Without them they are built from corpus.
func loadAlphabets(cfg *config.Config, logger *logging.Logger, corpus *dataset.Corpus) (dataset.Alphabets, error) {
	dir := cfg.AlphabetDir()
	alpha, err := dataset.LoadAlphabets(dir)
	switch {
	case err == nil:
		logger.Debug("alphabets loaded", "dir", dir)
		return alpha, nil
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("no saved alphabets, building from corpus", "dir", dir)
		return dataset.BuildAlphabets(corpus), nil
	default:
		return dataset.Alphabets{}, err
	}
}

// openSession wires config, corpus, step log, remote network, and tagger.
func openSession(ctx context.Context) (*session, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	corpus, err := loadCorpus()
	if err != nil {
		return nil, err
	}
	alpha, err := loadAlphabets(cfg, logger, corpus)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:    cfg,
		logger: logger,
		corpus: corpus,
		alpha:  alpha,
		runID:  logging.NewRunID(),
		rng:    newRand(),
	}

	s.db, err = logging.OpenStepLog(cfg.Storage.DB)
	if err != nil {
		return nil, fmt.Errorf("open step log: %w", err)
	}
	if err := storeEdges(s.db, corpus); err != nil {
		s.close()
		return nil, err
	}

	s.client, err = codec.NewClient(cfg.Server.Addr)
	if err != nil {
		s.close()
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, cfg.Server.Timeout)
	defer cancel()
	placement, err := device.Resolve(cfg.Device, s.client.Probe(probeCtx))
	if err != nil {
		s.close()
		return nil, err
	}

	var pieces batch.PieceVocab
	if cfg.UsePieces() {
		pieces, err = loadPieces(cfg.Data.PieceVocab)
		if err != nil {
			s.close()
			return nil, err
		}
	}
	padder := batch.NewPadder(alpha.Words, pieces,
		batch.WithNoiseRate(cfg.Model.NoiseRate),
		batch.WithRand(s.rng),
		batch.WithPlacement(placement),
		batch.WithLogger(logger),
	)

	marginMode, err := loss.ParseMode(cfg.Model.MarginMode)
	if err != nil {
		s.close()
		return nil, err
	}
	s.tagger = tagger.New(padder, s.client, alpha.Sentiment, alpha.Act,
		tagger.Config{
			MarginCoefficient: cfg.Model.MarginCoefficient,
			UsePieces:         cfg.UsePieces(),
			MarginMode:        marginMode,
		},
		tagger.WithLogger(logger),
		tagger.WithStepLog(s.db, s.runID),
	)

	logger.Info("session ready",
		"run_id", s.runID,
		"dialogues", len(corpus.Dialogues),
		"server", cfg.Server.Addr,
		"device", placement.Name(),
		"pieces", cfg.UsePieces(),
	)
	return s, nil
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (s *session) close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Sync()
}

func loadPieces(path string) (*vocab.PieceAlphabet, error) {
	if path == "" {
		return nil, fmt.Errorf("data.piece_vocab is required for pretrained model input")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open piece vocab: %w", err)
	}
	defer f.Close()
	return vocab.LoadPieceAlphabet(f, true)
}

func storeEdges(db *sql.DB, corpus *dataset.Corpus) error {
	store, err := graph.NewStore(db)
	if err != nil {
		return err
	}
	for _, d := range corpus.Dialogues {
		if err := store.SaveDialogue(d.ID, d.Edges); err != nil {
			return fmt.Errorf("store edges of %s: %w", d.ID, err)
		}
	}
	return nil
}

// #endregion session
