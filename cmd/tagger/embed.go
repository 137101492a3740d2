package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/relgraph-tagger/internal/dataset"
	"github.com/danielpatrickdp/relgraph-tagger/internal/embedding"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Build the cached word embedding matrix",
	Long: `Build the (vocabulary+2) x dim word embedding matrix for a corpus from
pretrained GloVe vectors and store it in the embedding cache. The corpus
vocabularies are saved next to the cache and reused by predict and measure.
An existing cache of the same shape is reused.

Examples:
  tagger embed --corpus data/train.json
  tagger embed --config tagger.yaml --corpus data/train.json`,
	RunE: runEmbed,
}

// #region embed
func runEmbed(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	corpus, err := loadCorpus()
	if err != nil {
		return err
	}
	alpha := dataset.BuildAlphabets(corpus)
	if err := dataset.SaveAlphabets(cfg.AlphabetDir(), alpha); err != nil {
		return err
	}

	var src embedding.Source = embedding.Random{}
	if !cfg.Embedding.RandomWordVec {
		if cfg.Embedding.PretrainedPath == "" {
			return fmt.Errorf("embedding.pretrained_path is required unless random_wordvec is set")
		}
		src = embedding.GloVeFile{Path: cfg.Embedding.PretrainedPath}
	}

	cachePath := cfg.EmbeddingCachePath()
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	m, err := embedding.BuildMatrix(alpha.Words.Mapping(), cfg.Embedding.Dim, cachePath, src, newRand())
	if err != nil {
		return err
	}
	rows, dim := m.Dims()
	logger.Info("embedding ready",
		"corpus", corpus.Name,
		"rows", rows,
		"dim", dim,
		"cache", cachePath,
		"alphabets", cfg.AlphabetDir(),
	)
	fmt.Printf("embedding %dx%d cached at %s\n", rows, dim, cachePath)
	return nil
}

// #endregion embed
