// Package config loads the tagger's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/relgraph-tagger/internal/batch"
	"github.com/danielpatrickdp/relgraph-tagger/internal/device"
	"github.com/danielpatrickdp/relgraph-tagger/internal/loss"
)

// #region types
// Config is the full tagger configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Device    string          `yaml:"device"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Eval      EvalConfig      `yaml:"eval"`
	Data      DataConfig      `yaml:"data"`
}

// ModelConfig holds the loss and augmentation coefficients.
type ModelConfig struct {
	MarginCoefficient float64 `yaml:"margin_coefficient"`
	NoiseRate         float64 `yaml:"noise_rate"`
	PretrainedModel   string  `yaml:"pretrained_model"` // "none" for word input
	MarginMode        string  `yaml:"margin_mode"`
}

// ServerConfig addresses the inference server.
type ServerConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// EmbeddingConfig controls the word embedding matrix.
type EmbeddingConfig struct {
	Dim            int    `yaml:"dim"`
	CacheDir       string `yaml:"cache_dir"`
	PretrainedPath string `yaml:"pretrained_path"`
	RandomWordVec  bool   `yaml:"random_wordvec"`
	Dataset        string `yaml:"dataset"`
}

// StorageConfig locates the step log database.
type StorageConfig struct {
	DB string `yaml:"db"`
}

// LoggingConfig selects the zap preset.
type LoggingConfig struct {
	Mode string `yaml:"mode"` // "production" | "development"
}

// EvalConfig selects the F1 averaging.
type EvalConfig struct {
	Average string `yaml:"average"` // "macro" | "weighted"
}

// DataConfig controls batching.
type DataConfig struct {
	BatchSize  int    `yaml:"batch_size"`
	PieceVocab string `yaml:"piece_vocab"`
}

// #endregion types

// #region defaults
// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			MarginCoefficient: 1.0,
			NoiseRate:         batch.DefaultNoiseRate,
			PretrainedModel:   "none",
			MarginMode:        string(loss.Aligned),
		},
		Device: device.ModeAuto,
		Server: ServerConfig{
			Addr:    "localhost:50051",
			Timeout: 30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Dim:      300,
			CacheDir: "cache",
			Dataset:  "mastodon",
		},
		Storage: StorageConfig{DB: "tagger.db"},
		Logging: LoggingConfig{Mode: "production"},
		Eval:    EvalConfig{Average: "macro"},
		Data:    DataConfig{BatchSize: 16},
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.Server.Addr = envOr("TAGGER_SERVER_ADDR", cfg.Server.Addr)
	cfg.Storage.DB = envOr("TAGGER_DB", cfg.Storage.DB)
	cfg.Device = envOr("TAGGER_DEVICE", cfg.Device)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate
// Validate rejects values the tagger cannot run with.
func (c *Config) Validate() error {
	if c.Model.MarginCoefficient < 0 {
		return fmt.Errorf("model.margin_coefficient %v must not be negative", c.Model.MarginCoefficient)
	}
	if c.Model.NoiseRate < 0 {
		return fmt.Errorf("model.noise_rate %v must not be negative", c.Model.NoiseRate)
	}
	if _, err := loss.ParseMode(c.Model.MarginMode); err != nil {
		return fmt.Errorf("model.margin_mode: %w", err)
	}
	switch c.Device {
	case device.ModeAuto, device.ModeCPU, device.ModeCUDA:
	default:
		return fmt.Errorf("device %q must be auto, cpu or cuda", c.Device)
	}
	switch c.Eval.Average {
	case "macro", "weighted":
	default:
		return fmt.Errorf("eval.average %q must be macro or weighted", c.Eval.Average)
	}
	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding.dim %d must be positive", c.Embedding.Dim)
	}
	if c.Data.BatchSize <= 0 {
		return fmt.Errorf("data.batch_size %d must be positive", c.Data.BatchSize)
	}
	return nil
}

// UsePieces reports whether the network consumes piece indices.
func (c *Config) UsePieces() bool {
	return c.Model.PretrainedModel != "" && c.Model.PretrainedModel != "none"
}

// EmbeddingCachePath names the cache file for a dataset and width.
func (c *Config) EmbeddingCachePath() string {
	return filepath.Join(c.Embedding.CacheDir, fmt.Sprintf("%d_%s_embedding.db", c.Embedding.Dim, c.Embedding.Dataset))
}

// AlphabetDir is where the vocabularies of a dataset are kept, next to its
// embedding cache.
func (c *Config) AlphabetDir() string {
	return filepath.Join(c.Embedding.CacheDir, c.Embedding.Dataset+"_alphabets")
}

// #endregion validate
