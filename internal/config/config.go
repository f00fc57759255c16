package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	FormatRecords = "records"
	FormatIDX     = "idx"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Format        string  `yaml:"format"`
	TrainData     string  `yaml:"train_data"`
	TestData      string  `yaml:"test_data"`
	DataDir       string  `yaml:"data_dir"`
	LayerSizes    []int   `yaml:"layer_sizes"`
	Epochs        int     `yaml:"epochs"`
	MiniBatchSize int     `yaml:"mini_batch_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	Seed          int64   `yaml:"seed"`
	TrainLimit    int     `yaml:"train_limit"`
	TestLimit     int     `yaml:"test_limit"`
	Holdout       int     `yaml:"holdout"`
	ModelIn       string  `yaml:"model_in"`
	ModelOut      string  `yaml:"model_out"`
	EvalOnly      bool    `yaml:"eval_only"`
	ProgressEvery int     `yaml:"progress_every"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Format        string
	TrainData     string
	TestData      string
	DataDir       string
	LayerSizes    []int
	Epochs        int
	MiniBatchSize int
	LearningRate  float64
	Seed          int64
	ModelIn       string
	ModelOut      string
	EvalOnly      bool
}

// Default returns the configuration of the classic 784-30-10 MNIST run.
func Default() *Config {
	return &Config{
		Format:        FormatRecords,
		LayerSizes:    []int{784, 30, 10},
		Epochs:        3,
		MiniBatchSize: 10,
		LearningRate:  3.0,
		ProgressEvery: 10,
	}
}

// Load reads and validates a Config from YAML. Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.TrainData != "" {
		c.TrainData = o.TrainData
	}
	if o.TestData != "" {
		c.TestData = o.TestData
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if len(o.LayerSizes) > 0 {
		c.LayerSizes = append([]int(nil), o.LayerSizes...)
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.MiniBatchSize > 0 {
		c.MiniBatchSize = o.MiniBatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.ModelIn != "" {
		c.ModelIn = o.ModelIn
	}
	if o.ModelOut != "" {
		c.ModelOut = o.ModelOut
	}
	if o.EvalOnly {
		c.EvalOnly = true
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Format {
	case FormatRecords:
		if c.TrainData == "" && !c.EvalOnly {
			return errors.New("train_data must be set for the records format")
		}
		if c.EvalOnly && c.TestData == "" {
			return errors.New("test_data must be set for eval_only runs")
		}
	case FormatIDX:
		if c.DataDir == "" {
			return errors.New("data_dir must be set for the idx format")
		}
	default:
		return fmt.Errorf("format must be %q or %q (got %q)", FormatRecords, FormatIDX, c.Format)
	}
	if len(c.LayerSizes) < 2 {
		return fmt.Errorf("layer_sizes needs at least 2 layers (got %d)", len(c.LayerSizes))
	}
	for i, n := range c.LayerSizes {
		if n <= 0 {
			return fmt.Errorf("layer_sizes[%d] must be > 0 (got %d)", i, n)
		}
	}
	if c.EvalOnly && c.ModelIn == "" {
		return errors.New("model_in must be set for eval_only runs")
	}
	if !c.EvalOnly {
		if c.Epochs <= 0 {
			return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
		}
		if c.MiniBatchSize <= 0 {
			return fmt.Errorf("mini_batch_size must be > 0 (got %d)", c.MiniBatchSize)
		}
		if c.LearningRate <= 0 {
			return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
		}
	}
	if c.TrainLimit < 0 || c.TestLimit < 0 || c.Holdout < 0 {
		return errors.New("train_limit, test_limit and holdout must not be negative")
	}
	if c.ProgressEvery <= 0 || c.ProgressEvery > 100 {
		c.ProgressEvery = 10
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}
