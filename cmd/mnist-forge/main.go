package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"mnist-forge/internal/config"
	"mnist-forge/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/mnist.yaml", "Path to YAML config")
	format := flag.String("format", "", "Data format: records or idx")
	trainData := flag.String("train", "", "Override training record file")
	testData := flag.String("test", "", "Override test record file")
	dataDir := flag.String("data-dir", "", "Override directory holding gzipped IDX files")
	layers := flag.String("layers", "", "Comma separated layer sizes, e.g. 784,30,10")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Mini-batch size")
	learningRate := flag.Float64("learning-rate", 0, "Learning rate")
	seed := flag.Int64("seed", 0, "PRNG seed")
	modelIn := flag.String("load", "", "Load the network from this file before running")
	modelOut := flag.String("save", "", "Save the trained network to this file")
	evalOnly := flag.Bool("eval-only", false, "Evaluate the loaded network without training")
	convert := flag.Bool("convert", false, "Convert IDX files under -data-dir into the -train and -test record files, then exit")
	classify := flag.String("classify", "", "Classify this PNG or JPEG image with the -load network, then exit")

	flag.Parse()

	if *convert {
		if *dataDir == "" || *trainData == "" || *testData == "" {
			log.Fatalf("-convert needs -data-dir, -train and -test")
		}
		if err := trainer.Convert(*dataDir, *trainData, *testData); err != nil {
			log.Fatalf("convert failed: %v", err)
		}
		log.Printf("converted data_dir=%s train=%s test=%s", *dataDir, *trainData, *testData)
		return
	}

	if *classify != "" {
		if *modelIn == "" {
			log.Fatalf("-classify needs -load")
		}
		if _, err := trainer.Classify(*modelIn, *classify); err != nil {
			log.Fatalf("classify failed: %v", err)
		}
		return
	}

	layerSizes, err := parseLayers(*layers)
	if err != nil {
		log.Fatalf("invalid -layers: %v", err)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		Format:        *format,
		TrainData:     *trainData,
		TestData:      *testData,
		DataDir:       *dataDir,
		LayerSizes:    layerSizes,
		Epochs:        *epochs,
		MiniBatchSize: *batchSize,
		LearningRate:  *learningRate,
		Seed:          *seed,
		ModelIn:       *modelIn,
		ModelOut:      *modelOut,
		EvalOnly:      *evalOnly,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := trainer.RunConfig{
		Format:        cfg.Format,
		TrainData:     cfg.TrainData,
		TestData:      cfg.TestData,
		DataDir:       cfg.DataDir,
		LayerSizes:    cfg.LayerSizes,
		Epochs:        cfg.Epochs,
		MiniBatchSize: cfg.MiniBatchSize,
		LearningRate:  cfg.LearningRate,
		Seed:          cfg.Seed,
		TrainLimit:    cfg.TrainLimit,
		TestLimit:     cfg.TestLimit,
		Holdout:       cfg.Holdout,
		ModelIn:       cfg.ModelIn,
		ModelOut:      cfg.ModelOut,
		EvalOnly:      cfg.EvalOnly,
		ProgressEvery: cfg.ProgressEvery,
	}

	if err := trainer.Run(ctx, runCfg); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

// loadConfig reads path, falling back to the defaults when the file does not exist so that a
// run can be configured from flags alone.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("config %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

func parseLayers(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	sizes := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		sizes[i] = n
	}
	return sizes, nil
}
