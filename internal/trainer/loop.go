package trainer

import (
	"context"
	"log"
	"math/rand"

	"github.com/pkg/errors"

	"mnist-forge/internal/dataset"
	"mnist-forge/internal/metrics"
	"mnist-forge/internal/model"
)

const (
	FormatRecords = "records"
	FormatIDX     = "idx"
)

// RunConfig captures the knobs required by a training session.
type RunConfig struct {
	Format    string
	TrainData string
	TestData  string
	DataDir   string

	LayerSizes    []int
	Epochs        int
	MiniBatchSize int
	LearningRate  float64
	Seed          int64

	TrainLimit int
	TestLimit  int
	Holdout    int

	ModelIn  string
	ModelOut string
	EvalOnly bool

	// ProgressEvery is the progress logging step in percent.
	ProgressEvery int
}

// Run executes one session: load data, build or load the network, then train and save it, or
// only evaluate it when EvalOnly is set. A cancelled session returns nil and writes no file.
func Run(ctx context.Context, cfg RunConfig) error {
	if len(cfg.LayerSizes) < 2 {
		return errors.New("trainer: at least two layer sizes are required")
	}
	if cfg.EvalOnly && cfg.ModelIn == "" {
		return errors.New("trainer: eval-only runs need a model to load")
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	net, err := model.New(cfg.LayerSizes, rng)
	if err != nil {
		return err
	}
	if cfg.ModelIn != "" {
		if err := net.Load(cfg.ModelIn); err != nil {
			return err
		}
		log.Printf("loaded model=%s layers=%v epochs=%d", cfg.ModelIn, net.LayerSizes(), net.NumEpochs())
	}
	sizes := net.LayerSizes()

	train, test, err := loadRecords(ctx, cfg, sizes[0], rng)
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("run cancelled while loading data")
			return nil
		}
		return err
	}
	log.Printf("format=%s train_records=%d test_records=%d", cfg.Format, len(train), len(test))

	classes := sizes[len(sizes)-1]
	testSamples, err := dataset.TestSamples(test)
	if err != nil {
		return err
	}
	session := newSessionLog(cfg.ProgressEvery, len(train))

	if cfg.EvalOnly {
		return evaluateOnly(ctx, net, testSamples, session)
	}

	samples, err := dataset.TrainingSamples(train, classes)
	if err != nil {
		return err
	}

	status, err := net.Train(ctx, samples, model.TrainOptions{
		Epochs:        cfg.Epochs,
		MiniBatchSize: cfg.MiniBatchSize,
		LearningRate:  cfg.LearningRate,
		TestData:      testSamples,
		Rand:          rng,
		Hooks:         session.hooks(),
	})
	if err != nil {
		return err
	}
	if status == model.Cancelled {
		log.Printf("training cancelled; model not saved")
		return nil
	}
	session.summary()

	cost, err := net.Cost(samples)
	if err != nil {
		return err
	}
	log.Printf("status=%s cost=%.6f", status, cost)

	if cfg.ModelOut != "" && net.Trained() {
		if err := net.Save(cfg.ModelOut); err != nil {
			return err
		}
		log.Printf("saved model=%s", cfg.ModelOut)
	}
	return nil
}

func evaluateOnly(ctx context.Context, net *model.Network, test []model.LabeledSample, session *sessionLog) error {
	if len(test) == 0 {
		return errors.New("trainer: no test data to evaluate")
	}
	eval, err := net.Evaluate(ctx, test, session.hooks())
	if err != nil {
		return err
	}
	if eval.Cancelled {
		log.Printf("evaluation cancelled")
		return nil
	}
	log.Printf("correct=%d/%d accuracy=%.2f%%", eval.Correct, len(test), 100*float64(eval.Correct)/float64(len(test)))
	return nil
}

// loadRecords reads the configured data. width is the record width of the records format; it
// is the input width of the network, which may come from a loaded model.
func loadRecords(ctx context.Context, cfg RunConfig, width int, rng *rand.Rand) (train, test []dataset.Record, err error) {
	switch cfg.Format {
	case FormatRecords, "":
		if cfg.TrainData != "" && !cfg.EvalOnly {
			if train, err = dataset.ReadRecords(ctx, cfg.TrainData, width); err != nil {
				return nil, nil, err
			}
		}
		if cfg.TestData != "" {
			if test, err = dataset.ReadRecords(ctx, cfg.TestData, width); err != nil {
				return nil, nil, err
			}
		}
	case FormatIDX:
		if train, test, err = dataset.LoadIDXDir(cfg.DataDir); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errors.Errorf("trainer: unknown data format %q", cfg.Format)
	}

	// eval-only runs never read training records, so there is nothing to hold out
	if cfg.Holdout > 0 && !cfg.EvalOnly {
		train, test = dataset.Split(train, cfg.Holdout, rng)
	}
	train = dataset.Subset(train, cfg.TrainLimit, rng)
	test = dataset.Subset(test, cfg.TestLimit, rng)
	return train, test, nil
}

// sessionLog turns network hooks into log lines.
type sessionLog struct {
	every   float64
	next    float64
	samples int
	window  metrics.Window
}

func newSessionLog(every, samples int) *sessionLog {
	return &sessionLog{every: float64(every), next: float64(every), samples: samples}
}

func (s *sessionLog) hooks() model.Hooks {
	return model.Hooks{
		Progress: s.progress,
		Status:   s.status,
		Results:  s.results,
	}
}

func (s *sessionLog) progress(percent float64) {
	if percent < s.next {
		return
	}
	log.Printf("progress=%.0f%%", percent)
	for s.next <= percent {
		s.next += s.every
	}
}

func (s *sessionLog) status(status model.Status, message string) {
	s.next = s.every
	log.Printf("status=%s message=%q", status, message)
}

func (s *sessionLog) results(r model.EpochResult) {
	s.window.Record(s.samples, r.TrainDuration, r.EvalDuration, r.Correct, r.Total)
	if !r.Evaluated {
		log.Printf("epoch=%d train_ms=%d", r.Epoch, r.TrainDuration.Milliseconds())
		return
	}
	log.Printf("epoch=%d correct=%d/%d accuracy=%.2f%% train_ms=%d eval_ms=%d",
		r.Epoch,
		r.Correct,
		r.Total,
		r.Accuracy(),
		r.TrainDuration.Milliseconds(),
		r.EvalDuration.Milliseconds(),
	)
}

func (s *sessionLog) summary() {
	snap := s.window.Snapshot()
	log.Printf("samples_per_sec=%.1f avg_train_ms=%.2f avg_eval_ms=%.2f accuracy=%.2f%%",
		snap.SamplesPerSec,
		snap.AvgTrainMS,
		snap.AvgEvalMS,
		100*snap.Accuracy,
	)
}
