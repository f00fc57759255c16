package model

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Sample is a training pair: an input column vector and its one-hot target.
type Sample struct {
	Input  *mat.VecDense
	Target *mat.VecDense
}

// LabeledSample is an evaluation pair: an input column vector and its class index.
type LabeledSample struct {
	Input *mat.VecDense
	Label int
}

// Hooks receives observations from a long-running operation. All hooks run on the goroutine
// that called Train or Evaluate; nil hooks are skipped.
type Hooks struct {
	// Progress receives a percentage in [0, 100], non-decreasing within one phase (the training
	// batches of an epoch, or one evaluation pass). A Status call starts a new phase.
	Progress func(percent float64)
	Status   func(status Status, message string)
	Results  func(result EpochResult)
}

func (h Hooks) progress(p float64) {
	if h.Progress != nil {
		h.Progress(p)
	}
}

func (h Hooks) status(s Status, msg string) {
	if h.Status != nil {
		h.Status(s, msg)
	}
}

func (h Hooks) results(r EpochResult) {
	if h.Results != nil {
		h.Results(r)
	}
}

// EpochResult summarises one training epoch.
type EpochResult struct {
	// Epoch is zero-based.
	Epoch int
	// Evaluated is false when no test data was supplied; Correct, Total and Predictions are then
	// empty.
	Evaluated   bool
	Correct     int
	Total       int
	Predictions []int

	TrainDuration time.Duration
	EvalDuration  time.Duration
}

// Accuracy returns Correct/Total as a percentage, or 0 if nothing was evaluated.
func (r EpochResult) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Correct) / float64(r.Total)
}

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	Correct     int
	Predictions []int
	// Cancelled is set when the context was cancelled before every sample was processed; the
	// count and predictions are then discarded.
	Cancelled bool
}
