package metrics

import "time"

// Window accumulates per-epoch timing and accuracy across several epochs.
type Window struct {
	samples int
	train   time.Duration
	eval    time.Duration
	epochs  int
	correct int
	total   int
}

// Record adds one epoch's measurements to the window. samples is the number of training
// samples processed; correct and total describe the evaluation, if any.
func (w *Window) Record(samples int, train, eval time.Duration, correct, total int) {
	w.samples += samples
	w.train += train
	w.eval += eval
	w.epochs++
	w.correct += correct
	w.total += total
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{}
	if w.train > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.train.Seconds()
	}
	if w.epochs > 0 {
		snap.AvgTrainMS = (w.train.Seconds() * 1000) / float64(w.epochs)
		snap.AvgEvalMS = (w.eval.Seconds() * 1000) / float64(w.epochs)
	}
	if w.total > 0 {
		snap.Accuracy = float64(w.correct) / float64(w.total)
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	SamplesPerSec float64
	AvgTrainMS    float64
	AvgEvalMS     float64
	Accuracy      float64
}
