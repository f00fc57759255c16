package model

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// TrainOptions configures one call to Train.
type TrainOptions struct {
	Epochs        int
	MiniBatchSize int
	LearningRate  float64

	// TestData is evaluated after every epoch when non-empty.
	TestData []LabeledSample

	// Rand drives the mini-batch shuffle. A nil Rand is seeded from the clock.
	Rand *rand.Rand

	Hooks Hooks
}

// Train runs mini-batch stochastic gradient descent over data, mutating the parameters in place.
//
// The returned status is Completed when every epoch ran, or Cancelled when ctx was cancelled.
// Cancellation is checked after each mini-batch and after each evaluated sample; updates that
// were already applied are kept. Epochs == 0 leaves the network untouched.
func (n *Network) Train(ctx context.Context, data []Sample, opts TrainOptions) (Status, error) {
	if err := n.acquire(); err != nil {
		return n.Status(), err
	}
	defer n.release()

	n.mu.Lock()
	n.numEpochs = opts.Epochs
	n.miniBatchSize = opts.MiniBatchSize
	n.learningRate = opts.LearningRate
	n.trained = false
	status := n.status
	n.mu.Unlock()

	if err := n.checkTrainArgs(data, opts); err != nil {
		return status, err
	}
	if opts.Epochs == 0 {
		return status, nil
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	hooks := opts.Hooks

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		n.setStatus(Training)
		hooks.status(Training, fmt.Sprintf("Training %s epoch", Ordinal(epoch+1)))

		startTrain := time.Now()
		batches := Partition(len(data), opts.MiniBatchSize, rng)
		for i, idx := range batches {
			n.updateMiniBatch(data, idx, opts.LearningRate)
			hooks.progress(100 * float64(i+1) / float64(len(batches)))
			if ctx.Err() != nil {
				n.setStatus(Cancelled)
				hooks.status(Cancelled, "Training cancelled")
				return Cancelled, nil
			}
		}
		trainTime := time.Since(startTrain)

		result := EpochResult{Epoch: epoch, TrainDuration: trainTime}
		if len(opts.TestData) > 0 {
			n.setStatus(Evaluating)
			hooks.status(Evaluating, "Evaluating")

			startEval := time.Now()
			eval := n.evaluate(ctx, opts.TestData, hooks)
			result.EvalDuration = time.Since(startEval)
			if eval.Cancelled {
				return Cancelled, nil
			}
			result.Evaluated = true
			result.Correct = eval.Correct
			result.Total = len(opts.TestData)
			result.Predictions = eval.Predictions
		}
		hooks.results(result)
	}

	n.mu.Lock()
	n.status = Completed
	n.trained = true
	n.mu.Unlock()
	hooks.status(Completed, "Training completed")
	return Completed, nil
}

func (n *Network) checkTrainArgs(data []Sample, opts TrainOptions) error {
	if opts.Epochs < 0 {
		return errors.Wrapf(ErrInvalidOptions, "epochs must be >= 0 (got %d)", opts.Epochs)
	}
	if opts.MiniBatchSize <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "mini-batch size must be > 0 (got %d)", opts.MiniBatchSize)
	}
	if opts.Epochs > 0 && len(data) == 0 {
		return ErrNoData
	}
	for i, s := range data {
		if err := n.checkSample(s.Input, s.Target); err != nil {
			return errors.Wrapf(err, "training sample %d", i)
		}
	}
	for i, s := range opts.TestData {
		if err := n.checkInput(s.Input); err != nil {
			return errors.Wrapf(err, "test sample %d", i)
		}
	}
	return nil
}

// updateMiniBatch applies p -= η/|batch| · Σ∇p over the samples at idx.
func (n *Network) updateMiniBatch(data []Sample, idx []int, eta float64) {
	sumB := make([]*mat.VecDense, len(n.biases))
	sumW := make([]*mat.Dense, len(n.weights))
	for i := range n.biases {
		sumB[i] = mat.NewVecDense(n.biases[i].Len(), nil)
		r, c := n.weights[i].Dims()
		sumW[i] = mat.NewDense(r, c, nil)
	}

	for _, j := range idx {
		nablaB, nablaW := n.backprop(data[j].Input, data[j].Target)
		for i := range sumB {
			sumB[i].AddVec(sumB[i], nablaB[i])
			sumW[i].Add(sumW[i], nablaW[i])
		}
	}

	step := -eta / float64(len(idx))
	for i := range n.biases {
		n.biases[i].AddScaledVec(n.biases[i], step, sumB[i])
		sumW[i].Scale(step, sumW[i])
		n.weights[i].Add(n.weights[i], sumW[i])
	}
}

// Partition shuffles the indices [0, count) with rng and splits them into consecutive chunks of
// size; the final chunk is short when size does not divide count.
func Partition(count, size int, rng *rand.Rand) [][]int {
	if count <= 0 || size <= 0 {
		return nil
	}
	perm := rng.Perm(count)
	batches := make([][]int, 0, (count+size-1)/size)
	for start := 0; start < count; start += size {
		end := start + size
		if end > count {
			end = count
		}
		batches = append(batches, perm[start:end])
	}
	return batches
}

// Ordinal formats num as "1st", "2nd", "3rd", "4th", ..., "11th", "12th", "13th", "21st".
func Ordinal(num int) string {
	suffix := "th"
	switch num % 100 {
	case 11, 12, 13:
	default:
		switch num % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", num, suffix)
}
