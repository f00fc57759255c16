package model

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Evaluate classifies every sample by the arg-max of its output and counts the matches with the
// ground-truth labels. Predictions are in input order.
//
// If ctx is cancelled before the last sample is processed, the whole evaluation is discarded:
// the result has Cancelled set, a zero count and no predictions, and the status becomes
// Cancelled. Otherwise the status returns to what it was before the call.
func (n *Network) Evaluate(ctx context.Context, data []LabeledSample, hooks Hooks) (Evaluation, error) {
	if err := n.acquire(); err != nil {
		return Evaluation{}, err
	}
	defer n.release()

	for i, s := range data {
		if err := n.checkInput(s.Input); err != nil {
			return Evaluation{}, errors.Wrapf(err, "test sample %d", i)
		}
	}

	prev := n.Status()
	n.setStatus(Evaluating)
	hooks.status(Evaluating, "Evaluating")

	eval := n.evaluate(ctx, data, hooks)
	if !eval.Cancelled {
		n.setStatus(prev)
	}
	return eval, nil
}

// evaluate assumes the inputs were already checked.
func (n *Network) evaluate(ctx context.Context, data []LabeledSample, hooks Hooks) Evaluation {
	outputs := make([]*mat.VecDense, 0, len(data))
	for i, s := range data {
		outputs = append(outputs, n.feedforward(s.Input))
		hooks.progress(100 * float64(i+1) / float64(len(data)))
		if i+1 < len(data) && ctx.Err() != nil {
			n.setStatus(Cancelled)
			hooks.status(Cancelled, "Evaluation cancelled")
			return Evaluation{Cancelled: true}
		}
	}

	eval := Evaluation{Predictions: make([]int, len(data))}
	for i, out := range outputs {
		eval.Predictions[i] = ArgMax(out)
		if eval.Predictions[i] == data[i].Label {
			eval.Correct++
		}
	}
	return eval
}
