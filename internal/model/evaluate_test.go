package model

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// identityNetwork maps a one-hot input to a strongly peaked output at the same index.
func identityNetwork(t *testing.T, size int) *Network {
	t.Helper()
	n, err := New([]int{size, size}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.weights[0].Zero()
	for i := 0; i < size; i++ {
		n.weights[0].Set(i, i, 10)
	}
	n.biases[0].Zero()
	return n
}

func oneHot(size, idx int) *mat.VecDense {
	v := mat.NewVecDense(size, nil)
	v.SetVec(idx, 1)
	return v
}

func TestEvaluateCountsMatches(t *testing.T) {
	n := identityNetwork(t, 3)
	data := []LabeledSample{
		{Input: oneHot(3, 0), Label: 0},
		{Input: oneHot(3, 2), Label: 2},
		{Input: oneHot(3, 1), Label: 0},
		{Input: oneHot(3, 1), Label: 7},
	}
	var progress []float64
	eval, err := n.Evaluate(context.Background(), data, Hooks{Progress: func(p float64) { progress = append(progress, p) }})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Cancelled {
		t.Fatalf("unexpected cancellation")
	}
	if eval.Correct != 2 {
		t.Fatalf("correct %d, want 2", eval.Correct)
	}
	if !reflect.DeepEqual(eval.Predictions, []int{0, 2, 1, 1}) {
		t.Fatalf("predictions %v", eval.Predictions)
	}
	if !reflect.DeepEqual(progress, []float64{25, 50, 75, 100}) {
		t.Fatalf("progress %v", progress)
	}
	if n.Status() != Ready {
		t.Fatalf("status %v after evaluation, want ready", n.Status())
	}
}

func TestEvaluateTieBreak(t *testing.T) {
	n := identityNetwork(t, 3)
	// equal activations on units 1 and 2
	eval, err := n.Evaluate(context.Background(), []LabeledSample{{Input: mat.NewVecDense(3, []float64{0, 1, 1}), Label: 1}}, Hooks{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Predictions[0] != 1 || eval.Correct != 1 {
		t.Fatalf("evaluation %+v, want prediction 1", eval)
	}
}

func TestEvaluateCancelledBeforeStart(t *testing.T) {
	n := identityNetwork(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var msg string
	data := []LabeledSample{{Input: oneHot(2, 0), Label: 0}, {Input: oneHot(2, 1), Label: 1}, {Input: oneHot(2, 1), Label: 1}}
	eval, err := n.Evaluate(ctx, data, Hooks{Status: func(_ Status, m string) { msg = m }})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !eval.Cancelled || eval.Correct != 0 || len(eval.Predictions) != 0 {
		t.Fatalf("evaluation %+v, want discarded results", eval)
	}
	if n.Status() != Cancelled || msg != "Evaluation cancelled" {
		t.Fatalf("status %v message %q", n.Status(), msg)
	}
}

func TestEvaluateCancelledMidway(t *testing.T) {
	n := identityNetwork(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data := make([]LabeledSample, 10)
	for i := range data {
		data[i] = LabeledSample{Input: oneHot(2, i%2), Label: i % 2}
	}
	processed := 0
	eval, err := n.Evaluate(ctx, data, Hooks{Progress: func(float64) {
		processed++
		if processed == 5 {
			cancel()
		}
	}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !eval.Cancelled || eval.Correct != 0 || eval.Predictions != nil {
		t.Fatalf("evaluation %+v, want discarded results", eval)
	}
	if processed != 5 {
		t.Fatalf("processed %d samples after cancel, want 5", processed)
	}
}

func TestEvaluateCancelledAfterLastSample(t *testing.T) {
	n := identityNetwork(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data := []LabeledSample{{Input: oneHot(2, 0), Label: 0}, {Input: oneHot(2, 1), Label: 1}}
	seen := 0
	eval, err := n.Evaluate(ctx, data, Hooks{Progress: func(float64) {
		seen++
		if seen == len(data) {
			cancel()
		}
	}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Cancelled || eval.Correct != 2 {
		t.Fatalf("evaluation %+v, want complete results", eval)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	n := identityNetwork(t, 2)
	eval, err := n.Evaluate(context.Background(), nil, Hooks{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Cancelled || eval.Correct != 0 || len(eval.Predictions) != 0 {
		t.Fatalf("evaluation %+v", eval)
	}
}

func TestEvaluateSizeMismatch(t *testing.T) {
	n := identityNetwork(t, 2)
	_, err := n.Evaluate(context.Background(), []LabeledSample{{Input: mat.NewVecDense(3, nil)}}, Hooks{})
	var sizeErr *SizeMismatchError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("error = %v, want *SizeMismatchError", err)
	}
}
