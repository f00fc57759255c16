package model

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func vec(vals ...float64) *mat.VecDense {
	return mat.NewVecDense(len(vals), vals)
}

func truthTable(out [4]float64) []Sample {
	inputs := [4][2]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	data := make([]Sample, 4)
	for i, in := range inputs {
		data[i] = Sample{Input: vec(in[0], in[1]), Target: vec(out[i])}
	}
	return data
}

func TestPartitionSizes(t *testing.T) {
	batches := Partition(23, 10, rand.New(rand.NewSource(1)))
	sizes := make([]int, len(batches))
	seen := make(map[int]bool)
	for i, b := range batches {
		sizes[i] = len(b)
		for _, idx := range b {
			if seen[idx] {
				t.Fatalf("index %d appears twice", idx)
			}
			seen[idx] = true
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	if !reflect.DeepEqual(sizes, []int{10, 10, 3}) {
		t.Fatalf("batch sizes %v, want [10 10 3]", sizes)
	}
	if len(seen) != 23 {
		t.Fatalf("covered %d indices, want 23", len(seen))
	}
}

func TestPartitionDeterministic(t *testing.T) {
	a := Partition(50, 7, rand.New(rand.NewSource(9)))
	b := Partition(50, 7, rand.New(rand.NewSource(9)))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("partition not deterministic: %v vs %v", a, b)
	}
	if Partition(0, 10, rand.New(rand.NewSource(1))) != nil {
		t.Fatalf("empty partition should be nil")
	}
}

func TestOrdinal(t *testing.T) {
	want := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 101: "101st", 111: "111th"}
	for n, s := range want {
		if got := Ordinal(n); got != s {
			t.Fatalf("Ordinal(%d) = %q, want %q", n, got, s)
		}
	}
}

func TestTrainZeroEpochs(t *testing.T) {
	n, _ := New([]int{2, 1}, rand.New(rand.NewSource(1)))
	before := n.Weights()
	status, err := n.Train(context.Background(), truthTable([4]float64{0, 1, 1, 1}), TrainOptions{
		Epochs:        0,
		MiniBatchSize: 2,
		LearningRate:  3,
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if n.Trained() {
		t.Fatalf("zero-epoch run marked the network trained")
	}
	if status != Ready {
		t.Fatalf("status %v, want ready", status)
	}
	if !mat.Equal(before[0], n.weights[0]) {
		t.Fatalf("zero-epoch run changed weights")
	}
	if n.MiniBatchSize() != 2 || n.LearningRate() != 3 {
		t.Fatalf("hyperparameters not recorded")
	}
}

func TestTrainInvalidOptions(t *testing.T) {
	n, _ := New([]int{2, 1}, nil)
	data := truthTable([4]float64{0, 1, 1, 1})
	for _, opts := range []TrainOptions{
		{Epochs: -1, MiniBatchSize: 1},
		{Epochs: 1, MiniBatchSize: 0},
	} {
		if _, err := n.Train(context.Background(), data, opts); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("Train(%+v) error = %v, want ErrInvalidOptions", opts, err)
		}
	}
	if _, err := n.Train(context.Background(), nil, TrainOptions{Epochs: 1, MiniBatchSize: 1}); !errors.Is(err, ErrNoData) {
		t.Fatalf("Train(nil) error = %v, want ErrNoData", err)
	}
}

func TestTrainShapeMismatch(t *testing.T) {
	n, _ := New([]int{2, 1}, rand.New(rand.NewSource(1)))
	before := n.Weights()
	data := truthTable([4]float64{0, 1, 1, 1})
	data[2].Input = vec(1, 0, 0)
	_, err := n.Train(context.Background(), data, TrainOptions{Epochs: 1, MiniBatchSize: 2, LearningRate: 1})
	var sizeErr *SizeMismatchError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("error = %v, want *SizeMismatchError", err)
	}
	if !mat.Equal(before[0], n.weights[0]) {
		t.Fatalf("rejected run changed weights")
	}
}

func TestTrainLearnsOR(t *testing.T) {
	data := truthTable([4]float64{0, 1, 1, 1})
	run := func() *Network {
		n, _ := New([]int{2, 1}, rand.New(rand.NewSource(42)))
		status, err := n.Train(context.Background(), data, TrainOptions{
			Epochs:        1000,
			MiniBatchSize: 2,
			LearningRate:  3,
			Rand:          rand.New(rand.NewSource(43)),
		})
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if status != Completed || !n.Trained() || n.Status() != Completed {
			t.Fatalf("status %v trained %v", status, n.Trained())
		}
		return n
	}

	a, b := run(), run()
	cost, err := a.Cost(data)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost > 0.01 {
		t.Fatalf("cost %.5f after training, want < 0.01", cost)
	}
	for i := range a.weights {
		if !mat.Equal(a.weights[i], b.weights[i]) || !mat.Equal(a.biases[i], b.biases[i]) {
			t.Fatalf("seeded runs diverged at layer %d", i)
		}
	}
}

func TestTrainLearnsXORWithHiddenLayer(t *testing.T) {
	data := truthTable([4]float64{0, 1, 1, 0})
	n, _ := New([]int{2, 4, 1}, rand.New(rand.NewSource(1)))
	before, _ := n.Cost(data)
	if _, err := n.Train(context.Background(), data, TrainOptions{
		Epochs:        2000,
		MiniBatchSize: 1,
		LearningRate:  3,
		Rand:          rand.New(rand.NewSource(2)),
	}); err != nil {
		t.Fatalf("Train: %v", err)
	}
	after, _ := n.Cost(data)
	if after > 0.01 || after >= before {
		t.Fatalf("cost %.5f -> %.5f, want < 0.01", before, after)
	}
}

func TestTrainHooks(t *testing.T) {
	data := truthTable([4]float64{0, 1, 1, 1})
	test := []LabeledSample{{Input: vec(0, 0), Label: 0}, {Input: vec(1, 1), Label: 0}}
	n, _ := New([]int{2, 1}, rand.New(rand.NewSource(4)))

	var statuses []Status
	var messages []string
	var results []EpochResult
	var progress []float64
	_, err := n.Train(context.Background(), data, TrainOptions{
		Epochs:        2,
		MiniBatchSize: 3,
		LearningRate:  1,
		TestData:      test,
		Rand:          rand.New(rand.NewSource(5)),
		Hooks: Hooks{
			Progress: func(p float64) { progress = append(progress, p) },
			Status: func(s Status, msg string) {
				statuses = append(statuses, s)
				messages = append(messages, msg)
			},
			Results: func(r EpochResult) { results = append(results, r) },
		},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	wantStatuses := []Status{Training, Evaluating, Training, Evaluating, Completed}
	if !reflect.DeepEqual(statuses, wantStatuses) {
		t.Fatalf("statuses %v, want %v", statuses, wantStatuses)
	}
	if messages[0] != "Training 1st epoch" || messages[2] != "Training 2nd epoch" {
		t.Fatalf("messages %q", messages)
	}
	// per epoch: 2 batches then 2 evaluated samples
	wantProgress := []float64{50, 100, 50, 100, 50, 100, 50, 100}
	if !reflect.DeepEqual(progress, wantProgress) {
		t.Fatalf("progress %v, want %v", progress, wantProgress)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if r.Epoch != i || !r.Evaluated || r.Total != 2 || len(r.Predictions) != 2 {
			t.Fatalf("result %d = %+v", i, r)
		}
		// a single output unit always predicts class 0
		if r.Correct != 2 {
			t.Fatalf("result %d correct %d, want 2", i, r.Correct)
		}
	}
}

func TestTrainWithoutTestData(t *testing.T) {
	n, _ := New([]int{2, 1}, rand.New(rand.NewSource(4)))
	var results []EpochResult
	_, err := n.Train(context.Background(), truthTable([4]float64{0, 0, 0, 1}), TrainOptions{
		Epochs:        1,
		MiniBatchSize: 4,
		LearningRate:  1,
		Hooks:         Hooks{Results: func(r EpochResult) { results = append(results, r) }},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(results) != 1 || results[0].Evaluated || results[0].Predictions != nil || results[0].EvalDuration != 0 {
		t.Fatalf("results %+v", results)
	}
}

func TestTrainCancelled(t *testing.T) {
	data := make([]Sample, 0, 40)
	for i := 0; i < 10; i++ {
		data = append(data, truthTable([4]float64{0, 1, 1, 1})...)
	}
	n, _ := New([]int{2, 1}, rand.New(rand.NewSource(1)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := 0
	var last string
	resultsCalled := false
	status, err := n.Train(ctx, data, TrainOptions{
		Epochs:        3,
		MiniBatchSize: 4,
		LearningRate:  1,
		TestData:      []LabeledSample{{Input: vec(0, 0), Label: 0}},
		Hooks: Hooks{
			Progress: func(float64) {
				batches++
				if batches == 2 {
					cancel()
				}
			},
			Status:  func(_ Status, msg string) { last = msg },
			Results: func(EpochResult) { resultsCalled = true },
		},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if status != Cancelled || n.Status() != Cancelled {
		t.Fatalf("status %v / %v, want cancelled", status, n.Status())
	}
	if n.Trained() {
		t.Fatalf("cancelled run marked the network trained")
	}
	if batches != 2 {
		t.Fatalf("ran %d batches after cancellation, want 2", batches)
	}
	if resultsCalled {
		t.Fatalf("results reported for a cancelled epoch")
	}
	if last != "Training cancelled" {
		t.Fatalf("last status message %q", last)
	}
	if n.NumEpochs() != 3 {
		t.Fatalf("hyperparameters not recorded on cancel")
	}
}

func TestTrainCancelledDuringEvaluation(t *testing.T) {
	n, _ := New([]int{2, 1}, rand.New(rand.NewSource(1)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var msgs []string
	results := 0
	status, err := n.Train(ctx, truthTable([4]float64{0, 1, 1, 1}), TrainOptions{
		Epochs:        2,
		MiniBatchSize: 2,
		LearningRate:  1,
		TestData: []LabeledSample{
			{Input: vec(0, 0), Label: 0},
			{Input: vec(1, 1), Label: 1},
			{Input: vec(0, 1), Label: 1},
		},
		Hooks: Hooks{
			Status: func(s Status, msg string) {
				msgs = append(msgs, msg)
				if s == Evaluating {
					cancel()
				}
			},
			Results: func(EpochResult) { results++ },
		},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if status != Cancelled || n.Status() != Cancelled {
		t.Fatalf("status %v / %v, want cancelled", status, n.Status())
	}
	want := []string{"Training 1st epoch", "Evaluating", "Evaluation cancelled"}
	if !reflect.DeepEqual(msgs, want) {
		t.Fatalf("messages %q, want %q", msgs, want)
	}
	if results != 0 {
		t.Fatalf("results reported %d times for a cancelled evaluation", results)
	}
	if n.Trained() {
		t.Fatalf("cancelled run marked the network trained")
	}
}

func TestTrainRejectsConcurrentUse(t *testing.T) {
	n, _ := New([]int{2, 1}, rand.New(rand.NewSource(1)))
	var nested error
	_, err := n.Train(context.Background(), truthTable([4]float64{0, 1, 1, 1}), TrainOptions{
		Epochs:        1,
		MiniBatchSize: 4,
		LearningRate:  1,
		Hooks: Hooks{Progress: func(float64) {
			_, nested = n.Evaluate(context.Background(), nil, Hooks{})
		}},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !errors.Is(nested, ErrBusy) {
		t.Fatalf("nested Evaluate error = %v, want ErrBusy", nested)
	}
}
