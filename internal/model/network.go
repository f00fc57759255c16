package model

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Status is the observable lifecycle state of a Network.
type Status int

const (
	Ready Status = iota
	Training
	Evaluating
	Completed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Training:
		return "training"
	case Evaluating:
		return "evaluating"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Network is a fully-connected feedforward network of sigmoid layers.
//
// biases[i] and weights[i] map the activations of layer i to layer i+1. Parameters are only
// mutated by Train and Load, and only one of Train, Evaluate, Save or Load may run at a time.
// The metadata accessors may be called from any goroutine.
type Network struct {
	// guards the metadata below; the parameter slices are owned by whichever operation holds busy
	mu            sync.RWMutex
	layerSizes    []int
	numEpochs     int
	miniBatchSize int
	learningRate  float64
	trained       bool
	status        Status

	biases  []*mat.VecDense
	weights []*mat.Dense

	busy atomic.Bool
}

// New constructs a Network with the given layer sizes and N(0,1) parameters drawn from rng. A nil
// rng is seeded from the clock.
func New(layerSizes []int, rng *rand.Rand) (*Network, error) {
	if err := checkTopology(layerSizes); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sizes := append([]int(nil), layerSizes...)
	n := &Network{
		layerSizes: sizes,
		biases:     make([]*mat.VecDense, len(sizes)-1),
		weights:    make([]*mat.Dense, len(sizes)-1),
		status:     Ready,
	}
	for i := 1; i < len(sizes); i++ {
		n.biases[i-1] = mat.NewVecDense(sizes[i], gaussian(rng, sizes[i]))
	}
	for i := 1; i < len(sizes); i++ {
		n.weights[i-1] = mat.NewDense(sizes[i], sizes[i-1], gaussian(rng, sizes[i]*sizes[i-1]))
	}
	return n, nil
}

func checkTopology(layerSizes []int) error {
	if len(layerSizes) < 2 {
		return errors.Wrapf(ErrInvalidTopology, "got %d layers", len(layerSizes))
	}
	for i, size := range layerSizes {
		if size <= 0 {
			return errors.Wrapf(ErrInvalidTopology, "layer %d has size %d", i, size)
		}
	}
	return nil
}

// gaussian returns n samples of N(0,1) using the Box-Muller transform.
func gaussian(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		// 1-Float64 is in (0,1], keeping the log finite
		u1 := 1 - rng.Float64()
		u2 := 1 - rng.Float64()
		out[i] = math.Sqrt(-2*math.Log(u1)) * math.Sin(2*math.Pi*u2)
	}
	return out
}

// LayerSizes returns a copy of the layer widths, input first.
func (n *Network) LayerSizes() []int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]int(nil), n.layerSizes...)
}

// NumEpochs returns the epoch count of the most recent training run or load.
func (n *Network) NumEpochs() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.numEpochs
}

// MiniBatchSize returns the mini-batch size of the most recent training run or load.
func (n *Network) MiniBatchSize() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.miniBatchSize
}

// LearningRate returns the learning rate of the most recent training run or load.
func (n *Network) LearningRate() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.learningRate
}

// Trained reports whether the parameters come from a completed training run or a load.
func (n *Network) Trained() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.trained
}

// Status returns the lifecycle state set by the most recent operation.
func (n *Network) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Biases returns deep copies of the bias vectors. It must not race with Train or Load.
func (n *Network) Biases() []*mat.VecDense {
	out := make([]*mat.VecDense, len(n.biases))
	for i, b := range n.biases {
		out[i] = mat.VecDenseCopyOf(b)
	}
	return out
}

// Weights returns deep copies of the weight matrices. It must not race with Train or Load.
func (n *Network) Weights() []*mat.Dense {
	out := make([]*mat.Dense, len(n.weights))
	for i, w := range n.weights {
		out[i] = mat.DenseCopyOf(w)
	}
	return out
}

func (n *Network) setStatus(s Status) {
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

func (n *Network) acquire() error {
	if !n.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (n *Network) release() {
	n.busy.Store(false)
}

func (n *Network) inputSize() int {
	return n.layerSizes[0]
}

func (n *Network) outputSize() int {
	return n.layerSizes[len(n.layerSizes)-1]
}
