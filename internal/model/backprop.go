package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Feedforward returns the output activations for input.
func (n *Network) Feedforward(input *mat.VecDense) (*mat.VecDense, error) {
	if err := n.checkInput(input); err != nil {
		return nil, err
	}
	return n.feedforward(input), nil
}

func (n *Network) feedforward(input *mat.VecDense) *mat.VecDense {
	a := input
	for i := range n.weights {
		a = sigmoid(n.preActivation(i, a))
	}
	return a
}

// preActivation computes z = W[i]·a + b[i].
func (n *Network) preActivation(i int, a *mat.VecDense) *mat.VecDense {
	z := mat.NewVecDense(n.biases[i].Len(), nil)
	z.MulVec(n.weights[i], a)
	z.AddVec(z, n.biases[i])
	return z
}

// Backprop returns the gradient of the quadratic cost for one sample, layer by layer, with the
// same shapes as the biases and weights. It reads the parameters but never mutates them.
func (n *Network) Backprop(input, target *mat.VecDense) ([]*mat.VecDense, []*mat.Dense, error) {
	if err := n.checkSample(input, target); err != nil {
		return nil, nil, err
	}
	nablaB, nablaW := n.backprop(input, target)
	return nablaB, nablaW, nil
}

func (n *Network) backprop(input, target *mat.VecDense) ([]*mat.VecDense, []*mat.Dense) {
	layers := len(n.weights)
	nablaB := make([]*mat.VecDense, layers)
	nablaW := make([]*mat.Dense, layers)

	// activations[0] is the input; zs[i] feeds activations[i+1]
	activations := make([]*mat.VecDense, 0, layers+1)
	zs := make([]*mat.VecDense, 0, layers)
	activations = append(activations, input)
	a := input
	for i := 0; i < layers; i++ {
		z := n.preActivation(i, a)
		zs = append(zs, z)
		a = sigmoid(z)
		activations = append(activations, a)
	}

	last := layers - 1
	delta := mat.NewVecDense(n.biases[last].Len(), nil)
	delta.MulElemVec(costDerivative(activations[last+1], target), sigmoidPrime(zs[last]))
	nablaB[last] = delta
	nablaW[last] = outer(delta, activations[last])

	for l := last - 1; l >= 0; l-- {
		back := mat.NewVecDense(n.biases[l].Len(), nil)
		back.MulVec(n.weights[l+1].T(), delta)
		next := mat.NewVecDense(back.Len(), nil)
		next.MulElemVec(back, sigmoidPrime(zs[l]))
		delta = next
		nablaB[l] = delta
		nablaW[l] = outer(delta, activations[l])
	}
	return nablaB, nablaW
}

// outer returns delta·aᵀ.
func outer(delta, a *mat.VecDense) *mat.Dense {
	m := mat.NewDense(delta.Len(), a.Len(), nil)
	m.Outer(1, delta, a)
	return m
}

// Cost returns the mean quadratic cost ½‖a(x)-y‖² over data.
func (n *Network) Cost(data []Sample) (float64, error) {
	if len(data) == 0 {
		return 0, ErrNoData
	}
	var total float64
	for i, s := range data {
		if err := n.checkSample(s.Input, s.Target); err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		diff := costDerivative(n.feedforward(s.Input), s.Target)
		total += 0.5 * floats.Dot(diff.RawVector().Data, diff.RawVector().Data)
	}
	return total / float64(len(data)), nil
}

// ArgMax returns the index of the largest entry of v; ties resolve to the lowest index.
func ArgMax(v mat.Vector) int {
	vals := make([]float64, v.Len())
	for i := range vals {
		vals[i] = v.AtVec(i)
	}
	return floats.MaxIdx(vals)
}

func (n *Network) checkInput(input *mat.VecDense) error {
	if input == nil {
		return &SizeMismatchError{Expected: n.inputSize(), Got: 0, What: "input"}
	}
	if input.Len() != n.inputSize() {
		return &SizeMismatchError{Expected: n.inputSize(), Got: input.Len(), What: "input"}
	}
	return nil
}

func (n *Network) checkSample(input, target *mat.VecDense) error {
	if err := n.checkInput(input); err != nil {
		return err
	}
	if target == nil {
		return &SizeMismatchError{Expected: n.outputSize(), Got: 0, What: "target"}
	}
	if target.Len() != n.outputSize() {
		return &SizeMismatchError{Expected: n.outputSize(), Got: target.Len(), What: "target"}
	}
	return nil
}
