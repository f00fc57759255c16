package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// sigmoid applies 1/(1+e^-z) elementwise, computed as ½+½tanh(z/2) so that large |z| saturates
// to exactly 0 or 1.
func sigmoid(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(z.Len(), nil)
	for i := 0; i < z.Len(); i++ {
		out.SetVec(i, 0.5+0.5*math.Tanh(0.5*z.AtVec(i)))
	}
	return out
}

// sigmoidPrime returns σ(z)⊙(1-σ(z)).
func sigmoidPrime(z *mat.VecDense) *mat.VecDense {
	s := sigmoid(z)
	out := mat.NewVecDense(s.Len(), nil)
	for i := 0; i < s.Len(); i++ {
		v := s.AtVec(i)
		out.SetVec(i, v*(1-v))
	}
	return out
}

// costDerivative is ∂C/∂a for the quadratic cost ½‖a-y‖².
func costDerivative(output, target *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(output.Len(), nil)
	out.SubVec(output, target)
	return out
}
