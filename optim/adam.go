// Package optim implements the optimizer, learning rate
// schedule and sample list utilities used for training.
package optim

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const (
	// DefaultBeta1 and DefaultBeta2 are the moment decay
	// rates used for both adversarial models.
	DefaultBeta1 = 0.5
	DefaultBeta2 = 0.999

	adamDefaultEpsilon = 1e-8
)

// Adam implements the adaptive moments technique
// described in https://arxiv.org/pdf/1412.6980.pdf.
//
// Unlike a gradient Transformer, Adam owns its parameter
// list and updates the parameters itself.
type Adam struct {
	// Params are the variables to update, in a fixed
	// order used when marshalling the moments.
	Params []*anydiff.Var

	// LR is the step size.
	LR float64

	// Beta1 and Beta2 are decay rates for the first and
	// second moments of the gradient.
	// If they are 0, DefaultBeta1 and DefaultBeta2 are used.
	Beta1, Beta2 float64

	// Epsilon is added to the denominator of every step.
	// If it is 0, a default is used.
	Epsilon float64

	firstMoment  anydiff.Grad
	secondMoment anydiff.Grad
	iteration    int
}

// NewAdam creates an Adam with the given parameters,
// learning rate and betas.
func NewAdam(params []*anydiff.Var, lr, beta1, beta2 float64) *Adam {
	return &Adam{Params: params, LR: lr, Beta1: beta1, Beta2: beta2}
}

// Iteration returns the number of steps taken so far.
func (a *Adam) Iteration() int {
	return a.iteration
}

// Step applies one update using the gradient g.
//
// Only the entries of g for a.Params are used, and g is
// left unmodified.
// Parameters missing from g are treated as having a zero
// gradient.
func (a *Adam) Step(g anydiff.Grad) {
	a.updateMoments(g)
	a.iteration++

	b1, b2 := a.beta(1), a.beta(2)
	correction1 := 1 - math.Pow(b1, float64(a.iteration))
	correction2 := 1 - math.Pow(b2, float64(a.iteration))
	eps := a.epsilon()

	for _, p := range a.Params {
		c := p.Vector.Creator()
		denom := a.secondMoment[p].Copy()
		denom.Scale(c.MakeNumeric(1 / correction2))
		anyvec.Pow(denom, c.MakeNumeric(0.5))
		denom.AddScalar(c.MakeNumeric(eps))

		step := a.firstMoment[p].Copy()
		step.Div(denom)
		step.Scale(c.MakeNumeric(-a.LR / correction1))
		p.Vector.Add(step)
	}
}

func (a *Adam) updateMoments(g anydiff.Grad) {
	if a.firstMoment == nil {
		a.firstMoment = zeroGrad(a.Params)
		a.secondMoment = zeroGrad(a.Params)
	}
	b1, b2 := a.beta(1), a.beta(2)
	for _, p := range a.Params {
		vec, ok := g[p]
		if !ok {
			vec = p.Vector.Creator().MakeVector(p.Vector.Len())
		}
		c := vec.Creator()

		first := a.firstMoment[p]
		first.Scale(c.MakeNumeric(b1))
		v := vec.Copy()
		v.Scale(c.MakeNumeric(1 - b1))
		first.Add(v)

		second := a.secondMoment[p]
		second.Scale(c.MakeNumeric(b2))
		v = vec.Copy()
		v.Mul(vec)
		v.Scale(c.MakeNumeric(1 - b2))
		second.Add(v)
	}
}

func (a *Adam) beta(moment int) float64 {
	switch moment {
	case 1:
		return valueOrDefault(a.Beta1, DefaultBeta1)
	case 2:
		return valueOrDefault(a.Beta2, DefaultBeta2)
	default:
		panic("invalid moment")
	}
}

func (a *Adam) epsilon() float64 {
	return valueOrDefault(a.Epsilon, adamDefaultEpsilon)
}

func valueOrDefault(value, def float64) float64 {
	if value == 0 {
		return def
	}
	return value
}

func zeroGrad(vars []*anydiff.Var) anydiff.Grad {
	res := anydiff.Grad{}
	for _, v := range vars {
		res[v] = v.Vector.Creator().MakeVector(v.Vector.Len())
	}
	return res
}
