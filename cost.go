package degradation

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// bceLogFloor is the lower bound applied to logarithms in
// BCE, which keeps the cost finite for saturated outputs.
const bceLogFloor = -100

// bceEpsilon bounds the gradient denominator p*(1-p).
const bceEpsilon = 1e-12

// A Cost provides a way to measure the amount of error
// from the output of a neural network.
//
// Just like regular Layers, a Cost function is batched.
// It takes a packed batch of desired outputs and actual
// outputs, and produces a batch of costs.
type Cost interface {
	Cost(desired, actual anydiff.Res, n int) anydiff.Res
}

// MeanCost averages the per-sample costs of a batch into
// a single-component result.
func MeanCost(c Cost, desired, actual anydiff.Res, n int) anydiff.Res {
	costs := c.Cost(desired, actual, n)
	sum := anydiff.Sum(costs)
	return anydiff.Scale(sum, sum.Output().Creator().MakeNumeric(1/float64(n)))
}

// MSE evaluates cost as the squared Euclidean distance
// between the actual and desired output.
type MSE struct{}

// Cost computes, for each output, the mean squared
// distance between the actual and desired output value.
func (m MSE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	neg := anydiff.Scale(actual, actual.Output().Creator().MakeNumeric(-1))
	diff := anydiff.Add(desired, neg)
	sq := anydiff.Square(diff)
	numComps := sq.Output().Len() / n
	sum := anydiff.SumCols(&anydiff.Matrix{
		Data: sq,
		Rows: n,
		Cols: numComps,
	})
	normalizer := 1.0 / float64(numComps)
	return anydiff.Scale(sum, sum.Output().Creator().MakeNumeric(normalizer))
}

// BCE is the binary cross-entropy between probabilities
// and target labels.
//
// The actual outputs are probabilities, such as the output
// of a Sigmoid activation.
// Logarithms are clamped at -100 so that outputs of exactly
// 0 or 1 produce a finite cost.
//
// The desired labels are treated as constants.
type BCE struct{}

// Cost computes, for each output, the mean cross-entropy
// over its components.
func (b BCE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	if desired.Output().Len() != actual.Output().Len() {
		panic("label and output sizes must match")
	}
	if actual.Output().Len()%n != 0 {
		panic("batch size must divide output length")
	}
	probs := Floats(actual.Output())
	labels := Floats(desired.Output())
	cols := len(probs) / n

	costs := make([]float64, n)
	for i, p := range probs {
		y := labels[i]
		logP := math.Max(math.Log(p), bceLogFloor)
		logQ := math.Max(math.Log(1-p), bceLogFloor)
		costs[i/cols] -= (y*logP + (1-y)*logQ) / float64(cols)
	}

	c := actual.Output().Creator()
	return &bceRes{
		Actual: actual,
		Probs:  probs,
		Labels: labels,
		Cols:   cols,
		OutVec: FromFloats(c, costs),
	}
}

type bceRes struct {
	Actual anydiff.Res
	Probs  []float64
	Labels []float64
	Cols   int
	OutVec anyvec.Vector
}

func (b *bceRes) Output() anyvec.Vector {
	return b.OutVec
}

func (b *bceRes) Vars() anydiff.VarSet {
	return b.Actual.Vars()
}

func (b *bceRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	if !g.Intersects(b.Actual.Vars()) {
		return
	}
	upstream := Floats(u)
	down := make([]float64, len(b.Probs))
	for i, p := range b.Probs {
		denom := math.Max(p*(1-p), bceEpsilon)
		down[i] = upstream[i/b.Cols] * (p - b.Labels[i]) / (denom * float64(b.Cols))
	}
	b.Actual.Propagate(FromFloats(u.Creator(), down), g)
}
