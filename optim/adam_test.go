package optim

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

// quadratic is 3x^2+3xy-2x+y^2, minimized at (4/3, -2).
func quadratic(x, y anydiff.Res) anydiff.Res {
	mk := x.Output().Creator().MakeNumeric
	return anydiff.Add(
		anydiff.Add(anydiff.Scale(anydiff.Mul(x, x), mk(3)), anydiff.Mul(y, y)),
		anydiff.Add(anydiff.Scale(anydiff.Mul(x, y), mk(3)), anydiff.Scale(x, mk(-2))),
	)
}

func TestAdam(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	x := anydiff.NewVar(c.MakeVector(1))
	y := anydiff.NewVar(c.MakeVector(1))
	opt := NewAdam([]*anydiff.Var{x, y}, 0.001, DefaultBeta1, DefaultBeta2)

	for i := 0; i < 50000; i++ {
		grad := anydiff.NewGrad(x, y)
		quadratic(x, y).Propagate(c.MakeVectorData([]float64{1}), grad)
		opt.Step(grad)
	}

	xVal := x.Vector.Data().([]float64)[0]
	yVal := y.Vector.Data().([]float64)[0]
	if math.Abs(xVal-4.0/3) > 1e-2 || math.Abs(yVal+2) > 1e-2 {
		t.Errorf("bad solution: %f, %f", xVal, yVal)
	}
	if opt.Iteration() != 50000 {
		t.Errorf("expected 50000 iterations but got %d", opt.Iteration())
	}
}

func TestAdamFirstStep(t *testing.T) {
	// The first bias-corrected step has magnitude LR
	// whatever the gradient scale.
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVectorData([]float64{1, 1}))
	opt := NewAdam([]*anydiff.Var{v}, 0.1, 0.5, 0.999)
	opt.Step(anydiff.Grad{v: c.MakeVectorData([]float64{1000, -0.5})})

	actual := v.Vector.Data().([]float64)
	expected := []float64{0.9, 1.1}
	for i, x := range expected {
		if math.Abs(actual[i]-x) > 1e-6 {
			t.Errorf("component %d: expected %f but got %f", i, x, actual[i])
		}
	}
}

func TestAdamMissingGradient(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVectorData([]float64{2}))
	opt := NewAdam([]*anydiff.Var{v}, 0.1, 0, 0)
	opt.Step(anydiff.Grad{})
	if actual := v.Vector.Data().([]float64)[0]; actual != 2 {
		t.Errorf("expected 2 but got %f", actual)
	}
}

func TestAdamMarshal(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	vars := randomVars(c)
	opt := NewAdam(vars, 0.01, DefaultBeta1, DefaultBeta2)
	for i := 0; i < 3; i++ {
		opt.Step(randomGrad(vars))
	}
	data, err := opt.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	params := copyVars(vars)
	restored := NewAdam(params, 0.01, DefaultBeta1, DefaultBeta2)
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if restored.Iteration() != 3 {
		t.Errorf("expected iteration 3 but got %d", restored.Iteration())
	}

	grad := randomGrad(vars)
	regrad := anydiff.Grad{}
	for i, v := range vars {
		regrad[params[i]] = grad[v].Copy()
	}
	opt.Step(grad)
	restored.Step(regrad)
	for i, v := range vars {
		if !reflect.DeepEqual(v.Vector.Data(), params[i].Vector.Data()) {
			t.Errorf("parameter %d differs after restore", i)
		}
	}
}

func TestGradientMarshal(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	vars := randomVars(c)
	grad := randomGrad(vars)

	data, err := marshalGradient(vars, grad)
	if err != nil {
		t.Fatal(err)
	}
	newGrad, err := unmarshalGradient(vars, data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(grad, newGrad) {
		t.Error("gradient mismatch")
	}
}

func randomVars(c anyvec.Creator) []*anydiff.Var {
	var vars []*anydiff.Var
	for i := 0; i < 20; i++ {
		vec := c.MakeVector(i*rand.Intn(3) + 1)
		anyvec.Rand(vec, anyvec.Normal, nil)
		vars = append(vars, anydiff.NewVar(vec))
	}
	return vars
}

func copyVars(vars []*anydiff.Var) []*anydiff.Var {
	res := make([]*anydiff.Var, len(vars))
	for i, v := range vars {
		res[i] = anydiff.NewVar(v.Vector.Copy())
	}
	return res
}

func randomGrad(vars []*anydiff.Var) anydiff.Grad {
	res := anydiff.Grad{}
	for _, v := range vars {
		vec := v.Vector.Creator().MakeVector(v.Vector.Len())
		anyvec.Rand(vec, anyvec.Normal, nil)
		res[v] = vec
	}
	return res
}
