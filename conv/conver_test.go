package conv

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestParallelConver(t *testing.T) {
	c := anyvec64.CurrentCreator()
	for _, noBias := range []bool{false, true} {
		layer := Conv{
			FilterCount:  13,
			FilterWidth:  4,
			FilterHeight: 3,

			StrideX: 2,
			StrideY: 3,

			InputWidth:  30,
			InputHeight: 20,
			InputDepth:  7,

			NoBias: noBias,
		}
		layer.InitNormal(c, 0.5)
		testConverEquiv(t, MakeDefaultConver(layer).(*conver),
			ParallelConverMaker(4)(layer).(*conver), 16)
	}
}

func TestParallelConverSingleSample(t *testing.T) {
	c := anyvec64.CurrentCreator()
	layer := Conv{
		FilterCount:  5,
		FilterWidth:  3,
		FilterHeight: 3,
		StrideX:      1,
		StrideY:      1,
		InputWidth:   11,
		InputHeight:  7,
		InputDepth:   2,
	}
	layer.InitNormal(c, 0.5)
	for _, workers := range []int{2, 3, 100} {
		testConverEquiv(t, MakeDefaultConver(layer).(*conver),
			ParallelConverMaker(workers)(layer).(*conver), 1)
	}
}

func testConverEquiv(t *testing.T, c1, c2 *conver, batchSize int) {
	c := c1.conv.Filters.Vector.Creator()
	inSize := c1.im2row.InputSize()
	outSize := c1.conv.OutputWidth() * c1.conv.OutputHeight() * c1.conv.OutputDepth()

	inBatch := c.MakeVector(inSize * batchSize)
	anyvec.Rand(inBatch, anyvec.Normal, nil)
	inVar := anydiff.NewVar(inBatch)

	out1 := c1.Apply(inVar, batchSize)
	out2 := c2.Apply(inVar, batchSize)
	if !vecsClose(out1.Output(), out2.Output()) {
		t.Error("mismatching output values")
	}

	upstream := c.MakeVector(outSize * batchSize)
	anyvec.Rand(upstream, anyvec.Normal, nil)

	vars := append([]*anydiff.Var{inVar}, c1.conv.Parameters()...)
	grad1 := anydiff.NewGrad(vars...)
	out1.Propagate(upstream.Copy(), grad1)
	grad2 := anydiff.NewGrad(vars...)
	out2.Propagate(upstream.Copy(), grad2)

	for i, variable := range vars {
		if !vecsClose(grad1[variable], grad2[variable]) {
			t.Errorf("gradient for variable %d differs", i)
		}
	}
}

func vecsClose(v1, v2 anyvec.Vector) bool {
	c := v1.Creator()
	diff := v1.Copy()
	diff.Sub(v2)
	return c.NumOps().Less(anyvec.AbsMax(diff), c.MakeNumeric(1e-6))
}
