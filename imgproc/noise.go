// Package imgproc implements the image transforms that
// surround the models: noise injection, tensor layout
// conversion, and the classical baselines.
package imgproc

import (
	"math/rand"

	"github.com/unixpickle/anyvec"

	degradation "github.com/ezgor/degradation-model"
)

// AddNoise appends one channel of standard normal noise
// to every pixel of a WxHxC depth-minor tensor, producing
// a WxHx(C+1) tensor.
//
// If r is nil, the global source is used.
func AddNoise(v anyvec.Vector, w, h, c int, r *rand.Rand) anyvec.Vector {
	if v.Len() != w*h*c {
		panic("tensor size does not match dimensions")
	}
	norm := rand.NormFloat64
	if r != nil {
		norm = r.NormFloat64
	}
	in := degradation.Floats(v)
	out := make([]float64, 0, w*h*(c+1))
	for i := 0; i < w*h; i++ {
		out = append(out, in[i*c:(i+1)*c]...)
		out = append(out, norm())
	}
	return degradation.FromFloats(v.Creator(), out)
}
