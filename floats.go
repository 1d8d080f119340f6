package degradation

import "github.com/unixpickle/anyvec"

// Floats copies the components of a vector into a new
// []float64.
//
// The anyvec.NumericList type must be []float32 or
// []float64.
func Floats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return append([]float64{}, data...)
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic("unsupported numeric type")
	}
}

// FromFloats creates a vector with the given components.
func FromFloats(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}

// Scalar returns the first component of a vector as a
// float64.
// It is typically used to read a scalar loss.
func Scalar(v anyvec.Vector) float64 {
	return Floats(v.Slice(0, 1))[0]
}
