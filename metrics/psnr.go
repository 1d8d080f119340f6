package metrics

import "math"

// PSNR computes the peak signal-to-noise ratio in
// decibels for a data range of 1.
// Identical images give +Inf.
//
// See SSIM for how the data range relates to other
// implementations.
func PSNR(a, b Image) (float64, error) {
	if err := checkShapes(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i, x := range a.Data {
		d := x - b.Data[i]
		sum += d * d
	}
	mse := sum / float64(len(a.Data))
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 10 * math.Log10(1/mse), nil
}
