package metrics

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

const (
	ssimWindow = 7
	ssimK1     = 0.01
	ssimK2     = 0.03
)

// SSIMDataRange is the dynamic range SSIM assumes for
// pixel values.
const SSIMDataRange = 1.0

// SSIM computes the mean structural similarity of two
// images over every 7x7 window that fits inside them,
// averaged over channels.
//
// Statistics use the sample (N-1) covariance and a data
// range of SSIMDataRange, matching the [0, 1] pixel
// values. Scikit-image's default for float images is a
// range of 2, which gives higher scores on the same pair,
// so results are not comparable with scores computed
// that way.
func SSIM(a, b Image) (float64, error) {
	if err := checkShapes(a, b); err != nil {
		return 0, err
	}
	if a.Width < ssimWindow || a.Height < ssimWindow {
		return 0, errors.Wrapf(ErrShape, "image smaller than %dx%d window",
			ssimWindow, ssimWindow)
	}
	l1, l2 := ssimK1*SSIMDataRange, ssimK2*SSIMDataRange
	c1, c2 := l1*l1, l2*l2

	xs := make([]float64, ssimWindow*ssimWindow)
	ys := make([]float64, ssimWindow*ssimWindow)
	var total float64
	var count int
	for z := 0; z < a.Channels; z++ {
		for y := 0; y+ssimWindow <= a.Height; y++ {
			for x := 0; x+ssimWindow <= a.Width; x++ {
				idx := 0
				for wy := 0; wy < ssimWindow; wy++ {
					for wx := 0; wx < ssimWindow; wx++ {
						i := ((y+wy)*a.Width+x+wx)*a.Channels + z
						xs[idx] = a.Data[i]
						ys[idx] = b.Data[i]
						idx++
					}
				}
				muX, varX := stat.MeanVariance(xs, nil)
				muY, varY := stat.MeanVariance(ys, nil)
				cov := stat.Covariance(xs, ys, nil)
				num := (2*muX*muY + c1) * (2*cov + c2)
				denom := (muX*muX + muY*muY + c1) * (varX + varY + c2)
				total += num / denom
				count++
			}
		}
	}
	return total / float64(count), nil
}
