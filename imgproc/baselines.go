package imgproc

import "image"

// FixedFactor is the downsampling factor of the
// fixed-factor baseline.
const FixedFactor = 6

// A Baseline identifies a classical, non-learned way of
// producing a low quality image.
type Baseline int

const (
	// Bicubic downsamples the ground truth.
	Bicubic Baseline = iota

	// Gaussian blurs the ground truth before downsampling.
	Gaussian

	// Bicubic6 downsamples the ground truth by FixedFactor
	// and scales it back up to the output size.
	Bicubic6

	NumBaselines = 3
)

// String returns the short name of the baseline.
func (b Baseline) String() string {
	switch b {
	case Bicubic:
		return "BC"
	case Gaussian:
		return "GS"
	case Bicubic6:
		return "BC6"
	default:
		return "unknown"
	}
}

// Baselines computes every baseline image for a ground
// truth, each downsampled by factor.
// Results are indexed by Baseline.
func Baselines(gt image.Image, factor int) [NumBaselines]image.Image {
	w, h := gt.Bounds().Dx(), gt.Bounds().Dy()
	outW, outH := w/factor, h/factor

	var res [NumBaselines]image.Image
	res[Bicubic] = Resize(gt, outW, outH)
	res[Gaussian] = Resize(GaussianBlur(gt, BlurRadius), outW, outH)
	small := Resize(gt, maxInt(1, w/FixedFactor), maxInt(1, h/FixedFactor))
	res[Bicubic6] = Resize(small, outW, outH)
	return res
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
