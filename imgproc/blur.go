package imgproc

import (
	"image"
	"image/color"
	"math"
)

// BlurRadius is the Gaussian radius of the blurred
// baseline.
const BlurRadius = 2 / math.Pi

// GaussianBlur blurs an image with a Gaussian of standard
// deviation radius.
// Edge pixels are extended past the border.
func GaussianBlur(img image.Image, radius float64) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	kernel := gaussianKernel(radius)
	half := len(kernel) / 2

	planes := make([][]float64, 4)
	for i := range planes {
		planes[i] = make([]float64, w*h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			for i, comp := range []uint32{r, g, bl, a} {
				planes[i][y*w+x] = float64(comp)
			}
		}
	}

	tmp := make([]float64, w*h)
	for _, plane := range planes {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var sum float64
				for k, weight := range kernel {
					sum += weight * plane[y*w+clamp(x+k-half, w)]
				}
				tmp[y*w+x] = sum
			}
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var sum float64
				for k, weight := range kernel {
					sum += weight * tmp[clamp(y+k-half, h)*w+x]
				}
				plane[y*w+x] = sum
			}
		}
	}

	res := image.NewRGBA64(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		res.SetRGBA64(i%w, i/w, color.RGBA64{
			R: to16(planes[0][i]),
			G: to16(planes[1][i]),
			B: to16(planes[2][i]),
			A: to16(planes[3][i]),
		})
	}
	return res
}

func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	half := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*half+1)
	var sum float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func clamp(i, size int) int {
	if i < 0 {
		return 0
	} else if i >= size {
		return size - 1
	}
	return i
}

func to16(x float64) uint16 {
	return uint16(math.Max(0, math.Min(0xffff, math.Round(x))))
}
