package imgproc

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Resize scales an image to w by h pixels with bicubic
// (Catmull-Rom) interpolation.
func Resize(img image.Image, w, h int) image.Image {
	dst := image.NewRGBA64(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
