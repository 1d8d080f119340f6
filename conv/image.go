package conv

import (
	"fmt"
	"image"
	"image/color"

	"github.com/unixpickle/anyvec"

	degradation "github.com/ezgor/degradation-model"
)

// ImageToTensor converts an image to a depth-minor tensor
// with values in [0, 1].
//
// With one channel, pixels are converted to grayscale.
// With three, they are converted to RGB.
func ImageToTensor(c anyvec.Creator, img image.Image, channels int) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(ImageToFloats(img, channels)))
}

// ImageToFloats is like ImageToTensor, but it produces a
// slice of floats.
func ImageToFloats(img image.Image, channels int) []float64 {
	if channels != 1 && channels != 3 {
		panic(fmt.Sprintf("unsupported channel count: %d", channels))
	}
	b := img.Bounds()
	res := make([]float64, 0, b.Dx()*b.Dy()*channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := img.At(x, y)
			if channels == 1 {
				gray := color.Gray16Model.Convert(px).(color.Gray16)
				res = append(res, float64(gray.Y)/0xffff)
				continue
			}
			r, g, b, _ := px.RGBA()
			res = append(res, float64(r)/0xffff, float64(g)/0xffff, float64(b)/0xffff)
		}
	}
	return res
}

// TensorToImage converts a depth-minor tensor with one or
// three channels into an image.
// Values are clipped to [0, 1].
func TensorToImage(width, height, channels int, v anyvec.Vector) image.Image {
	return FloatsToImage(width, height, channels, degradation.Floats(v))
}

// FloatsToImage is like TensorToImage, but it reads a
// slice of floats.
func FloatsToImage(width, height, channels int, data []float64) image.Image {
	if len(data) != width*height*channels {
		panic("incorrect tensor size")
	}
	rect := image.Rect(0, 0, width, height)
	switch channels {
	case 1:
		res := image.NewGray(rect)
		for i, x := range data {
			res.Pix[i] = toByte(x)
		}
		return res
	case 3:
		res := image.NewRGBA(rect)
		for i := 0; i < width*height; i++ {
			res.Pix[i*4] = toByte(data[i*3])
			res.Pix[i*4+1] = toByte(data[i*3+1])
			res.Pix[i*4+2] = toByte(data[i*3+2])
			res.Pix[i*4+3] = 0xff
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported channel count: %d", channels))
	}
}

func toByte(x float64) uint8 {
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	return uint8(x*0xff + 0.5)
}
