// Package metrics implements the image quality metrics
// used to evaluate a degradation model.
//
// Every metric compares two images with values in [0, 1].
package metrics

import (
	"image"
	"strings"

	"github.com/pkg/errors"

	"github.com/ezgor/degradation-model/conv"
)

// ErrShape is returned when two images cannot be compared
// because their dimensions differ.
var ErrShape = errors.New("image shapes differ")

// An Image is a depth-minor tensor of pixel values in
// [0, 1].
type Image struct {
	Width    int
	Height   int
	Channels int
	Data     []float64
}

// FromImage converts an image with the given number of
// channels.
func FromImage(img image.Image, channels int) Image {
	return Image{
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Channels: channels,
		Data:     conv.ImageToFloats(img, channels),
	}
}

func checkShapes(a, b Image) error {
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels {
		return errors.Wrapf(ErrShape, "%dx%dx%d vs %dx%dx%d", a.Width, a.Height,
			a.Channels, b.Width, b.Height, b.Channels)
	}
	if len(a.Data) != a.Width*a.Height*a.Channels || len(b.Data) != len(a.Data) {
		return errors.Wrap(ErrShape, "data length does not match dimensions")
	}
	return nil
}

// Flags is a set of requested metrics.
type Flags int

const (
	PSNRFlag Flags = 1 << iota
	SSIMFlag
	LPIPSFlag

	AllFlags = PSNRFlag | SSIMFlag | LPIPSFlag
)

// ParseFlags parses a comma-separated list of metric
// names, such as "PSNR,SSIM".
// Names are case-insensitive and an empty string yields
// no flags.
func ParseFlags(s string) (Flags, error) {
	var res Flags
	for _, name := range strings.Split(s, ",") {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "":
		case "PSNR":
			res |= PSNRFlag
		case "SSIM":
			res |= SSIMFlag
		case "LPIPS":
			res |= LPIPSFlag
		default:
			return 0, errors.Errorf("unknown metric: %s", name)
		}
	}
	return res, nil
}

// Has checks whether every metric in o is in f.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// String returns the comma-separated metric names.
func (f Flags) String() string {
	var names []string
	for _, x := range []struct {
		flag Flags
		name string
	}{{PSNRFlag, "PSNR"}, {SSIMFlag, "SSIM"}, {LPIPSFlag, "LPIPS"}} {
		if f.Has(x.flag) {
			names = append(names, x.name)
		}
	}
	return strings.Join(names, ",")
}
