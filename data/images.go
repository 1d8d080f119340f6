package data

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

func isImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// LoadImage decodes an image file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load image")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// LoadImages decodes both images of the i-th pair.
func (p PairList) LoadImages(i int) (gt, lq image.Image, err error) {
	gt, err = LoadImage(p[i].GT)
	if err != nil {
		return nil, nil, err
	}
	lq, err = LoadImage(p[i].LQ)
	if err != nil {
		return nil, nil, err
	}
	return gt, lq, nil
}
