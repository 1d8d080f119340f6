package metrics

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/ezgor/degradation-model/imgproc"
)

// onnxLoader is set when the binary is built with ONNX
// Runtime support.
var onnxLoader func(libPath, modelPath string) (Perceptual, error)

// LoadPerceptual loads a perceptual model from a file.
//
// Files ending in ".onnx" need a binary built with the
// ort tag; any other file is read as a FeatureLPIPS.
func LoadPerceptual(path, ortLibrary string) (Perceptual, error) {
	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		if onnxLoader == nil {
			return nil, errors.Errorf("load %s: built without onnxruntime support", path)
		}
		return onnxLoader(ortLibrary, path)
	}
	return LoadFeatureLPIPS(path)
}

// planar32 converts an image to the centered [C,H,W]
// float32 layout of an ONNX graph input.
func planar32(img Image) []float32 {
	planar := imgproc.ToPlanar(centered(img.Data), img.Width, img.Height, img.Channels)
	res := make([]float32, len(planar))
	for i, x := range planar {
		res[i] = float32(x)
	}
	return res
}
