package metrics

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/conv"
)

func init() {
	var f FeatureLPIPS
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFeatureLPIPS)
}

// A Perceptual metric measures the perceptual distance
// between two images.
// Lower is more similar.
type Perceptual interface {
	Distance(a, b Image) (float64, error)
}

// An LPIPSStage is one block of a feature extractor,
// applied to the features of the previous stage.
type LPIPSStage struct {
	Layer degradation.Layer

	// Weights holds one non-negative weight per output
	// channel of the stage.
	Weights anyvec.Vector
}

// FeatureLPIPS is a learned perceptual metric built from
// a stack of feature extractors.
//
// Each stage's features are normalized to unit length
// along the channel axis, the squared differences are
// weighted per channel and summed, and the result is
// averaged spatially.
// The distance is the sum over every stage.
//
// Images of any size are accepted: the convolutional
// layers of the stages are rebuilt for each new size.
type FeatureLPIPS struct {
	Stages []*LPIPSStage

	lock  sync.Mutex
	sized map[[2]int][]degradation.Layer
}

// DeserializeFeatureLPIPS deserializes a FeatureLPIPS.
func DeserializeFeatureLPIPS(d []byte) (*FeatureLPIPS, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize FeatureLPIPS", err)
	}
	if len(slice)%2 != 0 {
		return nil, errors.New("deserialize FeatureLPIPS: odd number of objects")
	}
	res := &FeatureLPIPS{}
	for i := 0; i < len(slice); i += 2 {
		layer, ok := slice[i].(degradation.Layer)
		if !ok {
			return nil, errors.Errorf("deserialize FeatureLPIPS: not a Layer: %T", slice[i])
		}
		weights, ok := slice[i+1].(*anyvecsave.S)
		if !ok {
			return nil, errors.Errorf("deserialize FeatureLPIPS: not a vector: %T",
				slice[i+1])
		}
		res.Stages = append(res.Stages, &LPIPSStage{Layer: layer, Weights: weights.Vector})
	}
	return res, nil
}

// LoadFeatureLPIPS reads a FeatureLPIPS from a file.
func LoadFeatureLPIPS(path string) (*FeatureLPIPS, error) {
	var res *FeatureLPIPS
	if err := serializer.LoadAny(path, &res); err != nil {
		return nil, errors.Wrap(err, "load perceptual model")
	}
	return res, nil
}

// Distance computes the perceptual distance between two
// images.
func (f *FeatureLPIPS) Distance(a, b Image) (float64, error) {
	if err := checkShapes(a, b); err != nil {
		return 0, err
	}
	if len(f.Stages) == 0 {
		return 0, errors.New("perceptual model has no stages")
	}
	layers, err := f.layersForSize(a.Width, a.Height)
	if err != nil {
		return 0, err
	}
	c := f.Stages[0].Weights.Creator()
	featA := anydiff.Res(anydiff.NewConst(degradation.FromFloats(c, centered(a.Data))))
	featB := anydiff.Res(anydiff.NewConst(degradation.FromFloats(c, centered(b.Data))))

	var total float64
	for i, stage := range f.Stages {
		featA = layers[i].Apply(featA, 1)
		featB = layers[i].Apply(featB, 1)
		weights := degradation.Floats(stage.Weights)
		d, err := stageDistance(degradation.Floats(featA.Output()),
			degradation.Floats(featB.Output()), weights)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// layersForSize returns the stage layers adapted to WxH
// images.
func (f *FeatureLPIPS) layersForSize(w, h int) ([]degradation.Layer, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	key := [2]int{w, h}
	if layers, ok := f.sized[key]; ok {
		return layers, nil
	}
	var layers []degradation.Layer
	for i, stage := range f.Stages {
		var layer degradation.Layer
		layer, w, h = conv.Resize(stage.Layer, w, h)
		if w < 1 || h < 1 {
			return nil, errors.Wrapf(ErrShape, "image too small for perceptual stage %d", i)
		}
		layers = append(layers, layer)
	}
	if f.sized == nil {
		f.sized = map[[2]int][]degradation.Layer{}
	}
	f.sized[key] = layers
	return layers, nil
}

// SerializerType returns the unique ID used to serialize
// a FeatureLPIPS with the serializer package.
func (f *FeatureLPIPS) SerializerType() string {
	return "github.com/ezgor/degradation-model/metrics.FeatureLPIPS"
}

// Serialize serializes the stages and their weights.
func (f *FeatureLPIPS) Serialize() ([]byte, error) {
	var slice []serializer.Serializer
	for _, stage := range f.Stages {
		s, ok := stage.Layer.(serializer.Serializer)
		if !ok {
			return nil, errors.Errorf("not a Serializer: %T", stage.Layer)
		}
		slice = append(slice, s, &anyvecsave.S{Vector: stage.Weights})
	}
	return serializer.SerializeSlice(slice)
}

func stageDistance(a, b, weights []float64) (float64, error) {
	depth := len(weights)
	if len(a) != len(b) || depth == 0 || len(a)%depth != 0 {
		return 0, errors.Wrap(ErrShape, "feature size does not match weights")
	}
	pixels := len(a) / depth
	var sum float64
	for p := 0; p < pixels; p++ {
		pa := a[p*depth : (p+1)*depth]
		pb := b[p*depth : (p+1)*depth]
		normA, normB := unitScale(pa), unitScale(pb)
		for z, w := range weights {
			d := pa[z]*normA - pb[z]*normB
			sum += w * d * d
		}
	}
	return sum / float64(pixels), nil
}

func unitScale(v []float64) float64 {
	var sq float64
	for _, x := range v {
		sq += x * x
	}
	return 1 / (math.Sqrt(sq) + 1e-10)
}

// centered maps [0, 1] values to [-1, 1].
func centered(data []float64) []float64 {
	res := make([]float64, len(data))
	for i, x := range data {
		res[i] = 2*x - 1
	}
	return res
}
