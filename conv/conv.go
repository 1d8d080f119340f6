// Package conv provides the convolutional layers used by
// the generator and discriminator networks.
//
// All input and output tensors are row-major depth-minor,
// so a WxHxD image is stored as H rows of W pixels, each
// of which has D consecutive components.
package conv

import (
	"errors"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Conv
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConv)
}

// Conv is a convolutional layer.
//
// Padding is not part of the layer; put a Padding or a
// ReflectPadding in front of it instead.
type Conv struct {
	FilterCount  int
	FilterWidth  int
	FilterHeight int

	StrideX int
	StrideY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	// NoBias indicates that the layer has no biases.
	// In this case, Biases is nil.
	NoBias bool

	Filters *anydiff.Var
	Biases  *anydiff.Var

	Conver Conver
}

// DeserializeConv deserialize a Conv.
//
// The Conver is automatically set.
func DeserializeConv(d []byte) (*Conv, error) {
	var inW, inH, inD, fW, fH, sX, sY, noBias serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inW, &inH, &inD, &fW, &fH, &sX, &sY,
		&noBias, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Conv", err)
	}
	res := Conv{
		FilterCount:  f.Vector.Len() / int(fW*fH*inD),
		FilterWidth:  int(fW),
		FilterHeight: int(fH),
		StrideX:      int(sX),
		StrideY:      int(sY),

		InputWidth:  int(inW),
		InputHeight: int(inH),
		InputDepth:  int(inD),

		NoBias:  noBias == 1,
		Filters: anydiff.NewVar(f.Vector),
	}
	if !res.NoBias {
		res.Biases = anydiff.NewVar(b.Vector)
	}
	res.Conver = CurrentConverMaker()(res)
	return &res, nil
}

// InitNormal initializes the filters from a normal
// distribution with the given standard deviation and sets
// the Conver.
//
// Biases, if the layer has any, are drawn uniformly from
// [-1/sqrt(fanIn), 1/sqrt(fanIn)].
func (c *Conv) InitNormal(cr anyvec.Creator, stddev float64) {
	c.InitZero(cr)

	anyvec.Rand(c.Filters.Vector, anyvec.Normal, nil)
	c.Filters.Vector.Scale(cr.MakeNumeric(stddev))

	if c.Biases != nil {
		bound := 1 / math.Sqrt(float64(c.FilterWidth*c.FilterHeight*c.InputDepth))
		anyvec.Rand(c.Biases.Vector, anyvec.Uniform, nil)
		c.Biases.Vector.Scale(cr.MakeNumeric(2 * bound))
		c.Biases.Vector.AddScalar(cr.MakeNumeric(-bound))
	}
}

// InitZero initializes the layer to zero and sets the
// Conver.
func (c *Conv) InitZero(cr anyvec.Creator) {
	filterSize := c.FilterWidth * c.FilterHeight * c.InputDepth
	c.Filters = anydiff.NewVar(cr.MakeVector(filterSize * c.FilterCount))
	if c.NoBias {
		c.Biases = nil
	} else {
		c.Biases = anydiff.NewVar(cr.MakeVector(c.FilterCount))
	}
	c.Conver = CurrentConverMaker()(*c)
}

// OutputWidth returns the width of the output tensor.
func (c *Conv) OutputWidth() int {
	w := 1 + (c.InputWidth-c.FilterWidth)/c.StrideX
	if w < 0 {
		return 0
	}
	return w
}

// OutputHeight returns the height of the output tensor.
func (c *Conv) OutputHeight() int {
	h := 1 + (c.InputHeight-c.FilterHeight)/c.StrideY
	if h < 0 {
		return 0
	}
	return h
}

// OutputDepth returns the depth of the output tensor.
func (c *Conv) OutputDepth() int {
	return c.FilterCount
}

// Apply applies the layer to an input tensor using the
// Conver.
//
// The layer must have been initialized.
func (c *Conv) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	return c.Conver.Apply(in, batchSize)
}

// Parameters returns the layer's parameters.
// The filters come before the biases in the resulting
// slice.
//
// If the layer is uninitialized, the result is nil.
func (c *Conv) Parameters() []*anydiff.Var {
	if c.Filters == nil {
		return nil
	}
	if c.Biases == nil {
		return []*anydiff.Var{c.Filters}
	}
	return []*anydiff.Var{c.Filters, c.Biases}
}

// SerializerType returns the unique ID used to serialize
// a Conv with the serializer package.
func (c *Conv) SerializerType() string {
	return "github.com/ezgor/degradation-model/conv.Conv"
}

// Serialize serializes the layer.
//
// If the layer was not yet initialized, this fails.
func (c *Conv) Serialize() ([]byte, error) {
	if c.Filters == nil || (c.Biases == nil && !c.NoBias) {
		return nil, errors.New("cannot serialize uninitialized Conv")
	}
	noBias := serializer.Int(0)
	biases := c.Filters.Vector.Creator().MakeVector(0)
	if c.NoBias {
		noBias = 1
	} else {
		biases = c.Biases.Vector
	}
	return serializer.SerializeAny(
		serializer.Int(c.InputWidth),
		serializer.Int(c.InputHeight),
		serializer.Int(c.InputDepth),
		serializer.Int(c.FilterWidth),
		serializer.Int(c.FilterHeight),
		serializer.Int(c.StrideX),
		serializer.Int(c.StrideY),
		noBias,
		&anyvecsave.S{Vector: c.Filters.Vector},
		&anyvecsave.S{Vector: biases},
	)
}
