package degradation

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
	var l LeakyReLU
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLeakyReLU)
}

// DefaultLeakySlope is the negative slope used by a
// LeakyReLU with a zero Slope.
const DefaultLeakySlope = 0.01

// An Activation is a standard activation function.
type Activation int

// These are standard activation function.
const (
	Tanh Activation = iota
	Sigmoid
	ReLU
)

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	a := Activation(d[0])
	if a > ReLU {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", a)
	}
	return a, nil
}

// Apply applies the activation function.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/ezgor/degradation-model.Activation"
}

// Serialize serializes the activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}

// LeakyReLU is a rectifier which lets a small, scaled
// portion of negative inputs through:
//
//     f(x) = max(x, 0) + Slope*min(x, 0)
type LeakyReLU struct {
	// Slope is the negative slope.
	// If it is 0, DefaultLeakySlope is used.
	Slope float64
}

// DeserializeLeakyReLU deserializes a LeakyReLU.
func DeserializeLeakyReLU(d []byte) (*LeakyReLU, error) {
	var slope serializer.Float64
	if err := serializer.DeserializeAny(d, &slope); err != nil {
		return nil, essentials.AddCtx("deserialize LeakyReLU", err)
	}
	return &LeakyReLU{Slope: float64(slope)}, nil
}

// Apply applies the rectifier component-wise.
func (l *LeakyReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	slope := l.slope()
	c := in.Output().Creator()
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		return anydiff.Add(
			anydiff.Scale(in, c.MakeNumeric(slope)),
			anydiff.Scale(anydiff.ClipPos(in), c.MakeNumeric(1-slope)),
		)
	})
}

// SerializerType returns the unique ID used to serialize
// a LeakyReLU with the serializer package.
func (l *LeakyReLU) SerializerType() string {
	return "github.com/ezgor/degradation-model.LeakyReLU"
}

// Serialize serializes the LeakyReLU.
func (l *LeakyReLU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(serializer.Float64(l.Slope))
}

func (l *LeakyReLU) slope() float64 {
	if l.Slope == 0 {
		return DefaultLeakySlope
	}
	return l.Slope
}
