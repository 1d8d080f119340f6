package degradation

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var f Frozen
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFrozen)
}

// Frozen wraps a Layer and reports no parameters of its
// own, thus effectively freezing the parameters of the
// layer.
//
// Optimizers built from the parameters of a Frozen layer
// have nothing to update.
type Frozen struct {
	Layer Layer
}

// DeserializeFrozen deserializes a Frozen.
func DeserializeFrozen(d []byte) (*Frozen, error) {
	var f Frozen
	if err := serializer.DeserializeAny(d, &f.Layer); err != nil {
		return nil, essentials.AddCtx("deserialize Frozen", err)
	}
	return &f, nil
}

// Apply applies the wrapped layer.
func (f *Frozen) Apply(in anydiff.Res, n int) anydiff.Res {
	return f.Layer.Apply(in, n)
}

// Parameters always returns nil.
func (f *Frozen) Parameters() []*anydiff.Var {
	return nil
}

// SerializerType returns the unique ID used to serialize
// a Frozen with the serializer package.
func (f *Frozen) SerializerType() string {
	return "github.com/ezgor/degradation-model.Frozen"
}

// Serialize serializes the Frozen.
func (f *Frozen) Serialize() ([]byte, error) {
	return serializer.SerializeAny(f.Layer)
}
