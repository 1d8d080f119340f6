package optim

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

var errVarsGradMismatch = errors.New("variable list does not match gradients")

// MarshalBinary encodes the iteration count and moment
// estimates in the order of a.Params.
func (a *Adam) MarshalBinary() ([]byte, error) {
	first, err := marshalGradient(a.Params, a.firstMoment)
	if err != nil {
		return nil, err
	}
	second, err := marshalGradient(a.Params, a.secondMoment)
	if err != nil {
		return nil, err
	}
	return serializer.SerializeAny(serializer.Int(a.iteration), serializer.Bytes(first),
		serializer.Bytes(second))
}

// UnmarshalBinary restores state produced by
// MarshalBinary.
//
// The receiver's Params must be set, and must match the
// parameters of the marshalled optimizer.
func (a *Adam) UnmarshalBinary(d []byte) error {
	var iter serializer.Int
	var first, second serializer.Bytes
	if err := serializer.DeserializeAny(d, &iter, &first, &second); err != nil {
		return essentials.AddCtx("unmarshal Adam", err)
	}
	firstGrad, err := unmarshalGradient(a.Params, first)
	if err != nil {
		return essentials.AddCtx("unmarshal Adam", err)
	}
	secondGrad, err := unmarshalGradient(a.Params, second)
	if err != nil {
		return essentials.AddCtx("unmarshal Adam", err)
	}
	a.iteration = int(iter)
	a.firstMoment = firstGrad
	a.secondMoment = secondGrad
	return nil
}

func marshalGradient(vars []*anydiff.Var, grad anydiff.Grad) ([]byte, error) {
	if grad == nil {
		return []byte{}, nil
	}
	if len(vars) != len(grad) {
		return nil, errVarsGradMismatch
	}
	var vecs []interface{}
	for _, v := range vars {
		vec, ok := grad[v]
		if !ok {
			return nil, errVarsGradMismatch
		}
		vecs = append(vecs, &anyvecsave.S{Vector: vec})
	}
	return serializer.SerializeAny(vecs...)
}

func unmarshalGradient(vars []*anydiff.Var, data []byte) (anydiff.Grad, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var dests []interface{}
	for range vars {
		dests = append(dests, new(*anyvecsave.S))
	}
	if err := serializer.DeserializeAny(data, dests...); err != nil {
		return nil, err
	}
	res := anydiff.Grad{}
	for i, v := range vars {
		vec := (*dests[i].(**anyvecsave.S)).Vector
		if vec.Len() != v.Vector.Len() {
			return nil, errors.New("bad vector length")
		} else if vec.Creator() != v.Vector.Creator() {
			return nil, errors.New("bad vector creator")
		}
		res[v] = vec
	}
	return res, nil
}
