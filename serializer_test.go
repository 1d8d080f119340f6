package degradation

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func TestActivationSerialize(t *testing.T) {
	a1 := Tanh
	a2 := Sigmoid
	a3 := ReLU
	data, err := serializer.SerializeAny(a1, a2, a3)
	if err != nil {
		t.Fatal(err)
	}
	var newA1, newA2, newA3 Activation
	err = serializer.DeserializeAny(data, &newA1, &newA2, &newA3)
	if err != nil {
		t.Fatal(err)
	}
	if newA1 != a1 {
		t.Error("Tanh failed")
	}
	if newA2 != a2 {
		t.Error("Sigmoid failed")
	}
	if newA3 != a3 {
		t.Error("ReLU failed")
	}
}

func TestLeakyReLUSerialize(t *testing.T) {
	l := &LeakyReLU{Slope: 0.2}
	data, err := serializer.SerializeAny(l)
	if err != nil {
		t.Fatal(err)
	}
	var newL *LeakyReLU
	if err := serializer.DeserializeAny(data, &newL); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(l, newL) {
		t.Fatal("incorrect result")
	}
}

func TestFCSerialize(t *testing.T) {
	fc := NewFC(anyvec32.DefaultCreator{}, 7, 5)
	data, err := serializer.SerializeAny(fc)
	if err != nil {
		t.Fatal(err)
	}
	var newFC *FC
	if err := serializer.DeserializeAny(data, &newFC); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fc, newFC) {
		t.Fatal("incorrect result")
	}
}

func TestNetSerialize(t *testing.T) {
	net := Net{Tanh, &LeakyReLU{Slope: 0.3}, &Frozen{Layer: Sigmoid}}
	data, err := serializer.SerializeAny(net)
	if err != nil {
		t.Fatal(err)
	}
	var net1 Net
	if err := serializer.DeserializeAny(data, &net1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(net, net1) {
		t.Fatal("networks not equal")
	}
}

func TestFrozenParameters(t *testing.T) {
	fc := NewFC(anyvec32.DefaultCreator{}, 3, 2)
	net := Net{&Frozen{Layer: fc}, Sigmoid}
	if len(net.Parameters()) != 0 {
		t.Errorf("expected no parameters but got %d", len(net.Parameters()))
	}
	if len(AllParameters(fc, net)) != 2 {
		t.Error("unexpected parameter count")
	}
}
