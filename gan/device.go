package gan

import (
	"runtime"
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"

	"github.com/ezgor/degradation-model/conv"
)

// A Device binds models and tensors to a numeric backend.
type Device struct {
	Name    string
	Creator anyvec.Creator

	// Workers is the number of goroutines a convolution
	// may use. More than one splits each convolution's
	// matrix products between them, so a single pair
	// benefits as well as a batch.
	Workers int
}

// NewDevice creates the device with the given name.
//
// Supported names are "cpu" (float32) and "cpu64"
// (float64).
func NewDevice(name string, workers int) (*Device, error) {
	var c anyvec.Creator
	switch name {
	case "cpu":
		c = anyvec32.CurrentCreator()
	case "cpu64":
		c = anyvec64.CurrentCreator()
	default:
		return nil, errors.Errorf("unknown device: %s", name)
	}
	if workers < 1 {
		workers = 1
	}
	return &Device{Name: name, Creator: c, Workers: workers}, nil
}

// Activate installs the device's convolution strategy.
// It affects layers created or deserialized afterwards.
func (d *Device) Activate() {
	if d.Workers > 1 {
		conv.SetConverMaker(conv.ParallelConverMaker(d.Workers))
	} else {
		conv.SetConverMaker(conv.MakeDefaultConver)
	}
}

// ClearCache releases memory held by intermediate
// results of previous computations.
func (d *Device) ClearCache() {
	runtime.GC()
	debug.FreeOSMemory()
}
