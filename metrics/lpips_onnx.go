//go:build ort

package metrics

import (
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once
var ortInitErr error

func init() {
	onnxLoader = func(libPath, modelPath string) (Perceptual, error) {
		p, err := NewONNXPerceptual(libPath, modelPath)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// ONNXPerceptual evaluates an exported LPIPS graph with
// ONNX Runtime.
//
// The graph takes two NCHW float32 inputs scaled to
// [-1, 1] and produces a single distance.
type ONNXPerceptual struct {
	session *ort.DynamicAdvancedSession
	lock    sync.Mutex
}

// NewONNXPerceptual loads an LPIPS graph.
// The shared library path is only used by the first call.
func NewONNXPerceptual(libPath, modelPath string) (*ONNXPerceptual, error) {
	ortInit.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, errors.Wrap(ortInitErr, "initialize onnxruntime")
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrap(err, "inspect perceptual model")
	}
	if len(inputs) != 2 || len(outputs) != 1 {
		return nil, errors.Errorf("perceptual model has %d inputs and %d outputs",
			len(inputs), len(outputs))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "session options")
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name, inputs[1].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "create perceptual session")
	}
	return &ONNXPerceptual{session: session}, nil
}

// Distance runs the graph on a pair of images.
func (o *ONNXPerceptual) Distance(a, b Image) (float64, error) {
	if err := checkShapes(a, b); err != nil {
		return 0, err
	}
	shape := ort.NewShape(1, int64(a.Channels), int64(a.Height), int64(a.Width))
	inA, err := ort.NewTensor(shape, planar32(a))
	if err != nil {
		return 0, errors.Wrap(err, "input tensor")
	}
	defer inA.Destroy()
	inB, err := ort.NewTensor(shape, planar32(b))
	if err != nil {
		return 0, errors.Wrap(err, "input tensor")
	}
	defer inB.Destroy()

	o.lock.Lock()
	defer o.lock.Unlock()
	outputs := make([]ort.Value, 1)
	if err := o.session.Run([]ort.Value{inA, inB}, outputs); err != nil {
		return 0, errors.Wrap(err, "run perceptual model")
	}
	defer outputs[0].Destroy()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, errors.Errorf("unsupported output tensor type %T", outputs[0])
	}
	data := t.GetData()
	if len(data) == 0 {
		return 0, errors.New("empty perceptual output")
	}
	return float64(data[0]), nil
}

// Destroy releases the session.
func (o *ONNXPerceptual) Destroy() error {
	return o.session.Destroy()
}
