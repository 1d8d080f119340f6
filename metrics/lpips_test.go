package metrics

import (
	"math"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/conv"
)

func testLPIPS() *FeatureLPIPS {
	c := anyvec64.CurrentCreator()
	layer := &conv.Conv{
		FilterCount:  4,
		FilterWidth:  3,
		FilterHeight: 3,
		StrideX:      1,
		StrideY:      1,
		InputWidth:   8,
		InputHeight:  8,
		InputDepth:   3,
	}
	layer.InitNormal(c, 0.5)
	weights := c.MakeVector(4)
	anyvec.Rand(weights, anyvec.Uniform, nil)
	return &FeatureLPIPS{
		Stages: []*LPIPSStage{
			{Layer: layer, Weights: weights},
			{Layer: degradation.Net{degradation.ReLU}, Weights: weights.Copy()},
		},
	}
}

func TestFeatureLPIPS(t *testing.T) {
	model := testLPIPS()
	r := rand.New(rand.NewSource(1))
	a := randomMetricImage(8, 8, 3, r)
	b := randomMetricImage(8, 8, 3, r)

	same, err := model.Distance(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(same) > 1e-12 {
		t.Errorf("expected zero distance but got %f", same)
	}
	d1, err := model.Distance(a, b)
	if err != nil {
		t.Fatal(err)
	}
	d2, _ := model.Distance(b, a)
	if d1 <= 0 || math.Abs(d1-d2) > 1e-12 {
		t.Errorf("unexpected distances %f and %f", d1, d2)
	}
}

func TestFeatureLPIPSAnySize(t *testing.T) {
	model := testLPIPS()
	r := rand.New(rand.NewSource(3))
	a := randomMetricImage(10, 10, 3, r)
	b := randomMetricImage(10, 10, 3, r)
	d, err := model.Distance(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if d <= 0 || math.IsNaN(d) {
		t.Errorf("unexpected distance %f", d)
	}
	if same, err := model.Distance(b, b); err != nil || math.Abs(same) > 1e-12 {
		t.Errorf("unexpected self distance %f (%v)", same, err)
	}

	// The original size must still work after resizing.
	a8 := randomMetricImage(8, 8, 3, r)
	if _, err := model.Distance(a8, a8); err != nil {
		t.Error(err)
	}

	tiny := randomMetricImage(2, 2, 3, r)
	if _, err := model.Distance(tiny, tiny); errors.Cause(err) != ErrShape {
		t.Errorf("expected ErrShape but got %v", err)
	}
}

func TestFeatureLPIPSSerialize(t *testing.T) {
	model := testLPIPS()
	path := filepath.Join(t.TempDir(), "lpips")
	if err := serializer.SaveAny(path, model); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadPerceptual(path, "")
	if err != nil {
		t.Fatal(err)
	}

	r := rand.New(rand.NewSource(2))
	a := randomMetricImage(8, 8, 3, r)
	b := randomMetricImage(8, 8, 3, r)
	expected, _ := model.Distance(a, b)
	actual, err := loaded.Distance(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if actual != expected {
		t.Errorf("expected %f but got %f", expected, actual)
	}
}

func TestStageDistance(t *testing.T) {
	a := []float64{3, 4, 0, 0}
	b := []float64{0, 0, 0, 2}
	actual, err := stageDistance(a, b, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	// Pixel 0: (0.6, 0.8) vs (0, 0); pixel 1: (0, 0) vs (0, 1).
	expected := (0.36 + 2*0.64 + 2*1) / 2
	if math.Abs(actual-expected) > 1e-8 {
		t.Errorf("expected %f but got %f", expected, actual)
	}
}

func TestPlanar32(t *testing.T) {
	img := Image{Width: 2, Height: 1, Channels: 2, Data: []float64{0, 1, 0.5, 0.25}}
	actual := planar32(img)
	expected := []float32{-1, 0, 1, -0.5}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}
