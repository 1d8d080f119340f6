package gan

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/config"
)

// testConfig returns a small single-channel configuration
// with 34x34 ground truth and 17x17 low quality images.
func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ImageSize = 34
	cfg.Channels = 1
	cfg.BatchSize = 2
	cfg.Device = "cpu64"
	cfg.Seed = 1337
	cfg.WeightsPath = filepath.Join(dir, "weights")
	cfg.ModelsPath = filepath.Join(dir, "models")
	return cfg
}

func testSession(t *testing.T, cfg *config.Config) (*Session, *bytes.Buffer) {
	dev, err := NewDevice(cfg.Device, cfg.NGPU)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(cfg, dev)
	if err != nil {
		t.Fatal(err)
	}
	s.Logger.SetOutput(io.Discard)
	out := &bytes.Buffer{}
	s.Out = out
	return s, out
}

// freezeDiscriminator replaces the discriminator with one
// that always outputs 0.5 and has no parameters.
func freezeDiscriminator(s *Session) {
	d := s.Discriminator
	fc := d[len(d)-2].(*degradation.FC)
	c := s.Device.Creator
	fc.Weights.Vector.Scale(c.MakeNumeric(0))
	fc.Biases.Vector.Scale(c.MakeNumeric(0))
	s.setModels(s.Generator, degradation.Net{&degradation.Frozen{Layer: d}})
}

func randomTensor(c anyvec.Creator, size int) anyvec.Vector {
	res := c.MakeVector(size)
	anyvec.Rand(res, anyvec.Uniform, nil)
	return res
}

func randomGray(r *rand.Rand, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(r.Intn(256))})
		}
	}
	return img
}

type memorySet struct {
	GTs []image.Image
	LQs []image.Image
}

func (m *memorySet) Len() int {
	return len(m.GTs)
}

func (m *memorySet) LoadImages(i int) (gt, lq image.Image, err error) {
	return m.GTs[i], m.LQs[i], nil
}

// stripNoise is a generator that returns its input
// without the noise channel.
type stripNoise struct {
	Channels int
}

func (s *stripNoise) Apply(in anydiff.Res, n int) anydiff.Res {
	data := degradation.Floats(in.Output())
	var res []float64
	for i, x := range data {
		if i%(s.Channels+1) != s.Channels {
			res = append(res, x)
		}
	}
	return anydiff.NewConst(degradation.FromFloats(in.Output().Creator(), res))
}

// constLayer outputs a fixed probability per sample.
type constLayer struct {
	Value float64
}

func (c *constLayer) Apply(in anydiff.Res, n int) anydiff.Res {
	cr := in.Output().Creator()
	res := cr.MakeVector(n)
	res.AddScalar(cr.MakeNumeric(c.Value))
	return anydiff.NewConst(res)
}

func outputFloats(n degradation.Layer, in anyvec.Vector) []float64 {
	return degradation.Floats(n.Apply(anydiff.NewConst(in), 1).Output())
}
