package gan

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	degradation "github.com/ezgor/degradation-model"
)

func TestWeightsRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	s1, _ := testSession(t, cfg)
	c := s1.Device.Creator

	// Move the running statistics away from their defaults.
	if _, _, err := s1.Step(randomTensor(c, 34*34), randomTensor(c, 17*17)); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	gPath, dPath := filepath.Join(dir, "netG_0"), filepath.Join(dir, "netD_0")
	if err := s1.SaveWeights(gPath, dPath); err != nil {
		t.Fatal(err)
	}

	cfg2 := *cfg
	cfg2.Seed = 42
	s2, _ := testSession(t, &cfg2)
	if err := s2.LoadWeights(gPath, dPath); err != nil {
		t.Fatal(err)
	}
	s1.SetTraining(false)

	gIn := randomTensor(c, 34*34*2)
	if !reflect.DeepEqual(outputFloats(s1.Generator, gIn), outputFloats(s2.Generator, gIn)) {
		t.Error("generator outputs differ")
	}
	dIn := randomTensor(c, 17*17)
	if !reflect.DeepEqual(outputFloats(s1.Discriminator, dIn), outputFloats(s2.Discriminator, dIn)) {
		t.Error("discriminator outputs differ")
	}
	if !batchNorms(s2.Discriminator)[0].Inference {
		t.Error("loaded discriminator is not in inference mode")
	}
	if s2.OptG.Params[0] != s2.Generator.Parameters()[0] {
		t.Error("optimizer not rebuilt for loaded generator")
	}
}

func TestWeightsMismatch(t *testing.T) {
	cfg := testConfig(t)
	s1, _ := testSession(t, cfg)
	dir := t.TempDir()
	gPath, dPath := filepath.Join(dir, "netG_0"), filepath.Join(dir, "netD_0")
	if err := s1.SaveWeights(gPath, dPath); err != nil {
		t.Fatal(err)
	}

	cfg2 := *cfg
	cfg2.Channels = 3
	s2, _ := testSession(t, &cfg2)
	if err := s2.LoadWeights(gPath, dPath); errors.Cause(err) != ErrConfigMismatch {
		t.Errorf("expected ErrConfigMismatch but got %v", err)
	}

	cfg3 := *cfg
	cfg3.ImageSize = 36
	s3, _ := testSession(t, &cfg3)
	if err := s3.LoadWeights(gPath, dPath); errors.Cause(err) != ErrConfigMismatch {
		t.Errorf("expected ErrConfigMismatch but got %v", err)
	}

	if err := s2.LoadWeights(dPath, gPath); errors.Cause(err) != ErrConfigMismatch {
		t.Errorf("expected ErrConfigMismatch for swapped files but got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	s1, _ := testSession(t, cfg)
	c := s1.Device.Creator
	if _, _, err := s1.Step(randomTensor(c, 34*34), randomTensor(c, 17*17)); err != nil {
		t.Fatal(err)
	}
	s1.Epoch = 2
	s1.LR = 0.001
	s1.TrainLosses = Losses{G: []float64{1, 2}, D: []float64{3, 4}}
	s1.Validation.G = []float64{5}
	s1.Validation.D = []float64{6}
	s1.Validation.PSNR = []float64{30}
	s1.Validation.SSIM = []float64{0}
	s1.Validation.LPIPS = []float64{0}
	s1.Validation.Time = []float64{0.5}
	s1.Validation.Baselines[1].SSIM = Score{Value: 0.75, Set: true}

	path := filepath.Join(t.TempDir(), "mod_2")
	if err := s1.Save(path); err != nil {
		t.Fatal(err)
	}
	s2, err := LoadSession(path, nil, s1.Device)
	if err != nil {
		t.Fatal(err)
	}
	if s2.Epoch != 2 || s2.LR != 0.001 {
		t.Errorf("unexpected epoch %d and rate %g", s2.Epoch, s2.LR)
	}
	if !reflect.DeepEqual(s2.TrainLosses, s1.TrainLosses) {
		t.Errorf("expected %v but got %v", s1.TrainLosses, s2.TrainLosses)
	}
	if !reflect.DeepEqual(s2.Validation, s1.Validation) {
		t.Errorf("expected %+v but got %+v", s1.Validation, s2.Validation)
	}
	if *s2.Config != *s1.Config {
		t.Errorf("expected config %+v but got %+v", s1.Config, s2.Config)
	}
	if s2.OptG.Iteration() != 1 || s2.OptD.Iteration() != 1 {
		t.Error("optimizer state not restored")
	}
	p1, p2 := s1.Generator.Parameters(), s2.Generator.Parameters()
	for i := range p1 {
		if !reflect.DeepEqual(degradation.Floats(p1[i].Vector), degradation.Floats(p2[i].Vector)) {
			t.Errorf("generator parameter %d differs", i)
		}
	}

	sameRate := s2.Schedule.Rate(3)
	if expected := cfg.LR * 0.75 * 0.75 * 0.75; sameRate-expected > 1e-12 || expected-sameRate > 1e-12 {
		t.Errorf("expected schedule rate %g but got %g", expected, sameRate)
	}

	other := *cfg
	other.Channels = 3
	if _, err := LoadSession(path, &other, s1.Device); errors.Cause(err) != ErrConfigMismatch {
		t.Errorf("expected ErrConfigMismatch but got %v", err)
	}
}

func TestSaveLeavesNoTemp(t *testing.T) {
	s, _ := testSession(t, testConfig(t))
	dir := t.TempDir()
	path := filepath.Join(dir, "mod_0")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0] != path {
		t.Errorf("unexpected files: %v", matches)
	}
}
