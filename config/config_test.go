package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/ezgor/degradation-model/metrics"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.ImageSize != 192 || c.Channels != 3 || c.BatchSize != 32 || c.Epochs != 1 {
		t.Errorf("unexpected sizes: %+v", c)
	}
	if c.LR != 0.0003 || c.MSEWeight != 500 {
		t.Errorf("unexpected rates: lr=%f mse=%f", c.LR, c.MSEWeight)
	}
	if c.WeightsPath != "./weights/default" || c.ModelsPath != "./saved_models/default" {
		t.Errorf("unexpected paths: %s %s", c.WeightsPath, c.ModelsPath)
	}
	if err := c.Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"batch_size": 4, "lr": 0.001, "metrics": "PSNR,SSIM"}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.BatchSize != 4 || c.LR != 0.001 {
		t.Errorf("options not loaded: %+v", c)
	}
	if c.MSEWeight != 500 || c.ImageSize != 192 {
		t.Errorf("defaults not kept: %+v", c)
	}
	flags, err := c.Flags()
	if err != nil {
		t.Fatal(err)
	}
	if flags != metrics.PSNRFlag|metrics.SSIMFlag {
		t.Errorf("unexpected flags: %v", flags)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for bad JSON")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	c := Default()
	c.Scale = 3
	c.ImageSize = 96
	c.Seed = 1337
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	c1, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *c1 != *c {
		t.Errorf("expected %+v but got %+v", c, c1)
	}
}

func TestRegisterFlags(t *testing.T) {
	c := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	err := fs.Parse([]string{"-batch", "8", "-lr", "0.01", "-device", "cpu64", "-metrics", "LPIPS"})
	if err != nil {
		t.Fatal(err)
	}
	if c.BatchSize != 8 || c.LR != 0.01 || c.Device != "cpu64" || c.Metrics != "LPIPS" {
		t.Errorf("flags not applied: %+v", c)
	}
	if c.ImageSize != 192 {
		t.Errorf("default changed: %d", c.ImageSize)
	}
}

func TestValidate(t *testing.T) {
	cases := []func(c *Config){
		func(c *Config) { c.Channels = 2 },
		func(c *Config) { c.Scale = 0 },
		func(c *Config) { c.ImageSize = 193 },
		func(c *Config) { c.BatchSize = 0 },
		func(c *Config) { c.LR = 0 },
		func(c *Config) { c.MSEWeight = -1 },
		func(c *Config) { c.Device = "cuda" },
		func(c *Config) { c.NGPU = 0 },
		func(c *Config) { c.ValRatio = 1 },
		func(c *Config) { c.Metrics = "FID" },
		func(c *Config) { c.ImageSize = 32 },
	}
	for i, mutate := range cases {
		c := Default()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
