// Package config holds the options of a training or
// evaluation run.
package config

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/pkg/errors"

	"github.com/ezgor/degradation-model/metrics"
)

// MinLowQualitySize is the smallest low quality image
// side the discriminator accepts.
const MinLowQualitySize = 17

// Config configures a training session.
type Config struct {
	// ImageSize is the width and height of ground truth
	// training images.
	ImageSize int `json:"image_size"`
	Channels  int `json:"channels"`

	// Scale is the ratio between ground truth and low
	// quality image sizes.
	Scale int `json:"scale"`

	BatchSize int     `json:"batch_size"`
	LR        float64 `json:"lr"`
	MSEWeight float64 `json:"mse_weight"`
	Epochs    int     `json:"epochs"`

	// Device is "cpu" (float32) or "cpu64" (float64).
	Device string `json:"device"`

	// NGPU is the number of parallel compute units.
	// More than one splits every convolution, including
	// those of the single-pair training step, across that
	// many goroutines.
	NGPU int `json:"ngpu"`

	WeightsPath string `json:"weights_path"`
	ModelsPath  string `json:"models_path"`

	TrainDir string `json:"train_dir"`
	ValDir   string `json:"val_dir"`

	// ValRatio is the fraction of TrainDir held out for
	// validation when ValDir is empty.
	ValRatio float64 `json:"val_ratio"`

	// Metrics lists the metrics computed during
	// evaluation, such as "PSNR,SSIM,LPIPS".
	Metrics string `json:"metrics"`

	// LPIPSModel is the perceptual model file, and
	// ORTLibrary the ONNX Runtime shared library used for
	// ".onnx" models.
	LPIPSModel string `json:"lpips_model"`
	ORTLibrary string `json:"ort_library"`

	// Workers is the number of images decoded at once.
	Workers int `json:"workers"`

	// Seed seeds the noise and shuffle sources.
	Seed int64 `json:"seed"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ImageSize:   192,
		Channels:    3,
		Scale:       2,
		BatchSize:   32,
		LR:          0.0003,
		MSEWeight:   500,
		Epochs:      1,
		Device:      "cpu",
		NGPU:        1,
		WeightsPath: "./weights/default",
		ModelsPath:  "./saved_models/default",
		ValRatio:    0.1,
	}
}

// Load reads a JSON configuration file on top of the
// defaults.
func Load(path string) (*Config, error) {
	res := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return res, nil
}

// Save writes the configuration as JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "save config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "save config")
}

// RegisterFlags adds a flag for every option, using the
// current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.ImageSize, "image-size", c.ImageSize, "ground truth image size")
	fs.IntVar(&c.Channels, "channels", c.Channels, "image channels (1 or 3)")
	fs.IntVar(&c.Scale, "scale", c.Scale, "downsampling factor of the generator")
	fs.IntVar(&c.BatchSize, "batch", c.BatchSize, "batch size")
	fs.Float64Var(&c.LR, "lr", c.LR, "initial learning rate")
	fs.Float64Var(&c.MSEWeight, "mse-weight", c.MSEWeight, "weight of the reconstruction loss")
	fs.IntVar(&c.Epochs, "epochs", c.Epochs, "number of epochs")
	fs.StringVar(&c.Device, "device", c.Device, "compute device (cpu or cpu64)")
	fs.IntVar(&c.NGPU, "ngpu", c.NGPU, "number of parallel compute units")
	fs.StringVar(&c.WeightsPath, "weights", c.WeightsPath, "weights directory")
	fs.StringVar(&c.ModelsPath, "models", c.ModelsPath, "session snapshot directory")
	fs.StringVar(&c.TrainDir, "train", c.TrainDir, "training dataset root")
	fs.StringVar(&c.ValDir, "val", c.ValDir, "validation dataset root")
	fs.Float64Var(&c.ValRatio, "val-ratio", c.ValRatio, "held out fraction without -val")
	fs.StringVar(&c.Metrics, "metrics", c.Metrics, "evaluation metrics, e.g. PSNR,SSIM,LPIPS")
	fs.StringVar(&c.LPIPSModel, "lpips", c.LPIPSModel, "perceptual model file")
	fs.StringVar(&c.ORTLibrary, "ort-lib", c.ORTLibrary, "onnxruntime shared library")
	fs.IntVar(&c.Workers, "workers", c.Workers, "image decoding goroutines")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed (0 for time based)")
}

// Flags parses the Metrics option.
func (c *Config) Flags() (metrics.Flags, error) {
	return metrics.ParseFlags(c.Metrics)
}

// Validate checks that the options are usable.
func (c *Config) Validate() error {
	switch {
	case c.Channels != 1 && c.Channels != 3:
		return errors.Errorf("invalid config: channels must be 1 or 3, got %d", c.Channels)
	case c.Scale < 1:
		return errors.Errorf("invalid config: scale must be positive, got %d", c.Scale)
	case c.ImageSize < 1 || c.ImageSize%c.Scale != 0:
		return errors.Errorf("invalid config: image size %d not divisible by scale %d",
			c.ImageSize, c.Scale)
	case c.BatchSize < 1:
		return errors.Errorf("invalid config: batch size must be positive, got %d", c.BatchSize)
	case c.LR <= 0:
		return errors.Errorf("invalid config: learning rate must be positive, got %g", c.LR)
	case c.MSEWeight < 0:
		return errors.Errorf("invalid config: negative mse weight %g", c.MSEWeight)
	case c.Epochs < 0:
		return errors.Errorf("invalid config: negative epoch count %d", c.Epochs)
	case c.Device != "cpu" && c.Device != "cpu64":
		return errors.Errorf("invalid config: unknown device %q", c.Device)
	case c.NGPU < 1:
		return errors.Errorf("invalid config: ngpu must be positive, got %d", c.NGPU)
	case c.ValRatio < 0 || c.ValRatio >= 1:
		return errors.Errorf("invalid config: val ratio %g outside [0, 1)", c.ValRatio)
	}
	if _, err := c.Flags(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if minSize := c.ImageSize / c.Scale; minSize < MinLowQualitySize {
		return errors.Errorf("invalid config: low quality size %d too small for the discriminator",
			minSize)
	}
	return nil
}
