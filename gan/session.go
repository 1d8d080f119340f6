// Package gan trains and evaluates an adversarial image
// degradation model.
//
// The generator maps a ground truth image and a noise
// channel to a smaller, degraded image.
// The discriminator tells generated images apart from
// real low quality ones.
package gan

import (
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/config"
	"github.com/ezgor/degradation-model/conv"
	"github.com/ezgor/degradation-model/metrics"
	"github.com/ezgor/degradation-model/optim"
)

// A Session holds the models and training state of one
// run.
//
// A Session is not safe for concurrent use.
type Session struct {
	Config *config.Config
	Device *Device

	Generator     degradation.Net
	Discriminator degradation.Net

	OptG *optim.Adam
	OptD *optim.Adam

	// LR is the current learning rate.
	LR float64

	// Schedule gives the learning rate after a number of
	// completed epochs.
	Schedule optim.Rater

	// Epoch is the number of completed epochs.
	Epoch int

	TrainLosses Losses
	Validation  ValidationRecord

	// Rand is the noise and shuffling source.
	Rand *rand.Rand

	// Perceptual is used for the LPIPS metric.
	// It may be nil if LPIPS is never requested.
	Perceptual metrics.Perceptual

	// Logger receives lifecycle events.
	Logger *logrus.Logger

	// Out receives the console training and evaluation
	// lines.
	Out io.Writer

	// EpochFunc, if non-nil, is called by Fit after every
	// epoch, once its checkpoint is saved.
	// An error stops training.
	EpochFunc func() error

	training bool
	sized    map[[2]int][2]degradation.Net
}

// NewSession creates a session with freshly initialized
// models.
func NewSession(cfg *config.Config, dev *Device) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "new session")
	}
	dev.Activate()
	size := cfg.ImageSize
	s := &Session{
		Config:        cfg,
		Device:        dev,
		Generator:     NewGenerator(dev.Creator, cfg.Channels, size, size, cfg.Scale),
		Discriminator: NewDiscriminator(dev.Creator, cfg.Channels, size/cfg.Scale, size/cfg.Scale),
		LR:            cfg.LR,
		Schedule:      optim.ExpDecay{Initial: cfg.LR, Factor: optim.DecayFactor},
		Rand:          newRand(cfg.Seed),
		Logger:        logrus.New(),
		Out:           os.Stdout,
		training:      true,
	}
	s.ConfigureOptimizers()
	s.Logger.WithFields(logrus.Fields{
		"device":   dev.Name,
		"channels": cfg.Channels,
		"size":     size,
		"scale":    cfg.Scale,
	}).Info("created session")
	return s, nil
}

// ConfigureOptimizers replaces both optimizers with fresh
// ones for the current learning rate.
func (s *Session) ConfigureOptimizers() {
	s.OptG = optim.NewAdam(s.Generator.Parameters(), s.LR, optim.DefaultBeta1,
		optim.DefaultBeta2)
	s.OptD = optim.NewAdam(s.Discriminator.Parameters(), s.LR, optim.DefaultBeta1,
		optim.DefaultBeta2)
}

// SetTraining switches both models between training and
// inference mode.
func (s *Session) SetTraining(training bool) {
	s.training = training
	s.Generator.SetTraining(training)
	s.Discriminator.SetTraining(training)
}

// modelsForSize returns the generator and discriminator
// for WxH ground truth images.
// The results share parameters with the session models.
func (s *Session) modelsForSize(w, h int) (g, d degradation.Net) {
	if w == s.Config.ImageSize && h == s.Config.ImageSize {
		return s.Generator, s.Discriminator
	}
	key := [2]int{w, h}
	if s.sized == nil {
		s.sized = map[[2]int][2]degradation.Net{}
	}
	if nets, ok := s.sized[key]; ok {
		return nets[0], nets[1]
	}
	lw, lh := LowQualitySize(w, h, s.Config.Scale)
	g = conv.ForSize(s.Generator, w, h)
	d = conv.ForSize(s.Discriminator, lw, lh)
	s.sized[key] = [2]degradation.Net{g, d}
	return g, d
}

// LowQualitySize returns the size of generator outputs
// for WxH inputs.
func LowQualitySize(w, h, scale int) (lw, lh int) {
	return 1 + (w-1)/scale, 1 + (h-1)/scale
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
