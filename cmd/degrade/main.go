// Command degrade trains and evaluates an adversarial
// image degradation model.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/rip"

	"github.com/ezgor/degradation-model/config"
	"github.com/ezgor/degradation-model/data"
	"github.com/ezgor/degradation-model/gan"
	"github.com/ezgor/degradation-model/metrics"
)

type options struct {
	Mode       string
	ConfigPath string
	Resume     string
	Epoch      int
}

func main() {
	log := logrus.New()
	opts, cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid arguments")
	}
	switch opts.Mode {
	case "train":
		err = train(log, opts, cfg)
	case "eval":
		err = evaluate(log, opts, cfg)
	default:
		err = errors.Errorf("unknown mode: %s", opts.Mode)
	}
	if err != nil {
		log.WithError(err).Fatal("run failed")
	}
}

// parseArgs reads the flags, applying them on top of the
// configuration file if one is given.
func parseArgs(args []string) (*options, *config.Config, error) {
	opts, cfg, fs := newFlagSet(config.Default())
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, nil, err
		}
		opts, cfg, fs = newFlagSet(loaded)
		if err := fs.Parse(args); err != nil {
			return nil, nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return opts, cfg, nil
}

func newFlagSet(cfg *config.Config) (*options, *config.Config, *flag.FlagSet) {
	opts := &options{}
	fs := flag.NewFlagSet("degrade", flag.ContinueOnError)
	fs.StringVar(&opts.Mode, "mode", "train", "train or eval")
	fs.StringVar(&opts.ConfigPath, "config", "", "JSON configuration file")
	fs.StringVar(&opts.Resume, "resume", "", "session snapshot to resume training from")
	fs.IntVar(&opts.Epoch, "epoch", 0, "epoch index of the weights to evaluate")
	cfg.RegisterFlags(fs)
	return opts, cfg, fs
}

func train(log *logrus.Logger, opts *options, cfg *config.Config) error {
	dev, err := gan.NewDevice(cfg.Device, cfg.NGPU)
	if err != nil {
		return err
	}
	var s *gan.Session
	if opts.Resume != "" {
		s, err = gan.LoadSession(opts.Resume, cfg, dev)
	} else {
		s, err = gan.NewSession(cfg, dev)
	}
	if err != nil {
		return err
	}
	s.Logger = log
	flags, err := setupMetrics(s)
	if err != nil {
		return err
	}

	trainPairs, valPairs, err := loadPairs(cfg)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"train":      trainPairs.Len(),
		"validation": valPairs.Len(),
	}).Info("loaded dataset")

	stream := &data.PairStream{
		Pairs:     trainPairs,
		BatchSize: cfg.BatchSize,
		Fetcher: &data.Fetcher{
			Creator:  dev.Creator,
			Channels: cfg.Channels,
			Width:    cfg.ImageSize,
			Height:   cfg.ImageSize,
			Scale:    cfg.Scale,
			Workers:  cfg.Workers,
		},
		Rand: s.Rand,
	}

	if valPairs.Len() > 0 {
		s.EpochFunc = func() error {
			_, err := s.Evaluate(valPairs, flags)
			return err
		}
	}

	log.Info("Press ctrl+c once to stop after the current epoch...")
	return s.Fit(stream, rip.NewRIP().Chan())
}

func evaluate(log *logrus.Logger, opts *options, cfg *config.Config) error {
	dev, err := gan.NewDevice(cfg.Device, cfg.NGPU)
	if err != nil {
		return err
	}
	s, err := gan.NewSession(cfg, dev)
	if err != nil {
		return err
	}
	s.Logger = log
	k := strconv.Itoa(opts.Epoch)
	gPath := filepath.Join(cfg.WeightsPath, gan.GeneratorPrefix+k)
	dPath := filepath.Join(cfg.WeightsPath, gan.DiscriminatorPrefix+k)
	if err := s.LoadWeights(gPath, dPath); err != nil {
		return err
	}
	s.Epoch = opts.Epoch + 1

	flags, err := setupMetrics(s)
	if err != nil {
		return err
	}
	dir := cfg.ValDir
	if dir == "" {
		dir = cfg.TrainDir
	}
	pairs, err := data.ScanPairs(dir)
	if err != nil {
		return err
	}
	_, err = s.Evaluate(pairs, flags)
	return err
}

func setupMetrics(s *gan.Session) (metrics.Flags, error) {
	flags, err := s.Config.Flags()
	if err != nil {
		return 0, err
	}
	if flags.Has(metrics.LPIPSFlag) {
		if s.Config.LPIPSModel == "" {
			return 0, errors.New("LPIPS requested without -lpips model")
		}
		s.Perceptual, err = metrics.LoadPerceptual(s.Config.LPIPSModel, s.Config.ORTLibrary)
		if err != nil {
			return 0, err
		}
	}
	return flags, nil
}

// loadPairs scans the training set and either scans the
// validation set or holds out part of the training set.
func loadPairs(cfg *config.Config) (trainPairs, valPairs data.PairList, err error) {
	if cfg.TrainDir == "" {
		return nil, nil, errors.New("no training directory")
	}
	trainPairs, err = data.ScanPairs(cfg.TrainDir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.ValDir != "" {
		valPairs, err = data.ScanPairs(cfg.ValDir)
		if err != nil {
			return nil, nil, err
		}
		return trainPairs, valPairs, nil
	}
	if cfg.ValRatio > 0 {
		trainPairs, valPairs = data.Split(trainPairs, 1-cfg.ValRatio)
	}
	return trainPairs, valPairs, nil
}
