package gan

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/config"
	"github.com/ezgor/degradation-model/optim"
)

// File name prefixes of per-epoch snapshots.
// The epoch index is appended to each.
const (
	GeneratorPrefix     = "netG_"
	DiscriminatorPrefix = "netD_"
	SessionPrefix       = "mod_"
)

type modelKind int

const (
	generatorKind modelKind = iota
	discriminatorKind
)

func (m modelKind) String() string {
	if m == generatorKind {
		return "generator"
	}
	return "discriminator"
}

// SaveWeights writes the parameters of both models.
func (s *Session) SaveWeights(gPath, dPath string) error {
	for _, kind := range []modelKind{generatorKind, discriminatorKind} {
		data, err := s.encodeModel(kind)
		if err != nil {
			return errors.Wrap(err, "save weights")
		}
		path := gPath
		if kind == discriminatorKind {
			path = dPath
		}
		if err := writeFileAtomic(path, data); err != nil {
			return errors.Wrap(err, "save weights")
		}
	}
	return nil
}

// LoadWeights replaces both models with ones built from
// the configuration and filled with saved parameters.
//
// The loaded models are in inference mode, and the
// optimizers are rebuilt for them.
// If the files were saved with another model
// configuration, the error's cause is ErrConfigMismatch.
func (s *Session) LoadWeights(gPath, dPath string) error {
	var nets [2]degradation.Net
	for i, path := range []string{gPath, dPath} {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "load weights")
		}
		nets[i], err = s.decodeModel(modelKind(i), data)
		if err != nil {
			return errors.Wrapf(err, "load weights %s", path)
		}
	}
	s.setModels(nets[0], nets[1])
	s.SetTraining(false)
	s.Logger.WithFields(logrus.Fields{
		"generator":     gPath,
		"discriminator": dPath,
	}).Info("loaded weights")
	return nil
}

// Save writes a snapshot of the whole session, from which
// training can be resumed with LoadSession.
func (s *Session) Save(path string) error {
	cfgData, err := json.Marshal(s.Config)
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	gData, err := s.encodeModel(generatorKind)
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	dData, err := s.encodeModel(discriminatorKind)
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	optG, err := s.OptG.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	optD, err := s.OptD.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	record, err := s.Validation.serialize()
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	data, err := serializer.SerializeAny(
		serializer.Bytes(cfgData),
		serializer.Bytes(gData),
		serializer.Bytes(dData),
		serializer.Bytes(optG),
		serializer.Bytes(optD),
		floatsSaver(s.TrainLosses.G),
		floatsSaver(s.TrainLosses.D),
		serializer.Bytes(record),
		serializer.Int(s.Epoch),
		serializer.Float64(s.LR),
	)
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	return errors.Wrap(writeFileAtomic(path, data), "save session")
}

// LoadSession restores a session saved with Save.
//
// If cfg is nil, the saved configuration is used.
// Otherwise, cfg must describe the same models, and it
// replaces the saved options for the rest of the run.
func LoadSession(path string, cfg *config.Config, dev *Device) (*Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	var cfgData, gData, dData, optG, optD, record serializer.Bytes
	var lossG, lossD *anyvecsave.S
	var epoch serializer.Int
	var lr serializer.Float64
	err = serializer.DeserializeAny(raw, &cfgData, &gData, &dData, &optG, &optD,
		&lossG, &lossD, &record, &epoch, &lr)
	if err != nil {
		return nil, essentials.AddCtx("load session", err)
	}

	saved := config.Default()
	if err := json.Unmarshal(cfgData, saved); err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	if cfg == nil {
		cfg = saved
	} else if !sameModels(cfg, saved) {
		return nil, errors.Wrapf(ErrConfigMismatch, "load session %s", path)
	}

	s, err := NewSession(cfg, dev)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	g, err := s.decodeModel(generatorKind, gData)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	d, err := s.decodeModel(discriminatorKind, dData)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	s.LR = float64(lr)
	s.Schedule = optim.ExpDecay{Initial: saved.LR, Factor: optim.DecayFactor}
	s.setModels(g, d)
	if err := s.OptG.UnmarshalBinary(optG); err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	if err := s.OptD.UnmarshalBinary(optD); err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	validation, err := deserializeValidationRecord(record)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	s.Validation = *validation
	s.TrainLosses = Losses{G: savedFloats(lossG), D: savedFloats(lossD)}
	s.Epoch = int(epoch)

	s.Logger.WithFields(logrus.Fields{
		"path":  path,
		"epoch": s.Epoch,
		"lr":    s.LR,
	}).Info("restored session")
	return s, nil
}

func (s *Session) setModels(g, d degradation.Net) {
	s.Generator = g
	s.Discriminator = d
	s.sized = nil
	s.ConfigureOptimizers()
}

// encodeModel serializes a header describing the model
// followed by its parameters and BatchNorm statistics.
func (s *Session) encodeModel(kind modelKind) ([]byte, error) {
	net, w, h := s.Generator, s.Config.ImageSize, s.Config.ImageSize
	if kind == discriminatorKind {
		net = s.Discriminator
		w, h = LowQualitySize(w, h, s.Config.Scale)
	}
	objs := []interface{}{
		serializer.Int(kind),
		serializer.Int(s.Config.Channels),
		serializer.Int(w),
		serializer.Int(h),
		serializer.Int(s.Config.Scale),
	}
	for _, vec := range modelState(net) {
		objs = append(objs, &anyvecsave.S{Vector: vec})
	}
	return serializer.SerializeAny(objs...)
}

// decodeModel creates a model from the configuration and
// fills it with the state encoded by encodeModel.
func (s *Session) decodeModel(kind modelKind, d []byte) (degradation.Net, error) {
	cfg, c := s.Config, s.Device.Creator
	var net degradation.Net
	w, h := cfg.ImageSize, cfg.ImageSize
	if kind == generatorKind {
		net = NewGenerator(c, cfg.Channels, w, h, cfg.Scale)
	} else {
		w, h = LowQualitySize(w, h, cfg.Scale)
		net = NewDiscriminator(c, cfg.Channels, w, h)
	}
	state := modelState(net)

	header := make([]serializer.Int, 5)
	dests := []interface{}{&header[0], &header[1], &header[2], &header[3], &header[4]}
	saved := make([]*anyvecsave.S, len(state))
	for i := range saved {
		dests = append(dests, &saved[i])
	}
	if err := serializer.DeserializeAny(d, dests...); err != nil {
		return nil, errors.Wrapf(ErrConfigMismatch, "decode %s: %v", kind, err)
	}

	expected := []int{int(kind), cfg.Channels, w, h, cfg.Scale}
	for i, x := range header {
		if int(x) != expected[i] {
			return nil, errors.Wrapf(ErrConfigMismatch,
				"decode %s: header %v, expected %v", kind, header, expected)
		}
	}
	for i, vec := range state {
		if saved[i].Vector.Len() != vec.Len() {
			return nil, errors.Wrapf(ErrConfigMismatch, "decode %s: vector %d has length %d, expected %d",
				kind, i, saved[i].Vector.Len(), vec.Len())
		}
		vec.SetData(vec.Creator().MakeNumericList(degradation.Floats(saved[i].Vector)))
	}
	return net, nil
}

func sameModels(c1, c2 *config.Config) bool {
	return c1.Channels == c2.Channels && c1.ImageSize == c2.ImageSize && c1.Scale == c2.Scale
}

// modelState lists the parameters of a model, followed by
// the running statistics of its BatchNorm layers.
func modelState(n degradation.Net) []anyvec.Vector {
	var res []anyvec.Vector
	for _, p := range n.Parameters() {
		res = append(res, p.Vector)
	}
	for _, bn := range batchNorms(n) {
		res = append(res, bn.RunningMean, bn.RunningVar)
	}
	return res
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
