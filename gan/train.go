package gan

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ezgor/degradation-model/data"
)

// LogInterval is the number of batches between training
// log lines.
const LogInterval = 100

// Fit trains for the configured number of epochs,
// calling EpochFunc after each one.
//
// The done channel, if non-nil, is checked between epochs.
// Once it is closed, Fit returns without an error.
func (s *Session) Fit(stream data.Stream, done <-chan struct{}) error {
	for epoch := 0; epoch < s.Config.Epochs; epoch++ {
		select {
		case <-done:
			s.Logger.WithField("epoch", s.Epoch).Info("training stopped")
			return nil
		default:
		}
		if err := s.FitEpoch(stream, epoch); err != nil {
			return err
		}
		if s.EpochFunc != nil {
			if err := s.EpochFunc(); err != nil {
				return err
			}
		}
	}
	return nil
}

// FitEpoch runs one epoch of training and then ends the
// epoch with EndEpoch.
//
// The index is the position of the epoch within the
// current run, used for logging.
func (s *Session) FitEpoch(stream data.Stream, index int) error {
	s.ConfigureOptimizers()
	s.SetTraining(true)

	numBatches := stream.NumBatches()
	for i := 0; i < numBatches; i++ {
		batch, err := stream.Batch(i)
		if err != nil {
			return errors.Wrapf(err, "epoch %d: batch %d", s.Epoch, i)
		}
		lossG, lossD, err := s.TrainBatch(batch)
		if err != nil {
			return errors.Wrapf(err, "epoch %d: batch %d", s.Epoch, i)
		}
		if i%LogInterval == 0 {
			avgG, avgD := s.batchAverage(lossG), s.batchAverage(lossD)
			fmt.Fprintf(s.Out, "[%d/%d][%d/%d]\tLoss_D: %.4f\tLoss_G: %.4f\n",
				index+1, s.Config.Epochs, i, numBatches, avgD, avgG)
			s.TrainLosses.G = append(s.TrainLosses.G, avgG)
			s.TrainLosses.D = append(s.TrainLosses.D, avgD)
		}
	}
	return s.EndEpoch()
}

// TrainBatch applies Step to every pair of a batch and
// returns the summed losses.
func (s *Session) TrainBatch(b *data.Batch) (lossG, lossD float64, err error) {
	for i := range b.GTs {
		g, d, err := s.Step(b.GTs[i], b.LQs[i])
		if err != nil {
			return 0, 0, errors.Wrapf(err, "pair %d", i)
		}
		lossG += g
		lossD += d
	}
	return lossG, lossD, nil
}

// EndEpoch saves the weights of the current epoch,
// advances the epoch counter, decays the learning rate,
// rebuilds the optimizers and then saves the session.
//
// The session snapshot for epoch k holds the state after
// epoch k, so resuming from it starts at epoch k+1.
func (s *Session) EndEpoch() error {
	weightsDir, modelsDir := s.Config.WeightsPath, s.Config.ModelsPath
	for _, dir := range []string{weightsDir, modelsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "end epoch")
		}
	}
	k := strconv.Itoa(s.Epoch)
	gPath := filepath.Join(weightsDir, GeneratorPrefix+k)
	dPath := filepath.Join(weightsDir, DiscriminatorPrefix+k)
	if err := s.SaveWeights(gPath, dPath); err != nil {
		return errors.Wrap(err, "end epoch")
	}

	s.Epoch++
	s.LR = s.Schedule.Rate(float64(s.Epoch))
	s.ConfigureOptimizers()
	s.Logger.WithFields(logrus.Fields{
		"epoch": s.Epoch,
		"lr":    s.LR,
	}).Info("decayed learning rate")

	sessionPath := filepath.Join(modelsDir, SessionPrefix+k)
	if err := s.Save(sessionPath); err != nil {
		return errors.Wrap(err, "end epoch")
	}
	s.Logger.WithFields(logrus.Fields{
		"epoch":   s.Epoch - 1,
		"weights": weightsDir,
		"session": sessionPath,
	}).Info("saved checkpoint")
	return nil
}

// batchAverage divides a batch total by the configured
// batch size, even for partial batches.
func (s *Session) batchAverage(total float64) float64 {
	return total / float64(s.Config.BatchSize)
}
