package gan

import (
	"math"

	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/imgproc"
)

// Step performs one adversarial update on a single pair
// of ground truth and low quality tensors.
//
// The discriminator is updated first, using the low
// quality tensor as the real sample and the generator's
// output as the fake one.
// The generator is then updated to fool the updated
// discriminator while staying close to the low quality
// tensor.
//
// It returns the generator and discriminator losses.
// If either is not finite, ErrNumeric is returned.
func (s *Session) Step(gt, lq anyvec.Vector) (lossG, lossD float64, err error) {
	w, h := s.Config.ImageSize, s.Config.ImageSize
	target := anydiff.NewConst(lq)

	gradD := anydiff.NewGrad(s.Discriminator.Parameters()...)
	errReal := s.adversarialLoss(s.Discriminator, target, 1)
	propagateScalar(errReal, gradD)

	noisy := imgproc.AddNoise(gt, w, h, s.Config.Channels, s.Rand)
	fake := s.Generator.Apply(anydiff.NewConst(noisy), 1)

	errFake := s.adversarialLoss(s.Discriminator, anydiff.NewConst(fake.Output()), 0)
	propagateScalar(errFake, gradD)
	lossD = degradation.Scalar(errReal.Output()) + degradation.Scalar(errFake.Output())
	if !finite(lossD) {
		return 0, 0, errors.Wrapf(ErrNumeric, "discriminator loss %f", lossD)
	}
	s.OptD.Step(gradD)

	gradG := anydiff.NewGrad(s.Generator.Parameters()...)
	errG := s.generatorLoss(s.Discriminator, fake, target)
	lossG = degradation.Scalar(errG.Output())
	if !finite(lossG) {
		return 0, 0, errors.Wrapf(ErrNumeric, "generator loss %f", lossG)
	}
	propagateScalar(errG, gradG)
	s.OptG.Step(gradG)

	return lossG, lossD, nil
}

// adversarialLoss computes the binary cross-entropy of
// the discriminator's verdict on a sample against a
// constant label.
func (s *Session) adversarialLoss(d degradation.Layer, sample anydiff.Res,
	label float64) anydiff.Res {
	prob := d.Apply(sample, 1)
	c := prob.Output().Creator()
	labels := c.MakeVector(prob.Output().Len())
	labels.AddScalar(c.MakeNumeric(label))
	return degradation.MeanCost(degradation.BCE{}, anydiff.NewConst(labels), prob, 1)
}

// generatorLoss combines the adversarial loss of a fake
// sample with the weighted reconstruction error against
// the target sample.
func (s *Session) generatorLoss(d degradation.Layer, fake, target anydiff.Res) anydiff.Res {
	c := fake.Output().Creator()
	adv := s.adversarialLoss(d, fake, 1)
	mse := degradation.MeanCost(degradation.MSE{}, target, fake, 1)
	return anydiff.Add(adv, anydiff.Scale(mse, c.MakeNumeric(s.Config.MSEWeight)))
}

func propagateScalar(cost anydiff.Res, grad anydiff.Grad) {
	if len(grad) == 0 {
		return
	}
	c := cost.Output().Creator()
	one := c.MakeVector(1)
	one.AddScalar(c.MakeNumeric(1))
	cost.Propagate(one, grad)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
