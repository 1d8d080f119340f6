package gan

import (
	"fmt"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/config"
	"github.com/ezgor/degradation-model/conv"
	"github.com/ezgor/degradation-model/data"
	"github.com/ezgor/degradation-model/imgproc"
	"github.com/ezgor/degradation-model/metrics"
)

// A ValidationSet provides evaluation pairs one at a time.
//
// The images of a pair may be of any size, as long as the
// low quality image is Scale times smaller.
type ValidationSet interface {
	Len() int
	LoadImages(i int) (gt, lq image.Image, err error)
}

// An Evaluation holds the averages of one evaluation run.
type Evaluation struct {
	LossG float64
	LossD float64

	// Metrics that were not requested are 0.
	PSNR  float64
	SSIM  float64
	LPIPS float64

	// Time is the average generator forward time.
	Time time.Duration
}

// scoreTotals is indexed like metricList.
type scoreTotals [3]float64

// Evaluate measures the models on every pair of a set
// without training them.
//
// Both models run in inference mode.
// Every requested metric compares outputs against the low
// quality image of the pair.
// Baselines are only scored for metrics they have no
// score for yet.
//
// The averages are appended to s.Validation and printed
// to s.Out.
func (s *Session) Evaluate(set ValidationSet, flags metrics.Flags) (*Evaluation, error) {
	if set.Len() == 0 {
		return nil, errors.New("evaluate: empty validation set")
	}
	if flags.Has(metrics.LPIPSFlag) && s.Perceptual == nil {
		return nil, errors.New("evaluate: LPIPS requested without a perceptual model")
	}

	wasTraining := s.training
	s.SetTraining(false)
	defer s.SetTraining(wasTraining)

	pending := s.pendingBaselines(flags)

	var lossG, lossD float64
	var elapsed time.Duration
	var genTotals scoreTotals
	var baseTotals [imgproc.NumBaselines]scoreTotals

	for i := 0; i < set.Len(); i++ {
		s.Device.ClearCache()
		gt, lq, err := set.LoadImages(i)
		if err != nil {
			return nil, errors.Wrap(err, "evaluate")
		}
		res, err := s.evaluatePair(gt, lq, flags, pending)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate pair %d", i)
		}
		lossG += res.lossG
		lossD += res.lossD
		elapsed += res.elapsed
		for j := range genTotals {
			genTotals[j] += res.gen[j]
			for b := range baseTotals {
				baseTotals[b][j] += res.baselines[b][j]
			}
		}
	}

	n := float64(set.Len())
	res := &Evaluation{
		LossG: lossG / n,
		LossD: lossD / n,
		PSNR:  genTotals[0] / n,
		SSIM:  genTotals[1] / n,
		LPIPS: genTotals[2] / n,
		Time:  elapsed / time.Duration(set.Len()),
	}
	s.recordEvaluation(res, baseTotals, pending, n)
	s.printEvaluation(res)
	return res, nil
}

type pairResult struct {
	lossG     float64
	lossD     float64
	elapsed   time.Duration
	gen       scoreTotals
	baselines [imgproc.NumBaselines]scoreTotals
}

func (s *Session) evaluatePair(gt, lq image.Image, flags metrics.Flags,
	pending [imgproc.NumBaselines]metrics.Flags) (*pairResult, error) {
	w, h := gt.Bounds().Dx(), gt.Bounds().Dy()
	scale, channels := s.Config.Scale, s.Config.Channels
	lw, lh := lq.Bounds().Dx(), lq.Bounds().Dy()
	if w%scale != 0 || h%scale != 0 || lw != w/scale || lh != h/scale {
		return nil, errors.Wrapf(data.ErrMismatch, "ground truth %dx%d, low quality %dx%d",
			w, h, lw, lh)
	}
	if lw < config.MinLowQualitySize || lh < config.MinLowQualitySize {
		return nil, errors.Errorf("low quality image %dx%d too small", lw, lh)
	}
	gen, disc := s.modelsForSize(w, h)

	c := s.Device.Creator
	target := anydiff.NewConst(conv.ImageToTensor(c, lq, channels))
	noisy := imgproc.AddNoise(conv.ImageToTensor(c, gt, channels), w, h, channels, s.Rand)

	res := &pairResult{}
	errReal := s.adversarialLoss(disc, target, 1)

	start := time.Now()
	fakeVec := gen.Apply(anydiff.NewConst(noisy), 1).Output()
	res.elapsed = time.Since(start)

	fake := anydiff.NewConst(fakeVec)
	errFake := s.adversarialLoss(disc, fake, 0)
	res.lossD = degradation.Scalar(errReal.Output()) + degradation.Scalar(errFake.Output())
	res.lossG = degradation.Scalar(s.generatorLoss(disc, fake, target).Output())
	if !finite(res.lossD) || !finite(res.lossG) {
		return nil, errors.Wrapf(ErrNumeric, "losses G=%f D=%f", res.lossG, res.lossD)
	}

	if flags == 0 {
		return res, nil
	}
	ref := metrics.FromImage(lq, channels)
	out := metrics.Image{Width: lw, Height: lh, Channels: channels,
		Data: degradation.Floats(fakeVec)}

	var baselines [imgproc.NumBaselines]image.Image
	needBaselines := false
	for _, p := range pending {
		needBaselines = needBaselines || p != 0
	}
	if needBaselines {
		baselines = imgproc.Baselines(gt, scale)
	}

	for j, metric := range metricList {
		if !flags.Has(metric) {
			continue
		}
		score, err := s.score(metric, out, ref)
		if err != nil {
			return nil, err
		}
		res.gen[j] = score
		for b, img := range baselines {
			if !pending[b].Has(metric) {
				continue
			}
			score, err := s.score(metric, metrics.FromImage(img, channels), ref)
			if err != nil {
				return nil, errors.Wrapf(err, "baseline %s", imgproc.Baseline(b))
			}
			res.baselines[b][j] = score
		}
	}
	return res, nil
}

func (s *Session) score(metric metrics.Flags, a, b metrics.Image) (float64, error) {
	switch metric {
	case metrics.PSNRFlag:
		return metrics.PSNR(a, b)
	case metrics.SSIMFlag:
		return metrics.SSIM(a, b)
	case metrics.LPIPSFlag:
		return s.Perceptual.Distance(a, b)
	default:
		panic("not a single metric")
	}
}

// pendingBaselines returns, for each baseline, the
// requested metrics it has no score for.
func (s *Session) pendingBaselines(flags metrics.Flags) [imgproc.NumBaselines]metrics.Flags {
	var res [imgproc.NumBaselines]metrics.Flags
	for b := range res {
		for _, metric := range metricList {
			if flags.Has(metric) && !s.Validation.Baselines[b].Score(metric).Set {
				res[b] |= metric
			}
		}
	}
	return res
}

func (s *Session) recordEvaluation(e *Evaluation, baseTotals [imgproc.NumBaselines]scoreTotals,
	pending [imgproc.NumBaselines]metrics.Flags, n float64) {
	v := &s.Validation
	v.G = append(v.G, e.LossG)
	v.D = append(v.D, e.LossD)
	v.PSNR = append(v.PSNR, e.PSNR)
	v.SSIM = append(v.SSIM, e.SSIM)
	v.LPIPS = append(v.LPIPS, e.LPIPS)
	v.Time = append(v.Time, e.Time.Seconds())

	for b := range v.Baselines {
		for j, metric := range metricList {
			if pending[b].Has(metric) {
				*v.Baselines[b].Score(metric) = Score{Value: baseTotals[b][j] / n, Set: true}
				s.Logger.WithFields(logrus.Fields{
					"baseline": imgproc.Baseline(b).String(),
					"metric":   metric.String(),
					"value":    baseTotals[b][j] / n,
				}).Info("scored baseline")
			}
		}
	}
}

func (s *Session) printEvaluation(e *Evaluation) {
	fmt.Fprintf(s.Out, "Test Generator loss after %d epoch = %v\n", s.Epoch, e.LossG)
	fmt.Fprintf(s.Out, "Test Discriminator loss after %d epoch = %v\n", s.Epoch, e.LossD)
	fmt.Fprintf(s.Out, "Test PSNR after %d epoch = %v\n", s.Epoch, e.PSNR)
	fmt.Fprintf(s.Out, "Test SSIM after %d epoch = %v\n", s.Epoch, e.SSIM)
	fmt.Fprintf(s.Out, "Test LPIPS after %d epoch = %v\n", s.Epoch, e.LPIPS)
	fmt.Fprintf(s.Out, "Average time for one frame processing: %v\n", e.Time.Seconds())
}
