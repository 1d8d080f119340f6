package gan

import (
	"github.com/pkg/errors"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/imgproc"
	"github.com/ezgor/degradation-model/metrics"
)

// A Score is a metric value that may not have been
// computed yet.
type Score struct {
	Value float64
	Set   bool
}

// BaselineScores stores the metrics of one baseline.
type BaselineScores struct {
	PSNR  Score
	SSIM  Score
	LPIPS Score
}

// Score returns the score for a single metric flag.
func (b *BaselineScores) Score(metric metrics.Flags) *Score {
	switch metric {
	case metrics.PSNRFlag:
		return &b.PSNR
	case metrics.SSIMFlag:
		return &b.SSIM
	case metrics.LPIPSFlag:
		return &b.LPIPS
	default:
		panic("not a single metric")
	}
}

// Losses is a history of generator and discriminator
// losses.
type Losses struct {
	G []float64
	D []float64
}

// A ValidationRecord accumulates evaluation results across
// epochs.
//
// Generator metrics and losses get one entry per
// evaluation.
// Baseline scores are computed at most once.
type ValidationRecord struct {
	Losses

	PSNR  []float64
	SSIM  []float64
	LPIPS []float64

	// Time is the average generator forward time, in
	// seconds.
	Time []float64

	Baselines [imgproc.NumBaselines]BaselineScores
}

// Evaluations returns the number of recorded evaluations.
func (v *ValidationRecord) Evaluations() int {
	return len(v.G)
}

func (v *ValidationRecord) serialize() ([]byte, error) {
	var values, set []float64
	for i := range v.Baselines {
		for _, metric := range metricList {
			s := v.Baselines[i].Score(metric)
			values = append(values, s.Value)
			if s.Set {
				set = append(set, 1)
			} else {
				set = append(set, 0)
			}
		}
	}
	return serializer.SerializeAny(
		floatsSaver(v.G), floatsSaver(v.D),
		floatsSaver(v.PSNR), floatsSaver(v.SSIM), floatsSaver(v.LPIPS),
		floatsSaver(v.Time), floatsSaver(values), floatsSaver(set),
	)
}

func deserializeValidationRecord(d []byte) (*ValidationRecord, error) {
	var g, dis, psnr, ssim, lpips, times, values, set *anyvecsave.S
	err := serializer.DeserializeAny(d, &g, &dis, &psnr, &ssim, &lpips, &times,
		&values, &set)
	if err != nil {
		return nil, essentials.AddCtx("deserialize ValidationRecord", err)
	}
	res := &ValidationRecord{
		Losses: Losses{G: savedFloats(g), D: savedFloats(dis)},
		PSNR:   savedFloats(psnr),
		SSIM:   savedFloats(ssim),
		LPIPS:  savedFloats(lpips),
		Time:   savedFloats(times),
	}
	valueList, setList := savedFloats(values), savedFloats(set)
	if len(valueList) != len(setList) || len(valueList) != len(metricList)*imgproc.NumBaselines {
		return nil, essentials.AddCtx("deserialize ValidationRecord",
			errors.New("invalid baseline count"))
	}
	for i := range res.Baselines {
		for j, metric := range metricList {
			idx := i*len(metricList) + j
			*res.Baselines[i].Score(metric) = Score{Value: valueList[idx], Set: setList[idx] != 0}
		}
	}
	return res, nil
}

var metricList = []metrics.Flags{metrics.PSNRFlag, metrics.SSIMFlag, metrics.LPIPSFlag}

func floatsSaver(x []float64) *anyvecsave.S {
	return &anyvecsave.S{Vector: degradation.FromFloats(anyvec64.DefaultCreator{}, x)}
}

func savedFloats(s *anyvecsave.S) []float64 {
	res := degradation.Floats(s.Vector)
	if len(res) == 0 {
		return nil
	}
	return res
}
