package optim

import "math"

// DecayFactor is the factor the learning rate is
// multiplied by after every epoch.
const DecayFactor = 0.75

// A Rater determines the learning rate given the number
// of completed epochs.
type Rater interface {
	Rate(epoch float64) float64
}

// ExpDecay is a Rater that decays exponentially from an
// initial rate.
type ExpDecay struct {
	Initial float64

	// Factor is the per-epoch multiplier.
	// If it is 0, DecayFactor is used.
	Factor float64
}

// Rate returns Initial * Factor^epoch.
func (e ExpDecay) Rate(epoch float64) float64 {
	return e.Initial * math.Pow(valueOrDefault(e.Factor, DecayFactor), epoch)
}
