package conv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const (
	defaultBNStabilizer = 1e-5
	defaultBNMomentum   = 0.1
)

func init() {
	var b BatchNorm
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBatchNorm)
}

// BatchNorm is a batch normalization layer.
//
// While training, it normalizes with the statistics of
// the current batch and folds them into running
// estimates.
// In inference mode, the running estimates are used and
// left untouched.
type BatchNorm struct {
	// InputCount is the number of channels to normalize.
	InputCount int

	// Post-normalization affine transform.
	Scalers *anydiff.Var
	Biases  *anydiff.Var

	// Running estimates of the per-channel mean and
	// unbiased variance.
	RunningMean anyvec.Vector
	RunningVar  anyvec.Vector

	// Stabilizer is added to variances before they are
	// inverted.
	// If it is 0, a default is used.
	Stabilizer float64

	// Momentum is the weight of a new batch in the running
	// estimates.
	// If it is 0, a default is used.
	Momentum float64

	// Inference selects the running statistics.
	Inference bool
}

// DeserializeBatchNorm deserializes a BatchNorm.
func DeserializeBatchNorm(d []byte) (*BatchNorm, error) {
	var s, b, mean, variance *anyvecsave.S
	var stab, momentum serializer.Float64
	err := serializer.DeserializeAny(d, &s, &b, &mean, &variance, &stab, &momentum)
	if err != nil {
		return nil, essentials.AddCtx("deserialize BatchNorm", err)
	}
	return &BatchNorm{
		InputCount:  s.Vector.Len(),
		Scalers:     anydiff.NewVar(s.Vector),
		Biases:      anydiff.NewVar(b.Vector),
		RunningMean: mean.Vector,
		RunningVar:  variance.Vector,
		Stabilizer:  float64(stab),
		Momentum:    float64(momentum),
	}, nil
}

// NewBatchNorm creates a BatchNorm with unit scales, zero
// biases, and running statistics of a standard normal.
func NewBatchNorm(c anyvec.Creator, inCount int) *BatchNorm {
	ones := c.MakeVector(inCount)
	ones.AddScalar(c.MakeNumeric(1))
	return &BatchNorm{
		InputCount:  inCount,
		Scalers:     anydiff.NewVar(ones),
		Biases:      anydiff.NewVar(c.MakeVector(inCount)),
		RunningMean: c.MakeVector(inCount),
		RunningVar:  ones.Copy(),
	}
}

// SetTraining switches between batch and running
// statistics.
func (b *BatchNorm) SetTraining(training bool) {
	b.Inference = !training
}

// Apply applies the layer to some inputs.
//
// In training mode, this updates the running statistics
// and is not thread-safe.
func (b *BatchNorm) Apply(in anydiff.Res, batch int) anydiff.Res {
	if in.Output().Len()%b.InputCount != 0 {
		panic("invalid input size")
	}
	if b.Inference {
		return b.applyRunning(in)
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		c := in.Output().Creator()

		negMean := negMeanRows(in, b.InputCount)
		secondMoment := meanSquare(in, b.InputCount)
		variance := anydiff.Sub(secondMoment, anydiff.Square(negMean))
		b.updateRunning(negMean.Output(), variance.Output(),
			in.Output().Len()/b.InputCount)

		variance = anydiff.AddScalar(variance, c.MakeNumeric(b.stabilizer()))
		normalizer := anydiff.Pow(variance, c.MakeNumeric(-0.5))

		totalScaler := anydiff.Mul(b.Scalers, normalizer)
		return anydiff.Pool(totalScaler, func(totalScaler anydiff.Res) anydiff.Res {
			return anydiff.ScaleAddRepeated(
				in,
				totalScaler,
				anydiff.Add(b.Biases, anydiff.Mul(negMean, totalScaler)),
			)
		})
	})
}

func (b *BatchNorm) applyRunning(in anydiff.Res) anydiff.Res {
	c := in.Output().Creator()
	normalizer := b.RunningVar.Copy()
	normalizer.AddScalar(c.MakeNumeric(b.stabilizer()))
	anyvec.Pow(normalizer, c.MakeNumeric(-0.5))
	negMean := b.RunningMean.Copy()
	negMean.Scale(c.MakeNumeric(-1))

	totalScaler := anydiff.Mul(b.Scalers, anydiff.NewConst(normalizer))
	return anydiff.Pool(totalScaler, func(totalScaler anydiff.Res) anydiff.Res {
		return anydiff.ScaleAddRepeated(
			in,
			totalScaler,
			anydiff.Add(b.Biases, anydiff.Mul(anydiff.NewConst(negMean), totalScaler)),
		)
	})
}

func (b *BatchNorm) updateRunning(negMean, variance anyvec.Vector, rows int) {
	c := negMean.Creator()
	if b.RunningMean == nil {
		b.RunningMean = c.MakeVector(b.InputCount)
	}
	if b.RunningVar == nil {
		b.RunningVar = c.MakeVector(b.InputCount)
		b.RunningVar.AddScalar(c.MakeNumeric(1))
	}
	m := b.momentum()

	mean := negMean.Copy()
	mean.Scale(c.MakeNumeric(-m))
	b.RunningMean.Scale(c.MakeNumeric(1 - m))
	b.RunningMean.Add(mean)

	unbiased := variance.Copy()
	if rows > 1 {
		unbiased.Scale(c.MakeNumeric(m * float64(rows) / float64(rows-1)))
	} else {
		unbiased.Scale(c.MakeNumeric(m))
	}
	b.RunningVar.Scale(c.MakeNumeric(1 - m))
	b.RunningVar.Add(unbiased)
}

// Parameters returns a slice containing the scales and
// biases, in that order.
func (b *BatchNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{b.Scalers, b.Biases}
}

// SerializerType returns the unique ID used to serialize
// a BatchNorm with the serializer package.
func (b *BatchNorm) SerializerType() string {
	return "github.com/ezgor/degradation-model/conv.BatchNorm"
}

// Serialize serializes the layer, including its running
// statistics.
func (b *BatchNorm) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: b.Scalers.Vector},
		&anyvecsave.S{Vector: b.Biases.Vector},
		&anyvecsave.S{Vector: b.RunningMean},
		&anyvecsave.S{Vector: b.RunningVar},
		serializer.Float64(b.Stabilizer),
		serializer.Float64(b.Momentum),
	)
}

func (b *BatchNorm) stabilizer() float64 {
	if b.Stabilizer == 0 {
		return defaultBNStabilizer
	}
	return b.Stabilizer
}

func (b *BatchNorm) momentum() float64 {
	if b.Momentum == 0 {
		return defaultBNMomentum
	}
	return b.Momentum
}
