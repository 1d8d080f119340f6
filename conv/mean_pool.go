package conv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var m MeanPool
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeMeanPool)
}

// MeanPool is a mean-pooling layer with non-overlapping
// SpanX by SpanY windows.
//
// If a span does not divide the corresponding input
// dimension, the input is zero padded.
type MeanPool struct {
	SpanX int
	SpanY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	mapper anyvec.Mapper
}

// GlobalMeanPool returns a MeanPool that averages each
// channel of a WxHxD tensor down to a single value.
func GlobalMeanPool(w, h, d int) *MeanPool {
	return &MeanPool{
		SpanX:       w,
		SpanY:       h,
		InputWidth:  w,
		InputHeight: h,
		InputDepth:  d,
	}
}

// DeserializeMeanPool deserializes a MeanPool.
func DeserializeMeanPool(d []byte) (*MeanPool, error) {
	var sX, sY, inW, inH, inD serializer.Int
	if err := serializer.DeserializeAny(d, &sX, &sY, &inW, &inH, &inD); err != nil {
		return nil, essentials.AddCtx("deserialize MeanPool", err)
	}
	return &MeanPool{
		SpanX:       int(sX),
		SpanY:       int(sY),
		InputWidth:  int(inW),
		InputHeight: int(inH),
		InputDepth:  int(inD),
	}, nil
}

// OutputWidth returns the output tensor width.
func (m *MeanPool) OutputWidth() int {
	return (m.InputWidth + m.SpanX - 1) / m.SpanX
}

// OutputHeight returns the output tensor height.
func (m *MeanPool) OutputHeight() int {
	return (m.InputHeight + m.SpanY - 1) / m.SpanY
}

// OutputDepth returns the depth of the output tensor.
func (m *MeanPool) OutputDepth() int {
	return m.InputDepth
}

// Apply applies the pooling layer.
func (m *MeanPool) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	if m.mapper == nil {
		m.initMapper(in.Output().Creator())
	}
	if in.Output().Len() != batchSize*m.mapper.OutSize() {
		panic("incorrect input size")
	}
	out := batchMapTranspose(m.mapper, in.Output())
	scaler := out.Creator().MakeNumeric(1 / float64(m.SpanX*m.SpanY))
	out.Scale(scaler)
	return &meanPoolRes{
		In:     in,
		Mapper: m.mapper,
		Scaler: scaler,
		OutVec: out,
	}
}

// SerializerType returns the unique ID used to serialize
// a MeanPool with the serializer package.
func (m *MeanPool) SerializerType() string {
	return "github.com/ezgor/degradation-model/conv.MeanPool"
}

// Serialize serializes the layer.
func (m *MeanPool) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(m.SpanX),
		serializer.Int(m.SpanY),
		serializer.Int(m.InputWidth),
		serializer.Int(m.InputHeight),
		serializer.Int(m.InputDepth),
	)
}

func (m *MeanPool) initMapper(c anyvec.Creator) {
	table := make([]int, 0, m.InputWidth*m.InputHeight*m.InputDepth)
	outWidth := m.OutputWidth()
	for y := 0; y < m.InputHeight; y++ {
		rowIdx := (y / m.SpanY) * outWidth * m.InputDepth
		for x := 0; x < m.InputWidth; x++ {
			pixelIdx := rowIdx + (x/m.SpanX)*m.InputDepth
			for z := 0; z < m.InputDepth; z++ {
				table = append(table, pixelIdx+z)
			}
		}
	}
	m.mapper = c.MakeMapper(outWidth*m.OutputHeight()*m.OutputDepth(), table)
}

type meanPoolRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	Scaler anyvec.Numeric
	OutVec anyvec.Vector
}

func (m *meanPoolRes) Output() anyvec.Vector {
	return m.OutVec
}

func (m *meanPoolRes) Vars() anydiff.VarSet {
	return m.In.Vars()
}

func (m *meanPoolRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	u.Scale(m.Scaler)
	m.In.Propagate(batchMap(m.Mapper, u), g)
}
