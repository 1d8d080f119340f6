package conv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p Padding
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePadding)
	var r ReflectPadding
	serializer.RegisterTypedDeserializer(r.SerializerType(), DeserializeReflectPadding)
}

// Border describes how many pixels a padding layer adds
// to each side of a tensor.
type Border struct {
	InputWidth  int
	InputHeight int
	InputDepth  int

	PaddingTop    int
	PaddingRight  int
	PaddingBottom int
	PaddingLeft   int
}

// Uniform returns a Border that adds n pixels on every
// side of a WxHxD tensor.
func Uniform(w, h, d, n int) Border {
	return Border{
		InputWidth:    w,
		InputHeight:   h,
		InputDepth:    d,
		PaddingTop:    n,
		PaddingRight:  n,
		PaddingBottom: n,
		PaddingLeft:   n,
	}
}

// OutputWidth returns the width of padded tensors.
func (b *Border) OutputWidth() int {
	return b.InputWidth + b.PaddingLeft + b.PaddingRight
}

// OutputHeight returns the height of padded tensors.
func (b *Border) OutputHeight() int {
	return b.InputHeight + b.PaddingTop + b.PaddingBottom
}

func (b *Border) inSize() int {
	return b.InputWidth * b.InputHeight * b.InputDepth
}

func (b *Border) outSize() int {
	return b.OutputWidth() * b.OutputHeight() * b.InputDepth
}

func (b *Border) serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(b.InputWidth),
		serializer.Int(b.InputHeight),
		serializer.Int(b.InputDepth),
		serializer.Int(b.PaddingTop),
		serializer.Int(b.PaddingRight),
		serializer.Int(b.PaddingBottom),
		serializer.Int(b.PaddingLeft),
	)
}

func deserializeBorder(d []byte) (Border, error) {
	var inW, inH, inD, pT, pR, pB, pL serializer.Int
	err := serializer.DeserializeAny(d, &inW, &inH, &inD, &pT, &pR, &pB, &pL)
	if err != nil {
		return Border{}, err
	}
	return Border{
		InputWidth:    int(inW),
		InputHeight:   int(inH),
		InputDepth:    int(inD),
		PaddingTop:    int(pT),
		PaddingRight:  int(pR),
		PaddingBottom: int(pB),
		PaddingLeft:   int(pL),
	}, nil
}

// A Padding layer adds zeros to the border of input
// tensors.
type Padding struct {
	Border

	mapper anyvec.Mapper
}

// DeserializePadding deserializes a Padding.
func DeserializePadding(d []byte) (*Padding, error) {
	b, err := deserializeBorder(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Padding", err)
	}
	return &Padding{Border: b}, nil
}

// Apply applies the layer.
//
// This is not thread-safe.
func (p *Padding) Apply(in anydiff.Res, batch int) anydiff.Res {
	if p.mapper == nil {
		p.initMapper(in.Output().Creator())
	}
	if in.Output().Len() != batch*p.mapper.OutSize() {
		panic("incorrect input size")
	}
	return &gatherRes{
		In:      in,
		Mapper:  p.mapper,
		Scatter: true,
		OutVec:  batchMapTranspose(p.mapper, in.Output()),
	}
}

// SerializerType returns the unique ID used to serialize
// a Padding with the serializer package.
func (p *Padding) SerializerType() string {
	return "github.com/ezgor/degradation-model/conv.Padding"
}

// Serialize serializes a Padding.
func (p *Padding) Serialize() ([]byte, error) {
	return p.serialize()
}

func (p *Padding) initMapper(c anyvec.Creator) {
	rowSize := p.OutputWidth() * p.InputDepth
	table := make([]int, 0, p.inSize())
	for y := 0; y < p.InputHeight; y++ {
		start := (y+p.PaddingTop)*rowSize + p.PaddingLeft*p.InputDepth
		for i := 0; i < p.InputWidth*p.InputDepth; i++ {
			table = append(table, start+i)
		}
	}
	p.mapper = c.MakeMapper(p.outSize(), table)
}

// A ReflectPadding layer pads input tensors by mirroring
// them about their edges, excluding the edge pixel.
//
// Every padding amount must be less than the matching
// input dimension.
type ReflectPadding struct {
	Border

	mapper anyvec.Mapper
}

// DeserializeReflectPadding deserializes a
// ReflectPadding.
func DeserializeReflectPadding(d []byte) (*ReflectPadding, error) {
	b, err := deserializeBorder(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize ReflectPadding", err)
	}
	return &ReflectPadding{Border: b}, nil
}

// Apply applies the layer.
//
// This is not thread-safe.
func (r *ReflectPadding) Apply(in anydiff.Res, batch int) anydiff.Res {
	if r.mapper == nil {
		r.initMapper(in.Output().Creator())
	}
	if in.Output().Len() != batch*r.mapper.InSize() {
		panic("incorrect input size")
	}
	return &gatherRes{
		In:     in,
		Mapper: r.mapper,
		OutVec: batchMap(r.mapper, in.Output()),
	}
}

// SerializerType returns the unique ID used to serialize
// a ReflectPadding with the serializer package.
func (r *ReflectPadding) SerializerType() string {
	return "github.com/ezgor/degradation-model/conv.ReflectPadding"
}

// Serialize serializes a ReflectPadding.
func (r *ReflectPadding) Serialize() ([]byte, error) {
	return r.serialize()
}

func (r *ReflectPadding) initMapper(c anyvec.Creator) {
	if r.PaddingLeft >= r.InputWidth || r.PaddingRight >= r.InputWidth ||
		r.PaddingTop >= r.InputHeight || r.PaddingBottom >= r.InputHeight {
		panic("reflect padding must be smaller than the input")
	}
	table := make([]int, 0, r.outSize())
	for y := 0; y < r.OutputHeight(); y++ {
		srcY := reflectIndex(y-r.PaddingTop, r.InputHeight)
		for x := 0; x < r.OutputWidth(); x++ {
			srcX := reflectIndex(x-r.PaddingLeft, r.InputWidth)
			idx := (srcY*r.InputWidth + srcX) * r.InputDepth
			for z := 0; z < r.InputDepth; z++ {
				table = append(table, idx+z)
			}
		}
	}
	r.mapper = c.MakeMapper(r.inSize(), table)
}

func reflectIndex(i, size int) int {
	if i < 0 {
		return -i
	} else if i >= size {
		return 2*(size-1) - i
	}
	return i
}

// gatherRes is the result of a layer that only moves
// components around.
// If Scatter is set, the forward pass was a transposed
// mapping.
type gatherRes struct {
	In      anydiff.Res
	Mapper  anyvec.Mapper
	Scatter bool
	OutVec  anyvec.Vector
}

func (g *gatherRes) Output() anyvec.Vector {
	return g.OutVec
}

func (g *gatherRes) Vars() anydiff.VarSet {
	return g.In.Vars()
}

func (g *gatherRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	if g.Scatter {
		g.In.Propagate(batchMap(g.Mapper, u), grad)
	} else {
		g.In.Propagate(batchMapTranspose(g.Mapper, u), grad)
	}
}
