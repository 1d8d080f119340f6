package conv

import (
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"

	degradation "github.com/ezgor/degradation-model"
)

// A Conver performs the convolution described by a Conv
// whose sizes are already fixed.
type Conver interface {
	degradation.Layer
}

// A ConverMaker builds a Conver for a Conv.
//
// Devices may install their own maker, for example one
// that splits batches across goroutines.
type ConverMaker func(info Conv) Conver

var converMakerLock sync.RWMutex
var converMaker ConverMaker = MakeDefaultConver

// SetConverMaker sets the function used to create new
// Convers when layers are initialized or deserialized.
func SetConverMaker(f ConverMaker) {
	converMakerLock.Lock()
	converMaker = f
	converMakerLock.Unlock()
}

// CurrentConverMaker returns the current ConverMaker.
func CurrentConverMaker() ConverMaker {
	converMakerLock.RLock()
	defer converMakerLock.RUnlock()
	return converMaker
}

// MakeDefaultConver returns a Conver that turns every
// input tensor into a patch matrix and multiplies it by
// the filter matrix.
func MakeDefaultConver(c Conv) Conver {
	if c.Filters == nil || (c.Biases == nil && !c.NoBias) {
		panic("nil parameters")
	}
	return &conver{
		conv: c,
		im2row: &Im2Row{
			WindowWidth:  c.FilterWidth,
			WindowHeight: c.FilterHeight,
			StrideX:      c.StrideX,
			StrideY:      c.StrideY,
			InputWidth:   c.InputWidth,
			InputHeight:  c.InputHeight,
			InputDepth:   c.InputDepth,
		},
	}
}

// ParallelConverMaker returns a ConverMaker whose Convers
// use up to workers goroutines.
// Samples of a batch are processed concurrently, and the
// matrix products of each sample are split into blocks
// of output rows.
func ParallelConverMaker(workers int) ConverMaker {
	return func(c Conv) Conver {
		res := MakeDefaultConver(c).(*conver)
		res.workers = workers
		return res
	}
}

type conver struct {
	conv   Conv
	im2row *Im2Row

	workers int
}

func (c *conver) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	cr := in.Output().Creator()
	if c.conv.OutputWidth() == 0 || c.conv.OutputHeight() == 0 {
		return anydiff.NewConst(cr.MakeVector(0))
	}
	if in.Output().Len() != batchSize*c.im2row.InputSize() {
		panic("incorrect input size")
	}

	filters := c.filterMatrix()

	products := make([]anyvec.Vector, batchSize)
	c.mapper()(in.Output(), func(i int, patches *anyvec.Matrix) {
		products[i] = c.rowProduct(patches, filters, true)
	})

	out := cr.Concat(products...)
	params := anydiff.VarSet{}
	params.Add(c.conv.Filters)
	if c.conv.Biases != nil {
		anyvec.AddRepeated(out, c.conv.Biases.Vector)
		params.Add(c.conv.Biases)
	}

	return &convRes{
		Conver: c,
		Layer:  &c.conv,
		N:      batchSize,
		In:     in,
		OutVec: out,
		V:      anydiff.MergeVarSets(in.Vars(), params),
	}
}

func (c *conver) filterMatrix() *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: c.conv.Filters.Vector,
		Rows: c.conv.FilterCount,
		Cols: c.conv.FilterWidth * c.conv.FilterHeight * c.conv.InputDepth,
	}
}

func (c *conver) parallel() bool {
	return c.workers > 1
}

func (c *conver) mapper() func(anyvec.Vector, func(int, *anyvec.Matrix)) {
	if c.parallel() {
		return c.im2row.MapParallel
	}
	return c.im2row.MapAll
}

type convRes struct {
	Conver *conver
	Layer  *Conv
	N      int
	In     anydiff.Res
	OutVec anyvec.Vector
	V      anydiff.VarSet
}

func (c *convRes) Output() anyvec.Vector {
	return c.OutVec
}

func (c *convRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *convRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	cr := u.Creator()
	doIn := g.Intersects(c.In.Vars())
	outSize := u.Len() / c.N
	inSize := c.In.Output().Len() / c.N
	filters := c.Conver.filterMatrix()

	if c.Layer.Biases != nil {
		if biasGrad, ok := g[c.Layer.Biases]; ok {
			biasGrad.Add(sumPixels(u, c.Layer.FilterCount))
		}
	}

	filterGrad, doFilters := g[c.Layer.Filters]
	inUpstreams := make([]anyvec.Vector, c.N)
	var lock sync.Mutex
	c.loopPatches(doFilters, func(i int, patches *anyvec.Matrix) {
		uMat := &anyvec.Matrix{
			Data: u.Slice(outSize*i, outSize*(i+1)),
			Rows: c.Layer.OutputWidth() * c.Layer.OutputHeight(),
			Cols: c.Layer.FilterCount,
		}
		if doFilters {
			fg := c.Conver.filterGrad(uMat, patches)
			lock.Lock()
			filterGrad.Add(fg)
			lock.Unlock()
		}
		if doIn {
			inUp := cr.MakeVector(inSize)
			c.Conver.im2row.Mapper(cr).MapTranspose(
				c.Conver.rowProduct(uMat, filters, false), inUp)
			inUpstreams[i] = inUp
		}
	})

	if doIn {
		c.In.Propagate(cr.Concat(inUpstreams...), g)
	}
}

// loopPatches visits every sample of the batch with a
// patch matrix, which is only filled in when the filter
// gradient needs it.
func (c *convRes) loopPatches(fill bool, f func(i int, m *anyvec.Matrix)) {
	cr := c.In.Output().Creator()
	switch {
	case fill:
		c.Conver.mapper()(c.In.Output(), f)
	case c.Conver.parallel():
		c.Conver.im2row.CallParallel(cr, c.N, f)
	default:
		c.Conver.im2row.CallAll(cr, c.N, f)
	}
}

// rowProduct computes a*b (or a*b^T if transB is set),
// splitting the rows of a between the workers.
func (c *conver) rowProduct(a, b *anyvec.Matrix, transB bool) anyvec.Vector {
	cr := a.Data.Creator()
	cols := b.Cols
	if transB {
		cols = b.Rows
	}
	blocks := c.blocks(a.Rows)
	parts := make([]anyvec.Vector, blocks)
	c.eachBlock(a.Rows, blocks, func(i, start, end int) {
		prod := &anyvec.Matrix{
			Data: cr.MakeVector((end - start) * cols),
			Rows: end - start,
			Cols: cols,
		}
		prod.Product(false, transB, cr.MakeNumeric(1), rowSlice(a, start, end), b,
			cr.MakeNumeric(0))
		parts[i] = prod.Data
	})
	if blocks == 1 {
		return parts[0]
	}
	return cr.Concat(parts...)
}

// filterGrad computes u^T*patches, summing the products
// of row blocks computed by the workers.
func (c *conver) filterGrad(u, patches *anyvec.Matrix) anyvec.Vector {
	cr := u.Data.Creator()
	blocks := c.blocks(u.Rows)
	parts := make([]anyvec.Vector, blocks)
	c.eachBlock(u.Rows, blocks, func(i, start, end int) {
		fg := c.filterMatrix()
		fg.Data = cr.MakeVector(fg.Rows * fg.Cols)
		fg.Product(true, false, cr.MakeNumeric(1), rowSlice(u, start, end),
			rowSlice(patches, start, end), cr.MakeNumeric(0))
		parts[i] = fg.Data
	})
	for _, p := range parts[1:] {
		parts[0].Add(p)
	}
	return parts[0]
}

func (c *conver) blocks(rows int) int {
	if c.workers < 2 || rows < 2 {
		return 1
	}
	if c.workers > rows {
		return rows
	}
	return c.workers
}

// eachBlock calls f for consecutive, non-empty row ranges
// covering [0, rows), concurrently if there are several.
func (c *conver) eachBlock(rows, blocks int, f func(i, start, end int)) {
	if blocks == 1 {
		f(0, 0, rows)
		return
	}
	var wg sync.WaitGroup
	for i := 0; i < blocks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f(i, i*rows/blocks, (i+1)*rows/blocks)
		}(i)
	}
	wg.Wait()
}

func rowSlice(m *anyvec.Matrix, start, end int) *anyvec.Matrix {
	if start == 0 && end == m.Rows {
		return m
	}
	return &anyvec.Matrix{
		Data: m.Data.Slice(start*m.Cols, end*m.Cols),
		Rows: end - start,
		Cols: m.Cols,
	}
}

// sumPixels sums a depth-minor tensor over every spatial
// position, leaving one value per channel.
func sumPixels(v anyvec.Vector, depth int) anyvec.Vector {
	return anyvec.SumRows(v, depth)
}
