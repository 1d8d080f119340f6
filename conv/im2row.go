package conv

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/unixpickle/anyvec"
)

// Im2Row maps the windows of an input tensor to the rows
// of a patch matrix.
//
// Windows are WindowWidth by WindowHeight, and slide with
// strides StrideX and StrideY.
// Row i of the patch matrix holds the window for output
// pixel i of a Conv or MeanPool with the same geometry.
//
// An Im2Row caches its gather table, so it should not be
// modified once used.
type Im2Row struct {
	WindowWidth  int
	WindowHeight int

	StrideX int
	StrideY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	mapperLock sync.Mutex
	mapper     anyvec.Mapper
}

// InputSize returns the number of components in one input
// tensor.
func (m *Im2Row) InputSize() int {
	return m.InputWidth * m.InputHeight * m.InputDepth
}

// NumX returns the number of horizontal window positions.
func (m *Im2Row) NumX() int {
	return windowCount(m.InputWidth, m.WindowWidth, m.StrideX)
}

// NumY returns the number of vertical window positions.
func (m *Im2Row) NumY() int {
	return windowCount(m.InputHeight, m.WindowHeight, m.StrideY)
}

// MakeOut allocates a patch matrix.
func (m *Im2Row) MakeOut(c anyvec.Creator) *anyvec.Matrix {
	rows := m.NumX() * m.NumY()
	cols := m.WindowWidth * m.WindowHeight * m.InputDepth
	return &anyvec.Matrix{Data: c.MakeVector(rows * cols), Rows: rows, Cols: cols}
}

// MapAll computes the patch matrix of every tensor in a
// batch and calls f with each one, in order.
//
// The matrix passed to f is reused between calls.
func (m *Im2Row) MapAll(in anyvec.Vector, f func(idx int, m *anyvec.Matrix)) {
	m.mapBatch(in, f, false)
}

// MapParallel is like MapAll, but f may be called
// concurrently and out of order.
func (m *Im2Row) MapParallel(in anyvec.Vector, f func(idx int, m *anyvec.Matrix)) {
	m.mapBatch(in, f, true)
}

func (m *Im2Row) mapBatch(in anyvec.Vector, f func(int, *anyvec.Matrix), parallel bool) {
	inSize := m.InputSize()
	if in.Len()%inSize != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d", in.Len(), inSize))
	}
	mapper := m.Mapper(in.Creator())
	fill := func(i int, mat *anyvec.Matrix) {
		mapper.Map(in.Slice(inSize*i, inSize*(i+1)), mat.Data)
		f(i, mat)
	}
	n := in.Len() / inSize
	if parallel {
		m.CallParallel(in.Creator(), n, fill)
	} else {
		m.CallAll(in.Creator(), n, fill)
	}
}

// CallAll calls f n times with an allocated patch matrix
// whose contents are unspecified.
func (m *Im2Row) CallAll(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	mat := m.MakeOut(c)
	for i := 0; i < n; i++ {
		f(i, mat)
	}
}

// CallParallel is like CallAll, but spreads the calls
// over GOMAXPROCS goroutines, each with its own matrix.
func (m *Im2Row) CallParallel(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mat := m.MakeOut(c)
			for j := range jobs {
				f(j, mat)
			}
		}()
	}
	wg.Wait()
}

// Mapper returns the gather mapper from an input tensor
// to its patch matrix.
func (m *Im2Row) Mapper(c anyvec.Creator) anyvec.Mapper {
	m.mapperLock.Lock()
	defer m.mapperLock.Unlock()
	if m.mapper != nil && m.mapper.Creator() == c {
		return m.mapper
	}

	rowStride := m.InputWidth * m.InputDepth
	var table []int
	for y := 0; y+m.WindowHeight <= m.InputHeight; y += m.StrideY {
		for x := 0; x+m.WindowWidth <= m.InputWidth; x += m.StrideX {
			for wy := 0; wy < m.WindowHeight; wy++ {
				rowStart := (y+wy)*rowStride + x*m.InputDepth
				for i := 0; i < m.WindowWidth*m.InputDepth; i++ {
					table = append(table, rowStart+i)
				}
			}
		}
	}
	m.mapper = c.MakeMapper(m.InputSize(), table)
	return m.mapper
}

func windowCount(size, window, stride int) int {
	n := 1 + (size-window)/stride
	if n < 0 || size < window {
		return 0
	}
	return n
}
