package conv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// batchMap applies m to every InSize() chunk of v.
func batchMap(m anyvec.Mapper, v anyvec.Vector) anyvec.Vector {
	n := v.Len() / m.InSize()
	outs := make([]anyvec.Vector, n)
	for i := range outs {
		outs[i] = m.Creator().MakeVector(m.OutSize())
		m.Map(v.Slice(i*m.InSize(), (i+1)*m.InSize()), outs[i])
	}
	return concatOrEmpty(m.Creator(), outs)
}

// batchMapTranspose applies the transpose of m to every
// OutSize() chunk of v.
func batchMapTranspose(m anyvec.Mapper, v anyvec.Vector) anyvec.Vector {
	n := v.Len() / m.OutSize()
	outs := make([]anyvec.Vector, n)
	for i := range outs {
		outs[i] = m.Creator().MakeVector(m.InSize())
		m.MapTranspose(v.Slice(i*m.OutSize(), (i+1)*m.OutSize()), outs[i])
	}
	return concatOrEmpty(m.Creator(), outs)
}

func concatOrEmpty(c anyvec.Creator, vs []anyvec.Vector) anyvec.Vector {
	if len(vs) == 0 {
		return c.MakeVector(0)
	}
	return c.Concat(vs...)
}

type meanRowsRes struct {
	In     anydiff.Res
	Scaler anyvec.Numeric
	Out    anyvec.Vector
}

// negMeanRows computes the negative of the mean of the
// rows in a row-major matrix.
func negMeanRows(in anydiff.Res, cols int) anydiff.Res {
	if in.Output().Len()%cols != 0 {
		panic("column count must divide input size")
	}
	rows := in.Output().Len() / cols
	scaler := in.Output().Creator().MakeNumeric(-1 / float64(rows))
	out := anyvec.SumRows(in.Output(), cols)
	out.Scale(scaler)
	return &meanRowsRes{In: in, Scaler: scaler, Out: out}
}

func (m *meanRowsRes) Output() anyvec.Vector {
	return m.Out
}

func (m *meanRowsRes) Vars() anydiff.VarSet {
	return m.In.Vars()
}

func (m *meanRowsRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	u.Scale(m.Scaler)
	if v, ok := m.In.(*anydiff.Var); ok {
		if downstream, ok := g[v]; ok {
			anyvec.AddRepeated(downstream, u)
		}
		return
	}
	downstream := m.Out.Creator().MakeVector(m.In.Output().Len())
	anyvec.AddRepeated(downstream, u)
	m.In.Propagate(downstream, g)
}

type meanSquareRes struct {
	In     anydiff.Res
	Scaler anyvec.Numeric
	Out    anyvec.Vector
}

// meanSquare computes the mean of the squared rows of a
// row-major matrix.
func meanSquare(in anydiff.Res, cols int) anydiff.Res {
	if in.Output().Len()%cols != 0 {
		panic("column count must divide input size")
	}
	rows := in.Output().Len() / cols
	c := in.Output().Creator()
	squares := in.Output().Copy()
	squares.Mul(in.Output())
	out := anyvec.SumRows(squares, cols)
	out.Scale(c.MakeNumeric(1 / float64(rows)))
	return &meanSquareRes{
		In:     in,
		Scaler: c.MakeNumeric(2 / float64(rows)),
		Out:    out,
	}
}

func (m *meanSquareRes) Output() anyvec.Vector {
	return m.Out
}

func (m *meanSquareRes) Vars() anydiff.VarSet {
	return m.In.Vars()
}

func (m *meanSquareRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	u.Scale(m.Scaler)
	downstream := m.Out.Creator().MakeVector(m.In.Output().Len())
	anyvec.AddRepeated(downstream, u)
	downstream.Mul(m.In.Output())
	m.In.Propagate(downstream, g)
}
