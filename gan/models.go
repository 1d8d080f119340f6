package gan

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"

	degradation "github.com/ezgor/degradation-model"
	"github.com/ezgor/degradation-model/conv"
)

const (
	// InitStddev is the standard deviation of initial
	// convolution filters and of BatchNorm scales around 1.
	InitStddev = 0.02

	discriminatorSlope = 0.2
)

// NewGenerator creates a generator for WxH ground truth
// tensors with one extra noise channel.
//
// The output has the given number of channels and is
// scale times smaller in each dimension.
func NewGenerator(c anyvec.Creator, channels, w, h, scale int) degradation.Net {
	b := &netBuilder{creator: c, width: w, height: h, depth: channels + 1}
	b.reflectConv(channels*8, 1)
	b.add(&degradation.LeakyReLU{})
	b.reflectConv(channels*64, 1)
	b.add(&degradation.LeakyReLU{})
	b.reflectConv(channels*64, scale)
	b.add(&degradation.LeakyReLU{})
	b.reflectConv(channels*8, 1)
	b.add(degradation.Sigmoid)
	b.reflectConv(channels, 1)
	b.add(degradation.Sigmoid)
	return b.net
}

// NewDiscriminator creates a discriminator for WxH
// tensors, producing one probability per tensor.
func NewDiscriminator(c anyvec.Creator, channels, w, h int) degradation.Net {
	ndf := channels
	b := &netBuilder{creator: c, width: w, height: h, depth: channels}
	b.zeroPad(2)
	b.conv(ndf, 5, 2, true)
	b.add(&degradation.LeakyReLU{Slope: discriminatorSlope})
	b.zeroPad(2)
	b.conv(ndf*2, 5, 2, true)
	b.batchNorm()
	b.add(&degradation.LeakyReLU{Slope: discriminatorSlope})
	b.conv(1, 5, 2, true)
	b.add(conv.GlobalMeanPool(b.width, b.height, b.depth))

	b.add(degradation.NewFC(c, 1, 16))
	b.add(&degradation.LeakyReLU{})
	b.add(degradation.NewFC(c, 16, 256))
	b.add(&degradation.LeakyReLU{})
	b.add(degradation.NewFC(c, 256, 16))
	b.add(&degradation.LeakyReLU{})
	b.add(degradation.NewFC(c, 16, 1))
	b.add(degradation.Sigmoid)
	return b.net
}

// batchNorms returns the BatchNorm layers of a network.
func batchNorms(n degradation.Net) []*conv.BatchNorm {
	var res []*conv.BatchNorm
	for _, layer := range n {
		if bn, ok := layer.(*conv.BatchNorm); ok {
			res = append(res, bn)
		}
	}
	return res
}

type netBuilder struct {
	creator anyvec.Creator
	net     degradation.Net

	width  int
	height int
	depth  int
}

func (n *netBuilder) add(l degradation.Layer) {
	n.net = append(n.net, l)
}

func (n *netBuilder) reflectConv(filters, stride int) {
	p := &conv.ReflectPadding{Border: conv.Uniform(n.width, n.height, n.depth, 1)}
	n.add(p)
	n.width, n.height = p.OutputWidth(), p.OutputHeight()
	n.conv(filters, 3, stride, false)
}

func (n *netBuilder) zeroPad(amount int) {
	p := &conv.Padding{Border: conv.Uniform(n.width, n.height, n.depth, amount)}
	n.add(p)
	n.width, n.height = p.OutputWidth(), p.OutputHeight()
}

func (n *netBuilder) conv(filters, size, stride int, noBias bool) {
	c := &conv.Conv{
		FilterCount:  filters,
		FilterWidth:  size,
		FilterHeight: size,
		StrideX:      stride,
		StrideY:      stride,
		InputWidth:   n.width,
		InputHeight:  n.height,
		InputDepth:   n.depth,
		NoBias:       noBias,
	}
	if n.width < size || n.height < size {
		panic("input too small for convolution")
	}
	c.InitNormal(n.creator, InitStddev)
	n.add(c)
	n.width, n.height, n.depth = c.OutputWidth(), c.OutputHeight(), c.OutputDepth()
}

func (n *netBuilder) batchNorm() {
	bn := conv.NewBatchNorm(n.creator, n.depth)
	scales := n.creator.MakeVector(n.depth)
	anyvec.Rand(scales, anyvec.Normal, nil)
	scales.Scale(n.creator.MakeNumeric(InitStddev))
	scales.AddScalar(n.creator.MakeNumeric(1))
	bn.Scalers = anydiff.NewVar(scales)
	n.add(bn)
}
