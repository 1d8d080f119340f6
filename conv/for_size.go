package conv

import degradation "github.com/ezgor/degradation-model"

// ForSize adapts a convolutional network to WxH inputs.
//
// The result shares every parameter and BatchNorm layer
// with n, so training one trains the other.
func ForSize(n degradation.Net, w, h int) degradation.Net {
	res, _, _ := Resize(n, w, h)
	return res.(degradation.Net)
}

// Resize adapts a layer to WxH inputs and returns the
// adapted layer along with its output width and height.
//
// Padding, Conv and MeanPool layers are rebuilt for the
// new size, Nets are resized layer by layer, and all
// other layers are kept as they are.
// The output size is 0x0 if the input is too small for
// one of the filters, in which case the layers after it
// are not resized.
func Resize(l degradation.Layer, w, h int) (res degradation.Layer, outW, outH int) {
	switch l := l.(type) {
	case degradation.Net:
		var net degradation.Net
		for i, layer := range l {
			if w < 1 || h < 1 {
				net = append(net, l[i:]...)
				break
			}
			layer, w, h = Resize(layer, w, h)
			net = append(net, layer)
		}
		return net, w, h
	case *Padding:
		p := &Padding{Border: l.Border}
		p.InputWidth, p.InputHeight = w, h
		return p, p.OutputWidth(), p.OutputHeight()
	case *ReflectPadding:
		p := &ReflectPadding{Border: l.Border}
		p.InputWidth, p.InputHeight = w, h
		return p, p.OutputWidth(), p.OutputHeight()
	case *Conv:
		c := *l
		c.InputWidth, c.InputHeight = w, h
		c.Conver = CurrentConverMaker()(c)
		if w < c.FilterWidth || h < c.FilterHeight {
			return &c, 0, 0
		}
		return &c, c.OutputWidth(), c.OutputHeight()
	case *MeanPool:
		var p *MeanPool
		if l.SpanX == l.InputWidth && l.SpanY == l.InputHeight {
			p = GlobalMeanPool(w, h, l.InputDepth)
		} else {
			p = &MeanPool{SpanX: l.SpanX, SpanY: l.SpanY, InputWidth: w,
				InputHeight: h, InputDepth: l.InputDepth}
		}
		return p, p.OutputWidth(), p.OutputHeight()
	}
	return l, w, h
}
