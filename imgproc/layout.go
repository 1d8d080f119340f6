package imgproc

// ToPlanar converts a WxHxC depth-minor tensor to the
// channel-major [C,H,W] layout.
func ToPlanar(data []float64, w, h, c int) []float64 {
	checkSize(data, w, h, c)
	res := make([]float64, len(data))
	for i := 0; i < w*h; i++ {
		for z := 0; z < c; z++ {
			res[z*w*h+i] = data[i*c+z]
		}
	}
	return res
}

func checkSize(data []float64, w, h, c int) {
	if len(data) != w*h*c {
		panic("tensor size does not match dimensions")
	}
}
