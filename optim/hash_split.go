package optim

// A Hasher is a SampleList with the added capability to
// produce a hash for a given sample.
type Hasher interface {
	SampleList
	Hash(i int) []byte
}

// HashSplit deterministically partitions a Hasher, for
// example into validation and training samples.
// Each sample goes left if its hash falls below a cutoff
// derived from leftRatio, so the split is stable across
// runs and independent of sample order.
//
// The Hasher h is re-ordered in place.
func HashSplit(h Hasher, leftRatio float64) (left, right SampleList) {
	if leftRatio == 0 {
		return h.Slice(0, 0), h
	} else if leftRatio == 1 {
		return h, h.Slice(0, 0)
	}
	cutoff := hashCutoff(leftRatio)
	split := 0
	for i := 0; i < h.Len(); i++ {
		if compareHashes(h.Hash(i), cutoff) < 0 {
			h.Swap(split, i)
			split++
		}
	}
	return h.Slice(0, split), h.Slice(split, h.Len())
}

func hashCutoff(ratio float64) []byte {
	res := make([]byte, 8)
	for i := range res {
		ratio *= 256
		value := int(ratio)
		ratio -= float64(value)
		if value == 256 {
			value = 255
		}
		res[i] = byte(value)
	}
	return res
}

func compareHashes(h1, h2 []byte) int {
	max := len(h1)
	if len(h2) > max {
		max = len(h2)
	}
	for i := 0; i < max; i++ {
		var h1Val, h2Val byte
		if i < len(h1) {
			h1Val = h1[i]
		}
		if i < len(h2) {
			h2Val = h2[i]
		}
		if h1Val < h2Val {
			return -1
		} else if h1Val > h2Val {
			return 1
		}
	}
	return 0
}
