package optim

import "math/rand"

// A SampleList represents a list of training samples.
type SampleList interface {
	// Len returns the number of samples.
	Len() int

	// Swap swaps two samples.
	Swap(i, j int)

	// Slice generates a shallow copy of a subset of the
	// list.
	Slice(i, j int) SampleList
}

// PostShuffler is notified after a SampleList has been
// shuffled.
type PostShuffler interface {
	PostShuffle()
}

// Shuffle shuffles a list of samples.
// If the list implements PostShuffler, then PostShuffle
// is called after the shuffle completes.
//
// If r is nil, the global source is used.
func Shuffle(s SampleList, r *rand.Rand) {
	intn := rand.Intn
	if r != nil {
		intn = r.Intn
	}
	for i := 0; i < s.Len(); i++ {
		j := i + intn(s.Len()-i)
		s.Swap(i, j)
	}
	if p, ok := s.(PostShuffler); ok {
		p.PostShuffle()
	}
}

// Batches cuts s into consecutive slices of at most size
// samples.
// The last batch holds the remainder.
func Batches(s SampleList, size int) []SampleList {
	if size <= 0 {
		panic("batch size must be positive")
	}
	var res []SampleList
	for i := 0; i < s.Len(); i += size {
		end := i + size
		if end > s.Len() {
			end = s.Len()
		}
		res = append(res, s.Slice(i, end))
	}
	return res
}
