package data

import (
	"math/rand"

	"github.com/ezgor/degradation-model/optim"
)

// A Stream yields the batches of a training epoch.
type Stream interface {
	// NumBatches returns the number of batches per epoch.
	NumBatches() int

	// Batch fetches the i-th batch of the epoch.
	Batch(i int) (*Batch, error)
}

// A PairStream is a Stream that fetches batches of image
// pairs from disk.
type PairStream struct {
	Pairs     PairList
	BatchSize int
	Fetcher   *Fetcher

	// Rand, if non-nil, is used to shuffle the pairs each
	// time the first batch of an epoch is requested.
	Rand *rand.Rand

	batches []optim.SampleList
}

// NumBatches returns the number of batches, counting a
// final partial batch.
func (p *PairStream) NumBatches() int {
	return (p.Pairs.Len() + p.BatchSize - 1) / p.BatchSize
}

// Batch fetches the i-th batch.
//
// Requesting the first batch starts a new epoch, cutting
// the (shuffled) pairs into batches again.
func (p *PairStream) Batch(i int) (*Batch, error) {
	if i == 0 || p.batches == nil {
		if i == 0 && p.Rand != nil {
			optim.Shuffle(p.Pairs, p.Rand)
		}
		p.batches = optim.Batches(p.Pairs, p.BatchSize)
	}
	return p.Fetcher.Fetch(p.batches[i])
}

// A SliceStream is a Stream of batches that are already in
// memory.
type SliceStream []*Batch

// NumBatches returns len(s).
func (s SliceStream) NumBatches() int {
	return len(s)
}

// Batch returns s[i].
func (s SliceStream) Batch(i int) (*Batch, error) {
	return s[i], nil
}
