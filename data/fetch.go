package data

import (
	"image"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/unixpickle/anyvec"

	"github.com/ezgor/degradation-model/conv"
	"github.com/ezgor/degradation-model/optim"
)

// A Batch holds the tensors of several pairs, in the
// order of the list they were fetched from.
type Batch struct {
	LQs []anyvec.Vector
	GTs []anyvec.Vector

	// Dimensions of the ground truth tensors.
	// The low quality tensors are Scale times smaller.
	Width  int
	Height int
}

// Len returns the number of pairs in the batch.
func (b *Batch) Len() int {
	return len(b.GTs)
}

// A Fetcher turns PairLists into Batches.
type Fetcher struct {
	Creator  anyvec.Creator
	Channels int

	// Width and Height are the required ground truth size.
	Width  int
	Height int

	// Scale is the size ratio between ground truth and
	// low quality images.
	Scale int

	// Workers is the number of images decoded at once.
	// If it is 0, GOMAXPROCS is used.
	Workers int
}

// Fetch decodes and converts every pair in s, which must
// be a PairList.
func (f *Fetcher) Fetch(s optim.SampleList) (*Batch, error) {
	l := s.(PairList)
	if l.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}

	res := &Batch{
		LQs:    make([]anyvec.Vector, l.Len()),
		GTs:    make([]anyvec.Vector, l.Len()),
		Width:  f.Width,
		Height: f.Height,
	}

	workers := f.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	idxChan := make(chan int, l.Len())
	for i := 0; i < l.Len(); i++ {
		idxChan <- i
	}
	close(idxChan)

	var wg sync.WaitGroup
	errChan := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxChan {
				gt, lq, err := l.LoadImages(i)
				if err == nil {
					err = f.checkSizes(l[i], gt, lq)
				}
				if err != nil {
					errChan <- errors.Wrap(err, "fetch batch")
					return
				}
				res.GTs[i] = conv.ImageToTensor(f.Creator, gt, f.Channels)
				res.LQs[i] = conv.ImageToTensor(f.Creator, lq, f.Channels)
			}
		}()
	}
	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) checkSizes(p *Pair, gt, lq image.Image) error {
	gw, gh := gt.Bounds().Dx(), gt.Bounds().Dy()
	if gw != f.Width || gh != f.Height {
		return errors.Wrapf(ErrMismatch, "%s is %dx%d, expected %dx%d", p.GT, gw, gh,
			f.Width, f.Height)
	}
	lw, lh := lq.Bounds().Dx(), lq.Bounds().Dy()
	if lw != f.Width/f.Scale || lh != f.Height/f.Scale {
		return errors.Wrapf(ErrMismatch, "%s is %dx%d, expected %dx%d", p.LQ, lw, lh,
			f.Width/f.Scale, f.Height/f.Scale)
	}
	return nil
}
