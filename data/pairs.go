// Package data reads paired low quality and ground truth
// images from disk.
package data

import (
	"crypto/md5"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ezgor/degradation-model/optim"
)

// Directory names inside a dataset root.
const (
	GTDir = "GT"
	LQDir = "LQ"
)

// ErrMismatch is returned when the two halves of a
// dataset do not line up.
var ErrMismatch = errors.New("dataset mismatch")

// A Pair names a ground truth image and the low quality
// image it corresponds to.
type Pair struct {
	Name string
	GT   string
	LQ   string
}

// A PairList is an optim.SampleList of image pairs.
type PairList []*Pair

// ScanPairs lists the image pairs of a dataset root.
//
// Ground truth images live in root/GT and low quality
// images in root/LQ.
// Files are matched by name, ignoring the extension, and
// the result is sorted by name.
func ScanPairs(root string) (PairList, error) {
	gts, err := listImages(filepath.Join(root, GTDir))
	if err != nil {
		return nil, err
	}
	lqs, err := listImages(filepath.Join(root, LQDir))
	if err != nil {
		return nil, err
	}
	var res PairList
	for name, gt := range gts {
		lq, ok := lqs[name]
		if !ok {
			return nil, errors.Wrapf(ErrMismatch, "no low quality image for %s", gt)
		}
		res = append(res, &Pair{Name: name, GT: gt, LQ: lq})
	}
	if len(lqs) != len(gts) {
		return nil, errors.Wrapf(ErrMismatch, "%d ground truth images but %d low quality",
			len(gts), len(lqs))
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res, nil
}

func listImages(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list images")
	}
	res := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		ext := filepath.Ext(entry.Name())
		name := strings.TrimSuffix(entry.Name(), ext)
		if _, ok := res[name]; ok {
			return nil, errors.Wrapf(ErrMismatch, "duplicate image name %s in %s", name, dir)
		}
		res[name] = filepath.Join(dir, entry.Name())
	}
	return res, nil
}

// Len returns the number of pairs.
func (p PairList) Len() int {
	return len(p)
}

// Swap swaps two pairs.
func (p PairList) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

// Slice copies a sub-slice of the list.
func (p PairList) Slice(i, j int) optim.SampleList {
	return append(PairList{}, p[i:j]...)
}

// Hash hashes the name of a pair.
func (p PairList) Hash(i int) []byte {
	sum := md5.Sum([]byte(p[i].Name))
	return sum[:]
}

// Split deterministically moves about ratio of the pairs
// into the first list, based on their names.
func Split(p PairList, ratio float64) (left, right PairList) {
	l, r := optim.HashSplit(append(PairList{}, p...), ratio)
	return l.(PairList), r.(PairList)
}
