package data

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/unixpickle/anyvec/anyvec64"
)

func writeTestImage(t *testing.T, path string, w, h int, shade uint8) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	img.SetGray(0, 0, color.Gray{Y: 0xff})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func makeDataset(t *testing.T, names []string, gtSize, lqSize int) string {
	root := t.TempDir()
	for _, dir := range []string{GTDir, LQDir} {
		if err := os.Mkdir(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	for i, name := range names {
		writeTestImage(t, filepath.Join(root, GTDir, name+".png"), gtSize, gtSize, uint8(i))
		writeTestImage(t, filepath.Join(root, LQDir, name+".png"), lqSize, lqSize, uint8(i))
	}
	return root
}

func TestScanPairs(t *testing.T) {
	root := makeDataset(t, []string{"b", "a", "c"}, 4, 2)
	if err := os.WriteFile(filepath.Join(root, GTDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	pairs, err := ScanPairs(root)
	if err != nil {
		t.Fatal(err)
	}
	if pairs.Len() != 3 {
		t.Fatalf("expected 3 pairs but got %d", pairs.Len())
	}
	for i, name := range []string{"a", "b", "c"} {
		if pairs[i].Name != name {
			t.Errorf("pair %d: expected %s but got %s", i, name, pairs[i].Name)
		}
		if filepath.Base(pairs[i].LQ) != name+".png" {
			t.Errorf("pair %d: unexpected LQ path %s", i, pairs[i].LQ)
		}
	}
}

func TestScanPairsMismatch(t *testing.T) {
	root := makeDataset(t, []string{"a", "b"}, 4, 2)
	if err := os.Remove(filepath.Join(root, LQDir, "b.png")); err != nil {
		t.Fatal(err)
	}
	if _, err := ScanPairs(root); errors.Cause(err) != ErrMismatch {
		t.Errorf("unexpected error %v", err)
	}
}

func TestFetch(t *testing.T) {
	root := makeDataset(t, []string{"a", "b", "c"}, 4, 2)
	pairs, err := ScanPairs(root)
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &Fetcher{
		Creator:  anyvec64.CurrentCreator(),
		Channels: 1,
		Width:    4,
		Height:   4,
		Scale:    2,
		Workers:  2,
	}
	batch, err := fetcher.Fetch(pairs)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Len() != 3 {
		t.Fatalf("expected 3 samples but got %d", batch.Len())
	}
	for i := 0; i < 3; i++ {
		if batch.GTs[i].Len() != 16 || batch.LQs[i].Len() != 4 {
			t.Errorf("sample %d: unexpected sizes %d and %d", i, batch.GTs[i].Len(),
				batch.LQs[i].Len())
		}
		gt := batch.GTs[i].Data().([]float64)
		if expected := float64(i) / 0xff; math.Abs(gt[1]-expected) > 1e-9 {
			t.Errorf("sample %d out of order: pixel %f, expected %f", i, gt[1], expected)
		}
	}

	fetcher.Width = 8
	if _, err := fetcher.Fetch(pairs); errors.Cause(err) != ErrMismatch {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPairStream(t *testing.T) {
	root := makeDataset(t, []string{"a", "b", "c", "d", "e"}, 4, 2)
	pairs, err := ScanPairs(root)
	if err != nil {
		t.Fatal(err)
	}
	stream := &PairStream{
		Pairs:     pairs,
		BatchSize: 2,
		Fetcher: &Fetcher{
			Creator:  anyvec64.CurrentCreator(),
			Channels: 1,
			Width:    4,
			Height:   4,
			Scale:    2,
		},
	}
	if stream.NumBatches() != 3 {
		t.Fatalf("expected 3 batches but got %d", stream.NumBatches())
	}
	for _, r := range []*rand.Rand{nil, rand.New(rand.NewSource(1))} {
		stream.Rand = r
		seen := map[int]bool{}
		for i, size := range []int{2, 2, 1} {
			b, err := stream.Batch(i)
			if err != nil {
				t.Fatal(err)
			}
			if b.Len() != size {
				t.Errorf("batch %d: expected %d samples but got %d", i, size, b.Len())
			}
			for _, gt := range b.GTs {
				seen[int(math.Round(gt.Data().([]float64)[1]*0xff))] = true
			}
		}
		if len(seen) != 5 {
			t.Errorf("expected 5 distinct samples but got %d", len(seen))
		}
	}
}

func TestSplit(t *testing.T) {
	var pairs PairList
	for i := 0; i < 200; i++ {
		pairs = append(pairs, &Pair{Name: string(rune('a'+i%26)) + string(rune('0'+i/26))})
	}
	left, right := Split(pairs, 0.25)
	if left.Len()+right.Len() != 200 {
		t.Fatal("pairs lost")
	}
	if pairs[0].Name != "a0" {
		t.Error("split modified its input")
	}
	left2, _ := Split(pairs, 0.25)
	if left2.Len() != left.Len() {
		t.Error("split is not deterministic")
	}
}
