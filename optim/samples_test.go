package optim

import (
	"crypto/md5"
	"math/rand"
	"sort"
	"strconv"
	"testing"
)

type testList []int

func (t testList) Len() int {
	return len(t)
}

func (t testList) Swap(i, j int) {
	t[i], t[j] = t[j], t[i]
}

func (t testList) Slice(i, j int) SampleList {
	return append(testList{}, t[i:j]...)
}

func (t testList) Hash(i int) []byte {
	sum := md5.Sum([]byte(strconv.Itoa(t[i])))
	return sum[:]
}

func newTestList(n int) testList {
	res := make(testList, n)
	for i := range res {
		res[i] = i
	}
	return res
}

func TestShuffle(t *testing.T) {
	list := newTestList(50)
	Shuffle(list, rand.New(rand.NewSource(1)))
	sorted := append(testList{}, list...)
	sort.Ints(sorted)
	for i, x := range sorted {
		if x != i {
			t.Fatalf("shuffle lost samples: %v", list)
		}
	}

	other := newTestList(50)
	Shuffle(other, rand.New(rand.NewSource(1)))
	for i := range list {
		if list[i] != other[i] {
			t.Fatal("seeded shuffles differ")
		}
	}
}

func TestBatches(t *testing.T) {
	batches := Batches(newTestList(7), 3)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches but got %d", len(batches))
	}
	lens := []int{3, 3, 1}
	for i, b := range batches {
		if b.Len() != lens[i] {
			t.Errorf("batch %d: expected %d samples but got %d", i, lens[i], b.Len())
		}
	}
	if len(Batches(newTestList(0), 3)) != 0 {
		t.Error("expected no batches for an empty list")
	}
}

func TestHashSplit(t *testing.T) {
	list := newTestList(1000)
	left, right := HashSplit(list, 0.2)
	if left.Len()+right.Len() != 1000 {
		t.Fatal("samples lost")
	}
	if left.Len() < 120 || left.Len() > 280 {
		t.Errorf("unexpected left size %d", left.Len())
	}

	shuffled := newTestList(1000)
	Shuffle(shuffled, nil)
	left2, _ := HashSplit(shuffled, 0.2)
	inLeft := map[int]bool{}
	for _, x := range left.(testList) {
		inLeft[x] = true
	}
	for _, x := range left2.(testList) {
		if !inLeft[x] {
			t.Fatalf("sample %d changed sides", x)
		}
	}
}
