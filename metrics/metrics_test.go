package metrics

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func randomMetricImage(w, h, c int, r *rand.Rand) Image {
	img := Image{Width: w, Height: h, Channels: c, Data: make([]float64, w*h*c)}
	for i := range img.Data {
		img.Data[i] = r.Float64()
	}
	return img
}

func TestPSNR(t *testing.T) {
	a := Image{Width: 2, Height: 1, Channels: 1, Data: []float64{0.5, 0.5}}
	b := Image{Width: 2, Height: 1, Channels: 1, Data: []float64{0.6, 0.4}}
	actual, err := PSNR(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(actual-20) > 1e-9 {
		t.Errorf("expected 20 but got %f", actual)
	}

	same, err := PSNR(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(same, 1) {
		t.Errorf("expected +Inf but got %f", same)
	}
}

func TestShapeMismatch(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	a := randomMetricImage(8, 8, 3, r)
	b := randomMetricImage(8, 7, 3, r)
	if _, err := PSNR(a, b); errors.Cause(err) != ErrShape {
		t.Errorf("PSNR: unexpected error %v", err)
	}
	if _, err := SSIM(a, b); errors.Cause(err) != ErrShape {
		t.Errorf("SSIM: unexpected error %v", err)
	}
	small := randomMetricImage(6, 6, 1, r)
	if _, err := SSIM(small, small); errors.Cause(err) != ErrShape {
		t.Errorf("SSIM: expected error for tiny image, got %v", err)
	}
}

func TestSSIM(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	a := randomMetricImage(12, 10, 3, r)
	same, err := SSIM(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(same-1) > 1e-9 {
		t.Errorf("expected 1 for identical images but got %f", same)
	}

	b := randomMetricImage(12, 10, 3, r)
	different, err := SSIM(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if different >= 0.5 || different <= -1 {
		t.Errorf("unexpected SSIM for unrelated images: %f", different)
	}
	reverse, _ := SSIM(b, a)
	if math.Abs(reverse-different) > 1e-12 {
		t.Errorf("SSIM is not symmetric: %f vs %f", different, reverse)
	}
}

func TestSSIMConstant(t *testing.T) {
	// For constant windows only the luminance term remains.
	a := Image{Width: 7, Height: 7, Channels: 1, Data: make([]float64, 49)}
	b := Image{Width: 7, Height: 7, Channels: 1, Data: make([]float64, 49)}
	for i := range b.Data {
		b.Data[i] = 0.5
	}
	actual, err := SSIM(a, b)
	if err != nil {
		t.Fatal(err)
	}
	c1 := ssimK1 * ssimK1
	expected := c1 / (0.25 + c1)
	if math.Abs(actual-expected) > 1e-12 {
		t.Errorf("expected %f but got %f", expected, actual)
	}

	// A data range of 2 would give (4*c1)/(0.25+4*c1).
	if wide := 4 * c1 / (0.25 + 4*c1); math.Abs(actual-wide) < 1e-6 {
		t.Error("SSIM uses a data range of 2")
	}
}

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags("psnr, SSIM")
	if err != nil {
		t.Fatal(err)
	}
	if !flags.Has(PSNRFlag) || !flags.Has(SSIMFlag) || flags.Has(LPIPSFlag) {
		t.Errorf("unexpected flags %v", flags)
	}
	if flags.String() != "PSNR,SSIM" {
		t.Errorf("unexpected string %q", flags.String())
	}
	if empty, err := ParseFlags(""); err != nil || empty != 0 {
		t.Errorf("unexpected result for empty string: %v, %v", empty, err)
	}
	_, err = ParseFlags("PSNR,FID")
	if err == nil {
		t.Fatal("expected error for unknown metric")
	}
	if err.Error() != "unknown metric: FID" {
		t.Errorf("unexpected error %q", err)
	}
	if !strings.Contains(fmt.Sprintf("%+v", err), "ParseFlags") {
		t.Error("error carries no stack trace")
	}
}
