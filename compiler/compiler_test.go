package compiler

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

func solid(size image.Point, value float64, mt gocv.MatType) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), size.Y, size.X, mt)
}

func sameMat(a gocv.Mat, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() && a.Type() == b.Type() &&
		bytes.Equal(a.ToBytes(), b.ToBytes())
}

func TestOddKernel(t *testing.T) {
	tests := []struct {
		in       int
		expected int
	}{
		{0, 3}, {1, 3}, {2, 3}, {3, 3}, {4, 5}, {7, 7}, {14, 15}, {15, 15}, {40, 15},
	}
	for _, tc := range tests {
		if got := OddKernel(tc.in); got != tc.expected {
			t.Fatalf("OddKernel(%d) = %d, expected %d\n", tc.in, got, tc.expected)
		}
	}
}

func TestScaledSize(t *testing.T) {
	if got := ScaledSize(image.Pt(640, 480), 0.5); got != image.Pt(320, 240) {
		t.Fatalf("ScaledSize = %v, expected (320,240)\n", got)
	}
	if got := ScaledSize(image.Pt(101, 33), 0.5); got != image.Pt(51, 17) {
		t.Fatalf("ScaledSize = %v, expected (51,17)\n", got)
	}
}

func TestDisabledStepIsNoOp(t *testing.T) {
	src := solid(image.Pt(32, 24), 77, gocv.MatTypeCV8UC3)
	defer src.Close()
	p, err := New("test").
		Add("blur", false, Blur(5)).
		Add("threshold", false, Threshold(10)).
		Compile()
	if err != nil {
		t.Fatalf("Compile error %v\n", err)
	}
	defer p.Close()
	if len(p.Steps()) != 2 || len(p.Enabled()) != 0 {
		t.Fatalf("steps = %v enabled = %v\n", p.Steps(), p.Enabled())
	}
	out, err := p.Run(src)
	if err != nil {
		t.Fatalf("Run error %v\n", err)
	}
	defer out.Close()
	if out.Ptr() == src.Ptr() {
		t.Fatalf("Run returned the input Mat, expected a copy\n")
	}
	if !sameMat(src, out) {
		t.Fatalf("disabled steps changed the frame\n")
	}
}

func TestCompileIdempotent(t *testing.T) {
	src := solid(image.Pt(40, 30), 200, gocv.MatTypeCV8UC3)
	defer src.Close()
	region := src.Region(image.Rect(4, 4, 12, 12))
	region.SetTo(gocv.NewScalar(10, 10, 10, 0))
	region.Close()
	build := func() *Pipeline {
		p, err := New("test").
			Add("downscale", true, Resize(image.Pt(20, 15), gocv.InterpolationNearestNeighbor)).
			Add("gray", true, Grayscale()).
			Add("morph", true, Morphology(3, gocv.MorphClose, gocv.MorphRect)).
			Add("threshold", true, Threshold(100)).
			Compile()
		if err != nil {
			t.Fatalf("Compile error %v\n", err)
		}
		return p
	}
	a := build()
	defer a.Close()
	b := build()
	defer b.Close()
	outA, errA := a.Run(src)
	outB, errB := b.Run(src)
	if errA != nil || errB != nil {
		t.Fatalf("Run errors %v %v\n", errA, errB)
	}
	defer outA.Close()
	defer outB.Close()
	if !sameMat(outA, outB) {
		t.Fatalf("identical parameters produced different outputs\n")
	}
	if outA.Channels() != 1 || outA.Cols() != 20 || outA.Rows() != 15 {
		t.Fatalf("output %dx%d/%d\n", outA.Cols(), outA.Rows(), outA.Channels())
	}
}

func TestStepFailureDegradesToBlank(t *testing.T) {
	failing := func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			return gocv.Mat{}, errors.New("broken filter")
		}, nil, nil
	}
	panicking := func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			panic("bad filter")
		}, nil, nil
	}
	src := solid(image.Pt(8, 6), 50, gocv.MatTypeCV8UC1)
	defer src.Close()
	for _, build := range []Build{failing, panicking} {
		p, err := New("test").Add("blur", true, Blur(3)).Add("bad", true, build).Compile()
		if err != nil {
			t.Fatalf("Compile error %v\n", err)
		}
		if _, err := p.Run(src); err == nil {
			t.Fatalf("Run expected error\n")
		}
		out := p.RunOrBlank(src, func() gocv.Mat { return stage.BlankFrame(image.Pt(8, 6)) })
		if out.Cols() != 8 || out.Rows() != 6 || gocv.CountNonZero(out) != 0 {
			t.Fatalf("blank output %dx%d with %d set pixels\n", out.Cols(), out.Rows(), gocv.CountNonZero(out))
		}
		out.Close()
		p.Close()
	}
}

func TestMaskImage(t *testing.T) {
	size := image.Pt(20, 10)
	empty, meaningful := MaskImage(size, stage.ZoneList{})
	if meaningful || gocv.CountNonZero(empty) != 200 {
		t.Fatalf("empty zones meaningful=%v nonzero=%d\n", meaningful, gocv.CountNonZero(empty))
	}
	empty.Close()
	zones := stage.ZoneList{
		{{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1}},
		{{0.9, 0.9}, {1, 0.9}},
	}
	mask, meaningful := MaskImage(size, zones)
	defer mask.Close()
	if !meaningful {
		t.Fatalf("half frame zone not meaningful\n")
	}
	if mask.GetUCharAt(5, 2) != 0 || mask.GetUCharAt(5, 18) != 255 {
		t.Fatalf("mask values %d %d, expected 0 and 255\n", mask.GetUCharAt(5, 2), mask.GetUCharAt(5, 18))
	}
}

func TestZoneMask(t *testing.T) {
	size := image.Pt(20, 10)
	zones := stage.ZoneList{{{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1}}}
	if !MaskCovers(size, zones) {
		t.Fatalf("half frame zone does not cover\n")
	}
	if MaskCovers(size, stage.ZoneList{}) {
		t.Fatalf("no zones cover\n")
	}
	p, err := New("test").Add("mask", true, ZoneMask(size, zones)).Compile()
	if err != nil {
		t.Fatalf("Compile error %v\n", err)
	}
	defer p.Close()
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC1)
	defer src.Close()
	out, err := p.Run(src)
	if err != nil {
		t.Fatalf("Run error %v\n", err)
	}
	defer out.Close()
	if out.GetUCharAt(5, 2) != 0 || out.GetUCharAt(5, 18) != 200 {
		t.Fatalf("masked values %d %d, expected 0 and 200\n", out.GetUCharAt(5, 2), out.GetUCharAt(5, 18))
	}
}

func TestZoneMaskNotBuiltAfterFailedStep(t *testing.T) {
	size := image.Pt(20, 10)
	built := false
	failing := func() (Op, func(), error) {
		return nil, nil, ErrEmptyFrame
	}
	mask := func() (Op, func(), error) {
		built = true
		return ZoneMask(size, stage.ZoneList{{{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1}}})()
	}
	if _, err := New("test").Add("resize", true, failing).Add("mask", true, mask).Compile(); err == nil {
		t.Fatalf("Compile succeeded with a failing step\n")
	}
	if built {
		t.Fatalf("mask built after an earlier step failed\n")
	}
}

func TestDeckDifferenceAndSummation(t *testing.T) {
	size := image.Pt(6, 4)
	diffDeck := NewMatDeck(size, gocv.MatTypeCV8UC1)
	defer diffDeck.Close()
	sumDeck := NewMatDeck(size, gocv.MatTypeCV8UC1)
	defer sumDeck.Close()
	p, err := New("test").
		Add("difference", true, DeckDifference(diffDeck, 1)).
		Add("summation", true, Summation(sumDeck, 2)).
		Compile()
	if err != nil {
		t.Fatalf("Compile error %v\n", err)
	}
	defer p.Close()
	values := []float64{100, 100, 200}
	expected := []uint8{100, 100, 200}
	for i, v := range values {
		frame := solid(size, v, gocv.MatTypeCV8UC1)
		out, err := p.Run(frame)
		frame.Close()
		if err != nil {
			t.Fatalf("Run error %v\n", err)
		}
		if got := out.GetUCharAt(0, 0); got != expected[i] {
			t.Fatalf("frame %d value %d, expected %d\n", i, got, expected[i])
		}
		out.Close()
	}
	bright := NewMatDeck(size, gocv.MatTypeCV8UC1)
	defer bright.Close()
	for i := 0; i < 3; i++ {
		bright.Add(solid(size, 200, gocv.MatTypeCV8UC1))
	}
	saturated, err := SumNewest(bright, 2)
	if err != nil {
		t.Fatalf("SumNewest error %v\n", err)
	}
	defer saturated.Close()
	if saturated.GetUCharAt(1, 1) != 255 {
		t.Fatalf("sum %d, expected saturation at 255\n", saturated.GetUCharAt(1, 1))
	}
	if _, _, err := DeckDifference(diffDeck, 31)(); err == nil {
		t.Fatalf("depth beyond deck accepted\n")
	}
}

func TestResizeDeck(t *testing.T) {
	deck := NewMatDeck(image.Pt(8, 8), gocv.MatTypeCV8UC1)
	defer deck.Close()
	ResizeDeck(deck, image.Pt(4, 2))
	for k := 0; k < deck.MaxLen(); k++ {
		m, _ := deck.ReadNewest(k)
		if m.Cols() != 4 || m.Rows() != 2 {
			t.Fatalf("entry %d is %dx%d, expected 4x2\n", k, m.Cols(), m.Rows())
		}
	}
}
