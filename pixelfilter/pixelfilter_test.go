package pixelfilter

import (
	"image"
	"testing"

	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

func TestHSVFilterKeepsRedPixels(t *testing.T) {
	size := image.Pt(40, 20)
	color := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC3)
	defer color.Close()
	left := color.Region(image.Rect(0, 0, 20, 20))
	left.SetTo(gocv.NewScalar(0, 0, 255, 0))
	left.Close()
	binary := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC1)
	defer binary.Close()

	h := NewHSVFilter(size)
	defer h.Close(stage.FrameTime{})
	stage.Apply(h, stage.Params{"hue_upper": 10, "sat_lower": 100})
	out, err := h.Run(stage.FrameTime{}, stage.Outputs{stage.KeyBinaryFrame: binary, stage.KeyPreprocessedFrame: color})
	if err != nil {
		t.Fatalf("Run error %v\n", err)
	}
	filtered, _ := out.Mat(stage.KeyFilteredBinaryFrame)
	if n := gocv.CountNonZero(filtered); n != 400 {
		t.Fatalf("nonzero = %d, expected 400\n", n)
	}
	if filtered.GetUCharAt(5, 5) != 255 || filtered.GetUCharAt(5, 35) != 0 {
		t.Fatalf("red kept %d blue kept %d\n", filtered.GetUCharAt(5, 5), filtered.GetUCharAt(5, 35))
	}

	stage.Apply(h, stage.Params{"invert_filter": true})
	out, _ = h.Run(stage.FrameTime{}, stage.Outputs{stage.KeyBinaryFrame: binary, stage.KeyPreprocessedFrame: color})
	filtered, _ = out.Mat(stage.KeyFilteredBinaryFrame)
	if filtered.GetUCharAt(5, 5) != 0 || filtered.GetUCharAt(5, 35) != 255 {
		t.Fatalf("inverted filter kept the wrong side\n")
	}
}

func TestPassthroughFilter(t *testing.T) {
	binary := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 4, 4, gocv.MatTypeCV8UC1)
	defer binary.Close()
	p := NewPassthrough(image.Pt(4, 4))
	out, err := p.Run(stage.FrameTime{}, stage.Outputs{stage.KeyBinaryFrame: binary})
	if err != nil {
		t.Fatalf("Run error %v\n", err)
	}
	filtered, _ := out.Mat(stage.KeyFilteredBinaryFrame)
	if filtered.Ptr() != binary.Ptr() {
		t.Fatalf("passthrough replaced the binary frame\n")
	}
	if _, err := p.Run(stage.FrameTime{}, stage.Outputs{}); err == nil {
		t.Fatalf("missing binary frame accepted\n")
	}
}
