package framecapture

import (
	"image"
	"testing"

	"github.com/jonoton/vigil/stage"
)

func TestSubsampleSkipsUntilPeriod(t *testing.T) {
	s := NewSubsample(image.Pt(64, 48))
	if _, err := stage.Apply(s, stage.Params{"sample_period_sec": 2}); err != nil {
		t.Fatalf("Apply error %v\n", err)
	}
	epochs := []int64{1000, 1500, 2999, 3000, 3500, 5000}
	expected := []bool{false, true, true, false, true, false}
	for i, epoch := range epochs {
		out, err := s.Run(stage.FrameTime{Index: int64(i), EpochMs: epoch}, stage.Outputs{})
		if err != nil {
			t.Fatalf("Run error %v\n", err)
		}
		if got := out.Bool(stage.KeySkipFrame); got != expected[i] {
			t.Fatalf("epoch %d skip = %v, expected %v\n", epoch, got, expected[i])
		}
	}
	s.Reset()
	out, _ := s.Run(stage.FrameTime{EpochMs: 5001}, stage.Outputs{})
	if out.Bool(stage.KeySkipFrame) {
		t.Fatalf("frame after reset skipped\n")
	}
}

func TestSubsampleDefaultPeriod(t *testing.T) {
	s := NewSubsample(image.Pt(64, 48))
	if s.periodMs != 5000 {
		t.Fatalf("periodMs = %d, expected 5000\n", s.periodMs)
	}
	stage.Apply(s, stage.Params{"sample_period_hrs": 1, "sample_period_mins": 1, "sample_period_sec": 1})
	if s.periodMs != 3661000 {
		t.Fatalf("periodMs = %d, expected 3661000\n", s.periodMs)
	}
}

func TestPassthroughKeepsInputs(t *testing.T) {
	p := NewPassthrough(image.Pt(64, 48))
	out, err := p.Run(stage.FrameTime{}, stage.Outputs{stage.KeyBgUpdate: true})
	if err != nil {
		t.Fatalf("Run error %v\n", err)
	}
	if out.Bool(stage.KeySkipFrame) || !out.Bool(stage.KeyBgUpdate) {
		t.Fatalf("outputs %v\n", out)
	}
}
