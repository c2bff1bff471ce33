package tracker

import (
	"image"
	"testing"

	"github.com/jonoton/vigil/detector"
	"github.com/jonoton/vigil/stage"
)

func detectionAt(x, y float64) detector.Detection {
	return detector.Detection{Center: stage.Point{x, y}, Width: 0.1, Height: 0.1}
}

func runAt(t *testing.T, e *EuclideanTracker, index int64, epochMs int64, detections ...detector.Detection) stage.Outputs {
	d := detector.Detections{}
	for i, det := range detections {
		d[i] = det
	}
	out, err := e.Run(stage.FrameTime{Index: index, EpochMs: epochMs}, stage.Outputs{stage.KeyDetections: d})
	if err != nil {
		t.Fatalf("Run error %v\n", err)
	}
	return out
}

func TestPromotionAfterValidation(t *testing.T) {
	e := NewEuclideanTracker(image.Pt(320, 240))
	var out stage.Outputs
	for i := int64(0); i <= 8; i++ {
		out = runAt(t, e, i, i*100, detectionAt(0.5, 0.5))
	}
	tracked := out[stage.KeyTrackedObjects].(Objects)
	validating := out[stage.KeyValidationObjects].(Objects)
	if len(tracked) != 1 || len(validating) != 0 {
		t.Fatalf("tracked = %d validating = %d, expected 1 and 0\n", len(tracked), len(validating))
	}
	o, found := tracked[1]
	if !found {
		t.Fatalf("first tracked object id is not 1\n")
	}
	if o.Matches != 9 {
		t.Fatalf("matches = %d, expected 9\n", o.Matches)
	}
}

func TestNoPromotionBeforeValidationTime(t *testing.T) {
	e := NewEuclideanTracker(image.Pt(320, 240))
	var out stage.Outputs
	for i := int64(0); i <= 7; i++ {
		out = runAt(t, e, i, i*100, detectionAt(0.5, 0.5))
	}
	if n := len(out[stage.KeyTrackedObjects].(Objects)); n != 0 {
		t.Fatalf("tracked = %d, expected 0\n", n)
	}
}

func TestTrackedObjectDecays(t *testing.T) {
	e := NewEuclideanTracker(image.Pt(320, 240))
	for i := int64(0); i <= 8; i++ {
		runAt(t, e, i, i*100, detectionAt(0.5, 0.5))
	}
	out := runAt(t, e, 9, 800+2000)
	if dead := out[stage.KeyDeadIDs].([]int64); len(dead) != 0 {
		t.Fatalf("dead = %v before decay timeout\n", dead)
	}
	out = runAt(t, e, 10, 800+2600)
	dead := out[stage.KeyDeadIDs].([]int64)
	if len(dead) != 1 || dead[0] != 1 {
		t.Fatalf("dead = %v, expected [1]\n", dead)
	}
	out = runAt(t, e, 11, 800+2700)
	if n := len(out[stage.KeyTrackedObjects].(Objects)); n != 0 {
		t.Fatalf("tracked = %d after removal, expected 0\n", n)
	}
	if dead := out[stage.KeyDeadIDs].([]int64); len(dead) != 0 {
		t.Fatalf("dead = %v reported twice\n", dead)
	}
}

func TestMatchRange(t *testing.T) {
	e := NewEuclideanTracker(image.Pt(320, 240))
	runAt(t, e, 0, 0, detectionAt(0.2, 0.2))
	out := runAt(t, e, 1, 100, detectionAt(0.8, 0.8))
	if n := len(out[stage.KeyValidationObjects].(Objects)); n != 2 {
		t.Fatalf("validating = %d, expected 2\n", n)
	}
	out = runAt(t, e, 2, 200, detectionAt(0.82, 0.81))
	validating := out[stage.KeyValidationObjects].(Objects)
	if validating[2] == nil || validating[2].Matches != 2 {
		t.Fatalf("nearby detection did not match object 2\n")
	}
}

func TestEdgeZoneDecay(t *testing.T) {
	e := NewEuclideanTracker(image.Pt(320, 240))
	stage.Apply(e, stage.Params{
		"edge_zones_list": stage.ZoneList{{{0, 0}, {0.3, 0}, {0.3, 1}, {0, 1}}},
	})
	runAt(t, e, 0, 0, detectionAt(0.1, 0.5))
	runAt(t, e, 1, 100)
	out := runAt(t, e, 2, 200)
	if n := len(out[stage.KeyValidationObjects].(Objects)); n != 0 {
		t.Fatalf("validating = %d inside edge zone, expected 0\n", n)
	}
}

func TestCloseReportsAliveAsDead(t *testing.T) {
	e := NewEuclideanTracker(image.Pt(320, 240))
	for i := int64(0); i <= 8; i++ {
		runAt(t, e, i, i*100, detectionAt(0.2, 0.2), detectionAt(0.7, 0.7))
	}
	out := e.Close(stage.FrameTime{Index: 9, EpochMs: 900})
	dead := out[stage.KeyDeadIDs].([]int64)
	if len(dead) != 2 || dead[0] != 1 || dead[1] != 2 {
		t.Fatalf("dead = %v, expected [1 2]\n", dead)
	}
	e.Reset()
	out = runAt(t, e, 0, 0)
	if n := len(out[stage.KeyTrackedObjects].(Objects)); n != 0 {
		t.Fatalf("tracked = %d after reset\n", n)
	}
}

func TestPassthroughTracker(t *testing.T) {
	p := NewPassthrough(image.Pt(10, 10))
	out, err := p.Run(stage.FrameTime{}, stage.Outputs{})
	if err != nil || len(out[stage.KeyDeadIDs].([]int64)) != 0 {
		t.Fatalf("passthrough output %v %v\n", out, err)
	}
}
