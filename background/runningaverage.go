package background

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/jonoton/vigil/stage"
)

var frameless = image.Point{}

// RunningAverageCapture blends a new capture into the background every capture period
type RunningAverageCapture struct {
	*stage.Base
	held
	periodMs int64
	nextMs   int64
	weight   float64
}

// NewRunningAverageCapture creates a new RunningAverageCapture
func NewRunningAverageCapture() *RunningAverageCapture {
	schema := stage.Schema{
		stage.IntSlider("capture_period_hr", "Capture period", 0, 0, 24, "hours").
			WithTooltip("Number of hours to wait between captures"),
		stage.IntSlider("capture_period_min", "Capture period", 10, 0, 60, "minutes").
			WithTooltip("Number of minutes to wait between captures"),
		stage.IntSlider("capture_period_sec", "Capture period", 0, 0, 60, "seconds"),
		stage.FloatSlider("update_weighting", "Weighting for newest capture", 0.15, 0.01, 1.0, 0.01, "weighting").
			WithTooltip("The previous background is weighted by 1 - weighting"),
	}
	r := &RunningAverageCapture{
		Base:   stage.NewBase(Name, RunningAverage, frameless, schema),
		nextMs: -1,
	}
	r.apply()
	return r
}

// Reconfigure implements interface
func (r *RunningAverageCapture) Reconfigure(params stage.Params) stage.Params {
	changed := r.Base.Reconfigure(params)
	if len(changed) > 0 {
		r.apply()
	}
	return changed
}

func (r *RunningAverageCapture) apply() {
	v := r.Value()
	minutes := int64(v.Int("capture_period_min")) + 60*int64(v.Int("capture_period_hr"))
	r.periodMs = 1000 * (int64(v.Int("capture_period_sec")) + 60*minutes)
	r.weight = v.Float("update_weighting")
	r.nextMs = -1
	log.Debugln(Name, "capture period", r.periodMs, "ms weighting", r.weight)
}

// Update implements interface
func (r *RunningAverageCapture) Update(t stage.FrameTime, frame gocv.Mat) (gocv.Mat, bool, error) {
	if !stage.Valid(frame) {
		return gocv.Mat{}, false, fmt.Errorf("%s: empty frame", Name)
	}
	if !r.matches(frame) {
		r.replace(frame)
		r.nextMs = t.EpochMs + r.periodMs
		return r.bg, true, nil
	}
	if t.EpochMs < r.nextMs {
		return r.bg, false, nil
	}
	r.nextMs = t.EpochMs + r.periodMs
	gocv.AddWeighted(frame, r.weight, r.bg, 1.0-r.weight, 0, &r.bg)
	return r.bg, true, nil
}

// Reset implements interface
func (r *RunningAverageCapture) Reset() {
	r.release()
	r.nextMs = -1
}

// Close implements interface
func (r *RunningAverageCapture) Close() {
	r.release()
}
