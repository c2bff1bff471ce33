package framecapture

import (
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/stage"
)

// Implementation identities
var (
	Passthrough     = stage.Identity{Name: "passthrough", Variant: "default"}
	SubsampleByTime = stage.Identity{Name: "subsample_by_time", Variant: "default"}
)

// Register adds the frame capture implementations to r
func Register(r *stage.Registry) {
	r.Register(stage.FrameCapture, Passthrough, func(inputSize image.Point) stage.Stage {
		return NewPassthrough(inputSize)
	})
	r.Register(stage.FrameCapture, SubsampleByTime, func(inputSize image.Point) stage.Stage {
		return NewSubsample(inputSize)
	})
}

func withSkip(inputs stage.Outputs, skip bool) stage.Outputs {
	outputs := inputs.Copy()
	outputs[stage.KeySkipFrame] = skip
	return outputs
}

// PassthroughCapture never skips a frame
type PassthroughCapture struct {
	*stage.Base
}

// NewPassthrough creates a new PassthroughCapture
func NewPassthrough(inputSize image.Point) *PassthroughCapture {
	return &PassthroughCapture{
		Base: stage.NewBase(stage.FrameCapture, Passthrough, inputSize, nil),
	}
}

// Run implements interface
func (p *PassthroughCapture) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	return withSkip(inputs, false), nil
}

// Subsample skips frames until the sample period has elapsed
type Subsample struct {
	*stage.Base
	periodMs int64
	nextMs   int64
}

// NewSubsample creates a new Subsample
func NewSubsample(inputSize image.Point) *Subsample {
	schema := stage.Schema{
		stage.IntSlider("sample_period_hrs", "Sample period", 0, 0, 24, "hours").
			WithTooltip("Number of hours to wait before grabbing a new frame."),
		stage.IntSlider("sample_period_mins", "Sample period", 0, 0, 60, "minutes").
			WithTooltip("Number of minutes to wait before grabbing a new frame."),
		stage.IntSlider("sample_period_sec", "Sample period", 5, 0, 60, "seconds").
			WithTooltip("Number of seconds to wait before grabbing a new frame."),
	}
	s := &Subsample{
		Base:   stage.NewBase(stage.FrameCapture, SubsampleByTime, inputSize, schema),
		nextMs: -1,
	}
	s.Setup(nil)
	return s
}

// Setup implements interface
func (s *Subsample) Setup(changed stage.Params) error {
	s.Reset()
	v := s.Value()
	minutes := int64(v.Int("sample_period_mins")) + 60*int64(v.Int("sample_period_hrs"))
	seconds := int64(v.Int("sample_period_sec")) + 60*minutes
	s.periodMs = 1000 * seconds
	log.Debugln(s.Name(), "sample period", s.periodMs, "ms")
	return nil
}

// Reset implements interface
func (s *Subsample) Reset() {
	s.Base.Reset()
	s.nextMs = -1
}

// Run implements interface
func (s *Subsample) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	skip := t.EpochMs < s.nextMs
	if !skip {
		s.nextMs = t.EpochMs + s.periodMs
	}
	return withSkip(inputs, skip), nil
}
