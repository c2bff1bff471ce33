package background

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/jonoton/vigil/stage"
)

// Name of the background capture in logs and records
const Name = "background_capture"

// Implementation identities
var (
	Passthrough    = stage.Identity{Name: "passthrough", Variant: "default"}
	RunningAverage = stage.Identity{Name: "running_average", Variant: "default"}
)

// Capture maintains the background image fed to the bundle with every frame
type Capture interface {
	Identity() stage.Identity
	Schema() stage.Schema
	Settings() stage.Params
	Reconfigure(params stage.Params) stage.Params
	Update(t stage.FrameTime, frame gocv.Mat) (bg gocv.Mat, updated bool, err error)
	Reset()
	Close()
}

// New creates the capture named by record with its parameters applied
func New(record stage.Record) (Capture, error) {
	var c Capture
	switch record.Identity {
	case Passthrough, stage.Identity{}:
		c = NewPassthroughCapture()
	case RunningAverage:
		c = NewRunningAverageCapture()
	default:
		return nil, fmt.Errorf("%w: %s %s", stage.ErrUnknownImplementation, Name, record.Identity)
	}
	if len(record.Params) > 0 {
		c.Reconfigure(record.Params)
	}
	log.Debugln(Name, c.Identity(), c.Settings())
	return c, nil
}

// SourceOutputs builds the source entry handed to the bundle
func SourceOutputs(frame gocv.Mat, bg gocv.Mat, updated bool) stage.Outputs {
	return stage.Outputs{
		stage.KeyVideoFrame: frame,
		stage.KeyBgFrame:    bg,
		stage.KeyBgUpdate:   updated,
	}
}

type held struct {
	bg gocv.Mat
}

func (h *held) valid() bool {
	return stage.Valid(h.bg)
}

func (h *held) matches(frame gocv.Mat) bool {
	return h.valid() && h.bg.Rows() == frame.Rows() && h.bg.Cols() == frame.Cols() && h.bg.Type() == frame.Type()
}

func (h *held) replace(frame gocv.Mat) {
	h.release()
	h.bg = frame.Clone()
}

func (h *held) release() {
	if h.bg.Ptr() != nil {
		h.bg.Close()
	}
	h.bg = gocv.Mat{}
}

// PassthroughCapture keeps the first frame as the background
type PassthroughCapture struct {
	*stage.Base
	held
}

// NewPassthroughCapture creates a new PassthroughCapture
func NewPassthroughCapture() *PassthroughCapture {
	return &PassthroughCapture{
		Base: stage.NewBase(Name, Passthrough, frameless, nil),
	}
}

// Update implements interface
func (p *PassthroughCapture) Update(t stage.FrameTime, frame gocv.Mat) (gocv.Mat, bool, error) {
	if !stage.Valid(frame) {
		return gocv.Mat{}, false, fmt.Errorf("%s: empty frame", Name)
	}
	if p.matches(frame) {
		return p.bg, false, nil
	}
	p.replace(frame)
	return p.bg, true, nil
}

// Reset implements interface
func (p *PassthroughCapture) Reset() {
	p.release()
}

// Close implements interface
func (p *PassthroughCapture) Close() {
	p.release()
}
