// stage package

package stage

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Stage names in canonical order
const (
	FrameCapture   = "frame_capture"
	Preprocessor   = "preprocessor"
	FrameProcessor = "frame_processor"
	PixelFilter    = "pixel_filter"
	Detector       = "detector"
	Tracker        = "tracker"
)

// Sequence is the fixed stage order of every bundle
var Sequence = []string{
	FrameCapture,
	Preprocessor,
	FrameProcessor,
	PixelFilter,
	Detector,
	Tracker,
}

// SourceKey is the output entry holding the raw video inputs
const SourceKey = "video_capture_input"

// Output keys shared between stages
const (
	KeyVideoFrame          = "video_frame"
	KeyBgFrame             = "bg_frame"
	KeyBgUpdate            = "bg_update"
	KeySkipFrame           = "skip_frame"
	KeyPreprocessedFrame   = "preprocessed_frame"
	KeyPreprocessedBgFrame = "preprocessed_bg_frame"
	KeyBinaryFrame         = "binary_frame_1ch"
	KeyFilteredBinaryFrame = "filtered_binary_frame_1ch"
	KeyDetections          = "detection_ref_dict"
	KeyTrackedObjects      = "tracked_object_dict"
	KeyValidationObjects   = "validation_object_dict"
	KeyDeadIDs             = "dead_id_list"
)

// Identity names a stage implementation
type Identity struct {
	Name    string `yaml:"name" json:"name"`
	Variant string `yaml:"variant" json:"variant"`
}

func (i Identity) String() string {
	return i.Name + "/" + i.Variant
}

// IsZero reports whether the identity is unset
func (i Identity) IsZero() bool {
	return i.Name == "" && i.Variant == ""
}

// FrameTime is the timing of the current frame
type FrameTime struct {
	Index    int64
	EpochMs  int64
	Datetime time.Time
	// ReadTime is how long the source took to deliver the frame
	ReadTime time.Duration
}

// Outputs is a stage output dict, keyed by output name
type Outputs map[string]interface{}

// Mat returns the Mat stored under key
func (o Outputs) Mat(key string) (gocv.Mat, error) {
	v, found := o[key]
	if !found {
		return gocv.Mat{}, fmt.Errorf("missing input %q", key)
	}
	m, ok := v.(gocv.Mat)
	if !ok {
		return gocv.Mat{}, fmt.Errorf("input %q is %T, not a Mat", key, v)
	}
	return m, nil
}

// Bool returns the bool stored under key, false when absent
func (o Outputs) Bool(key string) bool {
	v, ok := o[key].(bool)
	return ok && v
}

// Copy returns a shallow copy
func (o Outputs) Copy() Outputs {
	c := make(Outputs, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Stage is one named step of the pipeline
type Stage interface {
	Name() string
	Identity() Identity
	Schema() Schema
	Settings() Params
	// Reconfigure stores params and returns the subset that changed
	Reconfigure(params Params) (changed Params)
	// Setup rebuilds derived state after a reconfigure
	Setup(changed Params) error
	Reset()
	Run(t FrameTime, inputs Outputs) (Outputs, error)
	Close(t FrameTime) Outputs
	OutputSize() image.Point
}

// Apply reconfigures s with params then runs setup on what changed
func Apply(s Stage, params Params) (changed Params, err error) {
	changed = s.Reconfigure(params)
	err = s.Setup(changed)
	return
}
