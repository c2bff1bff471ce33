package pixelfilter

import (
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/compiler"
	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// Implementation identities
var (
	Passthrough = stage.Identity{Name: "passthrough", Variant: "default"}
	HSV         = stage.Identity{Name: "hsv", Variant: "default"}
)

// Register adds the pixel filter implementations to r
func Register(r *stage.Registry) {
	r.Register(stage.PixelFilter, Passthrough, func(inputSize image.Point) stage.Stage {
		return NewPassthrough(inputSize)
	})
	r.Register(stage.PixelFilter, HSV, func(inputSize image.Point) stage.Stage {
		return NewHSVFilter(inputSize)
	})
}

func outputs(filtered gocv.Mat, inputs stage.Outputs) stage.Outputs {
	result := stage.Outputs{stage.KeyFilteredBinaryFrame: filtered}
	if v, found := inputs[stage.KeyPreprocessedFrame]; found {
		result[stage.KeyPreprocessedFrame] = v
	}
	return result
}

// PassthroughFilter keeps the binary frame as is
type PassthroughFilter struct {
	*stage.Base
}

// NewPassthrough creates a new PassthroughFilter
func NewPassthrough(inputSize image.Point) *PassthroughFilter {
	return &PassthroughFilter{
		Base: stage.NewBase(stage.PixelFilter, Passthrough, inputSize, nil),
	}
}

// Run implements interface
func (p *PassthroughFilter) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	binary, err := inputs.Mat(stage.KeyBinaryFrame)
	if err != nil {
		return nil, err
	}
	return outputs(binary, inputs), nil
}

// HSVFilter keeps binary pixels whose colour falls inside an HSV range
type HSVFilter struct {
	*stage.Base
	pipeline *compiler.Pipeline
}

// NewHSVFilter creates a new HSVFilter
func NewHSVFilter(inputSize image.Point) *HSVFilter {
	schema := stage.Schema{
		stage.ToggleControl("enable_filter", "Enable filtering", true),
		stage.ToggleControl("invert_filter", "Invert", false).
			WithTooltip("Keep pixels outside of the colour range instead."),
		stage.IntSlider("hue_lower", "Lower Hue", 0, 0, 255, ""),
		stage.IntSlider("hue_upper", "Upper Hue", 255, 0, 255, ""),
		stage.IntSlider("sat_lower", "Lower Saturation", 0, 0, 255, ""),
		stage.IntSlider("sat_upper", "Upper Saturation", 255, 0, 255, ""),
		stage.IntSlider("val_lower", "Lower Brightness", 0, 0, 255, ""),
		stage.IntSlider("val_upper", "Upper Brightness", 255, 0, 255, ""),
	}
	h := &HSVFilter{
		Base: stage.NewBase(stage.PixelFilter, HSV, inputSize, schema),
	}
	if err := h.Setup(nil); err != nil {
		log.Errorln(h.Name(), "setup failed", err)
	}
	return h
}

// Setup implements interface
func (h *HSVFilter) Setup(changed stage.Params) error {
	v := h.Value()
	lower := gocv.NewScalar(v.Float("hue_lower"), v.Float("sat_lower"), v.Float("val_lower"), 0)
	upper := gocv.NewScalar(v.Float("hue_upper"), v.Float("sat_upper"), v.Float("val_upper"), 0)
	pipeline, err := compiler.New(h.Name()).
		Add("resize", true, compiler.Resize(h.InputSize(), gocv.InterpolationNearestNeighbor)).
		Add("hsv", true, compiler.ConvertColor(gocv.ColorBGRToHSVFull)).
		Add("in_range", true, compiler.InRange(lower, upper)).
		Add("invert", v.Bool("invert_filter"), compiler.Invert()).
		Compile()
	if err != nil {
		return err
	}
	if h.pipeline != nil {
		h.pipeline.Close()
	}
	h.pipeline = pipeline
	return nil
}

// Run implements interface, a failing filter leaves the binary frame unfiltered
func (h *HSVFilter) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	h.ReleaseOwned()
	binary, err := inputs.Mat(stage.KeyBinaryFrame)
	if err != nil {
		return nil, err
	}
	if !h.Value().Bool("enable_filter") {
		return outputs(binary, inputs), nil
	}
	color, err := inputs.Mat(stage.KeyPreprocessedFrame)
	if err != nil {
		return nil, err
	}
	mask, err := h.pipeline.Run(color)
	if err != nil {
		log.Errorln(h.Name(), "frame error:", err)
		return outputs(binary, inputs), nil
	}
	defer mask.Close()
	if mask.Rows() != binary.Rows() || mask.Cols() != binary.Cols() {
		log.Errorln(h.Name(), "frame error: mask does not match binary frame")
		return outputs(binary, inputs), nil
	}
	filtered := gocv.NewMat()
	gocv.BitwiseAnd(mask, binary, &filtered)
	return outputs(h.Own(filtered), inputs), nil
}

// Close implements interface
func (h *HSVFilter) Close(t stage.FrameTime) stage.Outputs {
	if h.pipeline != nil {
		h.pipeline.Close()
		h.pipeline = nil
	}
	return h.Base.Close(t)
}
