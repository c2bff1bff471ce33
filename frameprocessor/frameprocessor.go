package frameprocessor

import (
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/compiler"
	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// Implementation identities
var (
	Passthrough           = stage.Identity{Name: "passthrough", Variant: "default"}
	FrameToFrameID        = stage.Identity{Name: "frame_to_frame", Variant: "default"}
	BackgroundSubtraction = stage.Identity{Name: "background_subtraction", Variant: "default"}
	MOG2ID                = stage.Identity{Name: "mog2", Variant: "default"}
)

// Register adds the frame processor implementations to r
func Register(r *stage.Registry) {
	r.Register(stage.FrameProcessor, Passthrough, func(inputSize image.Point) stage.Stage {
		return NewPassthrough(inputSize)
	})
	r.Register(stage.FrameProcessor, FrameToFrameID, func(inputSize image.Point) stage.Stage {
		return NewFrameToFrame(inputSize)
	})
	r.Register(stage.FrameProcessor, BackgroundSubtraction, func(inputSize image.Point) stage.Stage {
		return NewBackgroundSubtractor(inputSize)
	})
	r.Register(stage.FrameProcessor, MOG2ID, func(inputSize image.Point) stage.Stage {
		return NewMOG2(inputSize)
	})
}

func maskControls() []stage.Control {
	return []stage.Control{
		stage.ZonesControl("mask_zone_list", "Masking zones").
			WithTooltip("Regions drawn here are blacked out of the binary frame."),
		stage.ToggleControl("enable_masking", "Enable Masking", true),
	}
}

func downscaleControls() []stage.Control {
	return []stage.Control{
		stage.FloatSlider("downscale_factor", "Downscaling", 0.5, 0.1, 1.0, 0.01, "").
			WithTooltip("Perform frame processing on a reduced frame size"),
		stage.MenuControl("downscale_interpolation", "Downscaling Interpolation", "nearest", compiler.Interpolations...),
	}
}

func morphControls(prefix string, label string, size int, op string) []stage.Control {
	return []stage.Control{
		stage.IntSlider(prefix+"_size", label+" Shapeshift Region Size", size, 0, compiler.MaxKernelSize, ""),
		stage.MenuControl(prefix+"_op", label+" Shapeshift Operation", op, compiler.MorphOps...),
		stage.MenuControl(prefix+"_shape", label+" Shapeshift Region Shape", "rect", compiler.MorphShapes...),
	}
}

func joinControls(groups ...[]stage.Control) stage.Schema {
	schema := stage.Schema{}
	for _, g := range groups {
		schema = append(schema, g...)
	}
	return schema
}

func morphStep(v stage.Params, prefix string) (bool, compiler.Build) {
	size := v.Int(prefix + "_size")
	return size > 0, compiler.Morphology(size, compiler.MorphOp(v.String(prefix+"_op")), compiler.MorphShape(v.String(prefix+"_shape")))
}

func downscaleStep(v stage.Params, inputSize image.Point) (bool, image.Point, compiler.Build) {
	factor := v.Float("downscale_factor")
	size := compiler.ScaledSize(inputSize, factor)
	return factor < 1.0, size, compiler.Resize(size, compiler.Interpolation(v.String("downscale_interpolation")))
}

// maskStep masks by zone, the mask is rasterized when the pipeline compiles.
// Masking that would keep every pixel is skipped.
func maskStep(name string, v stage.Params, size image.Point) (bool, compiler.Build) {
	if !v.Bool("enable_masking") {
		return false, nil
	}
	zones := v.Zones("mask_zone_list")
	if !compiler.MaskCovers(size, zones) {
		if len(zones) > 0 {
			log.Warnln(name, "mask zones cover no pixels, masking skipped")
		}
		return false, nil
	}
	return true, compiler.ZoneMask(size, zones)
}

func grayStep(v stage.Params) compiler.Build {
	if v.Bool("use_norm_diff") {
		return compiler.MaxChannel()
	}
	return compiler.Grayscale()
}

// withBinary adds the binary frame to the preprocessor outputs
func withBinary(inputs stage.Outputs, binary gocv.Mat) stage.Outputs {
	outputs := stage.Outputs{
		stage.KeyBinaryFrame: binary,
		stage.KeyBgUpdate:    inputs.Bool(stage.KeyBgUpdate),
	}
	for _, key := range []string{stage.KeyPreprocessedFrame, stage.KeyPreprocessedBgFrame} {
		if v, found := inputs[key]; found {
			outputs[key] = v
		}
	}
	return outputs
}

func swapPipeline(old *compiler.Pipeline, next *compiler.Pipeline) *compiler.Pipeline {
	if old != nil {
		old.Close()
	}
	return next
}

// PassthroughProcessor outputs an empty binary frame
type PassthroughProcessor struct {
	*stage.Base
}

// NewPassthrough creates a new PassthroughProcessor
func NewPassthrough(inputSize image.Point) *PassthroughProcessor {
	return &PassthroughProcessor{
		Base: stage.NewBase(stage.FrameProcessor, Passthrough, inputSize, nil),
	}
}

// Run implements interface
func (p *PassthroughProcessor) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	p.ReleaseOwned()
	if _, err := inputs.Mat(stage.KeyPreprocessedFrame); err != nil {
		return nil, err
	}
	return withBinary(inputs, p.Own(stage.BlankFrame(p.OutputSize()))), nil
}
