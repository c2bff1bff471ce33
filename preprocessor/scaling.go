package preprocessor

import (
	"image"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/compiler"
	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// AdjustAspectRatio returns size reshaped by factor keeping the area.
// 1 keeps the aspect ratio, 0 makes it square and negative values invert it.
func AdjustAspectRatio(size image.Point, factor float64) (adjusted image.Point, changed bool) {
	w, h := float64(size.X), float64(size.Y)
	area := w * h
	ratio := (math.Abs(factor) * (w/h - 1.0)) + 1.0
	if factor < 0 {
		ratio = 1.0 / ratio
	}
	aw := math.Sqrt(area * ratio)
	ah := area / aw
	adjusted = image.Pt(int(math.Round(aw)), int(math.Round(ah)))
	changed = adjusted != size
	return
}

// MaxDimensionDownscale returns size shrunk so neither side exceeds maxPx
func MaxDimensionDownscale(size image.Point, maxPx int) (scaled image.Point, changed bool) {
	factor := math.Min(1.0, math.Min(float64(maxPx)/float64(size.X), float64(maxPx)/float64(size.Y)))
	scaled = compiler.ScaledSize(size, factor)
	changed = factor < 1.0
	return
}

// Scaler resizes frames to a maximum dimension and aspect ratio
type Scaler struct {
	*stage.Base
	pipeline   *compiler.Pipeline
	background backgroundCache
}

// NewScaler creates a new Scaler
func NewScaler(inputSize image.Point) *Scaler {
	schema := stage.Schema{
		stage.ToggleControl("enable_transform", "Enable Transform", true),
		stage.IntSlider("max_dimension_px", "Max Dimension", 640, 100, 1280, "pixels").
			WithTooltip("Resize frame data so that the maximum side length does not exceed this amount."),
		stage.FloatSlider("ar_adjustment_factor", "Relative Aspect Ratio", 1.0, -5.0, 5.0, 0.1, "normalized").
			WithTooltip("Aspect ratio adjustment, relative to input video frame."),
		stage.MenuControl("interpolation_type", "Interpolation", "nearest", compiler.Interpolations...).
			WithTooltip("Set the interpolation style for pixels sampled at fractional indices"),
	}
	s := &Scaler{
		Base: stage.NewBase(stage.Preprocessor, Scaling, inputSize, schema),
	}
	if err := s.Setup(nil); err != nil {
		log.Errorln(s.Name(), "setup failed", err)
	}
	return s
}

// Setup implements interface
func (s *Scaler) Setup(changed stage.Params) error {
	v := s.Value()
	adjusted, needsAdjust := AdjustAspectRatio(s.InputSize(), v.Float("ar_adjustment_factor"))
	scaled, needsDownscale := MaxDimensionDownscale(adjusted, v.Int("max_dimension_px"))
	if !needsDownscale {
		scaled = adjusted
	}
	enabled := v.Bool("enable_transform")
	if enabled {
		s.SetOutputSize(scaled)
	} else {
		s.SetOutputSize(s.InputSize())
	}
	pipeline, err := compiler.New(s.Name()).
		Add("resize", enabled && (needsAdjust || needsDownscale),
			compiler.Resize(scaled, compiler.Interpolation(v.String("interpolation_type")))).
		Compile()
	if err != nil {
		return err
	}
	if s.pipeline != nil {
		s.pipeline.Close()
	}
	s.pipeline = pipeline
	s.background.release()
	return nil
}

func (s *Scaler) transform(src gocv.Mat) gocv.Mat {
	return s.pipeline.RunOrBlank(src, func() gocv.Mat {
		return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.OutputSize().Y, s.OutputSize().X, src.Type())
	})
}

// Run implements interface
func (s *Scaler) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	return run(s.Base, &s.background, inputs, s.transform)
}

// Reset implements interface
func (s *Scaler) Reset() {
	s.Base.Reset()
	s.background.release()
}

// Close implements interface
func (s *Scaler) Close(t stage.FrameTime) stage.Outputs {
	s.background.release()
	if s.pipeline != nil {
		s.pipeline.Close()
		s.pipeline = nil
	}
	return s.Base.Close(t)
}
