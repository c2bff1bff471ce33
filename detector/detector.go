package detector

import (
	"image"

	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// Implementation identities
var (
	Passthrough = stage.Identity{Name: "passthrough", Variant: "default"}
	Blob        = stage.Identity{Name: "blob", Variant: "default"}
)

// Register adds the detector implementations to r
func Register(r *stage.Registry) {
	r.Register(stage.Detector, Passthrough, func(inputSize image.Point) stage.Stage {
		return NewPassthrough(inputSize)
	})
	r.Register(stage.Detector, Blob, func(inputSize image.Point) stage.Stage {
		return NewBlobDetector(inputSize)
	})
}

// PassthroughDetector never detects anything
type PassthroughDetector struct {
	*stage.Base
}

// NewPassthrough creates a new PassthroughDetector
func NewPassthrough(inputSize image.Point) *PassthroughDetector {
	return &PassthroughDetector{
		Base: stage.NewBase(stage.Detector, Passthrough, inputSize, nil),
	}
}

// Run implements interface
func (p *PassthroughDetector) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	return stage.Outputs{stage.KeyDetections: Detections{}}, nil
}

// BlobDetector turns binary shapes within size limits into detections
type BlobDetector struct {
	*stage.Base
	rejected []Detection
}

// NewBlobDetector creates a new BlobDetector
func NewBlobDetector(inputSize image.Point) *BlobDetector {
	schema := stage.Schema{
		stage.FloatSlider("min_width_norm", "Minimum Width", 0.10, 0, 1, 0.01, "normalized"),
		stage.FloatSlider("min_height_norm", "Minimum Height", 0.10, 0, 1, 0.01, "normalized"),
		stage.FloatSlider("max_width_norm", "Maximum Width", 0.95, 0, 1.5, 0.01, "normalized"),
		stage.FloatSlider("max_height_norm", "Maximum Height", 0.95, 0, 1.5, 0.01, "normalized"),
		stage.FloatSlider("min_area_norm", "Minimum Area", 0, 0, 1, 0.001, "normalized").
			WithTooltip("Smallest hull area as a fraction of the frame area."),
		stage.FloatSlider("max_area_norm", "Maximum Area", 1, 0, 1, 0.001, "normalized"),
	}
	b := &BlobDetector{
		Base:     stage.NewBase(stage.Detector, Blob, inputSize, schema),
		rejected: make([]Detection, 0),
	}
	return b
}

func between(value, low, high float64) bool {
	return low < value && value < high
}

func (b *BlobDetector) accept(d Detection) bool {
	v := b.Value()
	size := b.InputSize()
	areaNorm := d.HullAreaPx / float64(size.X*size.Y)
	return between(d.Width, v.Float("min_width_norm"), v.Float("max_width_norm")) &&
		between(d.Height, v.Float("min_height_norm"), v.Float("max_height_norm")) &&
		areaNorm >= v.Float("min_area_norm") && areaNorm <= v.Float("max_area_norm")
}

// Run implements interface
func (b *BlobDetector) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	binary, err := inputs.Mat(stage.KeyFilteredBinaryFrame)
	if err != nil {
		return nil, err
	}
	size := image.Pt(binary.Cols(), binary.Rows())
	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	detections := make(Detections)
	b.rejected = b.rejected[:0]
	for i := 0; i < contours.Size(); i++ {
		d := NewDetection(contours.At(i), size)
		if b.accept(d) {
			detections[len(detections)] = d
		} else {
			b.rejected = append(b.rejected, d)
		}
	}
	return stage.Outputs{stage.KeyDetections: detections}, nil
}

// Rejected returns the shapes dropped by the size limits on the last run
func (b *BlobDetector) Rejected() []Detection {
	return b.rejected
}

// Reset implements interface
func (b *BlobDetector) Reset() {
	b.Base.Reset()
	b.rejected = b.rejected[:0]
}
