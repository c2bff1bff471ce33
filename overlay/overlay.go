// overlay package

package overlay

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/jonoton/vigil/detector"
	"github.com/jonoton/vigil/stage"
	"github.com/jonoton/vigil/tracker"
)

// ErrEmptyFrame is returned when there is nothing to draw on
var ErrEmptyFrame = errors.New("empty frame")

// Config contains the drawing styles
type Config struct {
	Detection      ColorThickness `yaml:"detection,omitempty"`
	Validation     ColorThickness `yaml:"validation,omitempty"`
	Tracked        ColorThickness `yaml:"tracked,omitempty"`
	PaddingPercent int            `yaml:"paddingPercent,omitempty"`
	Width          int            `yaml:"width,omitempty"`
	JpegQuality    int            `yaml:"jpegQuality,omitempty"`
}

// Overlay draws pipeline results onto frames
type Overlay struct {
	Detection      ColorThickness
	Validation     ColorThickness
	Tracked        ColorThickness
	PaddingPercent int
	Width          int
	JpegQuality    int
}

// NewOverlay creates a new Overlay
func NewOverlay() *Overlay {
	o := &Overlay{
		Detection:      NewColorThickness("blue", 1),
		Validation:     NewColorThickness("yellow", 1),
		Tracked:        NewColorThickness("green", 2),
		PaddingPercent: 0,
		Width:          0,
		JpegQuality:    80,
	}
	return o
}

// SetConfig applies conf, only what is set
func (o *Overlay) SetConfig(conf *Config) {
	if conf == nil {
		return
	}
	if conf.Detection.Thickness > 0 {
		o.Detection = conf.Detection
	}
	if conf.Validation.Thickness > 0 {
		o.Validation = conf.Validation
	}
	if conf.Tracked.Thickness > 0 {
		o.Tracked = conf.Tracked
	}
	if conf.PaddingPercent > 0 {
		o.PaddingPercent = conf.PaddingPercent
	}
	if conf.Width > 0 {
		o.Width = conf.Width
	}
	if conf.JpegQuality > 0 && conf.JpegQuality <= 100 {
		o.JpegQuality = conf.JpegQuality
	}
}

// Items are the results drawn on a frame
type Items struct {
	Detections detector.Detections
	Validating tracker.Objects
	Tracked    tracker.Objects
}

// ItemsFrom collects the drawable results from stage outputs keyed by stage name
func ItemsFrom(outputs map[string]stage.Outputs) Items {
	items := Items{}
	if d, ok := outputs[stage.Detector][stage.KeyDetections].(detector.Detections); ok {
		items.Detections = d
	}
	if v, ok := outputs[stage.Tracker][stage.KeyValidationObjects].(tracker.Objects); ok {
		items.Validating = v
	}
	if t, ok := outputs[stage.Tracker][stage.KeyTrackedObjects].(tracker.Objects); ok {
		items.Tracked = t
	}
	return items
}

// Draw returns a copy of frame with items drawn on it, the caller owns the result
func (o *Overlay) Draw(frame gocv.Mat, items Items) (gocv.Mat, error) {
	if !stage.Valid(frame) {
		return gocv.Mat{}, ErrEmptyFrame
	}
	out := frame.Clone()
	if out.Channels() == 1 {
		gocv.CvtColor(out, &out, gocv.ColorGrayToBGR)
	}
	size := image.Pt(out.Cols(), out.Rows())
	for _, d := range items.Detections.Sorted() {
		rect := RectPadded(size, d.Box(size), o.PaddingPercent)
		gocv.Rectangle(&out, rect, o.Detection.Color.GetRGBA(), o.Detection.Thickness)
	}
	for _, obj := range sortedObjects(items.Validating) {
		rect := NormalizedRect(size, obj.Center, obj.Width, obj.Height)
		gocv.Rectangle(&out, rect, o.Validation.Color.GetRGBA(), o.Validation.Thickness)
	}
	for _, obj := range sortedObjects(items.Tracked) {
		rect := RectPadded(size, NormalizedRect(size, obj.Center, obj.Width, obj.Height), o.PaddingPercent)
		rgba := o.Tracked.Color.GetRGBA()
		gocv.Rectangle(&out, rect, rgba, o.Tracked.Thickness)
		gocv.PutText(&out, fmt.Sprintf("%d", obj.ID), image.Pt(rect.Min.X, rect.Min.Y-4),
			gocv.FontHersheyPlain, 1.0, rgba, 1)
		if len(obj.Path) > 1 {
			o.drawPath(&out, size, obj.Path)
		}
	}
	if o.Width > 0 && o.Width < size.X {
		height := size.Y * o.Width / size.X
		gocv.Resize(out, &out, image.Pt(o.Width, height), 0, 0, gocv.InterpolationArea)
	}
	return out, nil
}

func (o *Overlay) drawPath(out *gocv.Mat, size image.Point, path []stage.Point) {
	pts := make([]image.Point, 0, len(path))
	sx, sy := float64(size.X-1), float64(size.Y-1)
	for _, p := range path {
		pts = append(pts, image.Pt(int(p[0]*sx+0.5), int(p[1]*sy+0.5)))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.Polylines(out, pv, false, o.Tracked.Color.GetRGBA(), 1)
}

func sortedObjects(objects tracker.Objects) []*tracker.Object {
	result := make([]*tracker.Object, 0, len(objects))
	for _, id := range objects.IDs() {
		result = append(result, objects[id])
	}
	return result
}

// Encode returns frame as jpeg bytes
func (o *Overlay) Encode(frame gocv.Mat) ([]byte, error) {
	if !stage.Valid(frame) {
		return nil, ErrEmptyFrame
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, o.JpegQuality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Preview draws items on frame and returns the jpeg
func (o *Overlay) Preview(frame gocv.Mat, items Items) ([]byte, error) {
	drawn, err := o.Draw(frame, items)
	if err != nil {
		return nil, err
	}
	defer drawn.Close()
	return o.Encode(drawn)
}
