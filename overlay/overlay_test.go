package overlay

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/jonoton/vigil/detector"
	"github.com/jonoton/vigil/stage"
	"github.com/jonoton/vigil/tracker"
)

func grayFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3)
}

func TestDrawDetection(t *testing.T) {
	frame := grayFrame(320, 240)
	defer frame.Close()
	o := NewOverlay()
	items := Items{
		Detections: detector.Detections{
			0: detector.Detection{
				TopLeft:     stage.Point{0.25, 0.25},
				BottomRight: stage.Point{0.5, 0.5},
				Center:      stage.Point{0.375, 0.375},
			},
		},
	}
	drawn, err := o.Draw(frame, items)
	if err != nil {
		t.Fatalf("Draw error %v\n", err)
	}
	defer drawn.Close()
	if drawn.Cols() != 320 || drawn.Rows() != 240 {
		t.Fatalf("Draw size = %dx%d, expected 320x240\n", drawn.Cols(), drawn.Rows())
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(drawn, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Fatalf("Draw left the frame blank\n")
	}
	original := gocv.NewMat()
	defer original.Close()
	gocv.CvtColor(frame, &original, gocv.ColorBGRToGray)
	if n := gocv.CountNonZero(original); n != 0 {
		t.Fatalf("Draw modified the source, %d pixels set\n", n)
	}
}

func TestDrawTrackedResizes(t *testing.T) {
	frame := grayFrame(320, 240)
	defer frame.Close()
	o := NewOverlay()
	o.SetConfig(&Config{Width: 160})
	items := Items{
		Tracked: tracker.Objects{
			3: &tracker.Object{
				ID:     3,
				Center: stage.Point{0.5, 0.5},
				Width:  0.2,
				Height: 0.2,
				Path:   []stage.Point{{0.4, 0.4}, {0.45, 0.45}, {0.5, 0.5}},
			},
		},
	}
	drawn, err := o.Draw(frame, items)
	if err != nil {
		t.Fatalf("Draw error %v\n", err)
	}
	defer drawn.Close()
	if drawn.Cols() != 160 || drawn.Rows() != 120 {
		t.Fatalf("Draw size = %dx%d, expected 160x120\n", drawn.Cols(), drawn.Rows())
	}
}

func TestDrawEmpty(t *testing.T) {
	o := NewOverlay()
	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := o.Draw(empty, Items{}); err != ErrEmptyFrame {
		t.Fatalf("Draw error = %v, expected %v\n", err, ErrEmptyFrame)
	}
}

func TestPreviewJpeg(t *testing.T) {
	frame := grayFrame(64, 48)
	defer frame.Close()
	o := NewOverlay()
	data, err := o.Preview(frame, Items{})
	if err != nil {
		t.Fatalf("Preview error %v\n", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("Preview is not a jpeg\n")
	}
}

func TestSetConfigOnlySet(t *testing.T) {
	o := NewOverlay()
	o.SetConfig(&Config{JpegQuality: 95, Tracked: NewColorThickness("red", 3)})
	if o.JpegQuality != 95 {
		t.Fatalf("JpegQuality = %d, expected 95\n", o.JpegQuality)
	}
	if o.Tracked.Color != Red || o.Tracked.Thickness != 3 {
		t.Fatalf("Tracked = %v, expected red 3\n", o.Tracked)
	}
	if o.Detection.Color != Blue {
		t.Fatalf("Detection color = %v, expected blue\n", o.Detection.Color)
	}
	o.SetConfig(&Config{JpegQuality: 200})
	if o.JpegQuality != 95 {
		t.Fatalf("JpegQuality = %d, expected 95\n", o.JpegQuality)
	}
}

func TestNormalizedRect(t *testing.T) {
	r := NormalizedRect(image.Pt(101, 101), stage.Point{0.5, 0.5}, 0.2, 0.2)
	if r.Min.X != 40 || r.Max.X != 61 {
		t.Fatalf("NormalizedRect = %v, expected x 40..61\n", r)
	}
}
