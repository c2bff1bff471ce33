package detector

import (
	"image"
	"sort"

	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// Detection is one blob in normalized frame coordinates
type Detection struct {
	Center      stage.Point   `json:"center"`
	TopLeft     stage.Point   `json:"top_left"`
	BottomRight stage.Point   `json:"bottom_right"`
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	HullAreaPx  float64       `json:"hull_area_px"`
	Hull        []stage.Point `json:"hull"`
}

// Detections are keyed by detection index
type Detections map[int]Detection

// Sorted returns the detections in index order
func (d Detections) Sorted() []Detection {
	keys := make([]int, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Detection, 0, len(keys))
	for _, k := range keys {
		result = append(result, d[k])
	}
	return result
}

// Box returns the bounding box in pixels of a frame of size
func (d Detection) Box(size image.Point) image.Rectangle {
	sx, sy := float64(size.X-1), float64(size.Y-1)
	return image.Rect(int(d.TopLeft[0]*sx+0.5), int(d.TopLeft[1]*sy+0.5),
		int(d.BottomRight[0]*sx+0.5)+1, int(d.BottomRight[1]*sy+0.5)+1)
}

func normalize(p image.Point, size image.Point) stage.Point {
	return stage.Point{float64(p.X) / float64(size.X-1), float64(p.Y) / float64(size.Y-1)}
}

// NewDetection builds a detection from a contour found in a frame of size
func NewDetection(contour gocv.PointVector, size image.Point) Detection {
	hullMat := gocv.NewMat()
	defer hullMat.Close()
	gocv.ConvexHull(contour, &hullMat, false, true)
	points := make([]image.Point, 0, hullMat.Rows())
	for i := 0; i < hullMat.Rows(); i++ {
		v := hullMat.GetVeciAt(i, 0)
		points = append(points, image.Pt(int(v[0]), int(v[1])))
	}
	if len(points) == 0 {
		points = contour.ToPoints()
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += float64(p.X)
		sumY += float64(p.Y)
	}
	n := float64(len(points))
	center := stage.Point{sumX / n / float64(size.X-1), sumY / n / float64(size.Y-1)}

	area := contourArea(points)
	if area < 1.0 {
		points = boxAround(points)
		area = contourArea(points)
	}
	pv := gocv.NewPointVectorFromPoints(points)
	rect := gocv.BoundingRect(pv)
	pv.Close()

	d := Detection{
		Center:      center,
		TopLeft:     normalize(rect.Min, size),
		BottomRight: normalize(rect.Max.Sub(image.Pt(1, 1)), size),
		HullAreaPx:  area,
		Hull:        make([]stage.Point, 0, len(points)),
	}
	d.Width = d.BottomRight[0] - d.TopLeft[0]
	d.Height = d.BottomRight[1] - d.TopLeft[1]
	for _, p := range points {
		d.Hull = append(d.Hull, normalize(p, size))
	}
	return d
}

func contourArea(points []image.Point) float64 {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()
	return gocv.ContourArea(pv)
}

// boxAround turns a hull without area into a small box
func boxAround(points []image.Point) []image.Point {
	minP, maxP := points[0], points[0]
	for _, p := range points[1:] {
		minP.X = min(minP.X, p.X)
		minP.Y = min(minP.Y, p.Y)
		maxP.X = max(maxP.X, p.X)
		maxP.Y = max(maxP.Y, p.Y)
	}
	if minP.X == maxP.X {
		minP.X = max(0, minP.X-1)
	}
	if minP.Y == maxP.Y {
		minP.Y = max(0, minP.Y-1)
	}
	maxP.X = max(1, maxP.X)
	maxP.Y = max(1, maxP.Y)
	return []image.Point{minP, {maxP.X, minP.Y}, maxP, {minP.X, maxP.Y}}
}
