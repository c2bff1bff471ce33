package compiler

import (
	"image"
	"image/color"

	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// MaskImage rasterizes zones onto a single channel frame of size.
// Pixels start at 255 and every valid zone is filled with 0.
// meaningful is false when no pixel was masked out.
func MaskImage(size image.Point, zones stage.ZoneList) (mask gocv.Mat, meaningful bool) {
	mask = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC1)
	polygons := make([][]image.Point, 0, len(zones))
	for _, zone := range zones {
		if zone.Valid() {
			polygons = append(polygons, zone.Pixels(size))
		}
	}
	if len(polygons) == 0 {
		return
	}
	pts := gocv.NewPointsVectorFromPoints(polygons)
	defer pts.Close()
	gocv.FillPoly(&mask, pts, color.RGBA{0, 0, 0, 0})
	meaningful = gocv.CountNonZero(mask) < size.X*size.Y
	return
}

// MaskCovers returns whether zones mask out any pixel of a frame of size
func MaskCovers(size image.Point, zones stage.ZoneList) bool {
	mask, meaningful := MaskImage(size, zones)
	mask.Close()
	return meaningful
}

// ZoneMask builds a mask step from zones. The mask is rasterized when the step is
// built, so a compile that fails earlier allocates nothing.
func ZoneMask(size image.Point, zones stage.ZoneList) Build {
	return func() (Op, func(), error) {
		mask, _ := MaskImage(size, zones)
		op, cleanup, err := Mask(mask)()
		if err != nil {
			mask.Close()
		}
		return op, cleanup, err
	}
}
