package compiler

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Limits shared by compiled stages
const (
	MaxKernelSize = 15
	MaxDeckDepth  = 30
)

// OddKernel converts a size control into an odd kernel size, 1 maps to 3
func OddKernel(size int) int {
	if size <= 1 {
		return 3
	}
	if size > MaxKernelSize {
		size = MaxKernelSize
	}
	if size%2 == 0 {
		size++
	}
	return size
}

// ScaledSize returns size scaled by factor, rounded
func ScaledSize(size image.Point, factor float64) image.Point {
	return image.Pt(int(math.Round(float64(size.X)*factor)), int(math.Round(float64(size.Y)*factor)))
}

// Interpolation maps a menu value to a gocv flag
func Interpolation(name string) gocv.InterpolationFlags {
	switch name {
	case "linear":
		return gocv.InterpolationLinear
	case "cubic":
		return gocv.InterpolationCubic
	case "area":
		return gocv.InterpolationArea
	}
	return gocv.InterpolationNearestNeighbor
}

// MorphOp maps a menu value to a gocv morphology operation
func MorphOp(name string) gocv.MorphType {
	switch name {
	case "dilate":
		return gocv.MorphDilate
	case "open":
		return gocv.MorphOpen
	case "erode":
		return gocv.MorphErode
	}
	return gocv.MorphClose
}

// MorphShape maps a menu value to a gocv structuring element shape
func MorphShape(name string) gocv.MorphShape {
	switch name {
	case "ellipse":
		return gocv.MorphEllipse
	case "cross":
		return gocv.MorphCross
	}
	return gocv.MorphRect
}

// Interpolations are the menu values accepted by Interpolation
var Interpolations = []string{"nearest", "linear", "cubic", "area"}

// MorphOps are the menu values accepted by MorphOp
var MorphOps = []string{"close", "dilate", "open", "erode"}

// MorphShapes are the menu values accepted by MorphShape
var MorphShapes = []string{"rect", "ellipse", "cross"}
