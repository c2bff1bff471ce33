package overlay

import (
	"image"

	"github.com/jonoton/vigil/stage"
)

// CorrectRectangle will fix a rectangle to fit within a frame of size
func CorrectRectangle(size image.Point, rect image.Rectangle) image.Rectangle {
	return rect.Canon().Intersect(image.Rect(0, 0, size.X, size.Y))
}

// RectAddWidth will add width to the rect as evenly as possible
func RectAddWidth(size image.Point, rect image.Rectangle, width int) (result image.Rectangle) {
	result = CorrectRectangle(size, rect)
	if width <= 0 {
		return
	}
	availMin := result.Min.X
	availMax := size.X - result.Max.X
	half := width / 2
	switch {
	case availMin >= half && availMax >= half:
		result.Min.X -= half
		result.Max.X += width - half
	case availMin > availMax:
		result.Max.X += availMax
		result.Min.X -= width - availMax
	default:
		result.Min.X -= availMin
		result.Max.X += width - availMin
	}
	return CorrectRectangle(size, result)
}

// RectAddHeight will add height to the rect as evenly as possible
func RectAddHeight(size image.Point, rect image.Rectangle, height int) (result image.Rectangle) {
	result = CorrectRectangle(size, rect)
	if height <= 0 {
		return
	}
	availMin := result.Min.Y
	availMax := size.Y - result.Max.Y
	half := height / 2
	switch {
	case availMin >= half && availMax >= half:
		result.Min.Y -= half
		result.Max.Y += height - half
	case availMin > availMax:
		result.Max.Y += availMax
		result.Min.Y -= height - availMax
	default:
		result.Min.Y -= availMin
		result.Max.Y += height - availMin
	}
	return CorrectRectangle(size, result)
}

// RectPadded returns the rectangle grown by paddingPercent of its own size
func RectPadded(size image.Point, rect image.Rectangle, paddingPercent int) image.Rectangle {
	result := CorrectRectangle(size, rect)
	if paddingPercent <= 0 {
		return result
	}
	result = RectAddWidth(size, result, result.Dx()*paddingPercent/100)
	return RectAddHeight(size, result, result.Dy()*paddingPercent/100)
}

// NormalizedRect maps a normalized centre and size onto a frame of size
func NormalizedRect(size image.Point, center stage.Point, width float64, height float64) image.Rectangle {
	scaleX := float64(size.X - 1)
	scaleY := float64(size.Y - 1)
	halfW := width * scaleX / 2
	halfH := height * scaleY / 2
	cx := center[0] * scaleX
	cy := center[1] * scaleY
	rect := image.Rect(int(cx-halfW), int(cy-halfH), int(cx+halfW)+1, int(cy+halfH)+1)
	return CorrectRectangle(size, rect)
}
