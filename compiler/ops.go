package compiler

import (
	"errors"
	"fmt"
	"image"

	"github.com/jonoton/vigil/framedeck"
	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when an op receives no image data
var ErrEmptyFrame = errors.New("empty frame")

func checkShape(a gocv.Mat, b gocv.Mat) error {
	if a.Ptr() == nil || b.Ptr() == nil || a.Empty() || b.Empty() {
		return ErrEmptyFrame
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() || a.Type() != b.Type() {
		return fmt.Errorf("shape mismatch %dx%d/%v vs %dx%d/%v",
			a.Cols(), a.Rows(), a.Type(), b.Cols(), b.Rows(), b.Type())
	}
	return nil
}

// Resize builds a resize to size
func Resize(size image.Point, interpolation gocv.InterpolationFlags) Build {
	return func() (Op, func(), error) {
		if size.X <= 0 || size.Y <= 0 {
			return nil, nil, fmt.Errorf("invalid resize %v", size)
		}
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			dst := gocv.NewMat()
			gocv.Resize(src, &dst, size, 0, 0, interpolation)
			return dst, nil
		}, nil, nil
	}
}

// Blur builds a box blur of the given size control
func Blur(size int) Build {
	return func() (Op, func(), error) {
		k := OddKernel(size)
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			dst := gocv.NewMat()
			gocv.Blur(src, &dst, image.Pt(k, k))
			return dst, nil
		}, nil, nil
	}
}

// Grayscale builds a BGR to gray conversion
func Grayscale() Build {
	return func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			if src.Channels() == 1 {
				return src, nil
			}
			dst := gocv.NewMat()
			gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
			return dst, nil
		}, nil, nil
	}
}

// MaxChannel builds a gray conversion taking the largest channel value
func MaxChannel() Build {
	return func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			if src.Channels() == 1 {
				return src, nil
			}
			channels := gocv.Split(src)
			defer func() {
				for i := range channels {
					channels[i].Close()
				}
			}()
			dst := channels[0].Clone()
			for i := 1; i < len(channels); i++ {
				gocv.Max(dst, channels[i], &dst)
			}
			return dst, nil
		}, nil, nil
	}
}

// Morphology builds a morphology op with a precomputed structuring element
func Morphology(size int, op gocv.MorphType, shape gocv.MorphShape) Build {
	return func() (Op, func(), error) {
		k := OddKernel(size)
		kernel := gocv.GetStructuringElement(shape, image.Pt(k, k))
		return func(src gocv.Mat) (gocv.Mat, error) {
				if src.Empty() {
					return gocv.Mat{}, ErrEmptyFrame
				}
				dst := gocv.NewMat()
				gocv.MorphologyEx(src, &dst, op, kernel)
				return dst, nil
			}, func() {
				kernel.Close()
			}, nil
	}
}

// Threshold builds a binary threshold, pixels above value become 255
func Threshold(value int) Build {
	return func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			dst := gocv.NewMat()
			gocv.Threshold(src, &dst, float32(value), 255, gocv.ThresholdBinary)
			return dst, nil
		}, nil, nil
	}
}

// Mask builds a bitwise and against mask. The op takes ownership of mask.
func Mask(mask gocv.Mat) Build {
	return func() (Op, func(), error) {
		if mask.Empty() {
			return nil, nil, ErrEmptyFrame
		}
		return func(src gocv.Mat) (gocv.Mat, error) {
				if err := checkShape(src, mask); err != nil {
					return gocv.Mat{}, err
				}
				dst := gocv.NewMat()
				gocv.BitwiseAnd(src, mask, &dst)
				return dst, nil
			}, func() {
				mask.Close()
			}, nil
	}
}

// DeckDifference builds an absolute difference against the frame depth steps back.
// Every frame is added to deck.
func DeckDifference(deck *framedeck.Deck[gocv.Mat], depth int) Build {
	return func() (Op, func(), error) {
		if depth < 1 || depth >= deck.MaxLen() {
			return nil, nil, fmt.Errorf("difference depth %d outside deck of %d", depth, deck.MaxLen())
		}
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			past, err := deck.AddAndReadNewest(src.Clone(), depth)
			if err != nil {
				return gocv.Mat{}, err
			}
			if err := checkShape(src, past); err != nil {
				return gocv.Mat{}, err
			}
			dst := gocv.NewMat()
			gocv.AbsDiff(src, past, &dst)
			return dst, nil
		}, nil, nil
	}
}

// BackgroundDifference builds an absolute difference against *background.
// The pointer is read every frame so the owner may swap the background.
func BackgroundDifference(background *gocv.Mat) Build {
	return func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			if err := checkShape(src, *background); err != nil {
				return gocv.Mat{}, err
			}
			dst := gocv.NewMat()
			gocv.AbsDiff(src, *background, &dst)
			return dst, nil
		}, nil, nil
	}
}

// Summation builds a saturating sum of the newest depth+1 frames.
// Every frame is added to deck.
func Summation(deck *framedeck.Deck[gocv.Mat], depth int) Build {
	return func() (Op, func(), error) {
		if depth < 1 || depth >= deck.MaxLen() {
			return nil, nil, fmt.Errorf("summation depth %d outside deck of %d", depth, deck.MaxLen())
		}
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			deck.Add(src.Clone())
			return SumNewest(deck, depth)
		}, nil, nil
	}
}

// ConvertColor builds a colour space conversion
func ConvertColor(code gocv.ColorConversionCode) Build {
	return func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			dst := gocv.NewMat()
			gocv.CvtColor(src, &dst, code)
			return dst, nil
		}, nil, nil
	}
}

// InRange builds a single channel mask of pixels between lower and upper inclusive
func InRange(lower gocv.Scalar, upper gocv.Scalar) Build {
	return func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			dst := gocv.NewMat()
			gocv.InRangeWithScalar(src, lower, upper, &dst)
			return dst, nil
		}, nil, nil
	}
}

// Invert builds a bitwise not
func Invert() Build {
	return func() (Op, func(), error) {
		return func(src gocv.Mat) (gocv.Mat, error) {
			if src.Empty() {
				return gocv.Mat{}, ErrEmptyFrame
			}
			dst := gocv.NewMat()
			gocv.BitwiseNot(src, &dst)
			return dst, nil
		}, nil, nil
	}
}
