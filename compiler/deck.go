package compiler

import (
	"image"

	"github.com/jonoton/vigil/framedeck"
	"gocv.io/x/gocv"
)

// DeckLength is the length of every compiled frame deck
const DeckLength = 1 + MaxDeckDepth

func closeMat(m gocv.Mat) {
	m.Close()
}

// ZeroFrames returns a fill func of zero frames
func ZeroFrames(size image.Point, mt gocv.MatType) func() gocv.Mat {
	return func() gocv.Mat {
		return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, mt)
	}
}

// NewMatDeck creates a deck of zero frames
func NewMatDeck(size image.Point, mt gocv.MatType) *framedeck.Deck[gocv.Mat] {
	return framedeck.New(DeckLength, ZeroFrames(size, mt), closeMat)
}

// ClearDeck refills deck with zero frames in place
func ClearDeck(deck *framedeck.Deck[gocv.Mat], size image.Point, mt gocv.MatType) {
	deck.Refill(ZeroFrames(size, mt))
}

// NewMatDeckFrom creates a deck of copies of initial
func NewMatDeckFrom(initial gocv.Mat) *framedeck.Deck[gocv.Mat] {
	return framedeck.NewFrom(DeckLength, initial, func(m gocv.Mat) gocv.Mat {
		return m.Clone()
	}, closeMat)
}

// ResizeDeck resizes every frame in deck to size, nearest neighbour
func ResizeDeck(deck *framedeck.Deck[gocv.Mat], size image.Point) {
	deck.ModifyAll(func(m gocv.Mat) gocv.Mat {
		if m.Cols() == size.X && m.Rows() == size.Y {
			return m
		}
		dst := gocv.NewMat()
		gocv.Resize(m, &dst, size, 0, 0, gocv.InterpolationNearestNeighbor)
		m.Close()
		return dst
	})
}

// SumNewest returns the saturating sum of the newest n+1 frames
func SumNewest(deck *framedeck.Deck[gocv.Mat], n int) (gocv.Mat, error) {
	frames, err := deck.Newest(n + 1)
	if err != nil {
		return gocv.Mat{}, err
	}
	sum := frames[0].Clone()
	for i := 1; i < len(frames); i++ {
		if err := checkShape(sum, frames[i]); err != nil {
			sum.Close()
			return gocv.Mat{}, err
		}
		gocv.Add(sum, frames[i], &sum)
	}
	return sum, nil
}
