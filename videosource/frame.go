package videosource

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is one decoded frame and its timing
type Frame struct {
	Mat      gocv.Mat
	Index    int64
	EpochMs  int64
	Datetime time.Time
	ReadTime time.Duration
	Done     bool
	seek     int64
}

// IsFilled checks if the frame holds image data
func (f *Frame) IsFilled() bool {
	return f.Mat.Ptr() != nil && !f.Mat.Empty()
}

// Cleanup releases the frame data
func (f *Frame) Cleanup() {
	if f.Mat.Ptr() != nil {
		f.Mat.Close()
	}
	f.Mat = gocv.Mat{}
}

func doneFrame() Frame {
	return Frame{Done: true}
}
