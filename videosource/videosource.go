package videosource

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Errors returned by video sources
var (
	ErrNotOpened = errors.New("video source not opened")
	ErrStalled   = errors.New("video source stalled")
)

// VideoSource interface for setting up and reading frames
type VideoSource interface {
	GetName() string
	Initialize() error
	Cleanup()
	Read() (Frame, error)
	CurrentFrame() int64
	SetCurrentFrame(index int64) error
	Size() image.Point
	FPS() float64
	TotalFrames() int64
}

// Capture is the decode handle behind a source, gocv.VideoCapture satisfies it
type Capture interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Set(prop gocv.VideoCaptureProperties, param float64)
	IsOpened() bool
	Close() error
}

// Opener opens a Capture for a file name or url
type Opener func(locator string) (Capture, error)

// OpenCapture is the gocv Opener
func OpenCapture(locator string) (Capture, error) {
	vc, err := gocv.VideoCaptureFile(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpened, locator, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotOpened, locator)
	}
	return vc, nil
}

// BaseVideo contains common video source info
type BaseVideo struct {
	name       string
	locator    string
	opener     Opener
	capture    Capture
	timekeeper *Timekeeper
	size       image.Point
	fps        float64
	total      int64
}

// NewBaseVideo creates a new BaseVideo
func NewBaseVideo(name string, locator string, opener Opener, timekeeper *Timekeeper) *BaseVideo {
	if opener == nil {
		opener = OpenCapture
	}
	if timekeeper == nil {
		timekeeper = NewTimekeeper(time.Time{}, 1)
	}
	b := &BaseVideo{
		name:       name,
		locator:    locator,
		opener:     opener,
		timekeeper: timekeeper,
	}
	return b
}

// GetName implements interface
func (b *BaseVideo) GetName() string {
	return b.name
}

// Size implements interface
func (b *BaseVideo) Size() image.Point {
	return b.size
}

// FPS implements interface
func (b *BaseVideo) FPS() float64 {
	return b.fps
}

// TotalFrames implements interface
func (b *BaseVideo) TotalFrames() int64 {
	return b.total
}

// Timekeeper returns the frame clock
func (b *BaseVideo) Timekeeper() *Timekeeper {
	return b.timekeeper
}

func (b *BaseVideo) open() error {
	capture, err := b.opener(b.locator)
	if err != nil {
		return err
	}
	b.capture = capture
	b.readProperties()
	return nil
}

func (b *BaseVideo) readProperties() {
	b.size = image.Pt(int(b.capture.Get(gocv.VideoCaptureFrameWidth)), int(b.capture.Get(gocv.VideoCaptureFrameHeight)))
	b.fps = b.capture.Get(gocv.VideoCaptureFPS)
	b.total = int64(b.capture.Get(gocv.VideoCaptureFrameCount))
}

func (b *BaseVideo) release() {
	if b.capture != nil {
		b.capture.Close()
		b.capture = nil
	}
}

// decode reads the next frame from the capture, ok is false at end of stream
func (b *BaseVideo) decode() (frame Frame, ok bool) {
	if b.capture == nil {
		return
	}
	start := time.Now()
	mat := gocv.NewMat()
	if !b.capture.Read(&mat) || mat.Empty() {
		mat.Close()
		return
	}
	frame.Mat = mat
	frame.ReadTime = time.Since(start)
	ok = true
	return
}

// fileTiming stamps frame using the capture position
func (b *BaseVideo) fileTiming(frame *Frame) {
	frame.Index, frame.EpochMs, frame.Datetime = b.timekeeper.FileTiming(
		b.capture.Get(gocv.VideoCapturePosMsec),
		int64(b.capture.Get(gocv.VideoCapturePosFrames)))
}
