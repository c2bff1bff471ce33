package videosource

import (
	log "github.com/sirupsen/logrus"

	"gocv.io/x/gocv"
)

// FileSource is a file source decoded on the caller's goroutine
type FileSource struct {
	BaseVideo
	filename string
	finished bool
}

// NewFileSource creates a new FileSource
func NewFileSource(name string, filename string, opener Opener, timekeeper *Timekeeper) *FileSource {
	f := &FileSource{
		BaseVideo: *NewBaseVideo(name, filename, opener, timekeeper),
		filename:  filename,
	}
	return f
}

// Initialize implements interface
func (f *FileSource) Initialize() error {
	if err := f.open(); err != nil {
		log.Warnf("Could not open video capture file: %s\n", f.filename)
		return err
	}
	log.Infoln("Opened", f.filename, f.size, "fps", f.fps, "frames", f.total)
	return nil
}

// Cleanup implements interface
func (f *FileSource) Cleanup() {
	f.release()
}

// Read implements interface
func (f *FileSource) Read() (Frame, error) {
	if f.capture == nil {
		return Frame{}, ErrNotOpened
	}
	if f.finished {
		return doneFrame(), nil
	}
	frame, ok := f.decode()
	if !ok {
		f.finished = true
		log.Infoln("Done source", f.name)
		return doneFrame(), nil
	}
	f.fileTiming(&frame)
	return frame, nil
}

// CurrentFrame implements interface
func (f *FileSource) CurrentFrame() int64 {
	if f.capture == nil {
		return 0
	}
	return int64(f.capture.Get(gocv.VideoCapturePosFrames))
}

// SetCurrentFrame implements interface
func (f *FileSource) SetCurrentFrame(index int64) error {
	if f.capture == nil {
		return ErrNotOpened
	}
	f.capture.Set(gocv.VideoCapturePosFrames, float64(index))
	f.finished = false
	return nil
}
