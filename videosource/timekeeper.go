package videosource

import (
	"fmt"
	"sync"
	"time"
)

// Timekeeper stamps frames with an index, an epoch and a datetime.
// File frames are placed at start plus the scaled video position.
// Live frames use the wall clock and a counter reset at each new year.
type Timekeeper struct {
	start     time.Time
	timelapse float64
	guard     sync.Mutex
	year      int
	index     int64
	now       func() time.Time
}

// NewTimekeeper creates a new Timekeeper, a zero start means local midnight today
func NewTimekeeper(start time.Time, timelapse float64) *Timekeeper {
	if start.IsZero() {
		now := time.Now()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	}
	if timelapse <= 0 {
		timelapse = 1
	}
	t := &Timekeeper{
		start:     start,
		timelapse: timelapse,
		index:     -1,
		now:       time.Now,
	}
	return t
}

// ParseStart parses an ISO start datetime, empty gives the zero time
func ParseStart(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start datetime %q", value)
}

// Start returns the datetime of video position zero
func (t *Timekeeper) Start() time.Time {
	return t.start
}

// FileTiming maps a video position to frame timing
func (t *Timekeeper) FileTiming(videoMs float64, frameIndex int64) (index int64, epochMs int64, datetime time.Time) {
	offset := time.Duration(videoMs * t.timelapse * float64(time.Millisecond))
	datetime = t.start.Add(offset)
	epochMs = datetime.UnixMilli()
	index = frameIndex
	return
}

// LiveTiming stamps a live frame with the wall clock
func (t *Timekeeper) LiveTiming() (index int64, epochMs int64, datetime time.Time) {
	datetime = t.now()
	epochMs = datetime.UnixMilli()
	t.guard.Lock()
	defer t.guard.Unlock()
	if datetime.Year() != t.year {
		t.year = datetime.Year()
		t.index = -1
	}
	t.index++
	index = t.index
	return
}

// LiveIndex returns the last live frame index
func (t *Timekeeper) LiveIndex() int64 {
	t.guard.Lock()
	defer t.guard.Unlock()
	return t.index
}
