package videosource

import (
	"sync"
	"time"
)

// VideoStats contains video statistics
type VideoStats struct {
	AcceptedTotal     int
	AcceptedPerSecond int
	DroppedTotal      int
	DroppedPerSecond  int
	acceptedTmp       int
	droppedTmp        int
	guard             sync.Mutex
	fpsTick           *time.Ticker
	done              chan bool
}

// NewVideoStats creates a new VideoStats
func NewVideoStats() *VideoStats {
	v := &VideoStats{
		fpsTick: time.NewTicker(time.Second),
		done:    make(chan bool),
	}
	go func() {
	Loop:
		for {
			select {
			case <-v.fpsTick.C:
				v.guard.Lock()
				v.AcceptedPerSecond = v.acceptedTmp
				v.acceptedTmp = 0
				v.DroppedPerSecond = v.droppedTmp
				v.droppedTmp = 0
				v.guard.Unlock()
			case <-v.done:
				break Loop
			}
		}
	}()
	return v
}

// AddAccepted adds a queued frame
func (v *VideoStats) AddAccepted() {
	if v == nil {
		return
	}
	v.guard.Lock()
	defer v.guard.Unlock()
	v.AcceptedTotal++
	v.acceptedTmp++
}

// AddDropped adds a discarded frame
func (v *VideoStats) AddDropped() {
	if v == nil {
		return
	}
	v.guard.Lock()
	defer v.guard.Unlock()
	v.DroppedTotal++
	v.droppedTmp++
}

// Snapshot returns a copy of the counters
func (v *VideoStats) Snapshot() (accepted, acceptedPerSecond, dropped, droppedPerSecond int) {
	if v == nil {
		return
	}
	v.guard.Lock()
	defer v.guard.Unlock()
	return v.AcceptedTotal, v.AcceptedPerSecond, v.DroppedTotal, v.DroppedPerSecond
}

// Cleanup the VideoStats
func (v *VideoStats) Cleanup() {
	v.guard.Lock()
	v.AcceptedPerSecond = 0
	v.DroppedPerSecond = 0
	v.guard.Unlock()
	if v.fpsTick != nil {
		v.fpsTick.Stop()
		close(v.done)
		v.fpsTick = nil
	}
}
