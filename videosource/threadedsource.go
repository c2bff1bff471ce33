package videosource

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"gocv.io/x/gocv"
)

// Threaded reader defaults
const (
	QueueSize          = 64
	DefaultPutTimeout  = 500 * time.Millisecond
	DefaultReadTimeout = 5 * time.Second
)

// ThreadedFileSource decodes a file on a producer goroutine into a bounded queue
type ThreadedFileSource struct {
	BaseVideo
	filename    string
	queue       chan Frame
	guard       sync.Mutex
	seeks       atomic.Int64
	position    atomic.Int64
	off         chan bool
	resume      chan bool
	offOnce     sync.Once
	wg          sync.WaitGroup
	finished    bool
	Loop        bool
	PutTimeout  time.Duration
	ReadTimeout time.Duration
	Stats       *VideoStats
}

// NewThreadedFileSource creates a new ThreadedFileSource
func NewThreadedFileSource(name string, filename string, opener Opener, timekeeper *Timekeeper) *ThreadedFileSource {
	t := &ThreadedFileSource{
		BaseVideo:   *NewBaseVideo(name, filename, opener, timekeeper),
		filename:    filename,
		queue:       make(chan Frame, QueueSize),
		off:         make(chan bool),
		resume:      make(chan bool, 1),
		PutTimeout:  DefaultPutTimeout,
		ReadTimeout: DefaultReadTimeout,
	}
	return t
}

// Initialize implements interface
func (t *ThreadedFileSource) Initialize() error {
	if err := t.open(); err != nil {
		log.Warnf("Could not open video capture file: %s\n", t.filename)
		return err
	}
	log.Infoln("Opened", t.filename, t.size, "fps", t.fps, "frames", t.total)
	t.Stats = NewVideoStats()
	t.wg.Add(1)
	go t.produce()
	return nil
}

func (t *ThreadedFileSource) produce() {
	defer t.wg.Done()
	rewound := false
Loop:
	for {
		select {
		case <-t.off:
			break Loop
		default:
		}
		frame := t.next()
		if frame.Done && t.Loop && !rewound {
			log.Infoln("Looping source", t.name)
			t.rewind()
			rewound = true
			continue
		}
		rewound = false
		if !t.put(frame) {
			frame.Cleanup()
			break Loop
		}
		if frame.Done && !t.awaitSeek(frame.seek) {
			break Loop
		}
	}
	log.Debugln("Producer stopped", t.name)
}

// awaitSeek parks the producer at the end of the file until a seek newer than
// seek arrives, false once the source is shut down
func (t *ThreadedFileSource) awaitSeek(seek int64) bool {
	for t.seeks.Load() == seek {
		select {
		case <-t.off:
			return false
		case <-t.resume:
		}
	}
	return true
}

// next decodes one frame under the capture lock
func (t *ThreadedFileSource) next() Frame {
	t.guard.Lock()
	defer t.guard.Unlock()
	frame, ok := t.decode()
	if !ok {
		frame = doneFrame()
	} else {
		t.fileTiming(&frame)
		t.position.Store(frame.Index)
	}
	frame.seek = t.seeks.Load()
	return frame
}

// put retries until the frame is queued or the source is shut down
func (t *ThreadedFileSource) put(frame Frame) bool {
	timer := time.NewTimer(t.PutTimeout)
	defer timer.Stop()
	for {
		select {
		case t.queue <- frame:
			t.Stats.AddAccepted()
			return true
		case <-t.off:
			return false
		case <-timer.C:
			log.Debugln("Queue full", t.name)
			timer.Reset(t.PutTimeout)
		}
	}
}

// Read implements interface
func (t *ThreadedFileSource) Read() (Frame, error) {
	if t.capture == nil {
		return Frame{}, ErrNotOpened
	}
	if t.finished {
		return doneFrame(), nil
	}
	timer := time.NewTimer(t.ReadTimeout)
	defer timer.Stop()
	for {
		select {
		case frame := <-t.queue:
			if frame.seek != t.seeks.Load() {
				frame.Cleanup()
				t.Stats.AddDropped()
				continue
			}
			if frame.Done {
				t.finished = true
				log.Infoln("Done source", t.name)
			}
			return frame, nil
		case <-timer.C:
			return Frame{}, ErrStalled
		}
	}
}

// CurrentFrame implements interface
func (t *ThreadedFileSource) CurrentFrame() int64 {
	return t.position.Load()
}

// SetCurrentFrame implements interface
func (t *ThreadedFileSource) SetCurrentFrame(index int64) error {
	if t.capture == nil {
		return ErrNotOpened
	}
	t.seekTo(index)
	t.finished = false
	return nil
}

// rewind moves the decoder back to the first frame keeping queued frames
func (t *ThreadedFileSource) rewind() {
	t.guard.Lock()
	defer t.guard.Unlock()
	t.capture.Set(gocv.VideoCapturePosFrames, 0)
}

// seekTo moves the decoder and discards everything queued before the seek
func (t *ThreadedFileSource) seekTo(index int64) {
	t.guard.Lock()
	defer t.guard.Unlock()
	t.capture.Set(gocv.VideoCapturePosFrames, float64(index))
	t.seeks.Add(1)
	t.position.Store(index)
	t.drain()
	select {
	case t.resume <- true:
	default:
	}
}

func (t *ThreadedFileSource) drain() {
	for {
		select {
		case frame := <-t.queue:
			frame.Cleanup()
			t.Stats.AddDropped()
		default:
			return
		}
	}
}

// Cleanup implements interface
func (t *ThreadedFileSource) Cleanup() {
	t.offOnce.Do(func() {
		close(t.off)
	})
	t.wg.Wait()
	t.drain()
	if t.Stats != nil {
		t.Stats.Cleanup()
	}
	t.release()
}
