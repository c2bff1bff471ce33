package videosource

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

type fakeCapture struct {
	guard  sync.Mutex
	pos    int
	total  int
	failAt int
	delay  time.Duration
	closed bool
}

func newFakeCapture(total int) *fakeCapture {
	return &fakeCapture{total: total, failAt: -1}
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.guard.Lock()
	defer f.guard.Unlock()
	if f.closed || f.pos >= f.total || f.pos == f.failAt {
		return false
	}
	f.pos++
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(f.pos%256), 0, 0, 0), 4, 8, gocv.MatTypeCV8UC1)
	frame.CopyTo(m)
	frame.Close()
	return true
}

func (f *fakeCapture) Get(prop gocv.VideoCaptureProperties) float64 {
	f.guard.Lock()
	defer f.guard.Unlock()
	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return 8
	case gocv.VideoCaptureFrameHeight:
		return 4
	case gocv.VideoCaptureFPS:
		return 25
	case gocv.VideoCaptureFrameCount:
		return float64(f.total)
	case gocv.VideoCapturePosFrames:
		return float64(f.pos)
	case gocv.VideoCapturePosMsec:
		return float64(f.pos) * 40
	}
	return 0
}

func (f *fakeCapture) Set(prop gocv.VideoCaptureProperties, param float64) {
	f.guard.Lock()
	defer f.guard.Unlock()
	if prop == gocv.VideoCapturePosFrames {
		f.pos = int(param)
	}
}

func (f *fakeCapture) IsOpened() bool {
	return !f.closed
}

func (f *fakeCapture) Close() error {
	f.guard.Lock()
	defer f.guard.Unlock()
	f.closed = true
	return nil
}

func openerFor(c Capture) Opener {
	return func(locator string) (Capture, error) {
		return c, nil
	}
}

func TestFileSourceReadsUntilDone(t *testing.T) {
	f := NewFileSource("file", "fake.mp4", openerFor(newFakeCapture(3)), nil)
	if err := f.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	defer f.Cleanup()
	if f.Size().X != 8 || f.Size().Y != 4 || f.TotalFrames() != 3 {
		t.Fatalf("properties %v %d\n", f.Size(), f.TotalFrames())
	}
	for i := int64(1); i <= 3; i++ {
		frame, err := f.Read()
		if err != nil || frame.Done {
			t.Fatalf("Read %d err %v done %v\n", i, err, frame.Done)
		}
		if frame.Index != i {
			t.Fatalf("Index = %d, expected %d\n", frame.Index, i)
		}
		frame.Cleanup()
	}
	for i := 0; i < 2; i++ {
		if frame, _ := f.Read(); !frame.Done {
			t.Fatalf("expected done frame\n")
		}
	}
	f.SetCurrentFrame(1)
	frame, _ := f.Read()
	defer frame.Cleanup()
	if frame.Done || frame.Index != 2 {
		t.Fatalf("after seek index %d done %v, expected 2\n", frame.Index, frame.Done)
	}
}

func TestThreadedFileSourceKeepsOrder(t *testing.T) {
	total := 1000
	source := NewThreadedFileSource("threaded", "fake.mp4", openerFor(newFakeCapture(total)), nil)
	source.PutTimeout = 5 * time.Millisecond
	if err := source.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	defer source.Cleanup()
	for i := int64(1); i <= int64(total); i++ {
		if i%100 == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		frame, err := source.Read()
		if err != nil {
			t.Fatalf("Read %d error %v\n", i, err)
		}
		if frame.Done || frame.Index != i {
			t.Fatalf("Index = %d, expected %d\n", frame.Index, i)
		}
		frame.Cleanup()
	}
	frame, err := source.Read()
	if err != nil || !frame.Done {
		t.Fatalf("expected done frame, err %v\n", err)
	}
	if frame, _ := source.Read(); !frame.Done {
		t.Fatalf("done frame not sticky\n")
	}
	source.Cleanup()
	if accepted, _, _, _ := source.Stats.Snapshot(); accepted != total+1 {
		t.Fatalf("accepted = %d, expected %d\n", accepted, total+1)
	}
}

func TestThreadedFileSourceSeek(t *testing.T) {
	source := NewThreadedFileSource("threaded", "fake.mp4", openerFor(newFakeCapture(1000)), nil)
	if err := source.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	defer source.Cleanup()
	for i := 0; i < 10; i++ {
		frame, err := source.Read()
		if err != nil {
			t.Fatalf("Read error %v\n", err)
		}
		frame.Cleanup()
	}
	if err := source.SetCurrentFrame(500); err != nil {
		t.Fatalf("SetCurrentFrame error %v\n", err)
	}
	frame, err := source.Read()
	if err != nil {
		t.Fatalf("Read error %v\n", err)
	}
	defer frame.Cleanup()
	if frame.Index != 501 {
		t.Fatalf("Index after seek = %d, expected 501\n", frame.Index)
	}
}

func TestThreadedFileSourceSeekAfterDone(t *testing.T) {
	source := NewThreadedFileSource("threaded", "fake.mp4", openerFor(newFakeCapture(5)), nil)
	source.ReadTimeout = time.Second
	if err := source.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	defer source.Cleanup()
	for {
		frame, err := source.Read()
		if err != nil {
			t.Fatalf("Read error %v\n", err)
		}
		frame.Cleanup()
		if frame.Done {
			break
		}
	}
	if err := source.SetCurrentFrame(1); err != nil {
		t.Fatalf("SetCurrentFrame error %v\n", err)
	}
	frame, err := source.Read()
	if err != nil {
		t.Fatalf("Read after seek error %v\n", err)
	}
	defer frame.Cleanup()
	if frame.Done || frame.Index != 2 {
		t.Fatalf("Index after seek = %d done %v, expected 2\n", frame.Index, frame.Done)
	}
	for i := 0; i < 3; i++ {
		next, err := source.Read()
		if err != nil {
			t.Fatalf("Read error %v\n", err)
		}
		next.Cleanup()
	}
	last, err := source.Read()
	if err != nil || !last.Done {
		t.Fatalf("Read at end err %v done %v, expected done\n", err, last.Done)
	}
}

func TestThreadedFileSourceLoops(t *testing.T) {
	source := NewThreadedFileSource("threaded", "fake.mp4", openerFor(newFakeCapture(5)), nil)
	source.Loop = true
	if err := source.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	defer source.Cleanup()
	expected := []int64{1, 2, 3, 4, 5, 1, 2, 3, 4, 5, 1, 2}
	for i, want := range expected {
		frame, err := source.Read()
		if err != nil || frame.Done {
			t.Fatalf("Read %d err %v done %v\n", i, err, frame.Done)
		}
		if frame.Index != want {
			t.Fatalf("Index = %d, expected %d\n", frame.Index, want)
		}
		frame.Cleanup()
	}
}

func TestThreadedFileSourceStalls(t *testing.T) {
	capture := newFakeCapture(10)
	capture.delay = 300 * time.Millisecond
	source := NewThreadedFileSource("threaded", "fake.mp4", openerFor(capture), nil)
	source.ReadTimeout = 20 * time.Millisecond
	if err := source.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	defer source.Cleanup()
	if _, err := source.Read(); !errors.Is(err, ErrStalled) {
		t.Fatalf("Read error %v, expected ErrStalled\n", err)
	}
}

func TestRTSPSourceReconnects(t *testing.T) {
	first := newFakeCapture(100)
	first.failAt = 2
	failures := 3
	opens := 0
	opener := func(locator string) (Capture, error) {
		opens++
		if opens == 1 {
			return first, nil
		}
		if opens <= 1+failures {
			return nil, ErrNotOpened
		}
		return newFakeCapture(100), nil
	}
	source := NewRTSPSource("camera", RTSPConfig{IP: "10.0.0.2"}, opener, nil)
	source.Backoff = time.Millisecond
	if err := source.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	defer source.Cleanup()
	for i := int64(0); i < 3; i++ {
		frame, err := source.Read()
		if err != nil || frame.Done {
			t.Fatalf("Read %d err %v done %v\n", i, err, frame.Done)
		}
		if frame.Index != i {
			t.Fatalf("Index = %d, expected %d\n", frame.Index, i)
		}
		frame.Cleanup()
	}
	if source.Reconnects != failures+1 {
		t.Fatalf("Reconnects = %d, expected %d\n", source.Reconnects, failures+1)
	}
}

func TestRTSPSourceCleanupUnblocksRead(t *testing.T) {
	opener := func(locator string) (Capture, error) {
		return nil, ErrNotOpened
	}
	source := NewRTSPSource("camera", RTSPConfig{IP: "10.0.0.2"}, opener, nil)
	source.Backoff = 5 * time.Millisecond
	if err := source.Initialize(); err != nil {
		t.Fatalf("Initialize error %v\n", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		source.Cleanup()
	}()
	frame, err := source.Read()
	if err != nil || !frame.Done {
		t.Fatalf("Read after cleanup err %v done %v\n", err, frame.Done)
	}
}

func TestRTSPConfig(t *testing.T) {
	c := RTSPConfig{IP: "192.168.1.10", Username: "admin", Password: "pw", Route: "stream1"}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate error %v\n", err)
	}
	if got := c.URL(); got != "rtsp://admin:pw@192.168.1.10:554/stream1" {
		t.Fatalf("URL = %s\n", got)
	}
	if err := (RTSPConfig{IP: "camera.local"}).Validate(); err == nil {
		t.Fatalf("expected invalid ip error\n")
	}
	if err := (RTSPConfig{IP: "10.0.0.1", Port: 70000}).Validate(); err == nil {
		t.Fatalf("expected invalid port error\n")
	}
}

func TestTimekeeperFileTiming(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tk := NewTimekeeper(start, 2)
	index, epoch, datetime := tk.FileTiming(1500, 37)
	if index != 37 {
		t.Fatalf("index = %d, expected 37\n", index)
	}
	if !datetime.Equal(start.Add(3 * time.Second)) {
		t.Fatalf("datetime = %v, expected %v\n", datetime, start.Add(3*time.Second))
	}
	if epoch != start.Add(3*time.Second).UnixMilli() {
		t.Fatalf("epoch = %d\n", epoch)
	}
}

func TestTimekeeperLiveYearReset(t *testing.T) {
	times := []time.Time{
		time.Date(2025, 12, 31, 23, 59, 58, 0, time.Local),
		time.Date(2025, 12, 31, 23, 59, 59, 0, time.Local),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
	}
	tk := NewTimekeeper(time.Time{}, 1)
	call := 0
	tk.now = func() time.Time {
		now := times[call]
		call++
		return now
	}
	expected := []int64{0, 1, 0}
	for i, want := range expected {
		if index, _, _ := tk.LiveTiming(); index != want {
			t.Fatalf("frame %d index = %d, expected %d\n", i, index, want)
		}
	}
}

func TestParseStart(t *testing.T) {
	got, err := ParseStart("2024-02-03T04:05:06")
	if err != nil {
		t.Fatalf("ParseStart error %v\n", err)
	}
	if got.Year() != 2024 || got.Hour() != 4 || got.Second() != 6 {
		t.Fatalf("ParseStart = %v\n", got)
	}
	if _, err := ParseStart("yesterday"); err == nil {
		t.Fatalf("expected parse error\n")
	}
}
