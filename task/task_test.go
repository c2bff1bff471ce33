package task

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/control"
	pubsubmutex "github.com/jonoton/vigil/pubsubMutex"
	"github.com/jonoton/vigil/stage"
	"github.com/jonoton/vigil/videosource"
)

type fakeCapture struct {
	guard sync.Mutex
	pos   int
	total int
	delay time.Duration
}

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.guard.Lock()
	defer f.guard.Unlock()
	if f.pos >= f.total {
		return false
	}
	f.pos++
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(f.pos%256), 0, 0, 0), 12, 16, gocv.MatTypeCV8UC3)
	frame.CopyTo(m)
	frame.Close()
	return true
}

func (f *fakeCapture) Get(prop gocv.VideoCaptureProperties) float64 {
	f.guard.Lock()
	defer f.guard.Unlock()
	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return 16
	case gocv.VideoCaptureFrameHeight:
		return 12
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
	return true
}

func (f *fakeCapture) Close() error {
	return nil
}

type memoryStore struct {
	guard   sync.Mutex
	records map[string]stage.Record
}

func (m *memoryStore) Load(stageName string) (stage.Record, error) {
	m.guard.Lock()
	defer m.guard.Unlock()
	return m.records[stageName], nil
}

func (m *memoryStore) Save(stageName string, record stage.Record) error {
	m.guard.Lock()
	defer m.guard.Unlock()
	m.records[stageName] = record
	return nil
}

func newTestTask(capture *fakeCapture, hub *pubsubmutex.PubSubMutex) *Task {
	return newTaskWithConfig(Config{Filename: "fake.mp4"}, capture, hub)
}

func newTaskWithConfig(conf Config, capture *fakeCapture, hub *pubsubmutex.PubSubMutex) *Task {
	opener := func(locator string) (videosource.Capture, error) {
		return capture, nil
	}
	source, _ := conf.NewSource("front", opener)
	store := &memoryStore{records: bundle.DefaultRecords(bundle.NewRegistry())}
	return NewTask("front", conf, source, store, hub, "")
}

func TestTaskRunsToEnd(t *testing.T) {
	hub := pubsubmutex.New(16)
	hub.Start()
	defer hub.Shutdown()
	sub, err := pubsubmutex.Subscribe[control.Timing](hub, control.TimingTopic("front"))
	if err != nil {
		t.Fatalf("Subscribe error %v\n", err)
	}
	defer sub.Close()
	task := newTestTask(&fakeCapture{total: 5}, hub)
	task.Start()
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("task did not finish\n")
	}
	if task.frames != 5 {
		t.Fatalf("frames = %d, expected 5\n", task.frames)
	}
	if task.Err() != nil {
		t.Fatalf("Err = %v, expected nil\n", task.Err())
	}
	received := 0
Loop:
	for {
		select {
		case timing := <-sub.C():
			if len(timing.StagesMs) != len(stage.Sequence)+1 {
				t.Fatalf("timing stages = %d, expected %d\n", len(timing.StagesMs), len(stage.Sequence)+1)
			}
			received++
			if received == 5 {
				break Loop
			}
		case <-time.After(2 * time.Second):
			break Loop
		}
	}
	if received != 5 {
		t.Fatalf("timings = %d, expected 5\n", received)
	}
}

func TestTaskAnswersDeltas(t *testing.T) {
	hub := pubsubmutex.New(1)
	hub.Start()
	defer hub.Shutdown()
	task := newTestTask(&fakeCapture{total: 100000, delay: time.Millisecond}, hub)
	task.Start()
	defer func() {
		task.Stop()
		task.Wait()
	}()
	q := task.Queue()
	v, err := q.Submit(&control.Delta{Kind: control.List}, 5*time.Second)
	if err != nil {
		t.Fatalf("List error %v\n", err)
	}
	if infos := v.([]StageInfo); len(infos) != len(stage.Sequence) {
		t.Fatalf("List = %d stages, expected %d\n", len(infos), len(stage.Sequence))
	}
	v, err = q.Submit(&control.Delta{Kind: control.Seek, Frame: 10}, 5*time.Second)
	if err != nil || v.(int64) != 10 {
		t.Fatalf("Seek = %v %v, expected 10\n", v, err)
	}
	v, err = q.Submit(&control.Delta{Kind: control.Preview, Width: 8}, 5*time.Second)
	if err != nil {
		t.Fatalf("Preview error %v\n", err)
	}
	if data, ok := v.([]byte); !ok || len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("Preview is not a jpeg\n")
	}
	_, err = q.Submit(&control.Delta{Kind: control.Describe, Stage: "bogus"}, 5*time.Second)
	if control.StatusOf(err) != 404 {
		t.Fatalf("Describe error = %v, expected unknown stage\n", err)
	}
	_, err = q.Submit(&control.Delta{Kind: control.Override, Stage: stage.Tracker,
		Identity: stage.Identity{Name: "euclidean", Variant: "default"}}, 5*time.Second)
	if err != nil {
		t.Fatalf("Override error %v\n", err)
	}
	saved, err := q.Submit(&control.Delta{Kind: control.Save, Stage: stage.Tracker}, 5*time.Second)
	if err != nil || saved != true {
		t.Fatalf("Save = %v %v, expected true\n", saved, err)
	}
}

func TestNewSourceNeedsLocator(t *testing.T) {
	conf := Config{}
	if _, err := conf.NewSource("front", nil); err == nil {
		t.Fatalf("NewSource without locator succeeded\n")
	}
	conf = Config{RTSP: &videosource.RTSPConfig{IP: "not an ip"}}
	if _, err := conf.NewSource("front", nil); err == nil {
		t.Fatalf("NewSource with bad rtsp succeeded\n")
	}
}

var errBrokenDetector = errors.New("broken detector")

var brokenIdentity = stage.Identity{Name: "broken", Variant: "default"}

type brokenDetector struct {
	*stage.Base
}

func (b *brokenDetector) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	return nil, errBrokenDetector
}

func waitDone(t *testing.T, task *Task) {
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		task.Stop()
		t.Fatalf("task did not end\n")
	}
}

func TestTaskEndsOnStageFailure(t *testing.T) {
	task := newTestTask(&fakeCapture{total: 5}, pubsubmutex.New(4))
	task.registry.Register(stage.Detector, brokenIdentity, func(inputSize image.Point) stage.Stage {
		return &brokenDetector{Base: stage.NewBase(stage.Detector, brokenIdentity, inputSize, nil)}
	})
	task.store.Save(stage.Detector, stage.Record{Identity: brokenIdentity, Params: stage.Params{}})
	task.Start()
	waitDone(t, task)
	if task.frames != 1 {
		t.Fatalf("frames = %d, expected 1\n", task.frames)
	}
	var stageErr *bundle.StageRuntimeError
	if !errors.As(task.Err(), &stageErr) || stageErr.Stage != stage.Detector {
		t.Fatalf("Err = %v, expected detector stage error\n", task.Err())
	}
	if !errors.Is(task.Err(), errBrokenDetector) {
		t.Fatalf("Err = %v, expected %v\n", task.Err(), errBrokenDetector)
	}
}

func TestTaskEndsOnStall(t *testing.T) {
	capture := &fakeCapture{total: 10, delay: 300 * time.Millisecond}
	task := newTaskWithConfig(Config{Filename: "fake.mp4", Threaded: true}, capture, pubsubmutex.New(4))
	threaded, ok := task.source.(*videosource.ThreadedFileSource)
	if !ok {
		t.Fatalf("source = %T, expected threaded\n", task.source)
	}
	threaded.ReadTimeout = 20 * time.Millisecond
	task.Start()
	waitDone(t, task)
	if !errors.Is(task.Err(), videosource.ErrStalled) {
		t.Fatalf("Err = %v, expected %v\n", task.Err(), videosource.ErrStalled)
	}
	if task.frames != 0 {
		t.Fatalf("frames = %d, expected 0\n", task.frames)
	}
}
