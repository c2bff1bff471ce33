package task

import (
	"errors"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jonoton/vigil/background"
	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/control"
	"github.com/jonoton/vigil/memory"
	"github.com/jonoton/vigil/overlay"
	pubsubmutex "github.com/jonoton/vigil/pubsubMutex"
	"github.com/jonoton/vigil/report"
	"github.com/jonoton/vigil/stage"
	"github.com/jonoton/vigil/videosource"
)

// Task runs one video source through its bundle
type Task struct {
	Name        string
	Session     string
	config      Config
	logger      *log.Entry
	statsLogger *log.Logger
	source      videosource.VideoSource
	registry    *stage.Registry
	store       bundle.RecordStore
	bundle      *bundle.Bundle
	background  background.Capture
	queue       *control.Queue
	hub         *pubsubmutex.PubSubMutex
	reporter    *report.Reporter
	overlay     *overlay.Overlay
	pending     *videosource.Frame
	lastFrame   gocv.Mat
	lastTime    stage.FrameTime
	frames      int64
	skipped     int64
	statsFrames int64
	statsAt     time.Time
	stop        chan bool
	stopOnce    sync.Once
	err         error
	done        chan bool
}

// NewTask creates a new Task, logDir empty keeps stats in the main log
func NewTask(name string, conf Config, source videosource.VideoSource, store bundle.RecordStore,
	hub *pubsubmutex.PubSubMutex, logDir string) *Task {
	session := uuid.New().String()
	logger := log.WithFields(log.Fields{"task": name, "session": session})
	t := &Task{
		Name:     name,
		Session:  session,
		config:   conf,
		logger:   logger,
		source:   source,
		registry: bundle.NewRegistry(),
		store:    store,
		queue:    control.NewQueue(64),
		hub:      hub,
		reporter: report.NewReporter(conf.Report, name, logger),
		overlay:  overlay.NewOverlay(),
		stop:     make(chan bool),
		done:     make(chan bool),
	}
	t.overlay.SetConfig(conf.Overlay)
	if logDir != "" {
		t.statsLogger = log.New()
		t.statsLogger.SetFormatter(&log.JSONFormatter{})
		t.statsLogger.SetOutput(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, name+"-stats"),
			MaxSize:    1,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   false,
		})
	}
	return t
}

// Queue returns the delta queue drained between frames
func (t *Task) Queue() *control.Queue {
	return t.queue
}

// Start runs the task on its own goroutine
func (t *Task) Start() {
	go func() {
		defer close(t.done)
		if err := t.setup(); err != nil {
			t.err = err
			t.logger.Errorln("Task setup failed:", err)
			t.cleanup()
			return
		}
		t.run()
		t.finish()
		t.cleanup()
	}()
}

// Stop asks the task to end after the current frame
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Wait until done
func (t *Task) Wait() {
	<-t.done
}

// Done is closed once the task has ended
func (t *Task) Done() <-chan bool {
	return t.done
}

func (t *Task) setup() error {
	if err := t.source.Initialize(); err != nil {
		return err
	}
	size := t.source.Size()
	if size.X <= 0 || size.Y <= 0 {
		frame, err := t.source.Read()
		if err != nil {
			return err
		}
		if !frame.IsFilled() {
			return errors.New("no frame to size the bundle from")
		}
		size = image.Pt(frame.Mat.Cols(), frame.Mat.Rows())
		t.pending = &frame
	}
	capture, err := background.New(t.config.Background)
	if err != nil {
		return err
	}
	t.background = capture
	t.bundle = bundle.NewBundle(t.config.Selection, t.registry, t.store, size)
	t.bundle.ResetOnStartup = t.config.resetOnStartup()
	if err := t.bundle.SetupAll("", stage.Identity{}); err != nil {
		return err
	}
	if err := t.reporter.Connect(); err != nil {
		t.logger.Warnln("Report not connected:", err)
	}
	t.statsAt = time.Now()
	t.logger.Infoln("Task started", t.config.Selection, size)
	return nil
}

func (t *Task) read() (videosource.Frame, error) {
	if t.pending != nil {
		frame := *t.pending
		t.pending = nil
		return frame, nil
	}
	return t.source.Read()
}

func (t *Task) run() {
Loop:
	for {
		select {
		case <-t.stop:
			break Loop
		default:
		}
		t.queue.Drain(t.handle)
		frame, err := t.read()
		if err != nil {
			t.fail(err)
			break Loop
		}
		if frame.Done {
			t.logger.Infoln("End of stream after", t.frames, "frames")
			break Loop
		}
		if !frame.IsFilled() {
			continue
		}
		if err := t.process(frame); err != nil {
			t.fail(err)
			break Loop
		}
		t.stats()
	}
}

// fail records the error ending the run
func (t *Task) fail(err error) {
	t.err = err
	var stageErr *bundle.StageRuntimeError
	switch {
	case errors.As(err, &stageErr):
		t.logger.WithField("stage", stageErr.Stage).Errorln("Stage failed, ending run:", stageErr.Err)
	case errors.Is(err, videosource.ErrStalled):
		t.logger.Errorln("Source stalled, ending run")
	default:
		t.logger.Errorln("Source read failed:", err)
	}
}

// Err returns the error that ended the run, nil for end of stream or Stop
func (t *Task) Err() error {
	<-t.done
	return t.err
}

func (t *Task) process(frame videosource.Frame) error {
	ft := stage.FrameTime{Index: frame.Index, EpochMs: frame.EpochMs, Datetime: frame.Datetime,
		ReadTime: frame.ReadTime}
	bg, updated, err := t.background.Update(ft, frame.Mat)
	if err != nil {
		t.logger.Warnln("Background:", err)
		frame.Cleanup()
		return nil
	}
	result, err := t.bundle.RunAll(background.SourceOutputs(frame.Mat, bg, updated), ft)
	t.keepFrame(frame.Mat, ft)
	t.frames++
	t.statsFrames++
	if err != nil {
		return err
	}
	if result.Skipped {
		t.skipped++
	}
	t.reporter.Frame(report.NewFrameSummary(t.Session, t.Name, ft, result))
	t.hub.Publish(control.NewTiming(t.Name, ft.Index, ft.EpochMs, result.Skipped, result.Timing),
		control.TimingTopic(t.Name))
	return nil
}

// keepFrame holds the newest frame for previews, releasing the one before
func (t *Task) keepFrame(mat gocv.Mat, ft stage.FrameTime) {
	if t.lastFrame.Ptr() != nil {
		t.lastFrame.Close()
	}
	t.lastFrame = mat
	t.lastTime = ft
}

func (t *Task) stats() {
	interval := time.Duration(t.config.StatsSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	elapsed := time.Since(t.statsAt)
	if elapsed < interval {
		return
	}
	fields := log.Fields{
		"task":    t.Name,
		"session": t.Session,
		"frames":  t.frames,
		"skipped": t.skipped,
		"fps":     float64(t.statsFrames) / elapsed.Seconds(),
		"memory":  memory.NewMemory().String(),
	}
	if threaded, ok := t.source.(*videosource.ThreadedFileSource); ok {
		accepted, _, dropped, _ := threaded.Stats.Snapshot()
		fields["accepted"] = accepted
		fields["dropped"] = dropped
	}
	if published, dropped := t.reporter.Counts(); t.reporter.Enabled() {
		fields["reported"] = published
		fields["reportDropped"] = dropped
	}
	if t.statsLogger != nil {
		t.statsLogger.WithFields(fields).Info("stats")
	} else {
		t.logger.WithFields(fields).Info("stats")
	}
	t.statsFrames = 0
	t.statsAt = time.Now()
}

func (t *Task) finish() {
	if t.bundle == nil {
		return
	}
	t.queue.Drain(t.handle)
	closed := t.bundle.CloseAll(t.lastTime)
	t.reporter.Final(report.NewFinalSummary(t.Session, t.Name, t.lastTime, t.frames, t.skipped, closed))
	t.logger.Infoln("Task finished,", t.frames, "frames", t.skipped, "skipped")
}

func (t *Task) cleanup() {
	if t.pending != nil {
		t.pending.Cleanup()
		t.pending = nil
	}
	if t.lastFrame.Ptr() != nil {
		t.lastFrame.Close()
		t.lastFrame = gocv.Mat{}
	}
	if t.background != nil {
		t.background.Close()
	}
	t.source.Cleanup()
	t.reporter.Close()
	// answer anything submitted while shutting down
	t.queue.Drain(func(d *control.Delta) {
		d.Answer(nil, bundle.ErrNotSetup)
	})
}
