package report

import (
	"time"

	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/detector"
	"github.com/jonoton/vigil/stage"
	"github.com/jonoton/vigil/tracker"
)

// ObjectSummary is the reported state of one tracked object
type ObjectSummary struct {
	ID       int64       `json:"id"`
	Center   stage.Point `json:"center"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Matches  int         `json:"matches"`
	Lifetime int64       `json:"lifetime_ms"`
}

// FrameSummary is published for every processed frame
type FrameSummary struct {
	Session    string               `json:"session"`
	Task       string               `json:"task"`
	FrameIndex int64                `json:"frame_index"`
	EpochMs    int64                `json:"epoch_ms"`
	Datetime   string               `json:"datetime"`
	Skipped    bool                 `json:"skipped"`
	TimingMs   map[string]float64   `json:"timing_ms"`
	Detections []detector.Detection `json:"detections"`
	Tracked    []ObjectSummary      `json:"tracked"`
	Dead       []int64              `json:"dead"`
}

// FinalSummary is published once the stream ends
type FinalSummary struct {
	Session   string          `json:"session"`
	Task      string          `json:"task"`
	Frames    int64           `json:"frames"`
	Skipped   int64           `json:"skipped"`
	EpochMs   int64           `json:"epoch_ms"`
	Datetime  string          `json:"datetime"`
	Remaining []ObjectSummary `json:"remaining"`
	Dead      []int64         `json:"dead"`
}

func formatDatetime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func objectSummaries(objects tracker.Objects, epochMs int64) []ObjectSummary {
	result := make([]ObjectSummary, 0, len(objects))
	for _, id := range objects.IDs() {
		obj := objects[id]
		result = append(result, ObjectSummary{
			ID:       obj.ID,
			Center:   obj.Center,
			Width:    obj.Width,
			Height:   obj.Height,
			Matches:  obj.Matches,
			Lifetime: obj.LifetimeMs(epochMs),
		})
	}
	return result
}

func deadIDs(outputs stage.Outputs) []int64 {
	if dead, ok := outputs[stage.KeyDeadIDs].([]int64); ok {
		return dead
	}
	return []int64{}
}

// NewFrameSummary collects the reported fields of result
func NewFrameSummary(session string, task string, t stage.FrameTime, result bundle.Result) FrameSummary {
	s := FrameSummary{
		Session:    session,
		Task:       task,
		FrameIndex: t.Index,
		EpochMs:    t.EpochMs,
		Datetime:   formatDatetime(t.Datetime),
		Skipped:    result.Skipped,
		TimingMs:   make(map[string]float64, len(result.Timing)),
		Detections: []detector.Detection{},
		Tracked:    []ObjectSummary{},
		Dead:       []int64{},
	}
	for name, d := range result.Timing {
		s.TimingMs[name] = float64(d.Microseconds()) / 1000
	}
	if result.Skipped {
		return s
	}
	if d, ok := result.Outputs[stage.Detector][stage.KeyDetections].(detector.Detections); ok {
		s.Detections = d.Sorted()
	}
	trackerOutputs := result.Outputs[stage.Tracker]
	if tracked, ok := trackerOutputs[stage.KeyTrackedObjects].(tracker.Objects); ok {
		s.Tracked = objectSummaries(tracked, t.EpochMs)
	}
	s.Dead = deadIDs(trackerOutputs)
	return s
}

// NewFinalSummary collects the close outputs of a finished stream
func NewFinalSummary(session string, task string, t stage.FrameTime, frames int64, skipped int64, closed bundle.Result) FinalSummary {
	s := FinalSummary{
		Session:   session,
		Task:      task,
		Frames:    frames,
		Skipped:   skipped,
		EpochMs:   t.EpochMs,
		Datetime:  formatDatetime(t.Datetime),
		Remaining: []ObjectSummary{},
		Dead:      []int64{},
	}
	trackerOutputs := closed.Outputs[stage.Tracker]
	if tracked, ok := trackerOutputs[stage.KeyTrackedObjects].(tracker.Objects); ok {
		s.Remaining = objectSummaries(tracked, t.EpochMs)
	}
	s.Dead = deadIDs(trackerOutputs)
	return s
}
