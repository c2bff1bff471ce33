package tracker

import (
	"image"
	"sort"

	"github.com/jonoton/vigil/detector"
	"github.com/jonoton/vigil/stage"
)

// Implementation identities
var (
	Passthrough = stage.Identity{Name: "passthrough", Variant: "default"}
	Euclidean   = stage.Identity{Name: "euclidean", Variant: "default"}
)

// Register adds the tracker implementations to r
func Register(r *stage.Registry) {
	r.Register(stage.Tracker, Passthrough, func(inputSize image.Point) stage.Stage {
		return NewPassthrough(inputSize)
	})
	r.Register(stage.Tracker, Euclidean, func(inputSize image.Point) stage.Stage {
		return NewEuclideanTracker(inputSize)
	})
}

func trackerOutputs(tracked Objects, validating Objects, dead []int64) stage.Outputs {
	return stage.Outputs{
		stage.KeyTrackedObjects:    tracked,
		stage.KeyValidationObjects: validating,
		stage.KeyDeadIDs:           dead,
	}
}

// PassthroughTracker tracks nothing
type PassthroughTracker struct {
	*stage.Base
}

// NewPassthrough creates a new PassthroughTracker
func NewPassthrough(inputSize image.Point) *PassthroughTracker {
	return &PassthroughTracker{
		Base: stage.NewBase(stage.Tracker, Passthrough, inputSize, nil),
	}
}

// Run implements interface
func (p *PassthroughTracker) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	return trackerOutputs(Objects{}, Objects{}, []int64{}), nil
}

// Close implements interface
func (p *PassthroughTracker) Close(t stage.FrameTime) stage.Outputs {
	return trackerOutputs(Objects{}, Objects{}, []int64{})
}

// EuclideanTracker matches detections to objects by nearest centre
type EuclideanTracker struct {
	*stage.Base
	tracked        Objects
	validating     Objects
	deadTracked    []int64
	deadValidating []int64
	nextTrackedID  int64
	nextValidateID int64
}

// NewEuclideanTracker creates a new EuclideanTracker
func NewEuclideanTracker(inputSize image.Point) *EuclideanTracker {
	schema := stage.Schema{
		stage.ZonesControl("edge_zones_list", "Edge decay zones").
			WithTooltip("Unmatched objects inside these zones are removed immediately."),
		stage.ToggleControl("enabled_edge_decay_zones", "Enable decay zones", true),
		stage.FloatSlider("max_match_range_x", "Maximum Match Range X", 0.10, 0, 1, 0.01, "normalized"),
		stage.FloatSlider("max_match_range_y", "Maximum Match Range Y", 0.10, 0, 1, 0.01, "normalized"),
		stage.IntSlider("track_history_samples", "Track History", 10000, 3, 50000, "samples"),
		stage.IntSlider("validation_time_ms", "Validation Time", 750, 100, 15000, "milliseconds").
			WithTooltip("How long a new object must keep matching before it is tracked."),
		stage.IntSlider("validation_decay_timeout_ms", "Validation Decay Timeout", 500, 50, 15000, "milliseconds"),
		stage.IntSlider("track_decay_timeout_ms", "Tracked Decay Timeout", 2500, 100, 15000, "milliseconds"),
		stage.FloatSlider("smooth_x", "X Position Smoothing", 0.6, 0, 1, 0.2, "weighting"),
		stage.FloatSlider("smooth_y", "Y Position Smoothing", 0.6, 0, 1, 0.2, "weighting"),
	}
	e := &EuclideanTracker{
		Base: stage.NewBase(stage.Tracker, Euclidean, inputSize, schema),
	}
	e.Reset()
	return e
}

// Reset implements interface
func (e *EuclideanTracker) Reset() {
	e.Base.Reset()
	e.tracked = make(Objects)
	e.validating = make(Objects)
	e.deadTracked = []int64{}
	e.deadValidating = []int64{}
	e.nextTrackedID = 1
	e.nextValidateID = 1
}

type pair struct {
	id     int64
	det    int
	sqDist float64
}

// match pairs objects with detections, shortest distance first
func (e *EuclideanTracker) match(objects Objects, ids []int64, detections []detector.Detection, free []int) (pairs []pair, unmatchedIDs []int64, unmatchedDets []int) {
	v := e.Value()
	rangeX, rangeY := v.Float("max_match_range_x"), v.Float("max_match_range_y")
	candidates := make([]pair, 0)
	for _, id := range ids {
		o := objects[id]
		for _, di := range free {
			if rangeX <= 0 || rangeY <= 0 {
				continue
			}
			dx := (detections[di].Center[0] - o.Center[0]) / rangeX
			dy := (detections[di].Center[1] - o.Center[1]) / rangeY
			sq := dx*dx + dy*dy
			if sq <= 1.0 {
				candidates = append(candidates, pair{id: id, det: di, sqDist: sq})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sqDist < candidates[j].sqDist
	})
	usedIDs := make(map[int64]bool)
	usedDets := make(map[int]bool)
	for _, c := range candidates {
		if usedIDs[c.id] || usedDets[c.det] {
			continue
		}
		usedIDs[c.id] = true
		usedDets[c.det] = true
		pairs = append(pairs, c)
	}
	for _, id := range ids {
		if !usedIDs[id] {
			unmatchedIDs = append(unmatchedIDs, id)
		}
	}
	for _, di := range free {
		if !usedDets[di] {
			unmatchedDets = append(unmatchedDets, di)
		}
	}
	return
}

func sortedIDs(objects Objects) []int64 {
	return objects.IDs()
}

func (e *EuclideanTracker) decay(objects Objects, unmatched []int64, epochMs int64, timeoutMs int64) []int64 {
	v := e.Value()
	zones := v.Zones("edge_zones_list")
	useZones := v.Bool("enabled_edge_decay_zones")
	dead := []int64{}
	for _, id := range unmatched {
		o := objects[id]
		if o.UnmatchedMs(epochMs) > timeoutMs || (useZones && o.inZones(zones)) {
			dead = append(dead, id)
		}
	}
	return dead
}

// Run implements interface
func (e *EuclideanTracker) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	detections := detector.Detections{}
	if raw, found := inputs[stage.KeyDetections]; found {
		if d, ok := raw.(detector.Detections); ok {
			detections = d
		}
	}
	for _, id := range e.deadTracked {
		delete(e.tracked, id)
	}
	for _, id := range e.deadValidating {
		delete(e.validating, id)
	}

	v := e.Value()
	smoothX, smoothY := v.Float("smooth_x"), v.Float("smooth_y")
	maxPath := v.Int("track_history_samples")
	sorted := detections.Sorted()
	free := make([]int, len(sorted))
	for i := range free {
		free[i] = i
	}

	pairs, unmatchedTracked, free := e.match(e.tracked, sortedIDs(e.tracked), sorted, free)
	for _, p := range pairs {
		e.tracked[p.id].update(sorted[p.det], t, smoothX, smoothY, maxPath)
	}
	pairs, unmatchedValidating, free := e.match(e.validating, sortedIDs(e.validating), sorted, free)
	for _, p := range pairs {
		e.validating[p.id].update(sorted[p.det], t, smoothX, smoothY, maxPath)
	}

	e.deadTracked = e.decay(e.tracked, unmatchedTracked, t.EpochMs, int64(v.Int("track_decay_timeout_ms")))
	e.deadValidating = e.decay(e.validating, unmatchedValidating, t.EpochMs, int64(v.Int("validation_decay_timeout_ms")))
	e.promote(t, int64(v.Int("validation_time_ms")))
	for _, di := range free {
		e.validating[e.nextValidateID] = newObject(e.nextValidateID, sorted[di], t)
		e.nextValidateID++
	}
	return trackerOutputs(e.tracked, e.validating, e.deadTracked), nil
}

// promote moves old enough validation objects that matched this frame into tracking
func (e *EuclideanTracker) promote(t stage.FrameTime, validationMs int64) {
	for _, id := range sortedIDs(e.validating) {
		o := e.validating[id]
		if o.LifetimeMs(t.EpochMs) > validationMs && o.UnmatchedMs(t.EpochMs) == 0 {
			delete(e.validating, id)
			o.ID = e.nextTrackedID
			e.tracked[o.ID] = o
			e.nextTrackedID++
		}
	}
}

// Close implements interface, every alive object is reported dead
func (e *EuclideanTracker) Close(t stage.FrameTime) stage.Outputs {
	e.Base.Close(t)
	return trackerOutputs(e.tracked, e.validating, sortedIDs(e.tracked))
}
