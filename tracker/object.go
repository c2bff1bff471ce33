package tracker

import (
	"sort"

	"github.com/jonoton/vigil/detector"
	"github.com/jonoton/vigil/stage"
)

// Object is a tracked or validating object
type Object struct {
	ID           int64         `json:"id"`
	Center       stage.Point   `json:"center"`
	Width        float64       `json:"width"`
	Height       float64       `json:"height"`
	Hull         []stage.Point `json:"hull"`
	FirstEpochMs int64         `json:"first_epoch_ms"`
	LastEpochMs  int64         `json:"last_epoch_ms"`
	FirstIndex   int64         `json:"first_index"`
	LastIndex    int64         `json:"last_index"`
	Matches      int           `json:"matches"`
	Path         []stage.Point `json:"path"`
}

// Objects are keyed by object id
type Objects map[int64]*Object

// IDs returns the object ids in ascending order
func (o Objects) IDs() []int64 {
	ids := make([]int64, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func newObject(id int64, d detector.Detection, t stage.FrameTime) *Object {
	o := &Object{
		ID:           id,
		Center:       d.Center,
		Width:        d.Width,
		Height:       d.Height,
		Hull:         d.Hull,
		FirstEpochMs: t.EpochMs,
		LastEpochMs:  t.EpochMs,
		FirstIndex:   t.Index,
		LastIndex:    t.Index,
		Matches:      1,
		Path:         []stage.Point{d.Center},
	}
	return o
}

func smooth(prev, next, weight float64) float64 {
	return prev*weight + next*(1-weight)
}

// update moves the object towards the detection
func (o *Object) update(d detector.Detection, t stage.FrameTime, smoothX, smoothY float64, maxPath int) {
	o.Center = stage.Point{smooth(o.Center[0], d.Center[0], smoothX), smooth(o.Center[1], d.Center[1], smoothY)}
	o.Width = smooth(o.Width, d.Width, smoothX)
	o.Height = smooth(o.Height, d.Height, smoothY)
	o.Hull = d.Hull
	o.LastEpochMs = t.EpochMs
	o.LastIndex = t.Index
	o.Matches++
	o.Path = append(o.Path, o.Center)
	if len(o.Path) > maxPath {
		o.Path = o.Path[len(o.Path)-maxPath:]
	}
}

// LifetimeMs is the time since the object first appeared
func (o *Object) LifetimeMs(epochMs int64) int64 {
	return epochMs - o.FirstEpochMs
}

// UnmatchedMs is the time since the object last matched a detection
func (o *Object) UnmatchedMs(epochMs int64) int64 {
	return epochMs - o.LastEpochMs
}

func (o *Object) inZones(zones stage.ZoneList) bool {
	for _, z := range zones {
		if z.Valid() && z.Contains(o.Center) {
			return true
		}
	}
	return false
}
