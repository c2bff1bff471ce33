package bundle

import (
	"github.com/jonoton/vigil/detector"
	"github.com/jonoton/vigil/framecapture"
	"github.com/jonoton/vigil/frameprocessor"
	"github.com/jonoton/vigil/pixelfilter"
	"github.com/jonoton/vigil/preprocessor"
	"github.com/jonoton/vigil/stage"
	"github.com/jonoton/vigil/tracker"
)

// NewRegistry creates a registry holding every known stage implementation
func NewRegistry() *stage.Registry {
	r := stage.NewRegistry()
	framecapture.Register(r)
	preprocessor.Register(r)
	frameprocessor.Register(r)
	pixelfilter.Register(r)
	detector.Register(r)
	tracker.Register(r)
	return r
}

// DefaultRecords returns a record per stage using each default implementation
func DefaultRecords(r *stage.Registry) map[string]stage.Record {
	records := make(map[string]stage.Record, len(stage.Sequence))
	for _, name := range stage.Sequence {
		identity, found := r.Default(name)
		if !found {
			continue
		}
		records[name] = stage.Record{Identity: identity, Params: stage.Params{}}
	}
	return records
}
