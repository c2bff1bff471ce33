package task

import (
	"image"

	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/control"
	"github.com/jonoton/vigil/overlay"
	"github.com/jonoton/vigil/stage"
)

// StageInfo describes one configured stage for listings
type StageInfo struct {
	Stage           string           `json:"stage"`
	Identity        stage.Identity   `json:"implementation"`
	Implementations []stage.Identity `json:"implementations"`
	InputSize       image.Point      `json:"input_size"`
	OutputSize      image.Point      `json:"output_size"`
}

// handle applies one delta between frames
func (t *Task) handle(d *control.Delta) {
	t.logger.Debugln("Delta", d.Kind, d.Stage)
	switch d.Kind {
	case control.List:
		d.Answer(t.list(), nil)
	case control.Describe:
		d.Answer(t.describe(d.Stage))
	case control.Override:
		resp, err := t.bundle.Override(d.Stage, d.Identity)
		if err == nil && len(d.Params) > 0 {
			resp, err = t.bundle.Reconfigure(d.Stage, d.Params)
		}
		t.answerChange(d, resp, err)
	case control.Reconfigure:
		resp, err := t.bundle.Reconfigure(d.Stage, d.Params)
		t.answerChange(d, resp, err)
	case control.Save:
		d.Answer(t.bundle.Save(d.Stage, nil))
	case control.Seek:
		d.Answer(t.seek(d.Frame))
	case control.Preview:
		d.Answer(t.preview(d.Width))
	default:
		d.Answer(nil, nil)
	}
}

func (t *Task) answerChange(d *control.Delta, resp bundle.Response, err error) {
	if err != nil {
		t.logger.Warnln(d.Kind, d.Stage, "rejected:", err)
	}
	d.Answer(resp, err)
}

func (t *Task) list() []StageInfo {
	result := make([]StageInfo, 0, len(t.bundle.Sequence()))
	for _, name := range t.bundle.Sequence() {
		s, found := t.bundle.Stage(name)
		if !found {
			continue
		}
		result = append(result, StageInfo{
			Stage:           name,
			Identity:        s.Identity(),
			Implementations: t.registry.Implementations(name),
			InputSize:       t.bundle.InputSize(name),
			OutputSize:      s.OutputSize(),
		})
	}
	return result
}

func (t *Task) describe(name string) (bundle.Response, error) {
	s, found := t.bundle.Stage(name)
	if !found {
		return bundle.Response{}, &bundle.ConfigurationError{Stage: name, Err: stage.ErrUnknownStage}
	}
	return bundle.Response{
		Stage:    name,
		Identity: s.Identity(),
		Schema:   s.Schema(),
		Settings: s.Settings(),
	}, nil
}

func (t *Task) seek(index int64) (int64, error) {
	if err := t.source.SetCurrentFrame(index); err != nil {
		return 0, err
	}
	t.bundle.ResetAll()
	t.background.Reset()
	t.logger.Infoln("Seek to frame", index)
	return index, nil
}

func (t *Task) preview(width int) ([]byte, error) {
	if !stage.Valid(t.lastFrame) {
		return nil, nil
	}
	o := *t.overlay
	if width > 0 {
		o.Width = width
	}
	return o.Preview(t.lastFrame, overlay.ItemsFrom(t.bundle.LastResult().Outputs))
}
