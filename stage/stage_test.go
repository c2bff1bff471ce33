package stage

import (
	"errors"
	"image"
	"testing"
)

func testSchema() Schema {
	return Schema{
		IntSlider("threshold", "Threshold", 0, 0, 255, "pixels"),
		FloatSlider("factor", "Factor", 0.5, 0.1, 1.0, 0.05, "scale"),
		ToggleControl("enable", "Enable", true),
		MenuControl("shape", "Shape", "rect", "rect", "ellipse", "cross"),
		ZonesControl("zones", "Zones"),
	}
}

func TestBaseDefaults(t *testing.T) {
	b := NewBase("frame_processor", Identity{"test", "default"}, image.Pt(64, 48), testSchema())
	s := b.Settings()
	if s.Int("threshold") != 0 || s.Float("factor") != 0.5 || !s.Bool("enable") || s.String("shape") != "rect" {
		t.Fatalf("defaults = %v\n", s)
	}
	if b.OutputSize() != image.Pt(64, 48) {
		t.Fatalf("OutputSize = %v, expected input size\n", b.OutputSize())
	}
}

func TestBaseReconfigureChangedSubset(t *testing.T) {
	b := NewBase("frame_processor", Identity{"test", "default"}, image.Pt(64, 48), testSchema())
	changed := b.Reconfigure(Params{
		"threshold": 128.0,
		"factor":    0.5,
		"enable":    "false",
		"shape":     "triangle",
		"unknown":   3,
	})
	if len(changed) != 2 {
		t.Fatalf("changed = %v, expected threshold and enable only\n", changed)
	}
	if v, ok := changed["threshold"].(int); !ok || v != 128 {
		t.Fatalf("threshold = %#v, expected int 128\n", changed["threshold"])
	}
	if v, ok := changed["enable"].(bool); !ok || v {
		t.Fatalf("enable = %#v, expected false\n", changed["enable"])
	}
	if b.Settings().String("shape") != "rect" {
		t.Fatalf("invalid menu value was applied\n")
	}
	if again := b.Reconfigure(Params{"threshold": 128}); len(again) != 0 {
		t.Fatalf("repeat reconfigure changed %v, expected nothing\n", again)
	}
}

func TestSliderClamp(t *testing.T) {
	b := NewBase("frame_processor", Identity{"test", "default"}, image.Pt(64, 48), testSchema())
	b.Reconfigure(Params{"threshold": 900, "factor": 0.0})
	s := b.Settings()
	if s.Int("threshold") != 255 {
		t.Fatalf("threshold = %d, expected 255\n", s.Int("threshold"))
	}
	if s.Float("factor") != 0.1 {
		t.Fatalf("factor = %f, expected 0.1\n", s.Float("factor"))
	}
}

func TestZonesFromYaml(t *testing.T) {
	data := []byte(`
implementation:
  name: frame_to_frame
  variant: default
parameters:
  zones:
  - - [0, 0]
    - [0.5, 0]
    - [0.5, 0.5]
  threshold: 12
`)
	r, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord error %v\n", err)
	}
	if r.Identity != (Identity{"frame_to_frame", "default"}) {
		t.Fatalf("identity = %v\n", r.Identity)
	}
	b := NewBase("frame_processor", r.Identity, image.Pt(101, 51), testSchema())
	b.Reconfigure(r.Params)
	zones := b.Settings().Zones("zones")
	if len(zones) != 1 || !zones[0].Valid() {
		t.Fatalf("zones = %v, expected one triangle\n", zones)
	}
	px := zones[0].Pixels(image.Pt(101, 51))
	if px[2] != image.Pt(50, 25) {
		t.Fatalf("pixel = %v, expected (50,25)\n", px[2])
	}
}

func TestRecordUnchanged(t *testing.T) {
	a := Record{Identity: Identity{"blob", "default"}, Params: Params{"a": 1, "b": true}}
	b := Record{Identity: Identity{"blob", "default"}, Params: Params{"b": true, "a": 1}}
	if !Unchanged(a, b) {
		t.Fatalf("records with equal content reported changed\n")
	}
	b.Params["a"] = 2
	if Unchanged(a, b) {
		t.Fatalf("parameter change not detected\n")
	}
	c := Record{Identity: Identity{"blob", "other"}, Params: a.Params}
	if Unchanged(a, c) {
		t.Fatalf("identity change not detected\n")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	passthrough := Identity{"passthrough", "default"}
	other := Identity{"other", "default"}
	r.Register(Detector, passthrough, func(size image.Point) Stage {
		return NewBase(Detector, passthrough, size, Schema{})
	})
	r.Register(Detector, other, func(size image.Point) Stage {
		return NewBase(Detector, other, size, Schema{})
	})
	if def, _ := r.Default(Detector); def != passthrough {
		t.Fatalf("default = %v, expected %v\n", def, passthrough)
	}
	s, err := r.New(Detector, other, image.Pt(4, 3))
	if err != nil || s.Identity() != other || s.OutputSize() != image.Pt(4, 3) {
		t.Fatalf("New = %v, %v\n", s, err)
	}
	if _, err := r.New(Tracker, passthrough, image.Pt(4, 3)); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("error = %v, expected ErrUnknownStage\n", err)
	}
	if _, err := r.New(Detector, Identity{"missing", "x"}, image.Pt(4, 3)); !errors.Is(err, ErrUnknownImplementation) {
		t.Fatalf("error = %v, expected ErrUnknownImplementation\n", err)
	}
	if impls := r.Implementations(Detector); len(impls) != 2 || impls[0] != other {
		t.Fatalf("implementations = %v\n", impls)
	}
}
