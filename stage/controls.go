package stage

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Kind of control
type Kind string

// Control kinds
const (
	Slider Kind = "slider"
	Toggle Kind = "toggle"
	Menu   Kind = "menu"
	Zones  Kind = "zones"
)

// Option is one menu entry
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Control describes one tunable parameter for UIs
type Control struct {
	Name    string      `json:"name"`
	Label   string      `json:"label"`
	Kind    Kind        `json:"kind"`
	Default interface{} `json:"default"`
	Min     float64     `json:"min,omitempty"`
	Max     float64     `json:"max,omitempty"`
	Step    float64     `json:"step,omitempty"`
	Units   string      `json:"units,omitempty"`
	Options []Option    `json:"options,omitempty"`
	Tooltip string      `json:"tooltip,omitempty"`
}

// Schema is the ordered control list of a stage
type Schema []Control

// Find returns the control named name
func (s Schema) Find(name string) (Control, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}

// Defaults returns every control at its default value
func (s Schema) Defaults() Params {
	p := make(Params, len(s))
	for _, c := range s {
		p[c.Name] = c.Default
	}
	return p
}

// IntSlider creates an integer slider control
func IntSlider(name, label string, def, min, max int, units string) Control {
	return Control{Name: name, Label: label, Kind: Slider, Default: def,
		Min: float64(min), Max: float64(max), Step: 1, Units: units}
}

// FloatSlider creates a float slider control
func FloatSlider(name, label string, def, min, max, step float64, units string) Control {
	return Control{Name: name, Label: label, Kind: Slider, Default: def,
		Min: min, Max: max, Step: step, Units: units}
}

// ToggleControl creates an on/off control
func ToggleControl(name, label string, def bool) Control {
	return Control{Name: name, Label: label, Kind: Toggle, Default: def}
}

// MenuControl creates a menu control, values double as labels
func MenuControl(name, label string, def string, values ...string) Control {
	options := make([]Option, 0, len(values))
	for _, v := range values {
		options = append(options, Option{Label: titled(v), Value: v})
	}
	return Control{Name: name, Label: label, Kind: Menu, Default: def, Options: options}
}

// ZonesControl creates a polygon zones control, normalized coordinates
func ZonesControl(name, label string) Control {
	return Control{Name: name, Label: label, Kind: Zones, Default: ZoneList{}}
}

// coerce converts a raw value into the control's type
func (c Control) coerce(raw interface{}) (interface{}, error) {
	switch c.Kind {
	case Slider:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		if c.Max > c.Min {
			f = math.Max(c.Min, math.Min(c.Max, f))
		}
		if _, isInt := c.Default.(int); isInt {
			return int(math.Round(f)), nil
		}
		return f, nil
	case Toggle:
		return toBool(raw)
	case Menu:
		s := fmt.Sprint(raw)
		for _, o := range c.Options {
			if o.Value == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%q is not an option", s)
	case Zones:
		return toZones(raw)
	}
	return nil, fmt.Errorf("unknown control kind %q", c.Kind)
}

func titled(value string) string {
	words := strings.Split(value, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("cannot use %T as a number", raw)
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	}
	f, err := toFloat(raw)
	if err != nil {
		return false, fmt.Errorf("cannot use %T as a toggle", raw)
	}
	return f != 0, nil
}

func coerceParams(name string, schema Schema, params Params) Params {
	out := make(Params, len(params))
	for key, raw := range params {
		c, found := schema.Find(key)
		if !found {
			log.Warnf("%s ignoring unknown parameter %q\n", name, key)
			continue
		}
		v, err := c.coerce(raw)
		if err != nil {
			log.Warnf("%s ignoring parameter %q: %v\n", name, key, err)
			continue
		}
		out[key] = v
	}
	return out
}

func equalValues(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// WithTooltip returns c with its tooltip set
func (c Control) WithTooltip(tooltip string) Control {
	c.Tooltip = tooltip
	return c
}
