package overlay

import (
	"image/color"
	"strings"
)

// ColorThickness is a line colour and width
type ColorThickness struct {
	Color     Color `yaml:"color"`
	Thickness int   `yaml:"thickness"`
}

// NewColorThickness creates a new ColorThickness
func NewColorThickness(color string, thickness int) ColorThickness {
	if thickness <= 0 {
		thickness = 1
	}
	return ColorThickness{
		Color:     StringToColor(color),
		Thickness: thickness,
	}
}

// Color represents a color
type Color int

// Color Constants
const (
	Blue Color = iota
	Purple
	Green
	Red
	Yellow
	White
)

// StringToColor returns a Color, white when unknown
func StringToColor(name string) Color {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "blue":
		return Blue
	case "purple":
		return Purple
	case "green":
		return Green
	case "red":
		return Red
	case "yellow":
		return Yellow
	}
	return White
}

func (c Color) String() string {
	switch c {
	case Blue:
		return "blue"
	case Purple:
		return "purple"
	case Green:
		return "green"
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	}
	return "white"
}

// UnmarshalYAML reads a colour name
func (c *Color) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	*c = StringToColor(name)
	return nil
}

// MarshalYAML writes the colour name
func (c Color) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// GetRGBA returns the color rgba
func (c Color) GetRGBA() color.RGBA {
	switch c {
	case Blue:
		return color.RGBA{0, 0, 255, 0}
	case Purple:
		return color.RGBA{255, 0, 255, 0}
	case Green:
		return color.RGBA{0, 255, 0, 0}
	case Red:
		return color.RGBA{255, 0, 0, 0}
	case Yellow:
		return color.RGBA{255, 255, 0, 0}
	}
	return color.RGBA{255, 255, 255, 0}
}
