package stage

import (
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Base contains common stage behaviour, embed it in stage implementations
type Base struct {
	name       string
	identity   Identity
	inputSize  image.Point
	outputSize image.Point
	schema     Schema
	values     Params
	owned      []gocv.Mat
}

// NewBase creates a new Base with every control at its default
func NewBase(name string, identity Identity, inputSize image.Point, schema Schema) *Base {
	b := &Base{
		name:       name,
		identity:   identity,
		inputSize:  inputSize,
		outputSize: inputSize,
		schema:     schema,
		values:     schema.Defaults(),
		owned:      make([]gocv.Mat, 0),
	}
	return b
}

// Name implements interface
func (b *Base) Name() string {
	return b.name
}

// Identity implements interface
func (b *Base) Identity() Identity {
	return b.identity
}

// Schema implements interface
func (b *Base) Schema() Schema {
	return b.schema
}

// Settings implements interface
func (b *Base) Settings() Params {
	return b.values.Copy()
}

// Reconfigure implements interface
func (b *Base) Reconfigure(params Params) (changed Params) {
	changed = make(Params)
	for key, value := range coerceParams(b.name, b.schema, params) {
		if equalValues(b.values[key], value) {
			continue
		}
		b.values[key] = value
		changed[key] = value
	}
	if len(changed) > 0 {
		log.Debugln(b.name, b.identity, "changed", changed)
	}
	return
}

// Setup implements interface
func (b *Base) Setup(changed Params) error {
	return nil
}

// Reset implements interface
func (b *Base) Reset() {
	b.ReleaseOwned()
}

// Close implements interface
func (b *Base) Close(t FrameTime) Outputs {
	b.ReleaseOwned()
	return Outputs{}
}

// Run implements interface
func (b *Base) Run(t FrameTime, inputs Outputs) (Outputs, error) {
	return inputs, nil
}

// OutputSize implements interface
func (b *Base) OutputSize() image.Point {
	return b.outputSize
}

// SetOutputSize sets the size reported to the next stage
func (b *Base) SetOutputSize(size image.Point) {
	b.outputSize = size
}

// InputSize returns the frame size this stage was built for
func (b *Base) InputSize() image.Point {
	return b.inputSize
}

// Value returns the current parameter set
func (b *Base) Value() Params {
	return b.values
}

// Own hands mat to the stage, it is closed at the next Run, Reset or Close
func (b *Base) Own(mat gocv.Mat) gocv.Mat {
	b.owned = append(b.owned, mat)
	return mat
}

// ReleaseOwned closes every owned Mat
func (b *Base) ReleaseOwned() {
	for i := range b.owned {
		b.owned[i].Close()
	}
	b.owned = b.owned[:0]
}

// BlankFrame returns a zero single channel frame of size
func BlankFrame(size image.Point) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC1)
}

// Valid is a helper to check gocv.Mat validity
func Valid(mat gocv.Mat) bool {
	return mat.Ptr() != nil && !mat.Empty()
}
