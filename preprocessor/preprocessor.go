package preprocessor

import (
	"image"

	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// Implementation identities
var (
	Passthrough = stage.Identity{Name: "passthrough", Variant: "default"}
	Scaling     = stage.Identity{Name: "scaling", Variant: "default"}
)

// Register adds the preprocessor implementations to r
func Register(r *stage.Registry) {
	r.Register(stage.Preprocessor, Passthrough, func(inputSize image.Point) stage.Stage {
		return NewPassthrough(inputSize)
	})
	r.Register(stage.Preprocessor, Scaling, func(inputSize image.Point) stage.Stage {
		return NewScaler(inputSize)
	})
}

// transform maps a frame to a new Mat owned by the caller
type transform func(src gocv.Mat) gocv.Mat

// backgroundCache holds the transformed background between updates
type backgroundCache struct {
	mat gocv.Mat
}

func (b *backgroundCache) valid() bool {
	return stage.Valid(b.mat)
}

// get returns the cached background, transforming bg when updated or empty
func (b *backgroundCache) get(bg gocv.Mat, update bool, fn transform) gocv.Mat {
	if update || !b.valid() {
		next := fn(bg)
		b.release()
		b.mat = next
	}
	return b.mat
}

func (b *backgroundCache) release() {
	if b.mat.Ptr() != nil {
		b.mat.Close()
	}
	b.mat = gocv.Mat{}
}

// run builds the preprocessor outputs
func run(base *stage.Base, cache *backgroundCache, inputs stage.Outputs, fn transform) (stage.Outputs, error) {
	base.ReleaseOwned()
	video, err := inputs.Mat(stage.KeyVideoFrame)
	if err != nil {
		return nil, err
	}
	bg, err := inputs.Mat(stage.KeyBgFrame)
	if err != nil {
		return nil, err
	}
	update := inputs.Bool(stage.KeyBgUpdate)
	outputs := stage.Outputs{
		stage.KeyPreprocessedFrame:   base.Own(fn(video)),
		stage.KeyPreprocessedBgFrame: cache.get(bg, update, fn),
		stage.KeyBgUpdate:            update,
	}
	return outputs, nil
}

// PassthroughPreprocessor copies frames unchanged
type PassthroughPreprocessor struct {
	*stage.Base
	background backgroundCache
}

// NewPassthrough creates a new PassthroughPreprocessor
func NewPassthrough(inputSize image.Point) *PassthroughPreprocessor {
	return &PassthroughPreprocessor{
		Base: stage.NewBase(stage.Preprocessor, Passthrough, inputSize, nil),
	}
}

// Run implements interface
func (p *PassthroughPreprocessor) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	return run(p.Base, &p.background, inputs, func(src gocv.Mat) gocv.Mat {
		return src.Clone()
	})
}

// Reset implements interface
func (p *PassthroughPreprocessor) Reset() {
	p.Base.Reset()
	p.background.release()
}

// Close implements interface
func (p *PassthroughPreprocessor) Close(t stage.FrameTime) stage.Outputs {
	p.background.release()
	return p.Base.Close(t)
}
