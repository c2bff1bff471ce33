package frameprocessor

import (
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/compiler"
	"github.com/jonoton/vigil/framedeck"
	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// BackgroundSubtractor thresholds the difference between the frame and the background
type BackgroundSubtractor struct {
	*stage.Base
	bgPipeline *compiler.Pipeline
	pipeline   *compiler.Pipeline
	sumDeck    *framedeck.Deck[gocv.Mat]
	current    gocv.Mat
	background gocv.Mat
}

// NewBackgroundSubtractor creates a new BackgroundSubtractor
func NewBackgroundSubtractor(inputSize image.Point) *BackgroundSubtractor {
	schema := joinControls(
		maskControls(),
		downscaleControls(),
		[]stage.Control{
			stage.IntSlider("pre_blur_size", "Pre-Blurriness", 0, 0, compiler.MaxKernelSize, ""),
			stage.IntSlider("threshold", "Threshold", 0, 0, 255, ""),
			stage.ToggleControl("use_norm_diff", "Use Maximum Difference", false),
			stage.IntSlider("post_blur_size", "Post-Blurriness", 0, 0, compiler.MaxKernelSize, ""),
		},
		morphControls("pre_morph", "(Gray)", 1, "close"),
		[]stage.Control{
			stage.IntSlider("summation_depth", "Summation Depth", 3, 0, compiler.MaxDeckDepth, "frames"),
		},
		morphControls("post_morph", "(Binary)", 3, "dilate"),
	)
	b := &BackgroundSubtractor{
		Base: stage.NewBase(stage.FrameProcessor, BackgroundSubtraction, inputSize, schema),
	}
	if err := b.Setup(nil); err != nil {
		log.Errorln(b.Name(), "setup failed", err)
	}
	return b
}

// Setup implements interface
func (b *BackgroundSubtractor) Setup(changed stage.Params) error {
	v := b.Value()
	downscale, size, resize := downscaleStep(v, b.InputSize())
	b.SetOutputSize(size)
	if b.sumDeck == nil {
		b.sumDeck = compiler.NewMatDeck(size, gocv.MatTypeCV8UC1)
	}
	compiler.ResizeDeck(b.sumDeck, size)
	preBlur := v.Int("pre_blur_size")
	postBlur := v.Int("post_blur_size")
	preMorph, preMorphBuild := morphStep(v, "pre_morph")
	postMorph, postMorphBuild := morphStep(v, "post_morph")
	masking, maskBuild := maskStep(b.Name(), v, size)
	bgPipeline, err := compiler.New(b.Name()+" background").
		Add("downscale", downscale, resize).
		Add("pre_blur", preBlur > 0, compiler.Blur(preBlur)).
		Compile()
	if err != nil {
		return err
	}
	pipeline, err := compiler.New(b.Name()).
		Add("downscale", downscale, resize).
		Add("pre_blur", preBlur > 0, compiler.Blur(preBlur)).
		Add("background_difference", true, compiler.BackgroundDifference(&b.background)).
		Add("grayscale", true, grayStep(v)).
		Add("post_blur", postBlur > 0, compiler.Blur(postBlur)).
		Add("pre_morph", preMorph, preMorphBuild).
		Add("summation", v.Int("summation_depth") > 0, compiler.Summation(b.sumDeck, v.Int("summation_depth"))).
		Add("threshold", v.Int("threshold") > 0, compiler.Threshold(v.Int("threshold"))).
		Add("post_morph", postMorph, postMorphBuild).
		Add("mask", masking, maskBuild).
		Compile()
	if err != nil {
		bgPipeline.Close()
		return err
	}
	b.bgPipeline = swapPipeline(b.bgPipeline, bgPipeline)
	b.pipeline = swapPipeline(b.pipeline, pipeline)
	if stage.Valid(b.current) {
		b.processBackground()
	}
	return nil
}

// updateBackground keeps a copy of the preprocessed background and reprocesses it
func (b *BackgroundSubtractor) updateBackground(bg gocv.Mat) {
	if b.current.Ptr() != nil {
		b.current.Close()
	}
	b.current = bg.Clone()
	b.processBackground()
}

func (b *BackgroundSubtractor) processBackground() {
	next := b.bgPipeline.RunOrBlank(b.current, func() gocv.Mat {
		return gocv.NewMat()
	})
	if b.background.Ptr() != nil {
		b.background.Close()
	}
	b.background = next
}

// Reset implements interface
func (b *BackgroundSubtractor) Reset() {
	b.Base.Reset()
	compiler.ClearDeck(b.sumDeck, b.OutputSize(), gocv.MatTypeCV8UC1)
}

// Run implements interface
func (b *BackgroundSubtractor) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	b.ReleaseOwned()
	frame, err := inputs.Mat(stage.KeyPreprocessedFrame)
	if err != nil {
		return nil, err
	}
	bg, err := inputs.Mat(stage.KeyPreprocessedBgFrame)
	if err != nil {
		return nil, err
	}
	if inputs.Bool(stage.KeyBgUpdate) || !stage.Valid(b.current) {
		b.updateBackground(bg)
	}
	binary := b.pipeline.RunOrBlank(frame, func() gocv.Mat {
		return stage.BlankFrame(b.OutputSize())
	})
	return withBinary(inputs, b.Own(binary)), nil
}

// Close implements interface
func (b *BackgroundSubtractor) Close(t stage.FrameTime) stage.Outputs {
	for _, p := range []*compiler.Pipeline{b.bgPipeline, b.pipeline} {
		if p != nil {
			p.Close()
		}
	}
	b.bgPipeline, b.pipeline = nil, nil
	for _, m := range []*gocv.Mat{&b.current, &b.background} {
		if m.Ptr() != nil {
			m.Close()
		}
		*m = gocv.Mat{}
	}
	if b.sumDeck != nil {
		b.sumDeck.Close()
		b.sumDeck = nil
	}
	return b.Base.Close(t)
}
