package frameprocessor

import (
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/compiler"
	"github.com/jonoton/vigil/framedeck"
	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// FrameToFrame thresholds the difference between the current frame and an earlier one
type FrameToFrame struct {
	*stage.Base
	pipeline *compiler.Pipeline
	diffDeck *framedeck.Deck[gocv.Mat]
	sumDeck  *framedeck.Deck[gocv.Mat]
}

// NewFrameToFrame creates a new FrameToFrame
func NewFrameToFrame(inputSize image.Point) *FrameToFrame {
	schema := joinControls(
		maskControls(),
		downscaleControls(),
		[]stage.Control{
			stage.IntSlider("threshold", "Threshold", 0, 0, 255, "").
				WithTooltip("Differences above the threshold become white pixels, the rest black."),
			stage.ToggleControl("use_norm_diff", "Use Maximum Difference", false).
				WithTooltip("Use the largest channel difference instead of the grayscale average."),
			stage.IntSlider("blur_size", "Blurriness", 0, 0, compiler.MaxKernelSize, ""),
			stage.IntSlider("difference_depth", "Difference Depth", 0, 0, compiler.MaxDeckDepth, "frames").
				WithTooltip("How many frames back to go when selecting a frame for differencing."),
		},
		morphControls("pre_morph", "(Gray)", 0, "close"),
		[]stage.Control{
			stage.IntSlider("summation_depth", "Summation Depth", 0, 0, compiler.MaxDeckDepth, "frames").
				WithTooltip("Number of additional previous frames to add up before thresholding."),
		},
		morphControls("post_morph", "(Binary)", 0, "dilate"),
	)
	f := &FrameToFrame{
		Base: stage.NewBase(stage.FrameProcessor, FrameToFrameID, inputSize, schema),
	}
	if err := f.Setup(nil); err != nil {
		log.Errorln(f.Name(), "setup failed", err)
	}
	return f
}

func (f *FrameToFrame) setupDecks(size image.Point) {
	if f.diffDeck == nil {
		f.diffDeck = compiler.NewMatDeck(size, gocv.MatTypeCV8UC3)
		f.sumDeck = compiler.NewMatDeck(size, gocv.MatTypeCV8UC1)
	}
	compiler.ResizeDeck(f.diffDeck, size)
	compiler.ResizeDeck(f.sumDeck, size)
}

// Setup implements interface
func (f *FrameToFrame) Setup(changed stage.Params) error {
	v := f.Value()
	downscale, size, resize := downscaleStep(v, f.InputSize())
	f.SetOutputSize(size)
	f.setupDecks(size)
	preMorph, preMorphBuild := morphStep(v, "pre_morph")
	postMorph, postMorphBuild := morphStep(v, "post_morph")
	masking, maskBuild := maskStep(f.Name(), v, size)
	pipeline, err := compiler.New(f.Name()).
		Add("downscale", downscale, resize).
		Add("blur", v.Int("blur_size") > 0, compiler.Blur(v.Int("blur_size"))).
		Add("difference", v.Int("difference_depth") > 0, compiler.DeckDifference(f.diffDeck, v.Int("difference_depth"))).
		Add("grayscale", true, grayStep(v)).
		Add("pre_morph", preMorph, preMorphBuild).
		Add("summation", v.Int("summation_depth") > 0, compiler.Summation(f.sumDeck, v.Int("summation_depth"))).
		Add("threshold", v.Int("threshold") > 0, compiler.Threshold(v.Int("threshold"))).
		Add("post_morph", postMorph, postMorphBuild).
		Add("mask", masking, maskBuild).
		Compile()
	if err != nil {
		return err
	}
	f.pipeline = swapPipeline(f.pipeline, pipeline)
	log.Debugln(f.Name(), "steps", f.pipeline.Enabled())
	return nil
}

// Reset implements interface
func (f *FrameToFrame) Reset() {
	f.Base.Reset()
	size := f.OutputSize()
	compiler.ClearDeck(f.diffDeck, size, gocv.MatTypeCV8UC3)
	compiler.ClearDeck(f.sumDeck, size, gocv.MatTypeCV8UC1)
}

// Run implements interface
func (f *FrameToFrame) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	f.ReleaseOwned()
	frame, err := inputs.Mat(stage.KeyPreprocessedFrame)
	if err != nil {
		return nil, err
	}
	binary := f.pipeline.RunOrBlank(frame, func() gocv.Mat {
		return stage.BlankFrame(f.OutputSize())
	})
	return withBinary(inputs, f.Own(binary)), nil
}

// Close implements interface
func (f *FrameToFrame) Close(t stage.FrameTime) stage.Outputs {
	if f.pipeline != nil {
		f.pipeline.Close()
		f.pipeline = nil
	}
	if f.diffDeck != nil {
		f.diffDeck.Close()
		f.sumDeck.Close()
		f.diffDeck, f.sumDeck = nil, nil
	}
	return f.Base.Close(t)
}
