package frameprocessor

import (
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/compiler"
	"github.com/jonoton/vigil/stage"
	"gocv.io/x/gocv"
)

// keys whose change rebuilds the subtractor model
var mog2ResetKeys = []string{
	"downscale_factor", "blur_size", "use_grayscale", "history_length", "threshold", "enable_shadow_removal",
}

// MOG2 segments the foreground with a gaussian mixture background model
type MOG2 struct {
	*stage.Base
	subtractor *gocv.BackgroundSubtractorMOG2
	prep       *compiler.Pipeline
	detect     *compiler.Pipeline
	seeded     bool
}

// NewMOG2 creates a new MOG2
func NewMOG2(inputSize image.Point) *MOG2 {
	schema := joinControls(
		maskControls(),
		downscaleControls(),
		[]stage.Control{
			stage.IntSlider("blur_size", "Blurriness", 2, 0, compiler.MaxKernelSize, ""),
			stage.ToggleControl("use_grayscale", "Use Grayscale", false),
			stage.IntSlider("history_length", "History Length", 500, 5, 10000, "frames").
				WithTooltip("Number of frames the background model remembers."),
			stage.IntSlider("threshold", "Threshold", 25, 1, 255, "").
				WithTooltip("Distance from the background model for a pixel to count as foreground."),
			stage.ToggleControl("enable_shadow_removal", "Enable Shadow Removal", false),
		},
		morphControls("morph", "(Binary)", 1, "dilate"),
	)
	m := &MOG2{
		Base: stage.NewBase(stage.FrameProcessor, MOG2ID, inputSize, schema),
	}
	if err := m.Setup(nil); err != nil {
		log.Errorln(m.Name(), "setup failed", err)
	}
	return m
}

func (m *MOG2) newSubtractor() {
	m.closeSubtractor()
	v := m.Value()
	threshold := v.Float("threshold")
	sub := gocv.NewBackgroundSubtractorMOG2WithParams(v.Int("history_length"), threshold*threshold, v.Bool("enable_shadow_removal"))
	m.subtractor = &sub
	m.seeded = false
}

func (m *MOG2) closeSubtractor() {
	if m.subtractor != nil {
		m.subtractor.Close()
		m.subtractor = nil
	}
}

func (m *MOG2) subtract() (compiler.Op, func(), error) {
	return func(src gocv.Mat) (gocv.Mat, error) {
		if src.Empty() {
			return gocv.Mat{}, compiler.ErrEmptyFrame
		}
		dst := gocv.NewMat()
		m.subtractor.Apply(src, &dst)
		return dst, nil
	}, nil, nil
}

// Setup implements interface
func (m *MOG2) Setup(changed stage.Params) error {
	v := m.Value()
	downscale, size, resize := downscaleStep(v, m.InputSize())
	m.SetOutputSize(size)
	morph, morphBuild := morphStep(v, "morph")
	masking, maskBuild := maskStep(m.Name(), v, size)
	prep, err := compiler.New(m.Name()+" prep").
		Add("downscale", downscale, resize).
		Add("grayscale", v.Bool("use_grayscale"), compiler.Grayscale()).
		Add("blur", v.Int("blur_size") > 0, compiler.Blur(v.Int("blur_size"))).
		Compile()
	if err != nil {
		return err
	}
	detect, err := compiler.New(m.Name()).
		Add("subtract", true, m.subtract).
		Add("shadow_removal", v.Bool("enable_shadow_removal"), compiler.Threshold(128)).
		Add("morph", morph, morphBuild).
		Add("mask", masking, maskBuild).
		Compile()
	if err != nil {
		prep.Close()
		return err
	}
	m.prep = swapPipeline(m.prep, prep)
	m.detect = swapPipeline(m.detect, detect)
	if m.subtractor == nil || changed == nil || changed.HasAny(mog2ResetKeys...) {
		m.newSubtractor()
	}
	return nil
}

// seed teaches the model the background frame once
func (m *MOG2) seed(inputs stage.Outputs) {
	bg, err := inputs.Mat(stage.KeyPreprocessedBgFrame)
	if err != nil || !stage.Valid(bg) {
		return
	}
	prepared, err := m.prep.Run(bg)
	if err != nil {
		log.Warnln(m.Name(), "background seed failed", err)
		return
	}
	fg := gocv.NewMat()
	m.subtractor.Apply(prepared, &fg)
	fg.Close()
	prepared.Close()
	m.seeded = true
}

// Reset implements interface
func (m *MOG2) Reset() {
	m.Base.Reset()
	m.newSubtractor()
}

// Run implements interface
func (m *MOG2) Run(t stage.FrameTime, inputs stage.Outputs) (stage.Outputs, error) {
	m.ReleaseOwned()
	frame, err := inputs.Mat(stage.KeyPreprocessedFrame)
	if err != nil {
		return nil, err
	}
	if !m.seeded {
		m.seed(inputs)
	}
	blank := func() gocv.Mat {
		return stage.BlankFrame(m.OutputSize())
	}
	prepared := m.prep.RunOrBlank(frame, blank)
	binary := m.detect.RunOrBlank(prepared, blank)
	prepared.Close()
	return withBinary(inputs, m.Own(binary)), nil
}

// Close implements interface
func (m *MOG2) Close(t stage.FrameTime) stage.Outputs {
	for _, p := range []*compiler.Pipeline{m.prep, m.detect} {
		if p != nil {
			p.Close()
		}
	}
	m.prep, m.detect = nil, nil
	m.closeSubtractor()
	return m.Base.Close(t)
}
