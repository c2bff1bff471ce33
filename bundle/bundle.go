// bundle package

package bundle

import (
	"errors"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/stage"
)

// ErrNotSetup is returned when the bundle has no configured stages
var ErrNotSetup = errors.New("bundle not setup")

// RecordStore loads and persists stage config records
type RecordStore interface {
	Load(stageName string) (stage.Record, error)
	Save(stageName string, record stage.Record) error
}

// Selection identifies what a bundle is configured for
type Selection struct {
	Project string `yaml:"project,omitempty" json:"project"`
	Camera  string `yaml:"camera,omitempty" json:"camera"`
	User    string `yaml:"user,omitempty" json:"user"`
	Task    string `yaml:"task,omitempty" json:"task"`
}

func (s Selection) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", s.Project, s.Camera, s.User, s.Task)
}

// Result is the outcome of one pass through the bundle.
// Keys hold the output order, starting with stage.SourceKey, whose timing is the source read time.
type Result struct {
	Keys    []string
	Outputs map[string]stage.Outputs
	Timing  map[string]time.Duration
	Skipped bool
}

func newResult() Result {
	return Result{
		Keys:    make([]string, 0, len(stage.Sequence)+1),
		Outputs: make(map[string]stage.Outputs),
		Timing:  make(map[string]time.Duration),
	}
}

func (r *Result) put(key string, outputs stage.Outputs, elapsed time.Duration) {
	if _, found := r.Outputs[key]; !found {
		r.Keys = append(r.Keys, key)
	}
	r.Outputs[key] = outputs
	r.Timing[key] = elapsed
}

// Last returns the outputs of the last stage that ran
func (r Result) Last() stage.Outputs {
	if len(r.Keys) == 0 {
		return stage.Outputs{}
	}
	return r.Outputs[r.Keys[len(r.Keys)-1]]
}

// Response describes a live stage after an override or reconfigure
type Response struct {
	Stage    string         `json:"stage"`
	Identity stage.Identity `json:"implementation"`
	Schema   stage.Schema   `json:"controls"`
	Settings stage.Params   `json:"settings"`
	Changed  stage.Params   `json:"changed,omitempty"`
}

// Bundle owns the ordered stages of one task
type Bundle struct {
	Selection      Selection
	ResetOnStartup bool
	registry       *stage.Registry
	store          RecordStore
	sourceSize     image.Point
	sequence       []string
	stages         map[string]stage.Stage
	inputSizes     map[string]image.Point
	saved          map[string]stage.Record
	last           Result
}

// NewBundle creates a new Bundle for frames of sourceSize
func NewBundle(selection Selection, registry *stage.Registry, store RecordStore, sourceSize image.Point) *Bundle {
	b := &Bundle{
		Selection:      selection,
		ResetOnStartup: true,
		registry:       registry,
		store:          store,
		sourceSize:     sourceSize,
		sequence:       make([]string, 0),
		stages:         make(map[string]stage.Stage),
		inputSizes:     make(map[string]image.Point),
		saved:          make(map[string]stage.Record),
		last:           newResult(),
	}
	return b
}

// Registry returns the implementation registry
func (b *Bundle) Registry() *stage.Registry {
	return b.registry
}

// Sequence returns the effective stage order
func (b *Bundle) Sequence() []string {
	return append([]string(nil), b.sequence...)
}

// Stage returns the live stage named name
func (b *Bundle) Stage(name string) (stage.Stage, bool) {
	s, found := b.stages[name]
	return s, found
}

// InputSize returns the frame size the named stage was built for
func (b *Bundle) InputSize(name string) image.Point {
	return b.inputSizes[name]
}

// SetupAll loads every stage record and builds the stages in canonical order.
// With an override stage, stages after it are left out and the override identity
// keeps the persisted parameters only when it matches the persisted identity.
func (b *Bundle) SetupAll(overrideStage string, overrideIdentity stage.Identity) error {
	if overrideStage != "" {
		if overrideIdentity.IsZero() {
			return &OverrideMismatchError{Stage: overrideStage, Requested: overrideIdentity,
				Reason: "no implementation given"}
		}
		if !inSequence(overrideStage) {
			return &OverrideMismatchError{Stage: overrideStage, Requested: overrideIdentity,
				Reason: "not part of the processing sequence"}
		}
	}
	records := make(map[string]stage.Record, len(stage.Sequence))
	sequence := make([]string, 0, len(stage.Sequence))
	for _, name := range stage.Sequence {
		record, err := b.store.Load(name)
		if err != nil {
			return &ConfigurationError{Stage: name, Err: err}
		}
		records[name] = record
		sequence = append(sequence, name)
		if name == overrideStage {
			break
		}
	}
	stored := make(map[string]stage.Record, len(records))
	for name, record := range records {
		stored[name] = record
	}
	if overrideStage != "" {
		record := records[overrideStage]
		if record.Identity != overrideIdentity {
			log.Infof("%s override %s does not match saved %s, using defaults\n",
				overrideStage, overrideIdentity, record.Identity)
			records[overrideStage] = stage.Record{Identity: overrideIdentity, Params: stage.Params{}}
		}
	}

	stages := make(map[string]stage.Stage, len(sequence))
	saved := make(map[string]stage.Record, len(sequence))
	inputSizes := make(map[string]image.Point, len(sequence))
	size := b.sourceSize
	for _, name := range sequence {
		s, err := b.build(name, records[name], size)
		if err != nil {
			for _, built := range stages {
				built.Close(stage.FrameTime{})
			}
			return err
		}
		stages[name] = s
		inputSizes[name] = size
		size = s.OutputSize()
		if stored[name].Identity == s.Identity() {
			saved[name] = stage.NewRecord(s)
		} else {
			saved[name] = stored[name]
		}
	}

	b.closeStages()
	b.sequence = sequence
	b.stages = stages
	b.inputSizes = inputSizes
	b.saved = saved
	log.Infoln("Bundle", b.Selection, "setup", b.sequence)
	if b.ResetOnStartup {
		b.ResetAll()
	}
	return nil
}

func inSequence(name string) bool {
	for _, s := range stage.Sequence {
		if s == name {
			return true
		}
	}
	return false
}

// build instantiates and configures one stage
func (b *Bundle) build(name string, record stage.Record, inputSize image.Point) (stage.Stage, error) {
	s, err := b.registry.New(name, record.Identity, inputSize)
	if err != nil {
		return nil, &ConfigurationError{Stage: name, Err: err}
	}
	if _, err := stage.Apply(s, record.Params); err != nil {
		s.Close(stage.FrameTime{})
		return nil, &ConfigurationError{Stage: name, Err: err}
	}
	return s, nil
}

func (b *Bundle) closeStages() {
	for _, name := range b.sequence {
		if s, found := b.stages[name]; found {
			s.Close(stage.FrameTime{})
		}
	}
}

// RunAll runs every stage on the source inputs.
// A skipped frame short-circuits after the frame capture stage.
func (b *Bundle) RunAll(inputs stage.Outputs, t stage.FrameTime) (Result, error) {
	if len(b.sequence) == 0 {
		return Result{}, ErrNotSetup
	}
	result := newResult()
	result.put(stage.SourceKey, inputs, t.ReadTime)

	first := b.sequence[0]
	outputs, elapsed, err := b.runOne(first, inputs, t)
	if err != nil {
		return Result{}, err
	}
	result.put(first, outputs, elapsed)
	if outputs.Bool(stage.KeySkipFrame) {
		for _, key := range result.Keys {
			b.last.put(key, result.Outputs[key], result.Timing[key])
		}
		b.last.Skipped = true
		return b.last, nil
	}

	for _, name := range b.sequence[1:] {
		outputs, elapsed, err = b.runOne(name, outputs, t)
		if err != nil {
			return Result{}, err
		}
		result.put(name, outputs, elapsed)
	}
	b.last = result
	return result, nil
}

func (b *Bundle) runOne(name string, inputs stage.Outputs, t stage.FrameTime) (stage.Outputs, time.Duration, error) {
	s := b.stages[name]
	start := time.Now()
	outputs, err := s.Run(t, inputs)
	elapsed := time.Since(start)
	if err != nil {
		log.Errorln("Error on stage", name, s.Identity(), err)
		return nil, elapsed, &StageRuntimeError{Stage: name, Identity: s.Identity(), Err: err}
	}
	if outputs == nil {
		outputs = stage.Outputs{}
	}
	return outputs, elapsed, nil
}

// LastResult returns the outputs of the last run, including skipped frames
func (b *Bundle) LastResult() Result {
	return b.last
}

// ResetAll resets every stage and the cached results
func (b *Bundle) ResetAll() {
	for _, name := range b.sequence {
		b.stages[name].Reset()
	}
	b.last = newResult()
}

// CloseAll closes every stage and returns their final outputs in order.
// The bundle needs a new SetupAll afterwards.
func (b *Bundle) CloseAll(t stage.FrameTime) Result {
	result := newResult()
	for _, name := range b.sequence {
		start := time.Now()
		outputs := b.stages[name].Close(t)
		if outputs == nil {
			outputs = stage.Outputs{}
		}
		result.put(name, outputs, time.Since(start))
	}
	b.sequence = make([]string, 0)
	b.stages = make(map[string]stage.Stage)
	b.last = newResult()
	return result
}

// LastItem returns the last configured stage, the one being edited when overriding
func (b *Bundle) LastItem() (string, stage.Stage, error) {
	if len(b.sequence) == 0 {
		return "", nil, ErrNotSetup
	}
	name := b.sequence[len(b.sequence)-1]
	return name, b.stages[name], nil
}

func (b *Bundle) indexOf(name string) int {
	for i, s := range b.sequence {
		if s == name {
			return i
		}
	}
	return -1
}

func (b *Bundle) respond(name string, changed stage.Params) Response {
	s := b.stages[name]
	return Response{
		Stage:    name,
		Identity: s.Identity(),
		Schema:   s.Schema(),
		Settings: s.Settings(),
		Changed:  changed,
	}
}

// Override swaps the implementation of one live stage in place.
// The same identity keeps the live stage and its settings, a new identity starts from defaults.
func (b *Bundle) Override(name string, identity stage.Identity) (Response, error) {
	index := b.indexOf(name)
	if index < 0 {
		return Response{}, &OverrideMismatchError{Stage: name, Requested: identity,
			Reason: "stage is not configured"}
	}
	if !b.registry.Has(name, identity) {
		return Response{}, &OverrideMismatchError{Stage: name, Requested: identity,
			Reason: "unknown implementation"}
	}
	current := b.stages[name]
	if current.Identity() == identity {
		return b.respond(name, stage.Params{}), nil
	}
	s, err := b.build(name, stage.Record{Identity: identity, Params: stage.Params{}}, b.inputSizes[name])
	if err != nil {
		return Response{}, err
	}
	downstream, err := b.rebuildAfter(index, current.OutputSize(), s.OutputSize())
	if err != nil {
		s.Close(stage.FrameTime{})
		return Response{}, err
	}
	current.Close(stage.FrameTime{})
	b.stages[name] = s
	b.commit(downstream)
	log.Infoln("Bundle", b.Selection, "swapped", name, current.Identity(), "for", identity)
	b.last = newResult()
	return b.respond(name, stage.Params{}), nil
}

// Reconfigure applies a parameter delta to a live stage.
// On failure the stage is put back to its previous settings.
func (b *Bundle) Reconfigure(name string, params stage.Params) (Response, error) {
	index := b.indexOf(name)
	if index < 0 {
		return Response{}, &ConfigurationError{Stage: name, Err: stage.ErrUnknownStage}
	}
	s := b.stages[name]
	before := s.OutputSize()
	previous := s.Settings()
	changed, err := stage.Apply(s, params)
	if err != nil {
		b.restore(name, s, previous)
		return Response{}, &ConfigurationError{Stage: name, Err: err}
	}
	downstream, err := b.rebuildAfter(index, before, s.OutputSize())
	if err != nil {
		b.restore(name, s, previous)
		return Response{}, err
	}
	b.commit(downstream)
	return b.respond(name, changed), nil
}

func (b *Bundle) restore(name string, s stage.Stage, previous stage.Params) {
	if _, err := stage.Apply(s, previous); err != nil {
		log.Errorln("Bundle", b.Selection, name, "not restored:", err)
	}
}

type rebuilt struct {
	name      string
	stage     stage.Stage
	inputSize image.Point
}

// rebuildAfter builds replacements for the stages after index when the output size
// at index goes from before to size. Nothing live changes until commit.
func (b *Bundle) rebuildAfter(index int, before image.Point, size image.Point) ([]rebuilt, error) {
	result := make([]rebuilt, 0)
	if size == before {
		return result, nil
	}
	for _, name := range b.sequence[index+1:] {
		s, err := b.build(name, stage.NewRecord(b.stages[name]), size)
		if err != nil {
			for _, r := range result {
				r.stage.Close(stage.FrameTime{})
			}
			return nil, err
		}
		result = append(result, rebuilt{name: name, stage: s, inputSize: size})
		size = s.OutputSize()
	}
	return result, nil
}

// commit swaps rebuilt stages in, closing the ones they replace
func (b *Bundle) commit(downstream []rebuilt) {
	for _, r := range downstream {
		b.stages[r.name].Close(stage.FrameTime{})
		b.stages[r.name] = r.stage
		b.inputSizes[r.name] = r.inputSize
		log.Debugln("Bundle", b.Selection, "rebuilt", r.name, "for", r.inputSize)
	}
}

// Save persists the live record of a stage when it differs from the saved one.
// confirm may veto the write, nil saves without asking.
func (b *Bundle) Save(name string, confirm func(stage.Record) bool) (saved bool, err error) {
	s, found := b.stages[name]
	if !found {
		return false, &ConfigurationError{Stage: name, Err: stage.ErrUnknownStage}
	}
	record := stage.NewRecord(s)
	if previous, found := b.saved[name]; found && stage.Unchanged(previous, record) {
		log.Debugln("Bundle", b.Selection, name, "unchanged, not saving")
		return false, nil
	}
	if confirm != nil && !confirm(record) {
		return false, nil
	}
	if err = b.store.Save(name, record); err != nil {
		return false, err
	}
	b.saved[name] = record
	log.Infoln("Bundle", b.Selection, "saved", name, record.Identity)
	return true, nil
}
