// compiler package

package compiler

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Op transforms a frame. It returns src itself or a new Mat, never modifies src.
type Op func(src gocv.Mat) (gocv.Mat, error)

// Identity is the pass-through op used for disabled steps
func Identity(src gocv.Mat) (gocv.Mat, error) {
	return src, nil
}

// Build creates the op of an enabled step. release frees closed over artifacts, it may be nil.
type Build func() (op Op, release func(), err error)

type step struct {
	name    string
	enabled bool
	build   Build
}

// Compiler collects steps in order
type Compiler struct {
	name  string
	steps []step
}

// New creates a new Compiler, name is used in logs
func New(name string) *Compiler {
	c := &Compiler{
		name:  name,
		steps: make([]step, 0),
	}
	return c
}

// Add appends a step, build is only called when enabled
func (c *Compiler) Add(name string, enabled bool, build Build) *Compiler {
	c.steps = append(c.steps, step{name: name, enabled: enabled, build: build})
	return c
}

// Compile builds every enabled step, disabled steps become Identity
func (c *Compiler) Compile() (*Pipeline, error) {
	p := &Pipeline{
		name:     c.name,
		names:    make([]string, 0, len(c.steps)),
		enabled:  make([]bool, 0, len(c.steps)),
		ops:      make([]Op, 0, len(c.steps)),
		releases: make([]func(), 0),
	}
	for _, s := range c.steps {
		op := Op(Identity)
		if s.enabled {
			built, release, err := s.build()
			if err != nil {
				p.Close()
				return nil, fmt.Errorf("%s step %s: %w", c.name, s.name, err)
			}
			op = built
			if release != nil {
				p.releases = append(p.releases, release)
			}
		}
		p.names = append(p.names, s.name)
		p.enabled = append(p.enabled, s.enabled)
		p.ops = append(p.ops, op)
	}
	return p, nil
}

// Pipeline is a compiled linear list of ops
type Pipeline struct {
	name     string
	names    []string
	enabled  []bool
	ops      []Op
	releases []func()
}

// Steps returns the step names in order
func (p *Pipeline) Steps() []string {
	return p.names
}

// Enabled returns the names of enabled steps in order
func (p *Pipeline) Enabled() []string {
	result := make([]string, 0, len(p.names))
	for i, name := range p.names {
		if p.enabled[i] {
			result = append(result, name)
		}
	}
	return result
}

// Run passes src through every op. The result is always a new Mat owned by the caller.
func (p *Pipeline) Run(src gocv.Mat) (result gocv.Mat, err error) {
	cur := src
	stepName := ""
	defer func() {
		if r := recover(); r != nil {
			if cur.Ptr() != src.Ptr() {
				cur.Close()
			}
			result = gocv.Mat{}
			err = fmt.Errorf("%s step %s panic: %v", p.name, stepName, r)
		}
	}()
	for i, op := range p.ops {
		stepName = p.names[i]
		next, opErr := op(cur)
		if opErr != nil {
			if cur.Ptr() != src.Ptr() {
				cur.Close()
			}
			return gocv.Mat{}, fmt.Errorf("%s step %s: %w", p.name, stepName, opErr)
		}
		if next.Ptr() != cur.Ptr() && cur.Ptr() != src.Ptr() {
			cur.Close()
		}
		cur = next
	}
	if cur.Ptr() == src.Ptr() {
		return src.Clone(), nil
	}
	return cur, nil
}

// RunOrBlank runs the pipeline and degrades to blank on failure
func (p *Pipeline) RunOrBlank(src gocv.Mat, blank func() gocv.Mat) gocv.Mat {
	result, err := p.Run(src)
	if err != nil {
		log.Errorln(p.name, "frame error:", err)
		return blank()
	}
	return result
}

// Close frees the artifacts built at compile time
func (p *Pipeline) Close() {
	for _, release := range p.releases {
		release()
	}
	p.releases = nil
}
