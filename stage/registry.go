package stage

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
)

// Registry errors
var (
	ErrUnknownStage          = errors.New("unknown stage")
	ErrUnknownImplementation = errors.New("unknown implementation")
)

// Factory builds a stage for frames of inputSize
type Factory func(inputSize image.Point) Stage

// Registry maps stage names and implementation identities to factories
type Registry struct {
	factories map[string]map[Identity]Factory
	defaults  map[string]Identity
	guard     sync.RWMutex
}

// NewRegistry creates a new empty Registry
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]map[Identity]Factory),
		defaults:  make(map[string]Identity),
		guard:     sync.RWMutex{},
	}
	return r
}

// Register adds a factory. The first identity registered for a stage is its default.
func (r *Registry) Register(stageName string, identity Identity, factory Factory) {
	r.guard.Lock()
	defer r.guard.Unlock()
	impls, found := r.factories[stageName]
	if !found {
		impls = make(map[Identity]Factory)
		r.factories[stageName] = impls
		r.defaults[stageName] = identity
	}
	impls[identity] = factory
}

// Default returns the default identity of stageName
func (r *Registry) Default(stageName string) (identity Identity, found bool) {
	r.guard.RLock()
	defer r.guard.RUnlock()
	identity, found = r.defaults[stageName]
	return
}

// Has reports whether identity is registered for stageName
func (r *Registry) Has(stageName string, identity Identity) bool {
	r.guard.RLock()
	defer r.guard.RUnlock()
	_, found := r.factories[stageName][identity]
	return found
}

// Implementations lists the identities registered for stageName
func (r *Registry) Implementations(stageName string) []Identity {
	r.guard.RLock()
	defer r.guard.RUnlock()
	result := make([]Identity, 0, len(r.factories[stageName]))
	for id := range r.factories[stageName] {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}

// New builds the identity implementation of stageName
func (r *Registry) New(stageName string, identity Identity, inputSize image.Point) (Stage, error) {
	r.guard.RLock()
	impls, found := r.factories[stageName]
	var factory Factory
	if found {
		factory = impls[identity]
	}
	r.guard.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: %s for %s", ErrUnknownImplementation, identity, stageName)
	}
	return factory(inputSize), nil
}
