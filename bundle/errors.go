package bundle

import (
	"fmt"

	"github.com/jonoton/vigil/stage"
)

// ConfigurationError is a missing or unrecognized stage, record or implementation
type ConfigurationError struct {
	Stage string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error on stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// StageRuntimeError is a failure inside a stage run
type StageRuntimeError struct {
	Stage    string
	Identity stage.Identity
	Err      error
}

func (e *StageRuntimeError) Error() string {
	return fmt.Sprintf("error on stage %s (%s): %v", e.Stage, e.Identity, e.Err)
}

// Unwrap returns the stage error
func (e *StageRuntimeError) Unwrap() error {
	return e.Err
}

// OverrideMismatchError is an override request that names no configured stage or implementation
type OverrideMismatchError struct {
	Stage     string
	Requested stage.Identity
	Reason    string
}

func (e *OverrideMismatchError) Error() string {
	return fmt.Sprintf("cannot override stage %q with %s: %s", e.Stage, e.Requested, e.Reason)
}
