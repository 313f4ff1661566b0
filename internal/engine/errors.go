// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// ErrNoRuntime is returned by Detect when neither docker nor podman is
// present on the host.
var ErrNoRuntime = errors.New("no container engine found (docker or podman)")

// EngineError surfaces a failed engine operation with its exit status and
// captured stderr. SDK failures carry ExitStatus -1 and the underlying
// client error.
type EngineError struct {
	Op         string
	ExitStatus int
	Stderr     string
	Err        error
}

func (e *EngineError) Error() string {
	msg := e.Op
	if e.ExitStatus >= 0 {
		msg += fmt.Sprintf(": exit status %d", e.ExitStatus)
	}
	switch {
	case e.Stderr != "":
		msg += ": " + e.Stderr
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.Err }
