// internal/engine/engine.go
package engine

import "context"

// ContainerState is the result of an inspect: whether a container with the
// asked-for name exists, and if so whether it is currently running.
type ContainerState struct {
	Exists  bool
	Running bool
	ID      string
	Image   string
}

// Engine abstracts the container runtime (docker or podman). Handles are
// whatever the engine hands back — an ID or a name; the engine's own
// registry is the system of record. Operations never retry: retry policy,
// if any, belongs to the caller.
type Engine interface {
	// Name identifies the underlying engine ("docker" or "podman").
	Name() string

	// Pull downloads an image reference.
	Pull(ctx context.Context, image string) error

	// Create creates a container without starting it and returns its
	// handle. A non-empty cloneFrom mounts the volumes of an existing
	// container (--volumes-from) in addition to the spec's own mounts.
	Create(ctx context.Context, spec ContainerSpec, cloneFrom string) (string, error)

	Start(ctx context.Context, handle string) error
	Stop(ctx context.Context, handle string) error
	Rename(ctx context.Context, handle, newName string) error
	Remove(ctx context.Context, handle string) error

	// Inspect looks a container up by name. A missing container is not an
	// error: it reports Exists false.
	Inspect(ctx context.Context, name string) (ContainerState, error)

	// RunForeground runs the spec interactively on the caller's terminal,
	// removes the container afterwards, and returns the process exit code.
	// A nonzero exit code is data, not an error.
	RunForeground(ctx context.Context, spec ContainerSpec) (int, error)

	Close() error
}
