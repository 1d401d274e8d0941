// Package backend abstracts the container operations the controller drives:
// prepare, start, terminate, once, status. The core depends only on this
// interface; the concrete Docker implementation lives in docker.go.
package backend

import "context"

// PortBinding is one host-side binding for a container port, as consumed
// from Runcfg.Ports.
type PortBinding struct {
	HostIP   string
	HostPort int
}

// Runcfg is the fully resolved container configuration the controller hands
// to the backend after synthesis. Field names mirror the values §4.3 of the
// controller's runcfg synthesis algorithm produces.
type Runcfg struct {
	Image      string
	Name       string
	Entrypoint []string
	Cmd        []string
	Env        map[string]string
	Volumes    map[string]string // host path -> container path
	Ports      map[string][]PortBinding
	Privileged bool
	Links      []string
}

// Handle is the opaque token a backend returns from Prepare/Start, which the
// core stores on a ServiceInstance and later hands back to Terminate.
type Handle string

// Status is the reported run state of an instance.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Backend is the container-backend interface (C3).
type Backend interface {
	// Prepare creates (but does not start) the container, priming its name
	// and mounts, and returns a handle. Idempotent on name collision: if a
	// container by that name exists, the backend removes it first.
	Prepare(ctx context.Context, cfg Runcfg) (Handle, error)

	// Start brings the instance up and returns the (possibly updated) handle.
	Start(ctx context.Context, cfg Runcfg, handle Handle) (Handle, error)

	// Terminate tears down the instance. Must be tolerant of an
	// already-gone instance: no-op, no error.
	Terminate(ctx context.Context, handle Handle) error

	// Once runs a one-shot job to completion and returns its exit code.
	Once(ctx context.Context, cfg Runcfg) (exitCode int, err error)

	// Status reports whether handle is currently running.
	Status(ctx context.Context, handle Handle) (Status, error)
}
