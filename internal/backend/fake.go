package backend

import (
	"context"
	"sync"

	"github.com/vessel-labs/vessel/models"
)

// FakeBackend is an in-memory Backend used by controller tests and by the
// RELOADER dev mode, where spinning up real containers would be unwanted.
type FakeBackend struct {
	mu        sync.Mutex
	instances map[Handle]Runcfg
	byName    map[string]Handle
	terminated []Handle
}

// NewFakeBackend returns an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		instances: map[Handle]Runcfg{},
		byName:    map[string]Handle{},
	}
}

func (f *FakeBackend) Prepare(ctx context.Context, cfg Runcfg) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.byName[cfg.Name]; ok {
		delete(f.instances, old)
	}
	handle := Handle(models.GenerateID("fake-instance"))
	f.instances[handle] = cfg
	f.byName[cfg.Name] = handle
	return handle, nil
}

func (f *FakeBackend) Start(ctx context.Context, cfg Runcfg, handle Handle) (Handle, error) {
	return handle, nil
}

func (f *FakeBackend) Terminate(ctx context.Context, handle Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, handle)
	f.terminated = append(f.terminated, handle)
	return nil
}

func (f *FakeBackend) Once(ctx context.Context, cfg Runcfg) (int, error) {
	return 0, nil
}

func (f *FakeBackend) Status(ctx context.Context, handle Handle) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.instances[handle]; ok {
		return StatusRunning, nil
	}
	return StatusStopped, nil
}

// Terminated returns every handle Terminate has ever been called with, in
// call order, so tests can assert on prepare/terminate/start ordering.
func (f *FakeBackend) Terminated() []Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Handle(nil), f.terminated...)
}

// Instance returns the Runcfg a still-live handle was prepared with.
func (f *FakeBackend) Instance(handle Handle) (Runcfg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.instances[handle]
	return cfg, ok
}
