package controller

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/internal/store"
	"github.com/vessel-labs/vessel/plugins/requires"
)

func newTestRoot(t *testing.T) (*Root, *backend.FakeBackend) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "vessel.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	be := backend.NewFakeBackend()
	registry := plugin.NewRegistry()
	root := NewRoot(st, be, registry, discovery.NewInMemoryAdapter(), t.TempDir(), "10.0.0.9", "")
	return root, be
}

// newTestRootWithRequires is newTestRoot plus the real requires plugin
// registered, for tests exercising hold/resume behavior that plugin drives.
func newTestRootWithRequires(t *testing.T) (*Root, *backend.FakeBackend) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "vessel.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	be := backend.NewFakeBackend()
	registry := plugin.NewRegistry()
	registry.Register(requires.New())
	root := NewRoot(st, be, registry, discovery.NewInMemoryAdapter(), t.TempDir(), "10.0.0.9", "")
	return root, be
}

func TestCreateDeploymentFailsOnDuplicate(t *testing.T) {
	root, _ := newTestRoot(t)
	ctx := context.Background()
	pc := progress.New()
	go func() { for range pc.Events() { } }()

	iface, _ := root.Interface(true)
	if _, err := iface.CreateDeployment(ctx, pc, "app", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := iface.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	iface2, _ := root.Interface(true)
	if _, err := iface2.CreateDeployment(ctx, pc, "app", true); err == nil {
		t.Fatalf("expected AlreadyExists error")
	}
	iface2.Abort()
}

func TestSetServiceStartsContainerAndSkipsOnUnchanged(t *testing.T) {
	root, be := newTestRoot(t)
	ctx := context.Background()
	pc := progress.New()
	go func() { for range pc.Events() { } }()

	iface, _ := root.Interface(true)
	if _, err := iface.CreateDeployment(ctx, pc, "app", true); err != nil {
		t.Fatalf("create deployment: %v", err)
	}

	raw := map[string]interface{}{
		"image": "example/web",
		"ports": map[string]interface{}{"": "assign"},
	}
	svc, err := iface.SetService(ctx, pc, "app", "web", raw, false)
	if err != nil {
		t.Fatalf("set_service: %v", err)
	}
	if len(svc.Versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(svc.Versions))
	}
	if len(svc.Instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(svc.Instances))
	}
	if len(be.Terminated()) != 0 {
		t.Fatalf("expected nothing terminated on first placement")
	}
	if err := iface.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Re-placing the same definition without force should be a no-op.
	iface2, _ := root.Interface(true)
	svc2, err := iface2.SetService(ctx, pc, "app", "web", raw, false)
	if err != nil {
		t.Fatalf("set_service (unchanged): %v", err)
	}
	if len(svc2.Versions) != 1 {
		t.Fatalf("expected still 1 version after unchanged re-placement, got %d", len(svc2.Versions))
	}
	iface2.Abort()
}

// TestSetServiceReportsDependencyCycle exercises spec.md §9's "Recursive
// re-entry of setup via the requires plugin" design note end to end: s1
// requires s2 and s2 requires s1, so neither can ever become ready. This
// must surface as a DeployError naming the cycle, not hold both services
// forever with the client seeing success.
func TestSetServiceReportsDependencyCycle(t *testing.T) {
	root, _ := newTestRootWithRequires(t)
	ctx := context.Background()
	pc := progress.New()
	go func() {
		for range pc.Events() {
		}
	}()

	iface, _ := root.Interface(true)
	if _, err := iface.CreateDeployment(ctx, pc, "app", true); err != nil {
		t.Fatalf("create deployment: %v", err)
	}

	svc1, err := iface.SetService(ctx, pc, "app", "s1", map[string]interface{}{"require": "s2"}, false)
	if err != nil {
		t.Fatalf("set_service s1: %v", err)
	}
	if !svc1.Held {
		t.Fatal("expected s1 to be held pending s2")
	}

	_, err = iface.SetService(ctx, pc, "app", "s2", map[string]interface{}{"require": "s1"}, false)
	if err == nil {
		t.Fatal("expected set_service s2 to report a dependency cycle")
	}
	if !strings.Contains(err.Error(), "dependency cycle") {
		t.Fatalf("expected a dependency cycle error, got %v", err)
	}
	iface.Abort()
}

func TestSetServiceForceReplacesInstance(t *testing.T) {
	root, be := newTestRoot(t)
	ctx := context.Background()
	pc := progress.New()
	go func() { for range pc.Events() { } }()

	iface, _ := root.Interface(true)
	iface.CreateDeployment(ctx, pc, "app", true)

	raw := map[string]interface{}{"image": "example/web"}
	if _, err := iface.SetService(ctx, pc, "app", "web", raw, false); err != nil {
		t.Fatalf("set_service: %v", err)
	}
	if _, err := iface.SetService(ctx, pc, "app", "web", raw, true); err != nil {
		t.Fatalf("forced set_service: %v", err)
	}
	if len(be.Terminated()) != 1 {
		t.Fatalf("expected 1 terminate call from the forced replacement, got %d", len(be.Terminated()))
	}
	iface.Commit()
}
