package discovery

import (
	"context"
	"testing"

	"github.com/vessel-labs/vessel/internal/backend"
	discoveryadapter "github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

func drain(pc *progress.Context) {
	go func() {
		for range pc.Events() {
		}
	}()
}

func TestBeforeStartRegistersDefaultAndNamedPorts(t *testing.T) {
	adapter := discoveryadapter.NewInMemoryAdapter()
	p := New(adapter)
	svc := &models.Service{Name: "web"}
	pc := progress.New()
	drain(pc)

	assignments := map[string]plugin.PortAssignment{
		"":   {HostIP: "10.0.0.9", HostPort: 30000},
		"rpc": {HostIP: "10.0.0.9", HostPort: 30001},
	}
	claimed, err := p.BeforeStart(context.Background(), pc, svc, &models.CanonicalDefinition{}, &backend.Runcfg{}, assignments)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("discovery never claims the setup chain")
	}

	addr, ok := adapter.Discover("web")
	if !ok || addr != "10.0.0.9:30000" {
		t.Errorf("expected web registered at 10.0.0.9:30000, got %q ok=%v", addr, ok)
	}
	addr, ok = adapter.Discover("web:rpc")
	if !ok || addr != "10.0.0.9:30001" {
		t.Errorf("expected web:rpc registered at 10.0.0.9:30001, got %q ok=%v", addr, ok)
	}
}
