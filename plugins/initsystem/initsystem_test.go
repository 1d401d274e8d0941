package initsystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vessel-labs/vessel/internal/backend"
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

func newTestPlugin(t *testing.T) *Plugin {
	t.Helper()
	p := New(t.TempDir())
	var enabled, disabled []string
	p.runSystemctl = func(args ...string) error {
		if len(args) == 2 && args[0] == "enable" {
			enabled = append(enabled, args[1])
		}
		if len(args) == 2 && args[0] == "disable" {
			disabled = append(disabled, args[1])
		}
		return nil
	}
	return p
}

func TestBeforeStartWritesAndEnablesUnit(t *testing.T) {
	p := newTestPlugin(t)
	pc := progress.New()
	drain(pc)

	cfg := &backend.Runcfg{Name: "app-web-1"}
	claimed, err := p.BeforeStart(context.Background(), pc, &models.Service{}, &models.CanonicalDefinition{}, cfg, map[string]plugin.PortAssignment{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("initsystem never claims the setup chain")
	}

	unitPath := filepath.Join(p.unitDir, "vessel-app-web-1.service")
	data, err := os.ReadFile(unitPath)
	if err != nil {
		t.Fatalf("expected unit file written: %v", err)
	}
	if !strings.Contains(string(data), "docker start -a app-web-1") {
		t.Errorf("expected unit to exec docker start for the instance, got:\n%s", data)
	}
}

func TestBeforeStartNoopsWithoutUnitDir(t *testing.T) {
	p := New("")
	pc := progress.New()
	drain(pc)

	cfg := &backend.Runcfg{Name: "app-web-1"}
	if _, err := p.BeforeStart(context.Background(), pc, &models.Service{}, &models.CanonicalDefinition{}, cfg, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBeforeTerminateRemovesUnit(t *testing.T) {
	p := newTestPlugin(t)
	pc := progress.New()
	drain(pc)

	cfg := &backend.Runcfg{Name: "app-web-1"}
	if _, err := p.BeforeStart(context.Background(), pc, &models.Service{}, &models.CanonicalDefinition{}, cfg, map[string]plugin.PortAssignment{}); err != nil {
		t.Fatalf("before start: %v", err)
	}

	inst := &models.ServiceInstance{Name: "app-web-1"}
	if _, err := p.BeforeTerminate(context.Background(), pc, &models.Service{}, inst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unitPath := filepath.Join(p.unitDir, "vessel-app-web-1.service")
	if _, err := os.Stat(unitPath); !os.IsNotExist(err) {
		t.Errorf("expected unit file removed, stat err = %v", err)
	}
}
