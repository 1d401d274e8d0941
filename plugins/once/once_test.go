package once

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

func drain(pc *progress.Context) {
	go func() {
		for range pc.Events() {
		}
	}()
}

func newVersion(kwargs map[string]interface{}) (*models.Deployment, *models.Service, *models.ServiceVersion) {
	dep := &models.Deployment{ID: "app", Globals: models.NewGlobals(), Services: map[string]*models.Service{}}
	svc := models.NewService("db")
	def := models.NewCanonicalDefinition()
	for k, v := range kwargs {
		def.Kwargs[k] = v
	}
	version := svc.Derive(def, dep.Globals)
	return dep, svc, version
}

func TestSetupSkipsWithoutWaitKey(t *testing.T) {
	p := New()
	pc := progress.New()
	drain(pc)
	dep, svc, version := newVersion(nil)

	claimed, err := p.Setup(context.Background(), pc, dep, svc, version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("expected Setup to never claim the service")
	}
}

func TestSetupReturnsOnceAddressBecomesReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	p := &Plugin{Timeout: time.Second, PollInterval: 10 * time.Millisecond}
	pc := progress.New()
	drain(pc)
	dep, svc, version := newVersion(map[string]interface{}{"wait": ln.Addr().String()})

	claimed, err := p.Setup(context.Background(), pc, dep, svc, version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("expected Setup to never claim the service")
	}
}

func TestSetupTimesOutWhenAddressNeverAnswers(t *testing.T) {
	p := &Plugin{Timeout: 30 * time.Millisecond, PollInterval: 10 * time.Millisecond}
	pc := progress.New()
	drain(pc)
	dep, svc, version := newVersion(map[string]interface{}{"wait": "127.0.0.1:1"})

	_, err := p.Setup(context.Background(), pc, dep, svc, version)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestPriorityRunsBeforeDefault(t *testing.T) {
	p := New()
	if p.Priority() >= 0 {
		t.Fatalf("expected negative priority, got %d", p.Priority())
	}
}
