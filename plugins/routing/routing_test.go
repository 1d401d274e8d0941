package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	discoveryadapter "github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

func drain(pc *progress.Context) {
	go func() {
		for range pc.Events() {
		}
	}()
}

func TestOnGlobalsChangedBuildsRoutableTable(t *testing.T) {
	p := New(discoveryadapter.NewInMemoryAdapter())
	dep := &models.Deployment{Globals: models.NewGlobals()}
	dep.Globals.Directives["Domains"] = map[string]interface{}{
		"app.example.com": map[string]interface{}{"service": "web"},
	}
	pc := progress.New()
	drain(pc)

	if _, err := p.OnGlobalsChanged(context.Background(), pc, dep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.routes["app.example.com"] != "web" {
		t.Fatalf("expected app.example.com routed to web, got %v", p.routes)
	}

	// Exercise the router the way net/http would: dispatch the request and
	// let the proxy handler report the missing backend.
	req := httptest.NewRequest(http.MethodGet, "http://app.example.com/", nil)
	rr := httptest.NewRecorder()
	p.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for an unresolved backend, got %d", rr.Code)
	}
}

func TestOnGlobalsChangedProxiesToDiscoveredBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer backend.Close()

	disc := discoveryadapter.NewInMemoryAdapter()
	disc.Register("web", backend.Listener.Addr().String())
	p := New(disc)

	dep := &models.Deployment{Globals: models.NewGlobals()}
	dep.Globals.Directives["Domains"] = map[string]interface{}{
		"app.example.com": map[string]interface{}{"service": "web"},
	}
	pc := progress.New()
	drain(pc)
	if _, err := p.OnGlobalsChanged(context.Background(), pc, dep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://app.example.com/", nil)
	rr := httptest.NewRecorder()
	p.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected proxied response 418, got %d", rr.Code)
	}
}

func TestHTTPFuncTableListsCurrentRoutes(t *testing.T) {
	p := New(discoveryadapter.NewInMemoryAdapter())
	p.routes["app.example.com"] = "web"
	pc := progress.New()

	events := make([]progress.Event, 0)
	done := make(chan struct{})
	go func() {
		for ev := range pc.Events() {
			events = append(events, ev)
		}
		close(done)
	}()

	if err := p.HTTPFunc(context.Background(), pc, "table", "app", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pc.Done()
	<-done

	found := false
	for _, ev := range events {
		if ev.Custom["domain"] == "app.example.com" && ev.Custom["service"] == "web" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a custom event for app.example.com -> web, got %+v", events)
	}
}

func TestHTTPFuncRejectsUnknownFunction(t *testing.T) {
	p := New(discoveryadapter.NewInMemoryAdapter())
	pc := progress.New()
	drain(pc)
	if err := p.HTTPFunc(context.Background(), pc, "bogus", "app", nil); err == nil {
		t.Fatal("expected an error for an unknown function name")
	}
}
