// Package discovery implements service-discovery registration: once a
// service's ports are resolved, it registers each one with the controller's
// discovery adapter so other plugins and external clients can resolve
// "service[:port]" to a live host:port. Grounded on
// original_source/deploylib/plugins/sdutil.py, adapted from "wrap the
// container's entrypoint with a helper binary" to "register directly with
// the adapter", since vessel's discovery boundary (internal/discovery) is a
// first-class Go interface rather than an in-container binary.
package discovery

import (
	"context"
	"fmt"

	"github.com/vessel-labs/vessel/internal/backend"
	discoveryadapter "github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const pluginName = "discovery"

// Plugin registers every resolved port assignment with the discovery
// adapter under "service" (the default port) or "service:port_name".
type Plugin struct {
	adapter discoveryadapter.Adapter
}

func New(adapter discoveryadapter.Adapter) *Plugin {
	return &Plugin{adapter: adapter}
}

func (p *Plugin) Name() string { return pluginName }

func (p *Plugin) BeforeStart(ctx context.Context, pc *progress.Context, svc *models.Service, def *models.CanonicalDefinition, cfg *backend.Runcfg, portAssignments map[string]plugin.PortAssignment) (bool, error) {
	for portName, pa := range portAssignments {
		name := svc.Name
		if portName != "" {
			name = fmt.Sprintf("%s:%s", svc.Name, portName)
		}
		addr := fmt.Sprintf("%s:%d", pa.HostIP, pa.HostPort)
		if err := p.adapter.Register(name, addr); err != nil {
			return false, models.DeployError("discovery: register "+name, err)
		}
		pc.Log("registered %s at %s", name, addr)
	}
	return false, nil
}
