// Package execresource implements the `Exec` globals directive: named
// run-once jobs, each executed against a named service with a given cmd,
// whose exit code becomes the deployment's record that the resource is
// available. Grounded on
// original_source/deploylib/plugins/exec_resource.py.
package execresource

import (
	"context"

	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const pluginName = "execresource"

// Plugin runs each outstanding Exec entry once its target service exists
// (held or not) and the resource hasn't already been marked available.
type Plugin struct {
	callback plugin.ControllerCallback
}

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return pluginName }

// SetCallback implements plugin.CallbackBindable.
func (p *Plugin) SetCallback(cb plugin.ControllerCallback) { p.callback = cb }

func (p *Plugin) OnGlobalsChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment) (bool, error) {
	return false, p.executeRuns(ctx, pc, dep)
}

func (p *Plugin) PostSetup(ctx context.Context, pc *progress.Context, dep *models.Deployment, _ *models.Service, _ *models.ServiceVersion) (bool, error) {
	return false, p.executeRuns(ctx, pc, dep)
}

func (p *Plugin) executeRuns(ctx context.Context, pc *progress.Context, dep *models.Deployment) error {
	entries, _ := dep.Globals.Directives["Exec"].(map[string]interface{})
	for name, rawOptions := range entries {
		if _, done := dep.Resources[name]; done {
			continue
		}
		options, ok := rawOptions.(map[string]interface{})
		if !ok {
			continue
		}
		serviceName, _ := options["service"].(string)
		if serviceName == "" {
			continue
		}
		svc, exists := dep.Services[serviceName]
		if !exists {
			continue
		}
		claimed, err := p.callback.TrySetupResource(ctx, pc, dep.ID, name, options)
		if err != nil {
			return err
		}
		if claimed {
			dep.SetResource(name, true)
			continue
		}

		cmdStr, _ := options["cmd"].(string)
		if cmdStr == "" {
			continue
		}

		pc.Job("executing %q of service %s", cmdStr, serviceName)
		if err := p.callback.RunOnce(ctx, pc, dep.ID, serviceName, []string{cmdStr}); err != nil {
			return err
		}
		// Recorded directly on dep rather than through the SetResource
		// callback: both OnGlobalsChanged and PostSetup run against this
		// same in-memory dep before the caller's own PutDeployment, so a
		// callback round-trip through a freshly loaded copy would be
		// clobbered by that later write.
		dep.SetResource(name, true)
		_ = svc
	}
	return nil
}
