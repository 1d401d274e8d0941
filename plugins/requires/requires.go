// Package requires implements a `require` service key that holds a service
// until its named dependencies (other services, or resources) are present
// and themselves not held. Grounded on
// original_source/deploylib/plugins/setup_require.py; it should be
// registered near the end of the plugin chain so other plugins' own
// post_setup methods run first.
package requires

import (
	"context"
	"fmt"
	"strings"

	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const pluginName = "requires"

// Plugin implements the requires key as a SetupHook/PostSetupHook pair, and
// recursively re-activates held dependents through a ControllerCallback
// once their requirement becomes available.
type Plugin struct {
	callback plugin.ControllerCallback

	// path is the ordered chain of names currently being resolved through
	// resumeDependents' recursion (readyName, then each dependent it
	// resumes, and so on). Re-encountering a name already on the chain
	// means the requirements form a cycle; see resumeDependents.
	path []string
}

// New returns a requires plugin. Its callback is bound per writable
// Interface by Root.Interface; see plugin.CallbackBindable.
func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return pluginName }

// SetCallback implements plugin.CallbackBindable.
func (p *Plugin) SetCallback(cb plugin.ControllerCallback) { p.callback = cb }

// Priority runs requires after the default-priority plugins, matching the
// source's "should be one of the last ones" placement note.
func (p *Plugin) Priority() int { return 100 }

func requirements(def *models.CanonicalDefinition) []string {
	raw, ok := def.Kwargs["require"]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (p *Plugin) Setup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (bool, error) {
	reqs := requirements(version.Definition)
	if len(reqs) == 0 {
		return false, nil
	}

	var missing string
	for _, name := range reqs {
		other, ok := dep.Services[name]
		if !ok || other.Held {
			missing = name
			break
		}
	}
	if missing == "" {
		return false, nil
	}

	if err := svc.Hold(fmt.Sprintf("waiting for requirement(s): %s", strings.Join(reqs, ", ")), version); err != nil {
		return false, err
	}
	pc.Log("service %s held: waiting for requirement %s", svc.Name, missing)
	return true, nil
}

func (p *Plugin) PostSetup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, _ *models.ServiceVersion) (bool, error) {
	return false, p.resumeDependents(ctx, pc, dep, svc.Name)
}

func (p *Plugin) OnResourceChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment, name string, _ interface{}) (bool, error) {
	return false, p.resumeDependents(ctx, pc, dep, name)
}

// resumeDependents re-scans every held service in dep whose requirements
// include readyName and re-invokes setup on them. A held service whose
// requirements are still incomplete holds again (possibly on a different
// missing name), a no-op from the caller's perspective.
//
// Cycle detection: readyName is pushed onto p.path for the duration of this
// call. If readyName is already present in p.path, the chain of requires
// directives loops back on itself (e.g. a requires b, b requires a) and
// this call would otherwise recurse through resumeDependents forever,
// alternately re-holding both services with no error ever surfacing. That
// case is reported as a DeployError naming the full cycle instead.
func (p *Plugin) resumeDependents(ctx context.Context, pc *progress.Context, dep *models.Deployment, readyName string) error {
	if idx := indexString(p.path, readyName); idx >= 0 {
		chain := append(append([]string{}, p.path[idx:]...), readyName)
		return models.ErrDependencyCycle(strings.Join(chain, " → "))
	}

	p.path = append(p.path, readyName)
	defer func() { p.path = p.path[:len(p.path)-1] }()

	for name, svc := range dep.Services {
		if !svc.Held || svc.HeldVersion == nil {
			continue
		}
		waiting := requirements(svc.HeldVersion.Definition)
		if !containsString(waiting, readyName) {
			continue
		}

		pc.Log("dependency %s now available for held service %s", readyName, name)
		if err := p.callback.ResumeSetup(ctx, pc, dep.ID, name); err != nil {
			return err
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func indexString(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
