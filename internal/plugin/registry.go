package plugin

import (
	"context"
	"sort"

	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

// Registry holds the stable, ordered plugin list the dispatcher walks. It is
// built once at startup by Register calls and never mutated afterward, so
// concurrent controller operations can read it without locking.
type Registry struct {
	plugins []Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a plugin. Plugins are sorted by ascending Priority (ties
// keep registration order) once, when All is first called; Priority is
// advisory, registration order is the stable tie-break and the order ties
// resolve to is Register's call order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
}

// All returns the registered plugins in dispatch order: ascending priority,
// ties broken by registration order.
func (r *Registry) All() []Plugin {
	ordered := append([]Plugin(nil), r.plugins...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityOf(ordered[i]) < priorityOf(ordered[j])
	})
	return ordered
}

// ByName finds a registered plugin by name, or nil if not present.
func (r *Registry) ByName(name string) Plugin {
	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// BindCallback rebinds every registered plugin implementing
// CallbackBindable to cb. Called once per writable Interface so
// requires/execresource/gitreceive re-enter the controller through the
// transaction actually driving the current operation.
func (r *Registry) BindCallback(cb ControllerCallback) {
	for _, p := range r.plugins {
		if b, ok := p.(CallbackBindable); ok {
			b.SetCallback(cb)
		}
	}
}

func priorityOf(p Plugin) int {
	if pr, ok := p.(Priority); ok {
		return pr.Priority()
	}
	return 0
}

// Dispatcher runs the registered hooks in order, short-circuiting on the
// first non-false return (§4.4). Each Run* method is the typed equivalent
// of `run_plugins(hook_name, args...)` for one hook signature.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher wraps a registry for hook dispatch.
func NewDispatcher(r *Registry) *Dispatcher {
	return &Dispatcher{registry: r}
}

func (d *Dispatcher) RunOnCreateDeployment(ctx context.Context, pc *progress.Context, dep *models.Deployment) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(OnCreateDeploymentHook)
		if !ok {
			continue
		}
		claimed, err := h.OnCreateDeployment(ctx, pc, dep)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunOnGlobalsChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(OnGlobalsChangedHook)
		if !ok {
			continue
		}
		claimed, err := h.OnGlobalsChanged(ctx, pc, dep)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunOnResourceChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment, name string, value interface{}) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(OnResourceChangedHook)
		if !ok {
			continue
		}
		claimed, err := h.OnResourceChanged(ctx, pc, dep, name, value)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunSetup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(SetupHook)
		if !ok {
			continue
		}
		claimed, err := h.Setup(ctx, pc, dep, svc, version)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunRewriteService(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion, def *models.CanonicalDefinition) error {
	for _, p := range d.registry.All() {
		h, ok := p.(RewriteServiceHook)
		if !ok {
			continue
		}
		claimed, err := h.RewriteService(ctx, pc, dep, svc, version, def)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) RunProvideVars(ctx context.Context, pc *progress.Context, svc *models.Service, version *models.ServiceVersion, def *models.CanonicalDefinition, vars map[string]string) error {
	for _, p := range d.registry.All() {
		h, ok := p.(ProvideVarsHook)
		if !ok {
			continue
		}
		claimed, err := h.ProvideVars(ctx, pc, svc, version, def, vars)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) RunProvideEnvironment(ctx context.Context, pc *progress.Context, dep *models.Deployment, def *models.CanonicalDefinition, env map[string]string) error {
	for _, p := range d.registry.All() {
		h, ok := p.(ProvideEnvironmentHook)
		if !ok {
			continue
		}
		claimed, err := h.ProvideEnvironment(ctx, pc, dep, def, env)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) RunBeforeStart(ctx context.Context, pc *progress.Context, svc *models.Service, def *models.CanonicalDefinition, cfg *backend.Runcfg, portAssignments map[string]PortAssignment) error {
	for _, p := range d.registry.All() {
		h, ok := p.(BeforeStartHook)
		if !ok {
			continue
		}
		claimed, err := h.BeforeStart(ctx, pc, svc, def, cfg, portAssignments)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) RunBeforeOnce(ctx context.Context, pc *progress.Context, svc *models.Service, def *models.CanonicalDefinition, cfg *backend.Runcfg) error {
	for _, p := range d.registry.All() {
		h, ok := p.(BeforeOnceHook)
		if !ok {
			continue
		}
		claimed, err := h.BeforeOnce(ctx, pc, svc, def, cfg)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) RunBeforeTerminate(ctx context.Context, pc *progress.Context, svc *models.Service, inst *models.ServiceInstance) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(BeforeTerminateHook)
		if !ok {
			continue
		}
		claimed, err := h.BeforeTerminate(ctx, pc, svc, inst)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunPostSetup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(PostSetupHook)
		if !ok {
			continue
		}
		claimed, err := h.PostSetup(ctx, pc, dep, svc, version)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunOnDataProvided(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, files map[string][]byte, info map[string]interface{}) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(OnDataProvidedHook)
		if !ok {
			continue
		}
		claimed, err := h.OnDataProvided(ctx, pc, dep, svc, files, info)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunSetupResource(ctx context.Context, pc *progress.Context, dep *models.Deployment, name string, options map[string]interface{}) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(SetupResourceHook)
		if !ok {
			continue
		}
		claimed, err := h.SetupResource(ctx, pc, dep, name, options)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunNeedsAppCode(ctx context.Context, pc *progress.Context, svc *models.Service, version *models.ServiceVersion) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(NeedsAppCodeHook)
		if !ok {
			continue
		}
		claimed, err := h.NeedsAppCode(ctx, pc, svc, version)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

func (d *Dispatcher) RunOnSystemInit(ctx context.Context, pc *progress.Context) (bool, error) {
	for _, p := range d.registry.All() {
		h, ok := p.(OnSystemInitHook)
		if !ok {
			continue
		}
		claimed, err := h.OnSystemInit(ctx, pc)
		if err != nil || claimed {
			return claimed, err
		}
	}
	return false, nil
}

// RunHTTPFunc dispatches to the named plugin's HTTPHook, used by the
// `/<plugin_name>/<func>` HTTP edge route. Returns models.ErrNoSuchDeployment's
// sibling invalid-input error if the plugin is unknown or does not expose
// any HTTP functions.
func (d *Dispatcher) RunHTTPFunc(ctx context.Context, pc *progress.Context, pluginName, funcName, deploymentID string, body map[string]interface{}) error {
	p := d.registry.ByName(pluginName)
	if p == nil {
		return models.InvalidInput("no such plugin: " + pluginName)
	}
	h, ok := p.(HTTPHook)
	if !ok {
		return models.InvalidInput("plugin exposes no HTTP functions: " + pluginName)
	}
	return h.HTTPFunc(ctx, pc, funcName, deploymentID, body)
}
