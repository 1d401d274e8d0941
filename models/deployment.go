package models

// SystemDeploymentID is the name of the distinguished deployment that always
// exists and holds infrastructure services.
const SystemDeploymentID = "system"

// Deployment is a named group of services managed as a unit.
type Deployment struct {
	ID string

	Globals *Globals

	Services map[string]*Service

	// Resources are plugin-created facts, e.g. "database foo has been
	// provisioned", keyed by resource name.
	Resources map[string]interface{}

	// PluginState is per-plugin scratch storage, keyed by plugin name.
	PluginState map[string]map[string]interface{}

	// AllocatedPorts is the set of host ports this deployment has already
	// claimed, so runcfg synthesis can retry on collision instead of
	// trusting an unchecked random draw (open question #1, resolved).
	AllocatedPorts map[int]struct{}
}

// NewDeployment returns an empty deployment ready for use.
func NewDeployment(id string) *Deployment {
	return &Deployment{
		ID:             id,
		Globals:        NewGlobals(),
		Services:       map[string]*Service{},
		Resources:      map[string]interface{}{},
		PluginState:    map[string]map[string]interface{}{},
		AllocatedPorts: map[int]struct{}{},
	}
}

// Service looks up a service by name, returning nil if absent.
func (d *Deployment) Service(name string) *Service {
	return d.Services[name]
}

// EnsureService returns the named service, creating an empty one if absent.
func (d *Deployment) EnsureService(name string) *Service {
	svc, ok := d.Services[name]
	if !ok {
		svc = NewService(name)
		d.Services[name] = svc
	}
	return svc
}

// SetResource stores a resource fact, overwriting any previous value.
func (d *Deployment) SetResource(name string, value interface{}) {
	d.Resources[name] = value
}

// PluginScratch returns the mutable scratch map for a plugin, creating it if
// absent.
func (d *Deployment) PluginScratch(pluginName string) map[string]interface{} {
	m, ok := d.PluginState[pluginName]
	if !ok {
		m = map[string]interface{}{}
		d.PluginState[pluginName] = m
	}
	return m
}

// ClaimPort reserves host port p for this deployment. Reports false if
// already claimed, so the caller must pick another.
func (d *Deployment) ClaimPort(p int) bool {
	if d.AllocatedPorts == nil {
		d.AllocatedPorts = map[int]struct{}{}
	}
	if _, taken := d.AllocatedPorts[p]; taken {
		return false
	}
	d.AllocatedPorts[p] = struct{}{}
	return true
}
