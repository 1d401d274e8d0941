// Package plugin implements the plugin registry and dispatcher (C4): an
// ordered hook invocation table with short-circuit semantics. A plugin
// implements the subset of hooks it cares about by implementing the
// corresponding optional interface; nothing is discovered by reflection.
package plugin

import (
	"context"

	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

// Plugin is the base capability every registered plugin satisfies. Name
// identifies it for scratch storage, logging, and the `/<plugin_name>/<func>`
// HTTP edge route.
type Plugin interface {
	Name() string
}

// Priority is implemented by plugins that want to run earlier than
// registration order would otherwise place them. Lower runs earlier; it is
// advisory only in that ties fall back to registration order, which remains
// the stable total order.
type Priority interface {
	Priority() int
}

// The hook interfaces below are all optional; a plugin implements whichever
// subset its domain logic needs. ctx carries the operation's progress
// context so a hook can emit job/log/error events as it works.

type OnCreateDeploymentHook interface {
	OnCreateDeployment(ctx context.Context, pc *progress.Context, dep *models.Deployment) (bool, error)
}

type OnGlobalsChangedHook interface {
	OnGlobalsChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment) (bool, error)
}

type OnResourceChangedHook interface {
	OnResourceChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment, name string, value interface{}) (bool, error)
}

// SetupHook is the hold/claim hook: returning (true, nil) means the plugin
// has claimed responsibility for the service (possibly holding it), and the
// core must not synthesize a runcfg or touch the backend for this version.
// dep is passed so hooks like requires can inspect sibling services.
type SetupHook interface {
	Setup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (bool, error)
}

type RewriteServiceHook interface {
	RewriteService(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion, def *models.CanonicalDefinition) (bool, error)
}

type ProvideVarsHook interface {
	ProvideVars(ctx context.Context, pc *progress.Context, svc *models.Service, version *models.ServiceVersion, def *models.CanonicalDefinition, vars map[string]string) (bool, error)
}

type ProvideEnvironmentHook interface {
	ProvideEnvironment(ctx context.Context, pc *progress.Context, dep *models.Deployment, def *models.CanonicalDefinition, env map[string]string) (bool, error)
}

type BeforeStartHook interface {
	BeforeStart(ctx context.Context, pc *progress.Context, svc *models.Service, def *models.CanonicalDefinition, cfg *backend.Runcfg, portAssignments map[string]PortAssignment) (bool, error)
}

type BeforeOnceHook interface {
	BeforeOnce(ctx context.Context, pc *progress.Context, svc *models.Service, def *models.CanonicalDefinition, cfg *backend.Runcfg) (bool, error)
}

// BeforeTerminateHook fires just before an instance is torn down, letting a
// plugin clean up anything it attached outside the backend itself (e.g.
// initsystem's unit file).
type BeforeTerminateHook interface {
	BeforeTerminate(ctx context.Context, pc *progress.Context, svc *models.Service, inst *models.ServiceInstance) (bool, error)
}

type PostSetupHook interface {
	PostSetup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (bool, error)
}

type OnDataProvidedHook interface {
	OnDataProvided(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, files map[string][]byte, info map[string]interface{}) (bool, error)
}

type SetupResourceHook interface {
	SetupResource(ctx context.Context, pc *progress.Context, dep *models.Deployment, name string, options map[string]interface{}) (bool, error)
}

type NeedsAppCodeHook interface {
	NeedsAppCode(ctx context.Context, pc *progress.Context, svc *models.Service, version *models.ServiceVersion) (bool, error)
}

type OnSystemInitHook interface {
	OnSystemInit(ctx context.Context, pc *progress.Context) (bool, error)
}

// HTTPHook lets a plugin expose named functions through the HTTP edge's
// `/<plugin_name>/<func>` route, e.g. gitreceive's push-token validation.
// body is the parsed JSON request body; claimed mirrors the other hooks'
// convention but is meaningless here since the plugin is addressed by name
// and there is nothing else in the chain to fall through to — an unknown
// func name is the edge's 404, not a hook miss.
type HTTPHook interface {
	HTTPFunc(ctx context.Context, pc *progress.Context, funcName, deploymentID string, body map[string]interface{}) error
}

// PortAssignment records one port's resolved host/container binding, handed
// to BeforeStartHook so plugins (e.g. service discovery) can wrap cmd with
// knowledge of the assigned addresses.
type PortAssignment struct {
	Name          string
	HostIP        string
	HostPort      int
	ContainerPort string
}

// CallbackBindable is implemented by a plugin that needs a live
// ControllerCallback to re-enter the controller mid-hook (requires,
// execresource, gitreceive). Root rebinds every bindable plugin to the
// Interface backing each new writable transaction; this is safe without
// locking because the store admits only one writer at a time, so exactly
// one bound Interface is ever live.
type CallbackBindable interface {
	SetCallback(cb ControllerCallback)
}

// ControllerCallback is the re-entry point plugins use to call back into
// the controller. The controller's Interface type satisfies this
// structurally; plugin never imports the controller package directly.
type ControllerCallback interface {
	// ResumeSetup re-invokes setup_version on a held service's deferred
	// version, used by requires to re-activate dependents.
	ResumeSetup(ctx context.Context, pc *progress.Context, deploymentID, serviceName string) error

	// RunOnce synthesizes a runcfg for service's latest version with cmd
	// substituted in, runs before_once, and drives the backend's Once
	// call to completion, used by execresource's Run directives.
	RunOnce(ctx context.Context, pc *progress.Context, deploymentID, serviceName string, cmd []string) error

	// SetResource stores a resource fact and fires on_resource_changed,
	// used by execresource to record a completed run job.
	SetResource(ctx context.Context, pc *progress.Context, deploymentID, name string, value interface{}) error

	// TrySetupResource runs the setup_resource hook chain for a named
	// resource, letting a plugin (e.g. dbprovision) claim responsibility
	// for provisioning it instead of running a container job.
	TrySetupResource(ctx context.Context, pc *progress.Context, deploymentID, name string, options map[string]interface{}) (bool, error)

	// SetService places a service definition, used by gitreceive and
	// initsystem to install their own infrastructure services into the
	// system deployment at startup.
	SetService(ctx context.Context, pc *progress.Context, deploymentID, name string, raw map[string]interface{}, force bool) (*models.Service, error)
}
