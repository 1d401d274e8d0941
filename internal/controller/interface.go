package controller

import (
	"context"
	"fmt"

	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/canon"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/internal/store"
	"github.com/vessel-labs/vessel/models"
)

// Interface is the per-connection, per-task facade (C6). Every controller
// operation opens one from Root.Interface, performs its work against the
// open transaction, and must Commit or Abort before discarding it.
type Interface struct {
	root *Root
	tx   *store.Tx
}

// Commit persists every change made through this Interface.
func (c *Interface) Commit() error { return c.tx.Commit() }

// Abort discards every change made through this Interface.
func (c *Interface) Abort() error { return c.tx.Abort() }

// CreateDeployment creates a Deployment, or returns the existing one if
// fail is false. If fail is true and id already exists, returns
// ErrAlreadyExists.
func (c *Interface) CreateDeployment(ctx context.Context, pc *progress.Context, id string, fail bool) (*models.Deployment, error) {
	existing, ok, err := c.tx.GetDeployment(id)
	if err != nil {
		return nil, err
	}
	if ok {
		if fail {
			return nil, models.ErrAlreadyExists
		}
		return existing, nil
	}

	dep := models.NewDeployment(id)
	if _, err := c.root.Dispatcher.RunOnCreateDeployment(ctx, pc, dep); err != nil {
		return nil, err
	}
	if err := c.tx.PutDeployment(dep); err != nil {
		return nil, err
	}
	return dep, nil
}

// getDeployment loads an existing deployment or fails with ErrNoSuchDeployment.
func (c *Interface) getDeployment(id string) (*models.Deployment, error) {
	dep, ok, err := c.tx.GetDeployment(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrNoSuchDeployment
	}
	return dep, nil
}

// SetGlobals replaces deployment_id's globals if they differ structurally
// from what is stored, firing on_globals_changed. changed tells the caller
// whether any service should be force-rebuilt.
func (c *Interface) SetGlobals(ctx context.Context, pc *progress.Context, deploymentID string, globals *models.Globals) (changed bool, err error) {
	dep, err := c.getDeployment(deploymentID)
	if err != nil {
		return false, err
	}
	if dep.Globals.Equal(globals) {
		return false, nil
	}
	dep.Globals = globals.Copy()
	if _, err := c.root.Dispatcher.RunOnGlobalsChanged(ctx, pc, dep); err != nil {
		return false, err
	}
	if err := c.tx.PutDeployment(dep); err != nil {
		return false, err
	}
	return true, nil
}

// SetService is the main entry point for service placement (§4.6).
func (c *Interface) SetService(ctx context.Context, pc *progress.Context, deploymentID, name string, raw map[string]interface{}, force bool) (*models.Service, error) {
	dep, err := c.getDeployment(deploymentID)
	if err != nil {
		return nil, err
	}

	result, err := canon.Canonicalize(name, raw)
	if err != nil {
		return nil, err
	}
	effectiveName := result.EffectiveName

	svc, exists := dep.Services[effectiveName]
	if exists {
		if latest := svc.Latest(); latest != nil && !force && latest.Definition.Equal(result.Definition) {
			pc.Log("service %s has not changed, skipping", effectiveName)
			return svc, nil
		}
	} else {
		svc = dep.EnsureService(effectiveName)
	}

	version := svc.Derive(result.Definition, dep.Globals)

	if err := c.setupVersion(ctx, pc, dep, svc, version); err != nil {
		return nil, err
	}

	if err := c.tx.PutDeployment(dep); err != nil {
		return nil, err
	}
	return svc, nil
}

// setupVersion runs the setup plugin chain; if no plugin claims the
// version it creates the container directly. post_setup always runs
// afterward.
func (c *Interface) setupVersion(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) error {
	claimed, err := c.root.Dispatcher.RunSetup(ctx, pc, dep, svc, version)
	if err != nil {
		return err
	}
	if !claimed {
		if err := c.createContainer(ctx, pc, dep, svc, version); err != nil {
			return err
		}
	}
	if _, err := c.root.Dispatcher.RunPostSetup(ctx, pc, dep, svc, version); err != nil {
		return err
	}
	return nil
}

// createContainer synthesizes a runcfg and drives the backend to bring up
// the new instance, tearing down any previous one first.
func (c *Interface) createContainer(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) error {
	cfg, _, _, err := c.root.synthesizeRuncfg(ctx, pc, dep, svc, version)
	if err != nil {
		return err
	}

	handle, err := c.root.Backend.Prepare(ctx, *cfg)
	if err != nil {
		return models.DeployError("backend prepare failed", err)
	}

	for _, inst := range append([]*models.ServiceInstance(nil), svc.Instances...) {
		if _, err := c.root.Dispatcher.RunBeforeTerminate(ctx, pc, svc, inst); err != nil {
			return err
		}
		if err := c.root.Backend.Terminate(ctx, backend.Handle(inst.BackendHandle)); err != nil {
			return models.DeployError("backend terminate failed", err)
		}
		svc.RemoveInstance(inst.ID)
	}

	handle, err = c.root.Backend.Start(ctx, *cfg, handle)
	if err != nil {
		return models.DeployError("backend start failed", err)
	}

	svc.AppendVersion(version)
	inst := svc.AppendInstance(models.GenerateID("instance"), string(handle), cfg.Name)

	pc.Log("started container %s for %s/%s", inst.BackendHandle, dep.ID, svc.Name)
	return nil
}

// RunOnce synthesizes a runcfg for service's latest version with cmd
// substituted in, runs before_once, and drives the backend to completion.
// It does not touch the service's persisted instance list: a Run
// directive's container is a one-shot job, not a running instance.
func (c *Interface) RunOnce(ctx context.Context, pc *progress.Context, deploymentID, serviceName string, cmd []string) error {
	dep, err := c.getDeployment(deploymentID)
	if err != nil {
		return err
	}
	svc := dep.Service(serviceName)
	if svc == nil || svc.Latest() == nil {
		return models.InvalidInput("run-once: no such service or no version: " + serviceName)
	}
	version := svc.Latest()

	cfg, def, _, err := c.root.synthesizeRuncfg(ctx, pc, dep, svc, version)
	if err != nil {
		return err
	}
	cfg.Cmd = cmd

	if err := c.root.Dispatcher.RunBeforeOnce(ctx, pc, svc, def, cfg); err != nil {
		return models.DeployError("before_once failed", err)
	}

	exitCode, err := c.root.Backend.Once(ctx, *cfg)
	if err != nil {
		return models.DeployError("backend once failed", err)
	}
	if exitCode != 0 {
		return models.DeployError(fmt.Sprintf("run job %s/%s exited %d", deploymentID, serviceName, exitCode), nil)
	}
	return c.tx.PutDeployment(dep)
}

// ProvideData accepts an artifact upload for a held or active service,
// firing on_data_provided so the claiming plugin (e.g. the app build
// pipeline) can release its hold.
func (c *Interface) ProvideData(ctx context.Context, pc *progress.Context, deploymentID, serviceName string, files map[string][]byte, info map[string]interface{}) error {
	dep, err := c.getDeployment(deploymentID)
	if err != nil {
		return err
	}
	svc := dep.Service(serviceName)
	if svc == nil {
		return models.InvalidInput("no such service: " + serviceName)
	}
	claimed, err := c.root.Dispatcher.RunOnDataProvided(ctx, pc, dep, svc, files, info)
	if err != nil {
		return err
	}
	if claimed {
		version := svc.HeldVersion
		if version == nil {
			version = svc.Latest()
		}
		if version != nil {
			if err := c.setupVersion(ctx, pc, dep, svc, version); err != nil {
				return err
			}
		}
	}
	return c.tx.PutDeployment(dep)
}

// SetResource stores a resource fact on the deployment, always firing
// on_resource_changed regardless of whether the value actually changed.
func (c *Interface) SetResource(ctx context.Context, pc *progress.Context, deploymentID, name string, value interface{}) error {
	dep, err := c.getDeployment(deploymentID)
	if err != nil {
		return err
	}
	dep.SetResource(name, value)
	if _, err := c.root.Dispatcher.RunOnResourceChanged(ctx, pc, dep, name, value); err != nil {
		return err
	}
	return c.tx.PutDeployment(dep)
}

// TrySetupResource runs the setup_resource hook chain, persisting any
// mutation a claiming plugin made to dep as a side effect.
func (c *Interface) TrySetupResource(ctx context.Context, pc *progress.Context, deploymentID, name string, options map[string]interface{}) (bool, error) {
	dep, err := c.getDeployment(deploymentID)
	if err != nil {
		return false, err
	}
	claimed, err := c.root.Dispatcher.RunSetupResource(ctx, pc, dep, name, options)
	if err != nil {
		return false, err
	}
	if err := c.tx.PutDeployment(dep); err != nil {
		return false, err
	}
	return claimed, nil
}

// Deployment returns the current stored state of a deployment (used by the
// /list HTTP endpoint).
func (c *Interface) Deployment(id string) (*models.Deployment, error) {
	return c.getDeployment(id)
}

// DeploymentIDs lists every deployment currently stored.
func (c *Interface) DeploymentIDs() ([]string, error) {
	return c.tx.DeploymentIDs()
}

// ResumeSetup re-invokes setup_version on a held service's deferred
// version, persisting the result. It is the callback the requires plugin
// uses to re-activate dependents once a requirement becomes ready; the
// requires plugin itself guards against a dependency cycle recursing
// through this entry point forever by tracking the chain of names it is
// currently resuming and erroring out the moment one reappears (see its
// own path field).
func (c *Interface) ResumeSetup(ctx context.Context, pc *progress.Context, deploymentID, serviceName string) error {
	dep, err := c.getDeployment(deploymentID)
	if err != nil {
		return err
	}
	svc := dep.Service(serviceName)
	if svc == nil || svc.HeldVersion == nil {
		return nil
	}
	version := svc.HeldVersion
	if err := c.setupVersion(ctx, pc, dep, svc, version); err != nil {
		return err
	}
	return c.tx.PutDeployment(dep)
}
