// Package controller implements the controller interface (C6) and
// controller root (C7): the per-connection facade that drives deployment,
// service placement, runcfg synthesis and the backend, and the
// process-wide singleton that owns the store, backend, plugin registry and
// discovery adapter those connections share.
package controller

import (
	"context"
	"fmt"

	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/internal/store"
	"github.com/vessel-labs/vessel/models"
)

// wellKnownAPIName is the discovery registration name the controller root
// advertises itself under at startup, so containers reach it the same way
// they reach any other discovered service.
const wellKnownAPIName = "controller"

// Root is the process-wide singleton (C7): one store, one backend, one
// plugin registry and dispatcher, one discovery adapter, shared by every
// Interface opened from it.
type Root struct {
	Store      *store.Store
	Backend    backend.Backend
	Registry   *plugin.Registry
	Dispatcher *plugin.Dispatcher
	Discovery  discovery.Adapter

	VolumeBase     string
	HostIPOverride string
	APIAddr        string
}

// NewRoot assembles a Root from its already-constructed dependencies. The
// caller (cmd/vesseld) is responsible for opening the store, constructing
// the backend, and registering plugins before calling this.
func NewRoot(st *store.Store, be backend.Backend, registry *plugin.Registry, disc discovery.Adapter, volumeBase, hostIPOverride, apiAddr string) *Root {
	return &Root{
		Store:          st,
		Backend:        be,
		Registry:       registry,
		Dispatcher:     plugin.NewDispatcher(registry),
		Discovery:      disc,
		VolumeBase:     volumeBase,
		HostIPOverride: hostIPOverride,
		APIAddr:        apiAddr,
	}
}

// Start registers the controller with the discovery adapter under its
// well-known name and runs on_system_init across the plugin chain, matching
// §4.7's "registration on startup" contract. on_system_init plugins (e.g.
// gitreceive) install their own infrastructure services into the
// distinguished system deployment, so Start ensures that deployment exists
// before the chain runs and commits the result as one transaction.
func (r *Root) Start(ctx context.Context, pc *progress.Context) error {
	if r.APIAddr != "" {
		if err := r.Discovery.Register(wellKnownAPIName, r.APIAddr); err != nil {
			return fmt.Errorf("controller: register with discovery: %w", err)
		}
	}

	iface, err := r.Interface(true)
	if err != nil {
		return fmt.Errorf("controller: open interface for system init: %w", err)
	}
	if _, err := iface.CreateDeployment(ctx, pc, models.SystemDeploymentID, false); err != nil {
		_ = iface.Abort()
		return err
	}
	if _, err := r.Dispatcher.RunOnSystemInit(ctx, pc); err != nil {
		_ = iface.Abort()
		return err
	}
	return iface.Commit()
}

// Interface opens a new store connection and returns an Interface scoped to
// it. writable must be true for any operation that mutates state. Opening a
// writable Interface rebinds every CallbackBindable plugin to it, so a
// plugin hook re-entering the controller mid-operation (requires'
// ResumeSetup, execresource's RunOnce) uses the same transaction the
// triggering operation is already running under.
func (r *Root) Interface(writable bool) (*Interface, error) {
	tx, err := r.Store.Begin(writable)
	if err != nil {
		return nil, err
	}
	iface := &Interface{root: r, tx: tx}
	if writable {
		r.Registry.BindCallback(iface)
	}
	return iface, nil
}

// HostIP resolves the host's LAN IP used throughout runcfg synthesis.
func (r *Root) HostIP() (string, error) {
	return discovery.HostIP(r.HostIPOverride)
}
