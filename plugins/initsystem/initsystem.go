// Package initsystem keeps a service instance running across host reboots
// on a single-host install. The original (upstart.py) wrote an upstart
// initscript per service and per deployment so `initctl start
// my-deployment` would bring every instance back up; this adapts the same
// "declarative per-instance unit, enabled at boot" idea to systemd, the
// init system an idiomatic single-host Go daemon targets today, writing
// one `vessel-<name>.service` unit per container that simply execs
// `docker start -a <name>` and removing it on teardown.
package initsystem

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const pluginName = "initsystem"

const unitTemplate = `[Unit]
Description=vessel instance {{.Name}}
After=docker.service
Requires=docker.service

[Service]
ExecStart=/usr/bin/docker start -a {{.Name}}
ExecStop=/usr/bin/docker stop {{.Name}}
Restart=on-failure

[Install]
WantedBy=multi-user.target
`

var unitTmpl = template.Must(template.New("unit").Parse(unitTemplate))

// Plugin writes and enables one systemd unit per instance. unitDir is
// normally /etc/systemd/system; an empty unitDir disables the plugin,
// which is the right default for non-systemd hosts and for tests.
type Plugin struct {
	unitDir string
	runSystemctl func(args ...string) error
}

func New(unitDir string) *Plugin {
	return &Plugin{
		unitDir: unitDir,
		runSystemctl: func(args ...string) error {
			return exec.Command("systemctl", args...).Run()
		},
	}
}

func (p *Plugin) Name() string { return pluginName }

// BeforeStart writes and enables the unit for the about-to-start instance.
// Docker itself starts the container (createContainer drives Prepare/Start
// directly); the unit exists purely so the instance survives a reboot.
func (p *Plugin) BeforeStart(ctx context.Context, pc *progress.Context, svc *models.Service, def *models.CanonicalDefinition, cfg *backend.Runcfg, portAssignments map[string]plugin.PortAssignment) (bool, error) {
	if p.unitDir == "" {
		return false, nil
	}
	unitPath := filepath.Join(p.unitDir, unitName(cfg.Name))
	f, err := os.Create(unitPath)
	if err != nil {
		return false, fmt.Errorf("initsystem: create unit file: %w", err)
	}
	err = unitTmpl.Execute(f, struct{ Name string }{cfg.Name})
	f.Close()
	if err != nil {
		return false, fmt.Errorf("initsystem: render unit file: %w", err)
	}
	if err := p.runSystemctl("enable", unitName(cfg.Name)); err != nil {
		pc.Log("initsystem: enable %s failed: %v", cfg.Name, err)
	}
	pc.Log("wrote systemd unit for %s", cfg.Name)
	return false, nil
}

// BeforeTerminate removes the unit for an instance about to be torn down.
func (p *Plugin) BeforeTerminate(ctx context.Context, pc *progress.Context, svc *models.Service, inst *models.ServiceInstance) (bool, error) {
	if inst.Name == "" {
		return false, nil
	}
	if err := p.RemoveUnit(inst.Name); err != nil {
		pc.Log("initsystem: remove unit for %s failed: %v", inst.Name, err)
	}
	return false, nil
}

// RemoveUnit disables and deletes the unit for name, called by the
// controller when an instance is torn down.
func (p *Plugin) RemoveUnit(name string) error {
	if p.unitDir == "" {
		return nil
	}
	_ = p.runSystemctl("disable", unitName(name))
	path := filepath.Join(p.unitDir, unitName(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("initsystem: remove unit file: %w", err)
	}
	return nil
}

func unitName(instanceName string) string {
	return "vessel-" + instanceName + ".service"
}
