// Package once implements the `wait` service key: block setup until a TCP
// address becomes reachable. Grounded on
// original_source/deploylib/plugins/wait.py, whose own docstring warns it
// "really should not be used" outside initial bootstrap; kept for the same
// narrow purpose here.
package once

import (
	"context"
	"net"
	"time"

	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const pluginName = "once"

// Plugin polls a `wait: "host:port"` address until it accepts a connection
// or the deadline elapses, letting the initial bootstrap order a handful of
// infrastructure services without full service discovery.
type Plugin struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

func New() *Plugin {
	return &Plugin{Timeout: 30 * time.Second, PollInterval: 250 * time.Millisecond}
}

func (p *Plugin) Name() string { return pluginName }

// Priority runs before the default-priority plugins, since other setup
// hooks may assume the waited-for dependency is already reachable.
func (p *Plugin) Priority() int { return -100 }

func (p *Plugin) Setup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (bool, error) {
	addr, _ := version.Definition.Kwargs["wait"].(string)
	if addr == "" {
		return false, nil
	}

	pc.Log("waiting for %s", addr)
	deadline := time.Now().Add(p.Timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, p.PollInterval)
		if err == nil {
			conn.Close()
			return false, nil
		}
		if time.Now().After(deadline) {
			return false, models.DeployError("timed out waiting for "+addr, err)
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(p.PollInterval):
		}
	}
}
