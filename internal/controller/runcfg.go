package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const (
	discoverdPort = "1111"
	etcdPort      = "4001"
)

// synthesizeRuncfg runs the ten-step runcfg synthesis algorithm against
// version's canonical definition and returns the resolved runcfg, the
// (possibly plugin-rewritten) definition, and the port assignments table
// before_start and the service-discovery plugin both need.
func (root *Root) synthesizeRuncfg(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (*backend.Runcfg, *models.CanonicalDefinition, map[string]plugin.PortAssignment, error) {
	// Step 1: deep copy, then let plugins rewrite in place.
	def := version.Definition.Copy()
	if err := root.Dispatcher.RunRewriteService(ctx, pc, dep, svc, version, def); err != nil {
		return nil, nil, nil, models.DeployError("rewrite_service failed", err)
	}

	hostIP, err := root.HostIP()
	if err != nil {
		return nil, nil, nil, models.DeployError("resolve host ip", err)
	}

	// Step 2: template-variable map, seeded then handed to provide_vars.
	localRepl := map[string]string{
		"HOST":      hostIP,
		"DEPLOY_ID": dep.ID,
	}
	if err := root.Dispatcher.RunProvideVars(ctx, pc, svc, version, def, localRepl); err != nil {
		return nil, nil, nil, models.DeployError("provide_vars failed", err)
	}

	// Step 3: runcfg skeleton.
	cfg := &backend.Runcfg{
		Image:      def.Image,
		Cmd:        append([]string(nil), def.Cmd...),
		Entrypoint: append([]string(nil), def.Entrypoint...),
		Privileged: def.Privileged,
		Env:        map[string]string{},
		Volumes:    map[string]string{},
		Ports:      map[string][]backend.PortBinding{},
	}

	// Step 4: volumes.
	for name, containerPath := range def.Volumes {
		hostPath := filepath.Join(root.VolumeBase, dep.ID, svc.Name, name)
		if err := os.MkdirAll(hostPath, 0755); err != nil {
			return nil, nil, nil, models.DeployError(fmt.Sprintf("create volume dir %s", hostPath), err)
		}
		cfg.Volumes[hostPath] = containerPath
	}

	// Step 5: ports.
	portAssignments := map[string]plugin.PortAssignment{}
	portEnv := map[string]string{}
	for portName, spec := range def.Ports {
		hostPort, err := assignHostPort(dep)
		if err != nil {
			return nil, nil, nil, err
		}
		containerPort := spec.Port
		if spec.Assign {
			containerPort = hostPort
		}
		containerPortStr := strconv.Itoa(containerPort)

		portAssignments[portName] = plugin.PortAssignment{
			Name:          portName,
			HostIP:        hostIP,
			HostPort:      hostPort,
			ContainerPort: containerPortStr,
		}
		cfg.Ports[containerPortStr] = append(cfg.Ports[containerPortStr], backend.PortBinding{HostIP: hostIP, HostPort: hostPort})

		upper := strings.ToUpper(portName)
		suffix := ""
		if upper != "" {
			suffix = "_" + upper
		}
		sdAddr := fmt.Sprintf("%s:%d", hostIP, hostPort)
		sdName := dep.ID + ":" + svc.Name
		if portName != "" {
			sdName += ":" + portName
		}

		localRepl["PORT"+suffix] = containerPortStr
		localRepl["SD"+suffix] = sdAddr
		localRepl["SD"+suffix+"_PORT"] = strconv.Itoa(hostPort)
		localRepl["SD"+suffix+"_HOST"] = hostIP
		localRepl["SD"+suffix+"_NAME"] = sdName

		portEnv["PORT"+suffix] = containerPortStr
		portEnv["SD"+suffix] = sdAddr
		portEnv["SD"+suffix+"_PORT"] = strconv.Itoa(hostPort)
		portEnv["SD"+suffix+"_HOST"] = hostIP
		portEnv["SD"+suffix+"_NAME"] = sdName
	}

	// Step 6: wan_map entries append extra bindings to the same container port.
	for _, wan := range def.WanMap {
		pa, ok := portAssignments[wan.PortName]
		if !ok {
			return nil, nil, nil, models.InvalidDefinition(fmt.Sprintf("wan_map references unknown port %q", wan.PortName))
		}
		cfg.Ports[pa.ContainerPort] = append(cfg.Ports[pa.ContainerPort], backend.PortBinding{HostIP: wan.IP, HostPort: wan.Port})
	}

	// Step 7: environment.
	env := map[string]string{}
	if svcEnv, ok := version.Globals.Env[svc.Name]; ok {
		for k, v := range svcEnv {
			env[k] = v
		}
	}
	env["DEPLOY_ID"] = dep.ID
	env["DISCOVERD"] = hostIP + ":" + discoverdPort
	env["ETCD"] = "http://" + hostIP + ":" + etcdPort
	for k, v := range portEnv {
		env[k] = v
	}
	for k, v := range def.Env {
		env[k] = v
	}
	if err := root.Dispatcher.RunProvideEnvironment(ctx, pc, dep, def, env); err != nil {
		return nil, nil, nil, models.DeployError("provide_environment failed", err)
	}
	cfg.Env = applyTemplateToMap(env, localRepl)

	// Step 8: cmd/entrypoint template substitution.
	cfg.Cmd = applyTemplateToSlice(cfg.Cmd, localRepl)
	cfg.Entrypoint = applyTemplateToSlice(cfg.Entrypoint, localRepl)

	// Step 9: name assignment.
	versionNumber := len(svc.Versions) + 1
	instanceNumber := svc.NextInstanceNumber()
	cfg.Name = fmt.Sprintf("%s-%s-%d-%d", dep.ID, svc.Name, versionNumber, instanceNumber)

	// Step 10: last-chance mutation.
	if err := root.Dispatcher.RunBeforeStart(ctx, pc, svc, def, cfg, portAssignments); err != nil {
		return nil, nil, nil, models.DeployError("before_start failed", err)
	}

	return cfg, def, portAssignments, nil
}
