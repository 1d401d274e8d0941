package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// DockerBackend drives containers through the Docker Engine API. It is the
// default Backend implementation used by the daemon.
type DockerBackend struct {
	cli *client.Client
}

// NewDockerBackend connects to the Docker daemon at host (e.g.
// unix:///var/run/docker.sock or tcp://127.0.0.1:2375).
func NewDockerBackend(host string) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("backend: connect to docker at %s: %w", host, err)
	}
	return &DockerBackend{cli: cli}, nil
}

func (b *DockerBackend) Prepare(ctx context.Context, cfg Runcfg) (Handle, error) {
	if existing, err := b.cli.ContainerInspect(ctx, cfg.Name); err == nil {
		_ = b.cli.ContainerRemove(ctx, existing.ID, container.RemoveOptions{Force: true})
	}

	containerConfig := buildContainerConfig(cfg)
	hostConfig := buildHostConfig(cfg)

	resp, err := b.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, cfg.Name)
	if err != nil {
		return "", fmt.Errorf("backend: create container %s: %w", cfg.Name, err)
	}
	return Handle(resp.ID), nil
}

func (b *DockerBackend) Start(ctx context.Context, cfg Runcfg, handle Handle) (Handle, error) {
	if err := b.cli.ContainerStart(ctx, string(handle), container.StartOptions{}); err != nil {
		return handle, fmt.Errorf("backend: start container %s: %w", handle, err)
	}
	return handle, nil
}

func (b *DockerBackend) Terminate(ctx context.Context, handle Handle) error {
	if handle == "" {
		return nil
	}
	err := b.cli.ContainerRemove(ctx, string(handle), container.RemoveOptions{Force: true})
	if err == nil || client.IsErrNotFound(err) {
		return nil
	}
	return fmt.Errorf("backend: terminate container %s: %w", handle, err)
}

func (b *DockerBackend) Once(ctx context.Context, cfg Runcfg) (int, error) {
	containerConfig := buildContainerConfig(cfg)
	hostConfig := buildHostConfig(cfg)

	resp, err := b.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, cfg.Name)
	if err != nil {
		return -1, fmt.Errorf("backend: create once-job %s: %w", cfg.Name, err)
	}
	defer func() {
		_ = b.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := b.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return -1, fmt.Errorf("backend: start once-job %s: %w", cfg.Name, err)
	}

	statusCh, errCh := b.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return -1, fmt.Errorf("backend: wait once-job %s: %w", cfg.Name, err)
		}
	case result := <-statusCh:
		return int(result.StatusCode), nil
	}
	return -1, errors.New("backend: once-job wait returned no result")
}

func (b *DockerBackend) Status(ctx context.Context, handle Handle) (Status, error) {
	info, err := b.cli.ContainerInspect(ctx, string(handle))
	if err != nil {
		if client.IsErrNotFound(err) {
			return StatusStopped, nil
		}
		return "", fmt.Errorf("backend: inspect %s: %w", handle, err)
	}
	if info.State != nil && info.State.Running {
		return StatusRunning, nil
	}
	return StatusStopped, nil
}

// StreamLogs returns the backend's stdout/stderr log stream for an instance,
// used by the HTTP edge's plugin-driven log endpoints.
func (b *DockerBackend) StreamLogs(ctx context.Context, handle Handle) (io.ReadCloser, error) {
	return b.cli.ContainerLogs(ctx, string(handle), container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
}

func buildContainerConfig(cfg Runcfg) *container.Config {
	c := &container.Config{
		Image:      cfg.Image,
		Entrypoint: cfg.Entrypoint,
		Cmd:        cfg.Cmd,
		Env:        make([]string, 0, len(cfg.Env)),
	}
	for k, v := range cfg.Env {
		c.Env = append(c.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if len(cfg.Ports) > 0 {
		c.ExposedPorts = make(nat.PortSet)
		for containerPort := range cfg.Ports {
			c.ExposedPorts[nat.Port(containerPort+"/tcp")] = struct{}{}
		}
	}
	return c
}

func buildHostConfig(cfg Runcfg) *container.HostConfig {
	h := &container.HostConfig{
		Privileged:   cfg.Privileged,
		PortBindings: make(nat.PortMap),
		Links:        cfg.Links,
	}
	for containerPort, bindings := range cfg.Ports {
		port := nat.Port(containerPort + "/tcp")
		for _, b := range bindings {
			h.PortBindings[port] = append(h.PortBindings[port], nat.PortBinding{
				HostIP:   b.HostIP,
				HostPort: fmt.Sprintf("%d", b.HostPort),
			})
		}
	}
	for hostPath, containerPath := range cfg.Volumes {
		h.Mounts = append(h.Mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: hostPath,
			Target: containerPath,
		})
	}
	return h
}
