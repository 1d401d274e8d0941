// Package app implements the 12-factor "build from source" workflow: a
// service version declared with a `git` kwarg is held until the client
// uploads an application archive, which is built into a slug via a
// slugbuilder container and then run via a slugrunner image. Grounded on
// original_source/deploylib/plugins/app.py; the slug is stored and served
// through the discovery-resolved "shelf" service exactly as the original
// does, and the build step's "pipe archive into a container over stdin"
// design is kept, using the Docker client directly since building is an
// operation the backend's Prepare/Start/Once interface has no room for.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const (
	pluginName          = "app"
	gitKwarg            = "git"
	defaultBuilderImage = "vessel/slugbuilder"
	defaultRunnerImage  = "vessel/slugrunner"
)

// Plugin runs the hold/build/run lifecycle for git-deployed services.
type Plugin struct {
	discovery    discovery.Adapter
	dockerClient *client.Client
	builderImage string
	runnerImage  string
}

// New returns an app plugin. builderImage overrides the slugbuilder image
// (falls back to defaultBuilderImage, matching the SLUGBUILDER config value
// the original reads from the environment); docker is used only to drive
// the one-shot build step, not to run the resulting slugrunner container.
func New(disc discovery.Adapter, docker *client.Client, builderImage string) *Plugin {
	if builderImage == "" {
		builderImage = defaultBuilderImage
	}
	return &Plugin{
		discovery:    disc,
		dockerClient: docker,
		builderImage: builderImage,
		runnerImage:  defaultRunnerImage,
	}
}

func (p *Plugin) Name() string { return pluginName }

// Setup holds a service back the first time it declares a `git` kwarg with
// no build attached yet, asking the client to upload code via /upload.
func (p *Plugin) Setup(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion) (bool, error) {
	if _, ok := version.Definition.Kwargs[gitKwarg]; !ok {
		return false, nil
	}
	if _, ok := version.Data["app_version_id"]; ok {
		return false, nil
	}
	if err := svc.Hold("app code not available", version); err != nil {
		return false, err
	}
	pc.Log("service %s held awaiting app code upload", svc.Name)
	return true, nil
}

// RewriteService converts a git-declared service to run as a slugrunner:
// the entrypoint/cmd are replaced with the runner's own, and the original
// cmd is passed through as its argument.
func (p *Plugin) RewriteService(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, version *models.ServiceVersion, def *models.CanonicalDefinition) (bool, error) {
	if _, ok := version.Definition.Kwargs[gitKwarg]; !ok {
		return false, nil
	}
	env := p.buildEnv(dep.ID, svc, version, def)
	for k, v := range env {
		def.Env[k] = v
	}
	def.Image = p.runnerImage
	def.Entrypoint = []string{"/runner/init"}
	def.Cmd = append([]string{"start"}, def.Cmd...)
	return true, nil
}

// OnDataProvided receives the uploaded archive under the "app" key, builds
// it into a slug, and records the build id on the held (or a freshly
// derived) version. The caller re-runs setup on this version afterward to
// release the hold.
func (p *Plugin) OnDataProvided(ctx context.Context, pc *progress.Context, dep *models.Deployment, svc *models.Service, files map[string][]byte, info map[string]interface{}) (bool, error) {
	archive, ok := files["app"]
	if !ok {
		return false, nil
	}
	buildVersion, _ := info["version"].(string)
	if buildVersion == "" {
		return false, models.InvalidInput("app: upload missing version")
	}

	var version *models.ServiceVersion
	if svc.Held {
		version = svc.HeldVersion
	} else {
		latest := svc.Latest()
		version = latest.Derive(latest.Definition.Copy(), latest.Globals)
		svc.HeldVersion = version
	}
	version.Data["app_version_id"] = buildVersion

	if err := p.build(ctx, dep.ID, svc, version, archive); err != nil {
		return false, models.DeployError("app: build "+svc.Name, err)
	}
	pc.Log("built slug %s for %s", buildVersion, svc.Name)
	return true, nil
}

func (p *Plugin) build(ctx context.Context, deploymentID string, svc *models.Service, version *models.ServiceVersion, archive []byte) error {
	slugURL, err := p.slugURL(deploymentID, svc, version)
	if err != nil {
		return err
	}
	env := p.buildEnv(deploymentID, svc, version, version.Definition)
	env["SLUG_URL"] = slugURL

	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, fmt.Sprintf("%s=%s", k, v))
	}

	resp, err := p.dockerClient.ContainerCreate(ctx, &dockercontainer.Config{
		Image:        p.builderImage,
		Env:          envList,
		Cmd:          []string{slugURL},
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		User:         "root",
	}, nil, nil, nil, "")
	if err != nil {
		return fmt.Errorf("create builder container: %w", err)
	}
	defer p.dockerClient.ContainerRemove(ctx, resp.ID, dockercontainer.RemoveOptions{Force: true})

	attach, err := p.dockerClient.ContainerAttach(ctx, resp.ID, dockercontainer.AttachOptions{
		Stream: true, Stdin: true, Stdout: true, Stderr: true,
	})
	if err != nil {
		return fmt.Errorf("attach builder container: %w", err)
	}
	defer attach.Close()

	if err := p.dockerClient.ContainerStart(ctx, resp.ID, dockercontainer.StartOptions{}); err != nil {
		return fmt.Errorf("start builder container: %w", err)
	}

	if _, err := io.Copy(attach.Conn, bytes.NewReader(archive)); err != nil {
		return fmt.Errorf("stream archive to builder: %w", err)
	}
	attach.CloseWrite()

	statusCh, errCh := p.dockerClient.ContainerWait(ctx, resp.ID, dockercontainer.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("wait builder container: %w", err)
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("builder exited %d", status.StatusCode)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *Plugin) slugURL(deploymentID string, svc *models.Service, version *models.ServiceVersion) (string, error) {
	shelfAddr, ok := p.discovery.Discover("shelf")
	if !ok {
		return "", fmt.Errorf("shelf service not registered")
	}
	buildVersion, _ := version.Data["app_version_id"].(string)
	return fmt.Sprintf("http://%s/slugs/%s/%s:%s", shelfAddr, deploymentID, svc.Name, buildVersion), nil
}

func (p *Plugin) buildEnv(deploymentID string, svc *models.Service, version *models.ServiceVersion, def *models.CanonicalDefinition) map[string]string {
	env := map[string]string{
		"APP_ID": deploymentID,
	}
	if url, err := p.slugURL(deploymentID, svc, version); err == nil {
		env["SLUG_URL"] = url
	}
	for k, v := range def.Env {
		env[k] = v
	}
	return env
}
