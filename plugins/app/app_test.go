package app

import (
	"context"
	"testing"

	discoveryadapter "github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

func drain(pc *progress.Context) {
	go func() {
		for range pc.Events() {
		}
	}()
}

func newGitVersion() (*models.Service, *models.ServiceVersion) {
	svc := models.NewService("web")
	def := models.NewCanonicalDefinition()
	def.Kwargs["git"] = "."
	version := svc.Derive(def, models.NewGlobals())
	return svc, version
}

func TestSetupHoldsServiceAwaitingUpload(t *testing.T) {
	p := New(discoveryadapter.NewInMemoryAdapter(), nil, "")
	dep := models.NewDeployment("app")
	svc, version := newGitVersion()
	pc := progress.New()
	drain(pc)

	claimed, err := p.Setup(context.Background(), pc, dep, svc, version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("expected app plugin to claim a fresh git-declared service")
	}
	if !svc.Held {
		t.Fatal("expected service to be held")
	}
}

func TestSetupIgnoresNonGitServices(t *testing.T) {
	p := New(discoveryadapter.NewInMemoryAdapter(), nil, "")
	dep := models.NewDeployment("app")
	svc := models.NewService("web")
	version := svc.Derive(models.NewCanonicalDefinition(), models.NewGlobals())
	pc := progress.New()
	drain(pc)

	claimed, err := p.Setup(context.Background(), pc, dep, svc, version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("expected app plugin to ignore a service with no git kwarg")
	}
}

func TestSetupReleasesHoldOnceCodeIsBuilt(t *testing.T) {
	p := New(discoveryadapter.NewInMemoryAdapter(), nil, "")
	dep := models.NewDeployment("app")
	svc, version := newGitVersion()
	version.Data["app_version_id"] = "v1"
	pc := progress.New()
	drain(pc)

	claimed, err := p.Setup(context.Background(), pc, dep, svc, version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("expected app plugin not to re-hold a version with a build attached")
	}
}

func TestRewriteServiceSwapsInSlugRunner(t *testing.T) {
	disc := discoveryadapter.NewInMemoryAdapter()
	disc.Register("shelf", "10.0.0.9:4000")
	p := New(disc, nil, "")
	dep := models.NewDeployment("app")
	svc, version := newGitVersion()
	def := version.Definition.Copy()
	def.Cmd = []string{"serve"}

	pc := progress.New()
	drain(pc)

	claimed, err := p.RewriteService(context.Background(), pc, dep, svc, version, def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("expected RewriteService to claim a git-declared version")
	}
	if def.Image != defaultRunnerImage {
		t.Errorf("expected image %q, got %q", defaultRunnerImage, def.Image)
	}
	if len(def.Entrypoint) != 1 || def.Entrypoint[0] != "/runner/init" {
		t.Errorf("expected runner entrypoint, got %v", def.Entrypoint)
	}
	if len(def.Cmd) != 2 || def.Cmd[0] != "start" || def.Cmd[1] != "serve" {
		t.Errorf("expected cmd to be [start serve], got %v", def.Cmd)
	}
	if def.Env["SLUG_URL"] == "" {
		t.Error("expected SLUG_URL env var to be populated from the discovered shelf address")
	}
}

func TestSlugURLFailsWithoutShelfRegistered(t *testing.T) {
	p := New(discoveryadapter.NewInMemoryAdapter(), nil, "")
	_, version := newGitVersion()
	svc := models.NewService("web")
	if _, err := p.slugURL("app", svc, version); err == nil {
		t.Fatal("expected an error when the shelf service is not registered")
	}
}
