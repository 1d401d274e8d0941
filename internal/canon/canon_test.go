package canon

import (
	"testing"

	"github.com/vessel-labs/vessel/models"
)

func TestCanonicalizeDefaults(t *testing.T) {
	res, err := Canonicalize("web", map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EffectiveName != "web" {
		t.Errorf("expected effective name 'web', got %q", res.EffectiveName)
	}
	if res.Definition.Image != "web" {
		t.Errorf("expected image to default to service name, got %q", res.Definition.Image)
	}
	if len(res.Definition.Ports) != 1 {
		t.Fatalf("expected one default port entry, got %d", len(res.Definition.Ports))
	}
	if res.Definition.Ports[""] != models.AssignPort {
		t.Errorf("expected default port to be 'assign'")
	}
}

func TestCanonicalizeNamePathRewritesEffectiveNameWhenImageAbsent(t *testing.T) {
	res, err := Canonicalize("infra/redis", map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EffectiveName != "redis" {
		t.Errorf("expected effective name 'redis', got %q", res.EffectiveName)
	}
	if res.Definition.Image != "infra/redis" {
		t.Errorf("expected image to default to the full service name, got %q", res.Definition.Image)
	}
}

func TestCanonicalizeExplicitImageLeavesNameAlone(t *testing.T) {
	res, err := Canonicalize("app", map[string]interface{}{"image": "registry.example.com/org/redis"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EffectiveName != "app" {
		t.Errorf("expected effective name to stay 'app', got %q", res.EffectiveName)
	}
	if res.Definition.Image != "registry.example.com/org/redis" {
		t.Errorf("expected image to be kept verbatim, got %q", res.Definition.Image)
	}
}

func TestCanonicalizePortAndPortsConflict(t *testing.T) {
	_, err := Canonicalize("web", map[string]interface{}{"port": 8080, "ports": map[string]interface{}{"": 8080}})
	if err == nil {
		t.Fatal("expected error when both port and ports are set")
	}
	var cerr *models.ControllerError
	if ce, ok := err.(*models.ControllerError); ok {
		cerr = ce
	}
	if cerr == nil || cerr.Kind != models.KindInvalidDefinition {
		t.Errorf("expected InvalidDefinition, got %v", err)
	}
}

func TestCanonicalizePortShorthand(t *testing.T) {
	res, err := Canonicalize("web", map[string]interface{}{"port": 8080})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Definition.Ports[""] != models.FixedPort(8080) {
		t.Errorf("expected port shorthand to lower to {\"\": 8080}, got %v", res.Definition.Ports)
	}
}

func TestCanonicalizeCmdStringWrapsInShell(t *testing.T) {
	res, err := Canonicalize("web", map[string]interface{}{"cmd": "echo hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"/bin/sh", "-c", "echo hi"}
	if len(res.Definition.Cmd) != len(want) {
		t.Fatalf("expected %v, got %v", want, res.Definition.Cmd)
	}
	for i := range want {
		if res.Definition.Cmd[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, res.Definition.Cmd)
		}
	}
}

func TestCanonicalizeEntrypointStringSplitsShellStyle(t *testing.T) {
	res, err := Canonicalize("web", map[string]interface{}{"entrypoint": `node server.js --flag "quoted value"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"node", "server.js", "--flag", "quoted value"}
	if len(res.Definition.Entrypoint) != len(want) {
		t.Fatalf("expected %v, got %v", want, res.Definition.Entrypoint)
	}
	for i := range want {
		if res.Definition.Entrypoint[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, res.Definition.Entrypoint)
		}
	}
}

func TestCanonicalizeUnknownFieldsSurviveInKwargs(t *testing.T) {
	res, err := Canonicalize("web", map[string]interface{}{"git": "."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Definition.Kwargs["git"] != "." {
		t.Errorf("expected unknown field 'git' preserved in Kwargs, got %v", res.Definition.Kwargs)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	raw := map[string]interface{}{
		"image": "redis",
		"env":   map[string]interface{}{"A": "1"},
		"ports": map[string]interface{}{"": "assign"},
	}
	first, err := Canonicalize("web", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Re-canonicalize from the same raw input; result must compare equal.
	second, err := Canonicalize("web", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Definition.Equal(second.Definition) {
		t.Errorf("canonicalization is not idempotent: %+v != %+v", first.Definition, second.Definition)
	}
}

func TestCanonicalDefinitionCopyIsDeep(t *testing.T) {
	res, err := Canonicalize("web", map[string]interface{}{"env": map[string]interface{}{"A": "1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cp := res.Definition.Copy()
	cp.Env["A"] = "2"
	if res.Definition.Env["A"] != "1" {
		t.Errorf("Copy() aliased the Env map")
	}
}
