// Package generate implements the `Generate` globals directive: deployment
// secrets minted once and made available to every service's template
// variables. Grounded on original_source/deploylib/plugins/generate.py for
// the `{hex: N}` form; the `{password: true}` form has no original_source
// counterpart and is a SPEC_FULL.md supplement, built the same way: one
// value per key, generated once, frozen into Globals so re-deploys are
// idempotent.
package generate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/vessel-labs/vessel/internal/auth"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const (
	pluginName         = "generate"
	generatedKey       = "_Generated"
	generatedHashKey   = "_GeneratedHashes"
	defaultHexLen      = 32
	defaultPasswordLen = 20
	passwordAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Plugin mints one value per key named under Globals.Directives["Generate"]
// and writes it back into Globals.Directives["_Generated"], so it gets
// frozen into every version's Globals snapshot on derive and reaches
// ProvideVars without a deployment-scoped lookup. A `{password: true}` key
// additionally gets a bcrypt hash recorded under "_GeneratedHashes" (via
// internal/auth, the same hashing helper gitreceive's push credentials
// use), so a downstream consumer can verify a presented password against
// the record without the deployment's stored globals holding two copies of
// the same secret in reversible form.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return pluginName }

func (p *Plugin) OnGlobalsChanged(ctx context.Context, pc *progress.Context, dep *models.Deployment) (bool, error) {
	keys, _ := dep.Globals.Directives["Generate"].(map[string]interface{})
	if len(keys) == 0 {
		return false, nil
	}
	generated, _ := dep.Globals.Directives[generatedKey].(map[string]interface{})
	if generated == nil {
		generated = map[string]interface{}{}
	}
	hashes, _ := dep.Globals.Directives[generatedHashKey].(map[string]interface{})
	if hashes == nil {
		hashes = map[string]interface{}{}
	}

	for key, rawOptions := range keys {
		if _, ok := generated[key]; ok {
			continue
		}
		options, _ := rawOptions.(map[string]interface{})

		if password, _ := options["password"].(bool); password {
			value, err := randomPassword(defaultPasswordLen)
			if err != nil {
				return false, models.Fatal("generate: read random bytes", err)
			}
			hash, err := auth.HashPassword(value)
			if err != nil {
				return false, models.Fatal("generate: hash password", err)
			}
			generated[key] = value
			hashes[key] = hash
			continue
		}

		size := defaultHexLen
		if n, ok := options["hex"].(float64); ok {
			size = int(n)
		}
		buf := make([]byte, size)
		if _, err := rand.Read(buf); err != nil {
			return false, models.Fatal("generate: read random bytes", err)
		}
		generated[key] = hex.EncodeToString(buf)
	}
	dep.Globals.Directives[generatedKey] = generated
	dep.Globals.Directives[generatedHashKey] = hashes
	return false, nil
}

func (p *Plugin) ProvideVars(ctx context.Context, pc *progress.Context, svc *models.Service, version *models.ServiceVersion, def *models.CanonicalDefinition, vars map[string]string) (bool, error) {
	generated, _ := version.Globals.Directives[generatedKey].(map[string]interface{})
	for key, value := range generated {
		if s, ok := value.(string); ok {
			vars[key] = s
		}
	}
	return false, nil
}

// VerifyPassword reports whether plaintext matches the bcrypt hash recorded
// for key under dep's "_GeneratedHashes" directive. Returns false, nil for
// an unknown key.
func VerifyPassword(dep *models.Deployment, key, plaintext string) (bool, error) {
	hashes, _ := dep.Globals.Directives[generatedHashKey].(map[string]interface{})
	hash, ok := hashes[key].(string)
	if !ok {
		return false, nil
	}
	if err := auth.ComparePassword(plaintext, hash); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func randomPassword(length int) (string, error) {
	out := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
