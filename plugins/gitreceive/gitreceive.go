// Package gitreceive implements authentication-gated git push ingestion: at
// system startup it installs a `gitreceive` infrastructure service (an SSH
// git server image) carrying a signed push token, and offers the HTTP edge
// a way to validate that token when the gitreceive container calls back
// with a freshly pushed archive. Grounded on
// original_source/deploylib/plugins/gitreceive.py's
// "runs as part of the system deployment, carries CONTROLLER_AUTH_KEY"
// design; the plaintext shared key is replaced with a short-lived signed
// JWT scoped to one deployment/service pair, using the same
// github.com/golang-jwt/jwt/v5 the teacher already depends on.
package gitreceive

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const (
	pluginName        = "gitreceive"
	systemServiceName = "gitreceive"
	defaultImage       = "vessel/gitreceive"
	tokenTTL           = 10 * time.Minute
)

// PushClaims identifies the deployment/service a push token authorizes.
type PushClaims struct {
	DeploymentID string `json:"deploy_id"`
	ServiceName  string `json:"service_name"`
	jwt.RegisteredClaims
}

// Plugin installs the gitreceive infrastructure service and mints/validates
// the push tokens it uses to call back into the HTTP edge's /upload route.
type Plugin struct {
	callback plugin.ControllerCallback
	secret   []byte
	image    string
}

// New returns a gitreceive plugin signing tokens with secret (normally the
// process auth key). Its callback is bound per writable Interface by
// Root.Interface; see plugin.CallbackBindable.
func New(secret string) *Plugin {
	return &Plugin{secret: []byte(secret), image: defaultImage}
}

func (p *Plugin) Name() string { return pluginName }

// SetCallback implements plugin.CallbackBindable.
func (p *Plugin) SetCallback(cb plugin.ControllerCallback) { p.callback = cb }

func (p *Plugin) OnSystemInit(ctx context.Context, pc *progress.Context) (bool, error) {
	token, err := p.MintPushToken(models.SystemDeploymentID, systemServiceName)
	if err != nil {
		return false, models.Fatal("gitreceive: mint bootstrap token", err)
	}

	raw := map[string]interface{}{
		"image": p.image,
		"volumes": map[string]interface{}{
			"cache": "/srv/repos",
		},
		"env": map[string]interface{}{
			"CONTROLLER_AUTH_TOKEN": token,
		},
		"ports": map[string]interface{}{"": "assign"},
	}
	if _, err := p.callback.SetService(ctx, pc, models.SystemDeploymentID, systemServiceName, raw, false); err != nil {
		return false, err
	}
	pc.Log("gitreceive: system service ready")
	return false, nil
}

// MintPushToken signs a short-lived token scoping a push to one
// deployment/service pair, handed to the gitreceive container via env so it
// can authenticate its callback to the HTTP edge.
func (p *Plugin) MintPushToken(deploymentID, serviceName string) (string, error) {
	now := time.Now()
	claims := PushClaims{
		DeploymentID: deploymentID,
		ServiceName:  serviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			Issuer:    "vessel-gitreceive",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// HTTPFunc implements plugin.HTTPHook, exposing "validate" at
// /gitreceive/validate so the gitreceive container can check a push token
// is still good before it streams an archive.
func (p *Plugin) HTTPFunc(ctx context.Context, pc *progress.Context, funcName, deploymentID string, body map[string]interface{}) error {
	if funcName != "validate" {
		return fmt.Errorf("gitreceive: no such function %q", funcName)
	}
	token, _ := body["token"].(string)
	claims, err := p.ValidatePushToken(token)
	if err != nil {
		return err
	}
	pc.Log("push token valid for %s/%s", claims.DeploymentID, claims.ServiceName)
	return nil
}

// ValidatePushToken verifies a push token minted by MintPushToken, used by
// the HTTP edge's upload handler to authorize an incoming archive.
func (p *Plugin) ValidatePushToken(tokenString string) (*PushClaims, error) {
	claims := &PushClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("gitreceive: invalid push token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("gitreceive: invalid push token")
	}
	return claims, nil
}
