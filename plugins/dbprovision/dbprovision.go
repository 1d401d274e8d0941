// Package dbprovision implements database provisioning for the
// `Flynn-Postgres`-style globals directive: rather than calling out to a
// running database-appliance API service (as the original does), it
// provisions a role and database directly against an administrative
// Postgres connection using gorm, then exposes the generated credentials
// as POSTGRES_* environment variables to whichever services name the
// resource. Grounded on
// original_source/deploylib/plugins/flynn_postgres.py for the directive
// shape (`in`/`expose_as`/`id`) and the "provision once, then only expose
// credentials" lifecycle.
package dbprovision

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/models"
)

const pluginName = "dbprovision"

// Plugin claims setup_resource calls for resources whose options carry a
// "postgres" key, provisioning a database/role pair against adminDSN.
type Plugin struct {
	adminDSN string
	openDB   func(dsn string) (*gorm.DB, error)
}

// New returns a provisioner that connects to adminDSN (a superuser
// connection string) to run role/database creation statements.
func New(adminDSN string) *Plugin {
	return &Plugin{
		adminDSN: adminDSN,
		openDB: func(dsn string) (*gorm.DB, error) {
			return gorm.Open(postgres.Open(dsn), &gorm.Config{})
		},
	}
}

func (p *Plugin) Name() string { return pluginName }

type credentials struct {
	Database string
	User     string
	Password string
}

func (p *Plugin) SetupResource(ctx context.Context, pc *progress.Context, dep *models.Deployment, name string, options map[string]interface{}) (bool, error) {
	if _, ok := options["postgres"]; !ok {
		return false, nil
	}

	store := dep.PluginScratch(pluginName)
	if _, done := store[name]; done {
		return true, nil
	}

	creds, err := p.provision(ctx, dep.ID, name)
	if err != nil {
		return false, models.DeployError("dbprovision: provision "+name, err)
	}
	store[name] = map[string]interface{}{
		"database": creds.Database,
		"user":     creds.User,
		"password": creds.Password,
		"expose_as": stringOr(options["expose_as"], "POSTGRES_"),
	}
	pc.Log("provisioned database %s for resource %s", creds.Database, name)
	return true, nil
}

// ProvideEnvironment exposes every provisioned resource's credentials as
// env vars to every service, matching the source's "available to all
// containers" design so multiple services can share one database.
func (p *Plugin) ProvideEnvironment(ctx context.Context, pc *progress.Context, dep *models.Deployment, def *models.CanonicalDefinition, env map[string]string) (bool, error) {
	for _, rawEntry := range dep.PluginScratch(pluginName) {
		entry, ok := rawEntry.(map[string]interface{})
		if !ok {
			continue
		}
		prefix := stringOr(entry["expose_as"], "POSTGRES_")
		env[prefix+"DATABASE"] = stringOr(entry["database"], "")
		env[prefix+"USER"] = stringOr(entry["user"], "")
		env[prefix+"PASSWORD"] = stringOr(entry["password"], "")
	}
	return false, nil
}

func (p *Plugin) provision(ctx context.Context, deployID, resourceName string) (credentials, error) {
	db, err := p.openDB(p.adminDSN)
	if err != nil {
		return credentials{}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return credentials{}, err
	}
	defer sqlDB.Close()

	dbName := sanitizeIdentifier(fmt.Sprintf("%s_%s", deployID, resourceName))
	user := dbName
	password, err := randomHex(16)
	if err != nil {
		return credentials{}, err
	}

	stmts := []string{
		fmt.Sprintf(`CREATE ROLE %q WITH LOGIN PASSWORD '%s'`, user, password),
		fmt.Sprintf(`CREATE DATABASE %q OWNER %q`, dbName, user),
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return credentials{}, err
		}
	}

	return credentials{Database: dbName, User: user, Password: password}, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func sanitizeIdentifier(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
