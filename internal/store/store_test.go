package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/vessel-labs/vessel/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "vessel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenInitializesSchemaVersion(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin(false)
	require.NoError(t, err)
	defer tx.Abort()

	version, err := tx.SchemaVersion()
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)
}

func TestPutAndGetDeploymentRoundTrips(t *testing.T) {
	s := openTestStore(t)

	dep := models.NewDeployment("foo")
	dep.Globals.Env["web"] = map[string]string{"A": "1"}
	svc := dep.EnsureService("web")
	version := svc.Derive(models.NewCanonicalDefinition(), dep.Globals)
	svc.AppendVersion(version)

	tx, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.PutDeployment(dep))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(false)
	require.NoError(t, err)
	defer tx2.Abort()

	loaded, ok, err := tx2.GetDeployment("foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "foo", loaded.ID)
	require.Len(t, loaded.Services["web"].Versions, 1)
	require.Equal(t, "1", loaded.Globals.Env["web"]["A"])
}

func TestGetDeploymentMissingReturnsNotOK(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin(false)
	require.NoError(t, err)
	defer tx.Abort()

	_, ok, err := tx.GetDeployment("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAbortDiscardsWrites(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.PutDeployment(models.NewDeployment("aborted")))
	require.NoError(t, tx.Abort())

	tx2, err := s.Begin(false)
	require.NoError(t, err)
	defer tx2.Abort()

	_, ok, err := tx2.GetDeployment("aborted")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthKeyRoundTrips(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.SetAuthKey("secret-token"))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(false)
	require.NoError(t, err)
	defer tx2.Abort()

	key, err := tx2.AuthKey()
	require.NoError(t, err)
	require.Equal(t, "secret-token", key)
}

func TestMigrationsRunForward(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vessel.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var applied bool
	s2, err := Open(path, Migration{
		FromVersion: CurrentSchemaVersion,
		Apply: func(tx *bbolt.Tx) error {
			applied = true
			return nil
		},
	})
	require.NoError(t, err)
	defer s2.Close()
	require.True(t, applied)
}
