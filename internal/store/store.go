// Package store implements the persistence store (C1): a transactional
// object graph rooted at a schema version, a process-wide auth key, and the
// deployment map, backed by an embedded single-file database so the daemon
// has no external dependency to operate.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vessel-labs/vessel/models"
)

// CurrentSchemaVersion is the schema version new stores are initialized at.
// Per design note, the schema is fixed at v1; Migrations only ever runs
// forward from whatever version an existing file reports.
const CurrentSchemaVersion = 1

var (
	bucketMeta        = []byte("meta")
	bucketDeployments = []byte("deployments")

	keySchemaVersion = []byte("schema_version")
	keyAuthKey       = []byte("auth_key")
)

// Migration is a single versioned schema transformation, applied in order
// during Open when the stored version is below CurrentSchemaVersion.
type Migration struct {
	// FromVersion is the schema version this migration upgrades from.
	FromVersion int
	Apply       func(tx *bbolt.Tx) error
}

// Store is the process-wide handle to the embedded database.
type Store struct {
	db         *bbolt.DB
	migrations []Migration
}

// Open opens (creating if absent) the database file at path, runs any
// registered migrations, and returns a ready Store.
func Open(path string, migrations ...Migration) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	s := &Store{db: db, migrations: migrations}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketDeployments); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchemaVersion) == nil {
			return putInt(meta, keySchemaVersion, CurrentSchemaVersion)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init: %w", err)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		version, err := getInt(meta, keySchemaVersion)
		if err != nil {
			return err
		}
		for _, m := range s.migrations {
			if m.FromVersion < version {
				continue
			}
			if err := m.Apply(tx); err != nil {
				return fmt.Errorf("store: migration from v%d: %w", m.FromVersion, err)
			}
			version = m.FromVersion + 1
			if err := putInt(meta, keySchemaVersion, version); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a single controller operation's store connection. Every controller
// operation opens its own Tx; sharing one across goroutines is forbidden.
type Tx struct {
	tx       *bbolt.Tx
	writable bool
}

// Begin opens a new transaction. writable must be true for any operation
// that mutates deployments, globals, resources, or the auth key.
func (s *Store) Begin(writable bool) (*Tx, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	return &Tx{tx: tx, writable: writable}, nil
}

// Commit commits the transaction. A read-only Tx's Commit is equivalent to
// Abort (bbolt treats both identically for read-only transactions).
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Abort rolls back the transaction, discarding any writes.
func (t *Tx) Abort() error {
	return t.tx.Rollback()
}

// SchemaVersion returns the currently stored schema version.
func (t *Tx) SchemaVersion() (int, error) {
	return getInt(t.tx.Bucket(bucketMeta), keySchemaVersion)
}

// AuthKey returns the process-wide bearer token, or "" if none has been set.
func (t *Tx) AuthKey() (string, error) {
	v := t.tx.Bucket(bucketMeta).Get(keyAuthKey)
	return string(v), nil
}

// SetAuthKey sets the process-wide bearer token.
func (t *Tx) SetAuthKey(key string) error {
	if !t.writable {
		return fmt.Errorf("store: SetAuthKey on read-only transaction")
	}
	return t.tx.Bucket(bucketMeta).Put(keyAuthKey, []byte(key))
}

// GetDeployment loads a deployment by id. ok is false if it does not exist.
func (t *Tx) GetDeployment(id string) (dep *models.Deployment, ok bool, err error) {
	raw := t.tx.Bucket(bucketDeployments).Get([]byte(id))
	if raw == nil {
		return nil, false, nil
	}
	dep = &models.Deployment{}
	if err := json.Unmarshal(raw, dep); err != nil {
		return nil, false, fmt.Errorf("store: decode deployment %s: %w", id, err)
	}
	return dep, true, nil
}

// PutDeployment persists dep, overwriting any previous value.
func (t *Tx) PutDeployment(dep *models.Deployment) error {
	if !t.writable {
		return fmt.Errorf("store: PutDeployment on read-only transaction")
	}
	raw, err := json.Marshal(dep)
	if err != nil {
		return fmt.Errorf("store: encode deployment %s: %w", dep.ID, err)
	}
	return t.tx.Bucket(bucketDeployments).Put([]byte(dep.ID), raw)
}

// DeploymentIDs returns every deployment id currently stored, in bucket
// (lexicographic) order.
func (t *Tx) DeploymentIDs() ([]string, error) {
	var ids []string
	err := t.tx.Bucket(bucketDeployments).ForEach(func(k, _ []byte) error {
		ids = append(ids, string(k))
		return nil
	})
	return ids, err
}

func putInt(b *bbolt.Bucket, key []byte, v int) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

func getInt(b *bbolt.Bucket, key []byte) (int, error) {
	raw := b.Get(key)
	if raw == nil {
		return 0, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}
