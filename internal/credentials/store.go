package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/damacus/iron-folders/internal/fserrors"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "credentials"
	keySuffix  = "_config"
)

// ConfigKey is the storage key of a service's credentials
func ConfigKey(service string) string {
	return service + keySuffix
}

// Store persists sealed credentials in a bbolt database
type Store struct {
	db     *bolt.DB
	sealer *Sealer
}

// OpenStore opens (creating if needed) the database at path
func OpenStore(path string, sealer *Sealer) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open credentials store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, sealer: sealer}, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// GetConfig implements Provider
func (s *Store) GetConfig(_ context.Context, service string) (Credentials, error) {
	var sealed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(ConfigKey(service)))
		if v != nil {
			sealed = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return nil, fmt.Errorf("%s: %w", service, fserrors.ErrMissingCredentials)
	}
	creds, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("%s: decrypt credentials: %w", service, err)
	}
	return creds, nil
}

// SaveConfig validates and stores creds for service, replacing any
// previous value.
func (s *Store) SaveConfig(service string, creds Credentials) error {
	if err := Validate(service, creds); err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(creds)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(ConfigKey(service)), sealed)
	})
}

// DeleteConfig removes the stored credentials of service
func (s *Store) DeleteConfig(service string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(ConfigKey(service)))
	})
}

// Services lists the service identities that have stored credentials
func (s *Store) Services() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, _ []byte) error {
			if name := string(k); strings.HasSuffix(name, keySuffix) {
				out = append(out, strings.TrimSuffix(name, keySuffix))
			}
			return nil
		})
	})
	sort.Strings(out)
	return out, err
}
