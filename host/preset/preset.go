package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNoPreset is returned by Load and Delete when no preset has the name.
var ErrNoPreset = errors.New("preset: no such preset")

// ErrEmptyName is returned when a preset name is empty.
var ErrEmptyName = errors.New("preset: empty name")

const bucketPresets = "presets"

// openTimeout bounds how long Open waits for another process holding the
// file lock.
const openTimeout = time.Second

// Store keeps named chain states in a bbolt database. Values are the blobs
// produced by chain.Export and are stored unchanged.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("preset: create dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("preset: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketPresets))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preset: initialize %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores data under name, replacing any existing preset.
func (s *Store) Save(name string, data []byte) error {
	if name == "" {
		return ErrEmptyName
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPresets))
		return b.Put([]byte(name), data)
	})
}

// Load returns a copy of the preset stored under name.
func (s *Store) Load(name string) ([]byte, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPresets))

		v := b.Get([]byte(name))
		if v == nil {
			return ErrNoPreset
		}

		// Values returned by bbolt are only valid inside the transaction.
		data = append([]byte(nil), v...)

		return nil
	})

	return data, err
}

// Has reports whether a preset named name exists.
func (s *Store) Has(name string) (bool, error) {
	var ok bool

	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket([]byte(bucketPresets)).Get([]byte(name)) != nil
		return nil
	})

	return ok, err
}

// List returns the preset names in byte order.
func (s *Store) List() ([]string, error) {
	var names []string

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPresets))
		c := b.Cursor()

		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			names = append(names, string(k))
		}

		return nil
	})

	return names, err
}

// Delete removes the preset named name.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPresets))
		if b.Get([]byte(name)) == nil {
			return ErrNoPreset
		}

		return b.Delete([]byte(name))
	})
}
