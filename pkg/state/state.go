// Package state persists the small restart record an allocator needs to
// survive an application-master restart without colliding with executor
// ids or forgetting blacklist decisions the driver already knows about.
package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/nimbus-allocator/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketRestartState = []byte("restart_state")

const restartStateKey = "current"

// Store persists and reloads an allocator's RestartState.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt-backed state store under
// dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "nimbus-allocator.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRestartState)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create restart state bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the most recently saved RestartState. A fresh store (no prior
// save) returns the zero value and no error.
func (s *Store) Load() (types.RestartState, error) {
	var rs types.RestartState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRestartState)
		data := b.Get([]byte(restartStateKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &rs)
	})
	if err != nil {
		return types.RestartState{}, fmt.Errorf("load restart state: %w", err)
	}
	return rs, nil
}

// Save persists the given RestartState, overwriting whatever was saved
// before.
func (s *Store) Save(rs types.RestartState) error {
	rs.SavedAt = time.Now()
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal restart state: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRestartState)
		return b.Put([]byte(restartStateKey), data)
	})
}
