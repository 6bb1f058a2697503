package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/warden/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketClientStore = []byte("client_store")

// boltRecord is the on-disk JSON encoding of an Entry, alongside
// enough of its Location to reconstruct it for Range.
type boltRecord struct {
	Kind       types.LocationKind `json:"kind"`
	VaultPath  []byte             `json:"vault_path"`
	RecordPath []byte             `json:"record_path,omitempty"`
	Counter    *int               `json:"counter,omitempty"`
	Value      []byte             `json:"value"`
	ExpiresAt  *time.Time         `json:"expires_at,omitempty"`
}

func (r boltRecord) location() types.Location {
	return types.Location{Kind: r.Kind, VaultPath: r.VaultPath, RecordPath: r.RecordPath, Counter: r.Counter}
}

// BoltStore is a bbolt-backed Store, scoped to a single client, for
// callers that want the scratch store to survive a process restart.
// It is an alternative backend, not the default: the spec's store is
// defined as an in-memory mapping, and most clients are served by
// MemStore.
type BoltStore struct {
	db     *bolt.DB
	client types.ClientId
}

// NewBoltStore opens (or creates) a bbolt database under dataDir
// named after the client, with a single client_store bucket.
func NewBoltStore(dataDir string, client types.ClientId) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, fmt.Sprintf("store-%s.db", client.String()))

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketClientStore)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}

	return &BoltStore{db: db, client: client}, nil
}

func (s *BoltStore) Get(loc types.Location) ([]byte, bool) {
	var rec *boltRecord
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientStore)
		data := b.Get([]byte(loc.Key()))
		if data == nil {
			return nil
		}
		var r boltRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	if rec == nil {
		return nil, false
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		_ = s.Delete(loc)
		return nil, false
	}
	return rec.Value, true
}

func (s *BoltStore) Put(loc types.Location, value []byte, ttl *time.Duration) error {
	rec := boltRecord{
		Kind:       loc.Kind,
		VaultPath:  loc.VaultPath,
		RecordPath: loc.RecordPath,
		Counter:    loc.Counter,
		Value:      value,
	}
	if ttl != nil {
		expires := time.Now().Add(*ttl)
		rec.ExpiresAt = &expires
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientStore)
		return b.Put([]byte(loc.Key()), data)
	})
}

func (s *BoltStore) Delete(loc types.Location) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientStore)
		return b.Delete([]byte(loc.Key()))
	})
}

func (s *BoltStore) Len() int {
	n := 0
	now := time.Now()
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientStore)
		return b.ForEach(func(k, v []byte) error {
			var r boltRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.ExpiresAt == nil || now.Before(*r.ExpiresAt) {
				n++
			}
			return nil
		})
	})
	return n
}

func (s *BoltStore) Range(fn func(loc types.Location, e Entry) bool) {
	now := time.Now()
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientStore)
		return b.ForEach(func(k, v []byte) error {
			var r boltRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
				return nil
			}
			if !fn(r.location(), Entry{Value: r.Value, ExpiresAt: r.ExpiresAt}) {
				return fmt.Errorf("range stopped")
			}
			return nil
		})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
