package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketName = "dashboard"

// boltEntry wraps a value with its expiry; bbolt has no native TTL
type boltEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// BoltBackend is the shared tier for single-node deployments
type BoltBackend struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltBackend opens (or creates) the cache file at path
func NewBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &BoltBackend{db: db, now: time.Now}, nil
}

// Get returns the raw entry for key, deleting it if expired
func (b *BoltBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}

		var e boltEntry
		if err := json.Unmarshal(data, &e); err != nil || b.expired(e) {
			return bucket.Delete([]byte(key))
		}
		// data is only valid inside the transaction
		value = append([]byte(nil), e.Value...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt get %s: %w", key, err)
	}
	return value, found, nil
}

// Set stores value under key with ttl (0 keeps it until purged)
func (b *BoltBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := boltEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = b.now().Add(ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

// DeletePrefix deletes every key starting with prefix
func (b *BoltBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	var deleted int64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		p := []byte(prefix)

		// Collect first: deleting under a live cursor skips keys
		var keys [][]byte
		c := bucket.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// Sweep removes expired entries and returns how many were dropped
func (b *BoltBackend) Sweep() (int, error) {
	var expired [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var e boltEntry
			if err := json.Unmarshal(v, &e); err != nil || b.expired(e) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
	})
	if err != nil || len(expired) == 0 {
		return 0, err
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return len(expired), err
}

func (b *BoltBackend) expired(e boltEntry) bool {
	return !e.ExpiresAt.IsZero() && !b.now().Before(e.ExpiresAt)
}

// Close closes the cache file
func (b *BoltBackend) Close() error {
	return b.db.Close()
}
