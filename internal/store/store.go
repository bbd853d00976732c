// Package store implements C1: an embedded, memory-mapped key/value
// store with named sub-databases and per-entry TTL metadata, fronted
// by a hot read-through cache.
//
// Sub-databases map onto bbolt buckets, created up front at Open. Each
// stored value is prefixed with an 8-byte big-endian Unix-nanosecond
// expiry (zero meaning "no TTL"); Get strips expired entries from the
// read path but leaves their removal to the sweeper so that readers
// never block on a write transaction they didn't ask for.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	bolt "go.etcd.io/bbolt"

	"whoisgate/internal/logging"
)

var ErrNotFound = errors.New("store: key not found")

const headerLen = 8

// Store is the embedded KV store shared by every component that needs
// durable, TTL-aware persistence.
type Store struct {
	db     *bolt.DB
	hot    *ristretto.Cache
	log    *logging.Logger
	subdbs map[string]bool
}

// Open creates or opens the on-disk store at path and ensures every
// named sub-db exists as a bucket. I/O failure here is fatal, per
// spec.md §4.1.
func Open(path string, subdbs []string, log *logging.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: failed to open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range subdbs {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create sub-dbs: %w", err)
	}

	hot, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     64 << 20, // 64 MiB of hot entries
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create hot cache: %w", err)
	}

	registered := make(map[string]bool, len(subdbs))
	for _, s := range subdbs {
		registered[s] = true
	}

	return &Store{db: db, hot: hot, log: log, subdbs: registered}, nil
}

func (s *Store) Close() error {
	s.hot.Close()
	return s.db.Close()
}

func hotKey(subdb, key string) string { return subdb + "\x00" + key }

// Put writes value under key in subdb. ttl of zero means no expiry.
// Each Put is its own write transaction, giving at-most-one-writer-
// per-sub-db-at-a-time semantics for free from bbolt.
func (s *Store) Put(subdb, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}

	record := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(record[:headerLen], uint64(expiresAt))
	copy(record[headerLen:], value)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(subdb))
		if b == nil {
			return fmt.Errorf("store: unknown sub-db %q", subdb)
		}
		return b.Put([]byte(key), record)
	})
	if err != nil {
		s.log.Warn("store put failed subdb=%s key=%s: %v", subdb, key, err)
		return err
	}

	s.hot.SetWithTTL(hotKey(subdb, key), value, int64(len(value)), ttl)
	return nil
}

// Get returns the value for key in subdb, or ErrNotFound if absent or
// expired. Storage errors on read degrade to a miss per spec.md §7.
func (s *Store) Get(subdb, key string) ([]byte, error) {
	if v, ok := s.hot.Get(hotKey(subdb, key)); ok {
		return v.([]byte), nil
	}

	var out []byte
	var expired bool
	var expiresAt int64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(subdb))
		if b == nil {
			return fmt.Errorf("store: unknown sub-db %q", subdb)
		}
		record := b.Get([]byte(key))
		if record == nil {
			return ErrNotFound
		}
		if len(record) < headerLen {
			return fmt.Errorf("store: corrupt record for %s/%s", subdb, key)
		}
		expiresAt = int64(binary.BigEndian.Uint64(record[:headerLen]))
		if expiresAt != 0 && time.Now().UnixNano() > expiresAt {
			expired = true
			return ErrNotFound
		}
		out = append([]byte(nil), record[headerLen:]...)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("store get failed subdb=%s key=%s: %v", subdb, key, err)
		}
		if expired {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if expiresAt != 0 {
		s.hot.SetWithTTL(hotKey(subdb, key), out, int64(len(out)), time.Until(time.Unix(0, expiresAt)))
	} else {
		s.hot.Set(hotKey(subdb, key), out, int64(len(out)))
	}
	return out, nil
}

// Delete removes key from subdb, in both the durable store and the
// hot cache.
func (s *Store) Delete(subdb, key string) error {
	s.hot.Del(hotKey(subdb, key))
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(subdb))
		if b == nil {
			return fmt.Errorf("store: unknown sub-db %q", subdb)
		}
		return b.Delete([]byte(key))
	})
}

// Entry is one key/value pair yielded by Iter.
type Entry struct {
	Key   string
	Value []byte
}

// Iter lazily yields every non-expired entry in subdb whose key has
// the given prefix, calling fn for each. Returning a non-nil error
// from fn stops iteration early.
func (s *Store) Iter(subdb, prefix string, fn func(Entry) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(subdb))
		if b == nil {
			return fmt.Errorf("store: unknown sub-db %q", subdb)
		}
		c := b.Cursor()
		bp := []byte(prefix)
		now := time.Now().UnixNano()
		for k, v := c.Seek(bp); k != nil && hasPrefix(k, bp); k, v = c.Next() {
			if len(v) < headerLen {
				continue
			}
			expiresAt := int64(binary.BigEndian.Uint64(v[:headerLen]))
			if expiresAt != 0 && now > expiresAt {
				continue
			}
			entry := Entry{Key: string(k), Value: append([]byte(nil), v[headerLen:]...)}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(k, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Sweep deletes every expired entry across every sub-db, run
// periodically by C11. It returns the number of entries removed.
func (s *Store) Sweep() (int, error) {
	removed := 0
	for subdb := range s.subdbs {
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(subdb))
			if b == nil {
				return nil
			}
			c := b.Cursor()
			now := time.Now().UnixNano()
			var toDelete [][]byte
			for k, v := c.First(); k != nil; k, v = c.Next() {
				if len(v) < headerLen {
					continue
				}
				expiresAt := int64(binary.BigEndian.Uint64(v[:headerLen]))
				if expiresAt != 0 && now > expiresAt {
					toDelete = append(toDelete, append([]byte(nil), k...))
				}
			}
			for _, k := range toDelete {
				if err := b.Delete(k); err != nil {
					return err
				}
				removed++
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}
