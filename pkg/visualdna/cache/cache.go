// Package cache remembers fingerprints of files already processed, keyed by
// file contents and the settings that produced them.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/dgraph-io/badger/v3"
)

// Entry is what a cached search or index run needs to skip decoding.
type Entry struct {
	Fingerprint string    `json:"fp"`
	AudioID     *string   `json:"audio,omitempty"`
	AudioTried  bool      `json:"audio_tried"`
	DurationMs  int       `json:"duration_ms"`
	StoredAt    time.Time `json:"stored_at"`
}

type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) a cache in dir. A ttl of 0 keeps entries forever.
func Open(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Key hashes r together with settings.
func Key(r io.Reader, settings string) (uint64, error) {
	h := xxhash.New64()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(h, "\x00"+settings); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// FileKey is Key over the contents of path.
func FileKey(path, settings string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Key(f, settings)
}

func keyBytes(key uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, key)
	return b
}

// Get returns the entry for key; ok is false on a miss.
func (s *Store) Get(key uint64) (e Entry, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBytes(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decoding cache entry: %w", err)
			}
			ok = true
			return nil
		})
	})
	return e, ok, err
}

func (s *Store) Put(key uint64, e Entry) error {
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(keyBytes(key), val)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *Store) Delete(key uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyBytes(key))
	})
}

// Len counts live entries.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
