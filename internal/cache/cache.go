// Package cache keeps the last downloaded dumps of every legislature in a
// badger key-value store. Keys are the legislature name for the initiatives
// dump and CompositionKey for the organization dump.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrMiss is returned when no dump is cached for a key.
var ErrMiss = errors.New("no cached dump")

// CompositionKey is the key of a legislature's organization dump.
func CompositionKey(legislature string) string {
	return "composition/" + legislature
}

const (
	dumpPrefix = "dump/"
	timePrefix = "fetched_at/"
)

// Entry is a cached dump.
type Entry struct {
	Data      []byte
	FetchedAt time.Time
}

// Cache is a badger-backed store of raw dumps.
type Cache struct {
	db *badger.DB
}

// Open opens or creates the cache in dir. Badger's own logging is routed to
// the standard logger when verbose is set and discarded otherwise.
func Open(dir string, verbose bool) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return open(badger.DefaultOptions(dir), verbose)
}

// OpenReadOnly opens an existing cache without taking the write lock, so
// it can be read while no build holds it.
func OpenReadOnly(dir string) (*Cache, error) {
	return open(badger.DefaultOptions(dir).WithReadOnly(true), false)
}

// OpenInMemory opens a cache that lives only as long as the process.
func OpenInMemory() (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), false)
}

func open(opts badger.Options, verbose bool) (*Cache, error) {
	opts = opts.WithNumVersionsToKeep(1)
	if verbose {
		opts = opts.WithLogger(stdLogger{})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close flushes and closes the store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores a dump, replacing any previous one under the same key.
func (c *Cache) Put(key string, data []byte, fetchedAt time.Time) error {
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(fetchedAt.Unix()))

	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dumpPrefix+key), data); err != nil {
			return err
		}
		return txn.Set([]byte(timePrefix+key), ts)
	})
}

// Get returns the dump cached under key, or ErrMiss.
func (c *Cache) Get(key string) (*Entry, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dumpPrefix + key))
		if err != nil {
			return err
		}
		if e.Data, err = item.ValueCopy(nil); err != nil {
			return err
		}

		item, err = txn.Get([]byte(timePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				e.FetchedAt = time.Unix(int64(binary.BigEndian.Uint64(val)), 0)
			}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrMiss)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FetchedAt returns when key was last downloaded, or the zero time.
func (c *Cache) FetchedAt(key string) time.Time {
	var t time.Time
	_ = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(timePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				t = time.Unix(int64(binary.BigEndian.Uint64(val)), 0)
			}
			return nil
		})
	})
	return t
}

// Delete drops the dump under key.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(dumpPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(timePrefix + key))
	})
}

// Compact reclaims space left by replaced dumps.
func (c *Cache) Compact() {
	for {
		if err := c.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
				log.Printf("cache compaction: %v", err)
			}
			return
		}
	}
}

type stdLogger struct{}

func (stdLogger) Errorf(format string, args ...any)   { log.Printf("badger ERROR: "+format, args...) }
func (stdLogger) Warningf(format string, args ...any) { log.Printf("badger WARN: "+format, args...) }
func (stdLogger) Infof(format string, args ...any)    { log.Printf("badger: "+format, args...) }
func (stdLogger) Debugf(format string, args ...any)   {}
