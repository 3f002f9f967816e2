// Package boltdb keeps the serialized planner envelope in a bbolt file.
// The latest envelope lives under a fixed key; every save also appends a
// timestamped copy to a history bucket trimmed to a fixed length.
package boltdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

type LoggerFn func(string, ...interface{})

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no saved planner state")

const (
	rootBucket    = "planner"
	historyBucket = "history"
	currentKey    = "current"

	historyKeyFormat = "20060102T150405.000000000Z"
	defaultKeep      = 10
)

// Config locates the database file and sets history retention.
type Config struct {
	Path string
	// Keep is how many historical snapshots survive a save. Zero means the
	// default, negative disables history.
	Keep  int
	LogFn LoggerFn
	ErrFn LoggerFn
	Now   func() time.Time
}

type Repo struct {
	d    *bolt.DB
	root []byte
	path string
	keep int
	now  func() time.Time
	log  LoggerFn
	err  LoggerFn
}

// New returns a repository for the bbolt file at c.Path. The file is only
// opened for the duration of each call.
func New(c Config) *Repo {
	r := Repo{
		root: []byte(rootBucket),
		path: c.Path,
		keep: c.Keep,
		now:  time.Now,
		log:  func(string, ...interface{}) {},
		err:  func(string, ...interface{}) {},
	}
	if r.keep == 0 {
		r.keep = defaultKeep
	}
	if c.Now != nil {
		r.now = c.Now
	}
	if c.ErrFn != nil {
		r.err = c.ErrFn
	}
	if c.LogFn != nil {
		r.log = c.LogFn
	}
	return &r
}

func (r *Repo) Path() string { return r.path }

func (r *Repo) open() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("could not create db dir for %s: %w", r.path, err)
	}
	var err error
	r.d, err = bolt.Open(r.path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("could not open db %s: %w", r.path, err)
	}
	err = r.d.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(r.root)
		if err != nil {
			return fmt.Errorf("unable to create root bucket %s: %w", r.root, err)
		}
		if _, err := root.CreateBucketIfNotExists([]byte(historyBucket)); err != nil {
			return fmt.Errorf("unable to create history bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		r.d.Close()
		r.d = nil
	}
	return err
}

// Close closes the boltdb database if possible.
func (r *Repo) close() error {
	if r.d == nil {
		return nil
	}
	err := r.d.Close()
	r.d = nil
	return err
}

// Load returns the most recently saved envelope.
func (r *Repo) Load() ([]byte, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	defer r.close()

	var data []byte
	err := r.d.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(r.root)
		if root == nil {
			return fmt.Errorf("invalid bucket %s", r.root)
		}
		raw := root.Get([]byte(currentKey))
		if len(raw) == 0 {
			return ErrNotFound
		}
		// raw is only valid for the life of the transaction
		data = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log("loaded %d bytes from %s", len(data), r.path)
	return data, nil
}

// Save stores data as the current envelope and records it in history.
func (r *Repo) Save(data []byte) error {
	if len(data) == 0 {
		return errors.New("refusing to save an empty envelope")
	}
	if err := r.open(); err != nil {
		return err
	}
	defer r.close()

	stamp := []byte(r.now().UTC().Format(historyKeyFormat))
	err := r.d.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(r.root)
		if root == nil {
			return fmt.Errorf("invalid bucket %s", r.root)
		}
		if err := root.Put([]byte(currentKey), data); err != nil {
			return fmt.Errorf("could not store envelope: %w", err)
		}
		if r.keep < 0 {
			return nil
		}
		hist := root.Bucket([]byte(historyBucket))
		if err := hist.Put(stamp, data); err != nil {
			return fmt.Errorf("could not store history entry %s: %w", stamp, err)
		}
		return prune(hist, r.keep)
	})
	if err != nil {
		r.err("error saving envelope to %s: %s", r.path, err)
		return err
	}
	r.log("saved %d bytes to %s", len(data), r.path)
	return nil
}

// prune drops the oldest history entries until at most keep remain.
func prune(b *bolt.Bucket, keep int) error {
	c := b.Cursor()
	n := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	excess := n - keep
	for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
		if err := c.Delete(); err != nil {
			return fmt.Errorf("could not prune history entry %s: %w", k, err)
		}
		excess--
	}
	return nil
}

// History lists the saved snapshot times, oldest first.
func (r *Repo) History() ([]time.Time, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	defer r.close()

	var out []time.Time
	err := r.d.View(func(tx *bolt.Tx) error {
		hist := tx.Bucket(r.root).Bucket([]byte(historyBucket))
		return hist.ForEach(func(k, _ []byte) error {
			t, err := time.Parse(historyKeyFormat, string(k))
			if err != nil {
				r.err("skipping malformed history key %q: %s", k, err)
				return nil
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

// LoadAt returns the snapshot recorded at t.
func (r *Repo) LoadAt(t time.Time) ([]byte, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	defer r.close()

	key := []byte(t.UTC().Format(historyKeyFormat))
	var data []byte
	err := r.d.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(r.root).Bucket([]byte(historyBucket)).Get(key)
		if raw == nil {
			return ErrNotFound
		}
		data = append([]byte(nil), raw...)
		return nil
	})
	return data, err
}
