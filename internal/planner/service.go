// Package planner hosts the event store for long-running and one-shot
// callers. The core types are single-threaded; Service serializes every
// access and persists the store through a Repository.
package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"planner/internal/invitee"
	appLog "planner/internal/log"
	"planner/internal/persist/boltdb"
	"planner/internal/store"
)

// Repository stores the serialized envelope.
type Repository interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

type Service struct {
	mu    sync.Mutex
	st    *store.Store
	repo  Repository
	dir   invitee.Directory
	opts  []store.Option
	dirty bool
	// last is the envelope the store was loaded from or saved as.
	last []byte
}

// Open restores the last saved store, or starts an empty one when the
// repository holds nothing yet.
func Open(repo Repository, dir invitee.Directory, opts ...store.Option) (*Service, error) {
	data, err := repo.Load()
	switch {
	case errors.Is(err, boltdb.ErrNotFound):
		appLog.Info("starting with an empty planner store")
		return &Service{st: store.New(dir, opts...), repo: repo, dir: dir, opts: opts}, nil
	case err != nil:
		return nil, fmt.Errorf("planner: load: %w", err)
	}

	st, err := store.Decode(data, dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("planner: decode: %w", err)
	}
	appLog.Info("planner store loaded", "events", st.Events.Len(), "bytes", len(data))
	return &Service{st: st, repo: repo, dir: dir, opts: opts, last: data}, nil
}

func (s *Service) Directory() invitee.Directory { return s.dir }

// Read runs fn with exclusive access to the store. fn must not retain the
// store or anything reachable from it.
func (s *Service) Read(fn func(st *store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Update is Read for mutations: a nil return marks the store for the next
// snapshot.
func (s *Service) Update(fn func(st *store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.st); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// Dirty reports whether there are unsaved changes.
func (s *Service) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Snapshot saves the store if it changed since the last snapshot.
func (s *Service) Snapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		appLog.Debug("snapshot skipped, no changes")
		return nil
	}

	data, err := json.Marshal(s.st)
	if err != nil {
		return fmt.Errorf("planner: encode: %w", err)
	}
	if err := s.repo.Save(data); err != nil {
		appLog.Error("snapshot failed", err)
		return fmt.Errorf("planner: save: %w", err)
	}
	s.dirty = false
	s.last = data
	appLog.Info("snapshot saved", "events", s.st.Events.Len(), "bytes", len(data))
	return nil
}

// Reload replaces the store with the repository's current envelope so a
// long-running host sees changes saved by other processes. Unsaved local
// changes are kept and the reload is skipped.
func (s *Service) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		appLog.Debug("reload skipped, unsaved changes")
		return nil
	}

	data, err := s.repo.Load()
	switch {
	case errors.Is(err, boltdb.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("planner: load: %w", err)
	}
	if bytes.Equal(data, s.last) {
		appLog.Debug("reload skipped, store unchanged")
		return nil
	}

	st, err := store.Decode(data, s.dir, s.opts...)
	if err != nil {
		return fmt.Errorf("planner: decode: %w", err)
	}
	s.st = st
	s.last = data
	appLog.Info("planner store reloaded", "events", st.Events.Len(), "bytes", len(data))
	return nil
}

// Sync is the periodic job of a long-running host: it saves local changes
// when there are any and otherwise picks up changes saved elsewhere.
func (s *Service) Sync() error {
	if s.Dirty() {
		return s.Snapshot()
	}
	return s.Reload()
}
