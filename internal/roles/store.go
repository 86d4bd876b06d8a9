// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package roles

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/aichat/internal/config"
)

// LoadFile decodes a role file.
func LoadFile(path string) (Table, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to decode role file %s: %w", path, err)
	}

	table := make(Table, len(raw))
	for name, value := range raw {
		def, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("role %q in %s: expected a table, got %T", name, path, value)
		}
		table[name] = config.Options(def)
	}
	return table, nil
}

// Store holds the role table loaded from a file. It is safe for concurrent
// use.
type Store struct {
	path string

	mu    sync.RWMutex
	table Table
}

// NewStore creates a store for the role file at path. The file is not read
// until Reload is called.
func NewStore(path string) *Store {
	return &Store{path: config.ExpandHome(path), table: Table{}}
}

// NewStaticStore creates a store holding table that is never reloaded from
// disk.
func NewStaticStore(table Table) *Store {
	if table == nil {
		table = Table{}
	}
	return &Store{table: table}
}

// Path returns the role file path.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the role file. A missing file yields an empty table. On any
// other error the previous table is kept.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	table, err := LoadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		table, err = Table{}, nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()
	return nil
}

// Table returns the current table. Callers must not modify it.
func (s *Store) Table() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Names returns the sorted role names.
func (s *Store) Names() []string {
	return slices.Sorted(maps.Keys(s.Table()))
}

// Lookup returns the definition of the named role.
func (s *Store) Lookup(name string) (config.Options, bool) {
	def, ok := s.Table()[name]
	return def, ok
}
