// Package statestore persists the last-known WagonState per watched
// variant as a flat, human-diffable JSON file. The whole mapping is
// rewritten atomically on every update; only one worker writes at a
// time by the session-exclusivity invariant.
package statestore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/weberkan/raywatch/internal/model"
)

// Store reads and writes the JSON state file at Path.
type Store struct {
	Path string
}

// New returns a Store backed by the given file path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load reads the full state mapping. A missing file is empty state.
// A corrupt file is treated as empty state and logged, never fatal.
func (s *Store) Load() (map[string]model.WagonState, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]model.WagonState{}, nil
		}
		return nil, fmt.Errorf("statestore: read %s: %w", s.Path, err)
	}

	state := map[string]model.WagonState{}
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("statestore: %s is corrupt (%v), starting from empty state", s.Path, err)
		return map[string]model.WagonState{}, nil
	}
	return state, nil
}

// Save writes the full state mapping with replace-whole-file semantics:
// the mapping is written to a temp file in the same directory and then
// renamed over the target, so partial writes are never observable.
func (s *Store) Save(state map[string]model.WagonState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("statestore: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("statestore: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statestore: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statestore: rename to %s: %w", s.Path, err)
	}
	return nil
}

// Get loads the state for a single watch key.
func (s *Store) Get(key model.WatchKey) (model.WagonState, bool, error) {
	state, err := s.Load()
	if err != nil {
		return model.WagonState{}, false, err
	}
	ws, ok := state[KeyFor(key)]
	return ws, ok, nil
}

// KeyFor returns the deterministic string encoding of a watch key:
// FROM_TO_DATE_WAGON_Np with station names normalized so that case and
// diacritic variants of the same station always produce the same key.
func KeyFor(k model.WatchKey) string {
	return fmt.Sprintf("%s_%s_%s_%s_%dp",
		NormalizeStation(k.From), NormalizeStation(k.To), k.Date, k.Wagon, k.Passengers)
}
