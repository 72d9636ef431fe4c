// Package spool implements the persistent, integer-keyed store that
// bridges Workers and the Coordinator within a block cycle: one file per
// key under a base directory, written via temp-file-then-rename for
// save-atomicity, and encoded with msgpack.
package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
)

// DictionaryKey is the well-known spool key holding the persisted
// Dictionary across job invocations.
const DictionaryKey = 999999

// Spool is a persistent mapping from integer keys to opaque payloads.
// Save/Restore/Remove are safe for concurrent use: concurrent Save calls
// from distinct workers are expected, and Next is a single atomic
// counter shared across workers for idx assignment.
type Spool struct {
	dir     string
	mu      sync.Mutex
	counter atomic.Uint64
}

// Open prepares a spool rooted at dir, creating it if necessary.
func Open(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: create dir: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Next atomically reserves and returns the next idx, starting at 1.
func (s *Spool) Next() uint64 {
	return s.counter.Add(1)
}

// ResetCounter zeroes the idx counter, used by the Coordinator at the
// start of each block cycle so that 1..maxIdx drains exactly that cycle's
// entries — see Coordinator.drainCycle for how this is used.
func (s *Spool) ResetCounter() {
	s.counter.Store(0)
}

// Current reports the highest idx reserved so far this cycle — the
// maxIdx the Coordinator drains 1..maxIdx up to once every worker is
// back in PAUSE.
func (s *Spool) Current() uint64 {
	return s.counter.Load()
}

// Save persists data under idx. Concurrent saves are serialized by the
// spool's mutex around the write and rename.
func (s *Spool) Save(idx uint64, data any) error {
	encoded, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("spool: encode idx %d: %w", idx, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(idx)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("spool: write idx %d: %w", idx, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("spool: commit idx %d: %w", idx, err)
	}
	return nil
}

// Restore decodes the payload stored at idx into out. ok is false if no
// entry exists at idx.
func (s *Spool) Restore(idx uint64, out any) (ok bool, err error) {
	s.mu.Lock()
	data, readErr := os.ReadFile(s.path(idx))
	s.mu.Unlock()

	if readErr != nil {
		if os.IsNotExist(readErr) {
			return false, nil
		}
		return false, fmt.Errorf("spool: read idx %d: %w", idx, readErr)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("spool: decode idx %d: %w", idx, err)
	}
	return true, nil
}

// Remove deletes the entry at idx. Removing a missing key is not an error.
func (s *Spool) Remove(idx uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(idx)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("spool: remove idx %d: %w", idx, err)
	}
	return nil
}

// Depth counts the batch entries currently persisted (the DictionaryKey
// entry is not counted), for the health surface's "how far behind is the
// drain loop" signal. It is O(n) in directory size.
func (s *Spool) Depth() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("spool: read dir: %w", err)
	}
	dictName := filepath.Base(s.path(DictionaryKey))
	n := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".spool" && e.Name() != dictName {
			n++
		}
	}
	return n, nil
}

func (s *Spool) path(idx uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.spool", idx))
}
