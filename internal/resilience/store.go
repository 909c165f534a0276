// Package resilience guards vendor API traffic with a circuit breaker and
// Retry-After backoff whose state is shared across CLI processes through a
// locked file in the cache directory.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	stateFileName = "state.json"
	dirName       = "resilience"

	// LockTimeout bounds the wait for the state lock. Past it the store
	// proceeds unlocked so a wedged process never hangs the CLI.
	LockTimeout = 100 * time.Millisecond
)

// Store persists State with file locking.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// StoreDir returns the per-origin state directory under cacheDir.
func StoreDir(cacheDir, origin string) string {
	return filepath.Join(cacheDir, dirName, originKey(origin))
}

func originKey(origin string) string {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	if host == "" {
		return "default"
	}
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(host)
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the state file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, stateFileName)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.dir, ".lock")
}

// lock takes the directory lock. A nil lock with a nil error means the
// timeout passed and the caller runs unlocked.
func (s *Store) lock() (*flock.Flock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}
	fl := flock.New(s.lockPath())

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

func unlock(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}

// Load reads the state, returning a fresh one when none is saved.
func (s *Store) Load() (*State, error) {
	fl, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock(fl)
	return s.read()
}

// Update applies fn to the state under the lock and saves the result.
func (s *Store) Update(fn func(*State) error) error {
	fl, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock(fl)

	state, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	return s.write(state)
}

// Clear removes the saved state.
func (s *Store) Clear() error {
	fl, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock(fl)

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) read() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil || state.Version != StateVersion {
		// Corrupt or foreign files reset rather than wedge every request.
		return NewState(), nil
	}
	return &state, nil
}

func (s *Store) write(state *State) error {
	state.Version = StateVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp names keep unlocked writers from clobbering each other.
	tmp := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
