package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
	"github.com/zalando/go-keyring"
)

const (
	serviceName     = "savagetech"
	credentialsFile = "credentials.json"

	// lockTimeout bounds the wait for the credentials file lock.
	lockTimeout = 100 * time.Millisecond
)

// ErrNotFound is returned when no credentials are stored for an origin.
var ErrNotFound = errors.New("credentials not found")

// warnings receives keyring fallback notices.
var warnings io.Writer = os.Stderr

// Credentials are the vendor's API identity.
type Credentials struct {
	VendorID     string `json:"vendor_id"`
	VendorSecret string `json:"vendor_secret"`
	SavedAt      int64  `json:"saved_at,omitempty"`
}

// Valid reports whether both halves of the credential are present.
func (c *Credentials) Valid() bool {
	return c != nil && c.VendorID != "" && c.VendorSecret != ""
}

type backend interface {
	name() string
	get(origin string) (*Credentials, error)
	put(origin string, creds *Credentials) error
	remove(origin string) error
}

// Store keeps credentials per API origin in the system keyring, or in a
// 0600 JSON file when no keyring is usable.
type Store struct {
	primary backend
	file    *fileBackend
}

// NewStore picks the keyring when it works and SAVAGETECH_NO_KEYRING is
// unset. Credentials left in the file by an earlier keyring-less run are
// moved into the keyring.
func NewStore(dir string) *Store {
	file := &fileBackend{dir: dir}
	if os.Getenv("SAVAGETECH_NO_KEYRING") != "" {
		return &Store{primary: file, file: file}
	}
	if !keyringUsable() {
		fmt.Fprintf(warnings, "warning: system keyring unavailable, credentials stored in plaintext at %s\n", file.path())
		return &Store{primary: file, file: file}
	}

	s := &Store{primary: keyringBackend{}, file: file}
	if err := s.migrate(); err != nil {
		fmt.Fprintf(warnings, "warning: %v\n", err)
	}
	return s
}

func keyringUsable() bool {
	probe := key("probe")
	if err := keyring.Set(serviceName, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, probe)
	return true
}

// Backend names the storage in use: "keyring" or "file".
func (s *Store) Backend() string {
	return s.primary.name()
}

// Load returns the credentials saved for origin.
func (s *Store) Load(origin string) (*Credentials, error) {
	return s.primary.get(origin)
}

// Save stores creds for origin, replacing any previous value.
func (s *Store) Save(origin string, creds *Credentials) error {
	return s.primary.put(origin, creds)
}

// Delete removes origin's credentials. Missing credentials are not an error.
func (s *Store) Delete(origin string) error {
	return s.primary.remove(origin)
}

// migrate copies file credentials into the keyring and removes the file.
func (s *Store) migrate() error {
	if s.primary == backend(s.file) {
		return nil
	}
	all, err := s.file.readAll()
	if err != nil || len(all) == 0 {
		return nil //nolint:nilerr // an unreadable file has nothing to migrate
	}
	for origin, creds := range all {
		if err := s.primary.put(origin, creds); err != nil {
			return fmt.Errorf("moving credentials for %s into the keyring: %w", origin, err)
		}
	}
	return os.Remove(s.file.path())
}

func key(origin string) string {
	return serviceName + "::" + origin
}

type keyringBackend struct{}

func (keyringBackend) name() string { return "keyring" }

func (keyringBackend) get(origin string) (*Credentials, error) {
	raw, err := keyring.Get(serviceName, key(origin))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, origin)
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("keyring entry for %s is corrupt: %w", origin, err)
	}
	return &creds, nil
}

func (keyringBackend) put(origin string, creds *Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, key(origin), string(raw))
}

func (keyringBackend) remove(origin string) error {
	err := keyring.Delete(serviceName, key(origin))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// fileBackend keeps every origin in one JSON object keyed by origin.
type fileBackend struct {
	dir string
}

func (f *fileBackend) name() string { return "file" }

func (f *fileBackend) path() string {
	return filepath.Join(f.dir, credentialsFile)
}

func (f *fileBackend) get(origin string) (*Credentials, error) {
	all, err := f.readAll()
	if err != nil {
		return nil, err
	}
	creds := all[origin]
	if creds == nil {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, origin)
	}
	return creds, nil
}

func (f *fileBackend) put(origin string, creds *Credentials) error {
	return f.update(func(all map[string]*Credentials) {
		all[origin] = creds
	})
}

func (f *fileBackend) remove(origin string) error {
	return f.update(func(all map[string]*Credentials) {
		delete(all, origin)
	})
}

// update runs a read-modify-write under the directory lock. When the lock
// is not won within lockTimeout the write goes ahead unlocked.
func (f *fileBackend) update(fn func(map[string]*Credentials)) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return err
	}
	fl := flock.New(filepath.Join(f.dir, ".credentials.lock"))
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("locking credentials: %w", err)
	}
	if locked {
		defer func() { _ = fl.Unlock() }()
	}

	all, err := f.readAll()
	if err != nil {
		return err
	}
	fn(all)
	return f.writeAll(all)
}

func (f *fileBackend) readAll() (map[string]*Credentials, error) {
	all := make(map[string]*Credentials)
	data, err := os.ReadFile(f.path())
	if os.IsNotExist(err) {
		return all, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path(), err)
	}
	if all == nil {
		all = make(map[string]*Credentials)
	}
	return all, nil
}

func (f *fileBackend) writeAll(all map[string]*Credentials) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "credentials-*.tmp")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		return cleanup(err)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}

	if runtime.GOOS == "windows" {
		_ = os.Remove(f.path())
	}
	if err := os.Rename(tmp.Name(), f.path()); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
