// Package auth resolves and stores SavageTech vendor credentials.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/output"
)

// Credential sources reported by Status.
const (
	SourceEnv  = "env"
	SourceNone = "none"
)

// Manager resolves vendor credentials for the configured API origin.
type Manager struct {
	cfg   *config.Config
	store *Store

	mu sync.Mutex
}

// NewManager creates a new auth manager backed by the default store.
func NewManager(cfg *config.Config) *Manager {
	return NewManagerWithStore(cfg, NewStore(config.GlobalConfigDir()))
}

// NewManagerWithStore creates a manager over an explicit store.
func NewManagerWithStore(cfg *config.Config, store *Store) *Manager {
	return &Manager{cfg: cfg, store: store}
}

func (m *Manager) origin() string {
	return config.NormalizeAPIURL(m.cfg.APIURL)
}

// Credentials returns the vendor credentials to use. Environment values
// (SAVAGETECH_VENDOR_ID / SAVAGETECH_VENDOR_SECRET) win over stored ones.
func (m *Manager) Credentials() (*Credentials, error) {
	if m.cfg.VendorID != "" && m.cfg.VendorSecret != "" {
		return &Credentials{VendorID: m.cfg.VendorID, VendorSecret: m.cfg.VendorSecret}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Load(m.origin())
	if err != nil || !creds.Valid() {
		return nil, output.ErrAuth("No vendor credentials for " + m.origin())
	}
	return creds, nil
}

// IsAuthenticated reports whether usable credentials exist.
func (m *Manager) IsAuthenticated() bool {
	_, err := m.Credentials()
	return err == nil
}

// Login stores credentials for the configured origin.
func (m *Manager) Login(creds Credentials) error {
	if !creds.Valid() {
		return output.ErrUsage("vendor id and vendor secret are both required")
	}
	creds.SavedAt = time.Now().Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(m.origin(), &creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// Logout removes stored credentials for the configured origin.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(m.origin())
}

// Status describes the credentials in effect.
type Status struct {
	Origin        string `json:"origin"`
	Authenticated bool   `json:"authenticated"`
	Source        string `json:"source"`
	VendorID      string `json:"vendor_id,omitempty"`
	SavedAt       int64  `json:"saved_at,omitempty"`
}

// Status reports where credentials come from without revealing the secret.
func (m *Manager) Status() (*Status, error) {
	st := &Status{Origin: m.origin(), Source: SourceNone}

	if m.cfg.VendorID != "" && m.cfg.VendorSecret != "" {
		st.Authenticated = true
		st.Source = SourceEnv
		st.VendorID = m.cfg.VendorID
		return st, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Load(st.Origin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return st, nil
		}
		return nil, err
	}
	st.Authenticated = creds.Valid()
	st.Source = m.store.Backend()
	st.VendorID = creds.VendorID
	st.SavedAt = creds.SavedAt
	return st, nil
}
