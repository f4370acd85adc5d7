package idp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AccountCacheFileName is the file FileAccountCache keeps in its directory.
const AccountCacheFileName = "idp_accounts.json"

// Account is a directory account that signed in on this machine.
type Account struct {
	// HomeAccountID is "<oid>.<tid>".
	HomeAccountID string `json:"home_account_id"`
	Username      string `json:"username"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	TenantID      string `json:"tenant_id"`
	// RefreshToken backs silent acquisition. It is persisted but never
	// logged.
	RefreshToken string `json:"refresh_token"`
}

// AccountCache stores accounts in most-recently-used order. An empty path
// keeps the cache in memory only.
type AccountCache struct {
	mu       sync.Mutex
	path     string
	accounts []Account
	loaded   bool
}

// NewAccountCache returns a cache persisted at dir/idp_accounts.json, or an
// in-memory cache when dir is empty.
func NewAccountCache(dir string) (*AccountCache, error) {
	c := &AccountCache{}
	if dir == "" {
		c.loaded = true
		return c, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create account cache directory: %w", err)
	}
	c.path = filepath.Join(dir, AccountCacheFileName)
	return c, nil
}

// Accounts returns a copy of the cached accounts, most recent first.
func (c *AccountCache) Accounts() ([]Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return nil, err
	}
	return append([]Account(nil), c.accounts...), nil
}

// Put inserts or replaces acct and moves it to the front.
func (c *AccountCache) Put(acct Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return err
	}

	next := []Account{acct}
	for _, a := range c.accounts {
		if a.HomeAccountID != acct.HomeAccountID {
			next = append(next, a)
		}
	}
	return c.saveLocked(next)
}

// Clear forgets every account.
func (c *AccountCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = true
	c.accounts = nil
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove account cache: %w", err)
	}
	return nil
}

// REQUIRES: c.mu held.
func (c *AccountCache) loadLocked() error {
	if c.loaded {
		return nil
	}

	// #nosec G304 -- path is fixed at construction
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		c.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read account cache: %w", err)
	}

	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return fmt.Errorf("failed to parse account cache: %w", err)
	}
	c.accounts = accounts
	c.loaded = true
	return nil
}

// REQUIRES: c.mu held.
func (c *AccountCache) saveLocked(accounts []Account) error {
	if c.path != "" {
		data, err := json.MarshalIndent(accounts, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal account cache: %w", err)
		}
		tmp := c.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("failed to write account cache: %w", err)
		}
		if err := os.Rename(tmp, c.path); err != nil {
			return fmt.Errorf("failed to replace account cache: %w", err)
		}
	}
	c.accounts = accounts
	return nil
}
