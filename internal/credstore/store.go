package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deskauth/pkg/auth"
)

// Keys under which the record is persisted. Every backend uses the same
// four entries so an install can switch backends by copying values.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpiry  = "token_expiry"
	KeyUser         = "user"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpiry, KeyUser}

var (
	// ErrNotFound is returned by Load when nothing is persisted.
	ErrNotFound = errors.New("no stored credentials")
	// ErrCorrupt is returned by Load when a persisted value cannot be decoded.
	ErrCorrupt = errors.New("stored credentials are corrupt")
)

// Credentials is the token material of a session.
type Credentials struct {
	AccessToken  Secret
	RefreshToken Secret
	// Expiry is zero when unknown.
	Expiry time.Time
}

// Expired reports whether the access token is unusable at now. A zero
// expiry never expires.
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Record is everything persisted for one signed-in user.
type Record struct {
	Credentials Credentials
	User        *auth.User
}

// Complete reports whether the record can back an authenticated session.
func (r *Record) Complete() bool {
	return r != nil && !r.Credentials.AccessToken.IsEmpty() && r.User != nil
}

// Store persists a Record. Implementations must be safe for concurrent use
// and must apply Save, SaveCredentials and Clear atomically: a reader sees
// either the previous or the new state, never a mix.
type Store interface {
	// Load returns ErrNotFound when empty and an error wrapping ErrCorrupt
	// when a value cannot be decoded.
	Load(ctx context.Context) (*Record, error)
	// Save replaces all four entries.
	Save(ctx context.Context, rec Record) error
	// SaveCredentials replaces the access token and expiry and keeps the
	// stored user. The stored refresh token is replaced only when creds
	// carries one, so renewals that do not rotate it keep it.
	SaveCredentials(ctx context.Context, creds Credentials) error
	// Clear removes every entry. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

func encodeRecord(rec Record) (map[string]string, error) {
	values := encodeCredentials(rec.Credentials)
	if rec.User != nil {
		data, err := json.Marshal(rec.User)
		if err != nil {
			return nil, fmt.Errorf("encode user: %w", err)
		}
		values[KeyUser] = string(data)
	}
	return values, nil
}

func encodeCredentials(creds Credentials) map[string]string {
	values := map[string]string{}
	if !creds.AccessToken.IsEmpty() {
		values[KeyAccessToken] = creds.AccessToken.Value()
	}
	if !creds.RefreshToken.IsEmpty() {
		values[KeyRefreshToken] = creds.RefreshToken.Value()
	}
	if !creds.Expiry.IsZero() {
		values[KeyTokenExpiry] = creds.Expiry.UTC().Format(time.RFC3339)
	}
	return values
}

// mergeCredentials overlays creds on the current entries following the
// SaveCredentials contract.
func mergeCredentials(current map[string]string, creds Credentials) map[string]string {
	values := encodeCredentials(creds)
	if user, ok := current[KeyUser]; ok {
		values[KeyUser] = user
	}
	if _, ok := values[KeyRefreshToken]; !ok {
		if rt, ok := current[KeyRefreshToken]; ok {
			values[KeyRefreshToken] = rt
		}
	}
	return values
}

func decodeRecord(values map[string]string) (*Record, error) {
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	rec := &Record{
		Credentials: Credentials{
			AccessToken:  NewSecret(values[KeyAccessToken]),
			RefreshToken: NewSecret(values[KeyRefreshToken]),
		},
	}

	if raw := values[KeyTokenExpiry]; raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeyTokenExpiry, err)
		}
		rec.Credentials.Expiry = expiry
	}

	if raw := values[KeyUser]; raw != "" {
		var user auth.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeyUser, err)
		}
		rec.User = &user
	}

	return rec, nil
}
