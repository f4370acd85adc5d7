package idp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity fields read from an id_token or access token.
// Signatures are not verified: the token came straight from the token
// endpoint over TLS and is only used for display and bookkeeping.
type Claims struct {
	ObjectID          string
	TenantID          string
	Name              string
	PreferredUsername string
	Email             string
	ExpiresAt         time.Time
}

// ParseClaims decodes the payload of a JWT without verifying it.
func ParseClaims(raw string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return Claims{}, fmt.Errorf("parse token claims: %w", err)
	}

	c := Claims{
		ObjectID:          stringClaim(mc, "oid"),
		TenantID:          stringClaim(mc, "tid"),
		Name:              stringClaim(mc, "name"),
		PreferredUsername: stringClaim(mc, "preferred_username"),
		Email:             stringClaim(mc, "email"),
	}
	if c.ObjectID == "" {
		c.ObjectID = stringClaim(mc, "sub")
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// TokenExpiry returns the exp claim of a JWT access token. Opaque tokens
// report false.
func TokenExpiry(raw string) (time.Time, bool) {
	c, err := ParseClaims(raw)
	if err != nil || c.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return c.ExpiresAt, true
}

func stringClaim(mc jwt.MapClaims, key string) string {
	if v, ok := mc[key].(string); ok {
		return v
	}
	return ""
}
