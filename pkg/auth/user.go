package auth

import (
	"encoding/json"
	"sort"
	"time"
)

// Well-known role names assigned by the backend and by directory sign-in.
const (
	RoleGlobalAdmin = "global_admin"
	RoleGeneralUser = "general_user"
	RoleGuest       = "guest"
)

// PermissionSet is the capability set granted to a user. It travels as a JSON
// array of strings and is held as a set in memory.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from the given capability names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set. A nil set has no members.
func (p PermissionSet) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Names returns the capability names in sorted order.
func (p PermissionSet) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes the set as a sorted array.
func (p PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Names())
}

// UnmarshalJSON decodes an array of capability names.
func (p *PermissionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*p = NewPermissionSet(names...)
	return nil
}

// User is the authenticated identity as returned by GET /api/auth/me.
type User struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Role        string        `json:"role"`
	Permissions PermissionSet `json:"permissions"`
	Avatar      string        `json:"avatar,omitempty"`
}

// Clone returns a deep copy so callers can't mutate the manager's user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Permissions = NewPermissionSet(u.Permissions.Names()...)
	return &c
}

// Session is a read-only projection of one backend login session.
type Session struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	LastActive time.Time `json:"lastActive"`
	Current    bool      `json:"current"`
}

// AccountLock describes a local lockout window.
type AccountLock struct {
	Locked bool
	Until  *time.Time
}

// Remaining returns how long the lock still holds at now, or zero.
func (l AccountLock) Remaining(now time.Time) time.Duration {
	if !l.Locked || l.Until == nil {
		return 0
	}
	if d := l.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
