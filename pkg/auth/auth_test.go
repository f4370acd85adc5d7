package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	user := &User{ID: "u1", Permissions: NewPermissionSet("incident.read", "incident.write")}

	t.Run("nil user holds nothing", func(t *testing.T) {
		for _, p := range []string{"", "incident.read", "anything"} {
			assert.False(t, Evaluate(nil, p), "permission %q", p)
		}
	})

	t.Run("membership", func(t *testing.T) {
		assert.True(t, Evaluate(user, "incident.read"))
		assert.True(t, Evaluate(user, "incident.write"))
		assert.False(t, Evaluate(user, "change.approve"))
		assert.False(t, Evaluate(user, ""))
	})

	t.Run("user with nil permission set", func(t *testing.T) {
		assert.False(t, Evaluate(&User{ID: "u2"}, "incident.read"))
	})
}

func TestEvaluateAnyAll(t *testing.T) {
	user := &User{Permissions: NewPermissionSet("read", "write")}

	assert.True(t, EvaluateAny(user, "admin", "write"))
	assert.False(t, EvaluateAny(user, "admin", "delete"))
	assert.False(t, EvaluateAny(user))
	assert.False(t, EvaluateAny(nil, "read"))

	assert.True(t, EvaluateAll(user, "read", "write"))
	assert.False(t, EvaluateAll(user, "read", "admin"))
	assert.True(t, EvaluateAll(user))
	assert.False(t, EvaluateAll(nil))
}

func TestPermissionSet_JSON(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","name":"Ann","email":"ann@example.com","role":"general_user","permissions":["write","read","read"]}`), &u))

	assert.True(t, u.Permissions.Has("read"))
	assert.True(t, u.Permissions.Has("write"))
	assert.Len(t, u.Permissions, 2)

	out, err := json.Marshal(u.Permissions)
	require.NoError(t, err)
	assert.JSONEq(t, `["read","write"]`, string(out))
}

func TestUser_Clone(t *testing.T) {
	orig := &User{ID: "1", Permissions: NewPermissionSet("read")}
	c := orig.Clone()
	c.Permissions["write"] = struct{}{}
	c.Name = "changed"

	assert.False(t, orig.Permissions.Has("write"))
	assert.Empty(t, orig.Name)
	assert.Nil(t, (*User)(nil).Clone())
}

func TestAccountLock_Remaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(30 * time.Minute)

	assert.Equal(t, 30*time.Minute, AccountLock{Locked: true, Until: &until}.Remaining(now))
	assert.Zero(t, AccountLock{Locked: true, Until: &until}.Remaining(until.Add(time.Second)))
	assert.Zero(t, AccountLock{}.Remaining(now))
}

func TestError_IsByKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("login: %w", NewError(KindNetworkOrServer, "server unreachable", cause))

	assert.True(t, errors.Is(err, ErrNetworkOrServer))
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindNetworkOrServer, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(cause))
	assert.Equal(t, "server unreachable", NewError(KindNetworkOrServer, "server unreachable", cause).Error())
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInvalidCredentials, "InvalidCredentials"},
		{KindAccountLocked, "AccountLocked"},
		{KindMfaRequired, "MfaRequired"},
		{KindMfaInvalid, "MfaInvalid"},
		{KindNetworkOrServer, "NetworkOrServerError"},
		{KindTokenRenewalFailed, "TokenRenewalFailed"},
		{KindNotAuthenticated, "NotAuthenticated"},
		{Kind(99), "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}
