package credstore

const redacted = "[REDACTED]"

// Secret wraps a token string so it cannot leak through fmt, slog or
// encoding/json. Only Value exposes the raw string.
type Secret struct {
	value string
}

// NewSecret wraps value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Value returns the raw token. Use it only for Authorization headers and
// persistence.
func (s Secret) Value() string {
	return s.value
}

// IsEmpty reports whether no token is held.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return "credstore.Secret{" + redacted + "}"
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
