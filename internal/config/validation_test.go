package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "missing base URL",
			mutate: func(c *Config) { c.API.BaseURL = " " },
			fields: []string{"api.baseURL"},
		},
		{
			name:   "relative base URL",
			mutate: func(c *Config) { c.API.BaseURL = "/api" },
			fields: []string{"api.baseURL"},
		},
		{
			name:   "half-configured identity",
			mutate: func(c *Config) { c.Identity.ClientID = "abc" },
			fields: []string{"identity"},
		},
		{
			name:   "plain http authority",
			mutate: func(c *Config) { c.Identity.AuthorityHost = "http://login.example.com" },
			fields: []string{"identity.authorityHost"},
		},
		{
			name: "warning above lockout",
			mutate: func(c *Config) {
				c.Session.WarningThreshold = 6
				c.Session.LockoutThreshold = 5
			},
			fields: []string{"session.warningThreshold"},
		},
		{
			name: "several problems at once",
			mutate: func(c *Config) {
				c.Session.LockoutThreshold = 0
				c.Session.WarningThreshold = 0
				c.Session.RenewalInterval = 0
				c.Storage.Backend = "etcd"
				c.Log.Format = "xml"
			},
			fields: []string{"session.lockoutThreshold", "session.renewalInterval", "storage.backend", "log.format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			got := make([]string, 0, len(verrs))
			for _, ve := range verrs {
				got = append(got, ve.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is wrong")
	assert.Equal(t, "field 'a': is wrong", errs.Error())

	errs.Add("", "plain message")
	assert.Equal(t, "validation failed: field 'a': is wrong; plain message", errs.Error())
}
