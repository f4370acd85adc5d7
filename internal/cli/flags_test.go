package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCommonFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := &CommandFlags{}
	RegisterCommonFlags(cmd, flags)

	for _, name := range []string{"output", "no-headers", "quiet", "debug", "config-path", "api-url", "storage", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s should be registered", name)
	}
	assert.Equal(t, "o", cmd.PersistentFlags().Lookup("output").Shorthand)
	assert.Equal(t, "q", cmd.PersistentFlags().Lookup("quiet").Shorthand)

	require.NoError(t, cmd.PersistentFlags().Parse([]string{"-o", "json", "--api-url", "http://api.test", "--storage", "sqlite", "-q"}))
	assert.Equal(t, "json", flags.OutputFormat)
	assert.Equal(t, "http://api.test", flags.APIBaseURL)
	assert.Equal(t, "sqlite", flags.StorageBackend)
	assert.True(t, flags.Quiet)
	assert.NoError(t, flags.Validate())
}

func TestCommandFlags_ToAppConfig(t *testing.T) {
	flags := &CommandFlags{
		Quiet:          true,
		ConfigPath:     "/tmp/deskauth",
		APIBaseURL:     "http://api.test",
		StorageBackend: "file",
		LogLevel:       "info",
		LogFormat:      "json",
	}
	cfg := flags.ToAppConfig("1.2.3")
	assert.True(t, cfg.Silent)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "/tmp/deskauth", cfg.ConfigPath)
	assert.Equal(t, "http://api.test", cfg.APIBaseURL)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "1.2.3", cfg.Version)

	flags.Debug = true
	assert.False(t, flags.ToAppConfig("").Silent)
}
