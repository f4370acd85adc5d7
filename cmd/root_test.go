package cmd

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"deskauth/internal/cli"
	"deskauth/pkg/auth"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion("1.2.3-test")
	if GetVersion() != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "deskauth" {
		t.Errorf("Expected Use to be 'deskauth', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" || rootCmd.Long == "" {
		t.Error("Expected Short and Long descriptions to be set")
	}
	if !rootCmd.SilenceUsage || !rootCmd.SilenceErrors {
		t.Error("Expected SilenceUsage and SilenceErrors to be true")
	}
}

func TestSubcommands(t *testing.T) {
	found := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
		for _, sub := range c.Commands() {
			found[c.Name()+" "+sub.Name()] = true
		}
	}

	for _, expected := range []string{
		"version", "self-update", "console",
		"auth login", "auth sso", "auth logout", "auth status", "auth refresh",
		"auth can", "auth permissions", "auth profile", "auth passwd",
		"sessions list", "sessions revoke",
	} {
		if !found[expected] {
			t.Errorf("Expected subcommand %q to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	until := time.Now().Add(time.Minute)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"plain", errors.New("boom"), ExitCodeError},
		{"auth required", &cli.AuthRequiredError{}, ExitCodeAuthRequired},
		{"auth expired", fmt.Errorf("wrapped: %w", &cli.AuthExpiredError{Message: "expired"}), ExitCodeAuthRequired},
		{"auth failed", &cli.AuthFailedError{Reason: auth.ErrInvalidCredentials}, ExitCodeAuthFailed},
		{"locked", &cli.AccountLockedError{Until: &until, Reason: auth.ErrAccountLocked}, ExitCodeAccountLocked},
		{"explicit", &cli.ExitError{Code: 7}, 7},
		{"connection", &cli.ConnectionError{Endpoint: "http://api.test", Reason: errors.New("dial tcp")}, ExitCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVersionFlag(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	SetVersion("1.0.0")
	rootCmd.SetVersionTemplate(`{{printf "deskauth version %s\n" .Version}}`)

	out, _, err := runCLI(t, "", "--version")
	if err != nil {
		t.Fatalf("Error executing --version: %v", err)
	}
	if out != "deskauth version 1.0.0\n" {
		t.Errorf("Expected version output, got %q", out)
	}
}
