// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "littleci.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Authentication != AuthenticationSimple {
		t.Errorf("expected authentication=simple, got %s", cfg.Authentication)
	}
	if cfg.Engine.Workers != 1 {
		t.Errorf("expected engine.workers=1, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.PollInterval != 2*time.Second {
		t.Errorf("expected engine.poll_interval=2s, got %s", cfg.Engine.PollInterval)
	}
	if cfg.ListenAddress() != "127.0.0.1:8000" {
		t.Errorf("expected listen address 127.0.0.1:8000, got %s", cfg.ListenAddress())
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("HOME", "/home/ci")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DataDir != "/home/ci/.local/share/littleci" {
		t.Errorf("expected data_dir under HOME, got %s", cfg.DataDir)
	}
	if cfg.AdminSocket != "/home/ci/.local/share/littleci/littleci.sock" {
		t.Errorf("expected admin_socket in data_dir, got %s", cfg.AdminSocket)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/littleci
port: 9000
authentication: none
engine:
  workers: 4
  poll_interval: 500ms
  cancel_grace: 3s
tokens:
  lifetime: 1h
`)
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DataDir != "/srv/littleci" {
		t.Errorf("expected data_dir=/srv/littleci, got %s", cfg.DataDir)
	}
	if cfg.Port != 9000 || cfg.Authentication != AuthenticationNone {
		t.Errorf("expected port=9000 authentication=none, got %d %s", cfg.Port, cfg.Authentication)
	}
	if cfg.Engine.Workers != 4 || cfg.Engine.PollInterval != 500*time.Millisecond || cfg.Engine.CancelGrace != 3*time.Second {
		t.Errorf("unexpected engine config: %+v", cfg.Engine)
	}
	// Values the file leaves out keep their defaults.
	if cfg.Engine.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected default shutdown_timeout, got %s", cfg.Engine.ShutdownTimeout)
	}
	if cfg.Tokens.Lifetime != time.Hour {
		t.Errorf("expected tokens.lifetime=1h, got %s", cfg.Tokens.Lifetime)
	}
	if cfg.AdminSocket != "/srv/littleci/littleci.sock" {
		t.Errorf("expected admin_socket=/srv/littleci/littleci.sock, got %s", cfg.AdminSocket)
	}
}

func TestLoadFlagWinsOverEnvironment(t *testing.T) {
	fromEnvironment := writeConfig(t, "port: 1111\n")
	fromFlag := writeConfig(t, "port: 2222\n")
	t.Setenv(EnvConfig, fromEnvironment)

	cfg, err := Load(fromFlag)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != 2222 {
		t.Errorf("expected the flag's port 2222, got %d", cfg.Port)
	}
}

func TestDataDirDefaultsToConfigDirectory(t *testing.T) {
	path := writeConfig(t, "port: 8080\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.DataDir != filepath.Dir(path) {
		t.Errorf("expected data_dir=%s, got %s", filepath.Dir(path), cfg.DataDir)
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("LITTLECI_TEST_ROOT", "/opt/ci")
	path := writeConfig(t, `
data_dir: ${LITTLECI_TEST_ROOT}/data
admin_socket: ${LITTLECI_SOCKET_DIR:-/run/littleci}/admin.sock
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.DataDir != "/opt/ci/data" {
		t.Errorf("expected data_dir=/opt/ci/data, got %s", cfg.DataDir)
	}
	if cfg.AdminSocket != "/run/littleci/admin.sock" {
		t.Errorf("expected the default socket directory, got %s", cfg.AdminSocket)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("LITTLECI_TEST_VAR", "from-env")
	vars := map[string]string{"LITTLECI_DATA": "/data"}

	tests := []struct {
		input string
		want  string
	}{
		{"${LITTLECI_DATA}/x", "/data/x"},
		{"${LITTLECI_TEST_VAR}", "from-env"},
		{"${LITTLECI_UNSET_VAR:-fallback}", "fallback"},
		{"${LITTLECI_UNSET_VAR}", ""},
		{"no variables", "no variables"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := LoadFile(writeConfig(t, "port: [1, 2]\n")); err == nil {
		t.Error("expected error for a malformed file")
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	cfg.Port = 70000
	cfg.Authentication = "ldap"
	cfg.SiteURL = "localhost"
	cfg.Engine.Workers = 0
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}
	for _, fragment := range []string{"port", "authentication", "site_url", "engine.workers", "log_level"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Validate() error does not mention %s: %v", fragment, err)
		}
	}
}
