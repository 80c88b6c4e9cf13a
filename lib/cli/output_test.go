// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestEmitJSON(t *testing.T) {
	var output bytes.Buffer

	disabled := JSONOutput{}
	done, err := disabled.EmitJSON(&output, []string{"a"})
	if done || err != nil || output.Len() != 0 {
		t.Fatalf("disabled EmitJSON = %v, %v, wrote %q", done, err, output.String())
	}

	enabled := JSONOutput{OutputJSON: true}
	var nilSlice []string
	done, err = enabled.EmitJSON(&output, nilSlice)
	if !done || err != nil {
		t.Fatalf("EmitJSON = %v, %v", done, err)
	}
	if strings.TrimSpace(output.String()) != "[]" {
		t.Errorf("nil slice encoded as %q, want []", output.String())
	}
}

func TestTableRender(t *testing.T) {
	table := NewTable("ID", "STATUS", "REPOSITORY")
	table.Row("0190", "completed", "website")
	table.Row("0191", "failed", "api", "ignored")

	var output bytes.Buffer
	if err := table.Render(&output); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(output.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("rendered %d lines, want 3:\n%s", len(lines), output.String())
	}
	for i, want := range [][]string{{"ID", "STATUS", "REPOSITORY"}, {"0190", "completed", "website"}, {"0191", "failed", "api"}} {
		for _, cell := range want {
			if !strings.Contains(lines[i], cell) {
				t.Errorf("line %d = %q, missing %q", i, lines[i], cell)
			}
		}
	}
	if strings.Contains(output.String(), "ignored") {
		t.Error("extra cell was rendered")
	}
	if table.Len() != 2 {
		t.Errorf("Len = %d", table.Len())
	}
}

func TestFormatting(t *testing.T) {
	if Ago(time.Time{}) != "-" {
		t.Errorf("Ago(zero) = %q", Ago(time.Time{}))
	}
	if got := Ago(time.Now().Add(-3 * time.Hour)); got != "3 hours ago" {
		t.Errorf("Ago = %q", got)
	}
	if got := Bytes(1500); got != "1.5 kB" {
		t.Errorf("Bytes = %q", got)
	}
	if got := Bytes(-1); got != "-" {
		t.Errorf("Bytes(-1) = %q", got)
	}
	if got := Elapsed(90*time.Second + 400*time.Millisecond); got != "1m30s" {
		t.Errorf("Elapsed = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestCommandLoggerWritesJSONWhenPiped(t *testing.T) {
	var output bytes.Buffer
	logger := NewCommandLogger(&output, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("job finished", "job", "abc")

	var record map[string]any
	if err := json.Unmarshal(output.Bytes(), &record); err != nil {
		t.Fatalf("log output %q is not one JSON record: %v", output.String(), err)
	}
	if record["msg"] != "job finished" || record["job"] != "abc" {
		t.Errorf("record = %v", record)
	}
}

func TestReadPasswordFromPipe(t *testing.T) {
	streams := IO{Stdin: strings.NewReader("hunter2\nignored\n"), Stderr: &bytes.Buffer{}}
	password, err := ReadPassword(streams, "Password", true)
	if err != nil || password != "hunter2" {
		t.Errorf("ReadPassword = %q, %v", password, err)
	}

	streams.Stdin = strings.NewReader("\n")
	if _, err := ReadPassword(streams, "Password", false); err == nil {
		t.Error("empty password accepted")
	}
}
