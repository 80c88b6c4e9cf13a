// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_BasicTypes(t *testing.T) {
	type params struct {
		Name     string        `flag:"name" desc:"the name"`
		Verbose  bool          `flag:"verbose,v" desc:"enable verbose output"`
		Count    int           `flag:"count" desc:"number of items"`
		Timeout  time.Duration `flag:"timeout" desc:"request timeout"`
		Env      []string      `flag:"env,e" desc:"KEY=VALUE pairs"`
		Untagged string
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	err := flagSet.Parse([]string{
		"--name", "alice",
		"-v",
		"--count", "42",
		"--timeout", "30s",
		"-e", "A=1,2",
		"--env", "B=3",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Name != "alice" || !p.Verbose || p.Count != 42 || p.Timeout != 30*time.Second {
		t.Errorf("params = %+v", p)
	}
	if len(p.Env) != 2 || p.Env[0] != "A=1,2" || p.Env[1] != "B=3" {
		t.Errorf("Env = %v, want values kept whole", p.Env)
	}
	if p.Untagged != "" {
		t.Errorf("Untagged = %q, want it skipped", p.Untagged)
	}
}

func TestBindFlags_Defaults(t *testing.T) {
	type params struct {
		Host    string        `flag:"host" default:"localhost"`
		Port    int           `flag:"port" default:"8000"`
		Timeout time.Duration `flag:"timeout" default:"10s"`
		Debug   bool          `flag:"debug" default:"true"`
	}
	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Host != "localhost" || p.Port != 8000 || p.Timeout != 10*time.Second || !p.Debug {
		t.Errorf("defaults = %+v", p)
	}
}

func TestBindFlags_Embedded(t *testing.T) {
	type params struct {
		JSONOutput
		Limit int `flag:"limit"`
	}
	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := flagSet.Parse([]string{"--json", "--limit", "5"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.OutputJSON || p.Limit != 5 {
		t.Errorf("params = %+v", p)
	}
}

func TestBindFlags_Errors(t *testing.T) {
	var notPointer struct{}
	if err := BindFlags(notPointer, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags accepted a non-pointer")
	}

	var unsupported struct {
		Ratio float32 `flag:"ratio"`
	}
	if err := BindFlags(&unsupported, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags accepted float32")
	}

	var badDefault struct {
		Count int `flag:"count" default:"many"`
	}
	if err := BindFlags(&badDefault, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags accepted a non-numeric default")
	}

	defer func() {
		if recover() == nil {
			t.Error("FlagsFromParams did not panic")
		}
	}()
	FlagsFromParams("x", &badDefault)
}
