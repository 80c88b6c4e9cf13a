// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(help *bytes.Buffer, ran *[]string) *Command {
	var params struct {
		Limit int  `flag:"limit,n" desc:"maximum rows" default:"10"`
		All   bool `flag:"all" desc:"include finished"`
	}
	list := &Command{
		Name:    "list",
		Summary: "List jobs",
		Flags: func() *pflag.FlagSet {
			return FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			*ran = append(*ran, "list", strings.Join(args, ","))
			if params.All {
				*ran = append(*ran, "all")
			}
			return nil
		},
	}
	cancel := &Command{
		Name:    "cancel",
		Summary: "Cancel a job",
		Run: func(ctx context.Context, args []string) error {
			if err := RequireArgs(args, "id"); err != nil {
				return err
			}
			*ran = append(*ran, "cancel", args[0])
			return nil
		},
	}
	return &Command{
		Name:       "littleci",
		HelpOutput: help,
		Subcommands: []*Command{{
			Name:        "job",
			Summary:     "Inspect jobs",
			Subcommands: []*Command{list, cancel},
		}},
	}
}

func TestExecuteDispatch(t *testing.T) {
	var help bytes.Buffer
	var ran []string
	root := testTree(&help, &ran)

	if err := root.Execute(context.Background(), []string{"job", "list", "--all", "extra"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := root.Execute(context.Background(), []string{"job", "cancel", "abc"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"list", "extra", "all", "cancel", "abc"}
	if strings.Join(ran, "|") != strings.Join(want, "|") {
		t.Errorf("ran = %v, want %v", ran, want)
	}
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	var help bytes.Buffer
	var ran []string
	root := testTree(&help, &ran)

	err := root.Execute(context.Background(), []string{"job", "lst"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "list"`) {
		t.Errorf("error = %v, want suggestion of list", err)
	}
	if !strings.Contains(err.Error(), "littleci job --help") {
		t.Errorf("error = %v, want the full command path", err)
	}

	err = root.Execute(context.Background(), []string{"zzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want no suggestion", err)
	}
}

func TestExecuteUnknownFlagSuggests(t *testing.T) {
	var help bytes.Buffer
	var ran []string
	root := testTree(&help, &ran)

	err := root.Execute(context.Background(), []string{"job", "list", "--limt", "3"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --limit?") {
		t.Errorf("error = %v, want suggestion of --limit", err)
	}
	if len(ran) != 0 {
		t.Errorf("command ran despite a flag error: %v", ran)
	}
}

func TestExecuteHelp(t *testing.T) {
	var help bytes.Buffer
	var ran []string
	root := testTree(&help, &ran)

	if err := root.Execute(context.Background(), []string{"job", "--help"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	output := help.String()
	for _, want := range []string{"Usage:\n  littleci job <command> [flags]", "list", "Cancel a job"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}

	help.Reset()
	if err := root.Execute(context.Background(), []string{"job", "list", "-h"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(help.String(), "--limit") {
		t.Errorf("flag help missing --limit:\n%s", help.String())
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	var help bytes.Buffer
	var ran []string
	root := testTree(&help, &ran)

	err := root.Execute(context.Background(), []string{"job"})
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %v", err)
	}
	if help.Len() == 0 {
		t.Error("help was not printed")
	}
}

func TestRequireArgs(t *testing.T) {
	if err := RequireArgs([]string{"a", "b"}, "slug", "id"); err != nil {
		t.Errorf("RequireArgs: %v", err)
	}
	err := RequireArgs([]string{"a"}, "slug", "id")
	if err == nil || !strings.Contains(err.Error(), "missing argument <id>") {
		t.Errorf("missing error = %v", err)
	}
	err = RequireArgs([]string{"a", "b", "c"}, "slug", "id")
	if err == nil || !strings.Contains(err.Error(), `unexpected argument "c"`) {
		t.Errorf("extra error = %v", err)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"list", "list", 0},
		{"lsit", "list", 2},
		{"cancle", "cancel", 2},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
