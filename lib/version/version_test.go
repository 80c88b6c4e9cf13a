// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInjectedValuesWin(t *testing.T) {
	savedVersion, savedCommit, savedTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = savedVersion, savedCommit, savedTime })

	Version, GitCommit, BuildTime = "1.2.3", "abc1234", "2026-01-02T03:04:05Z"
	build := Current()
	if build.Version != "1.2.3" || build.Commit != "abc1234" || build.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("Current() = %+v", build)
	}
	if !strings.HasPrefix(Info(), "1.2.3 (abc1234") {
		t.Errorf("Info() = %q", Info())
	}
}

func TestFallbacks(t *testing.T) {
	build := Current()
	if build.Commit == "" || build.BuildTime == "" {
		t.Errorf("Current() left fields empty: %+v", build)
	}
	if build.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", build.GoVersion)
	}
	if !strings.Contains(Full(), runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q", Full())
	}
}
