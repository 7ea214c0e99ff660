package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"reelsync/internal/testsupport"
)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Println("ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers")
	fmt.Println("built with gcc")
	os.Exit(0)
}

func fakeCommand(t *testing.T) {
	t.Helper()
	previous := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = previous })
}

func TestCheckBinaries(t *testing.T) {
	fakeCommand(t)
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present, VersionFlag: "-version"},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Version != "ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers" {
		t.Fatalf("unexpected version %q", results[0].Version)
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("Missing should report only required failures, got %#v", missing)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	reqs := Requirements(cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected ffprobe and ffmpeg, got %d", len(reqs))
	}
	for _, status := range CheckBinaries(context.Background(), reqs) {
		if !status.Available {
			t.Fatalf("stubbed %s should be available: %s", status.Name, status.Detail)
		}
	}
}
