package tmux

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func findTmux(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("tmux")
	if err != nil {
		t.Skip("tmux not found in PATH")
	}
	return path
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version, min string
		want         bool
	}{
		{"3.4", "3.0", true},
		{"3.0", "3.0", true},
		{"2.9", "3.0", false},
		{"3.3a", "3.3", true},
		{"next-3.5", "3.4", true},
		{"10.1", "3.0", true},
	}
	for _, tt := range tests {
		if got := VersionAtLeast(tt.version, tt.min); got != tt.want {
			t.Errorf("VersionAtLeast(%q, %q) = %v, want %v", tt.version, tt.min, got, tt.want)
		}
	}
}

func TestVersion(t *testing.T) {
	tmuxPath := findTmux(t)
	version, err := Version(context.Background(), tmuxPath)
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if !strings.ContainsAny(version, "0123456789") {
		t.Errorf("Version() = %q, expected to contain digits", version)
	}
}

func TestRunnerSession(t *testing.T) {
	tmuxPath := findTmux(t)
	ctx := context.Background()
	runner := New(tmuxPath, t.TempDir()+"/test.sock")

	if _, err := runner.Run(ctx, "new-session", "-d", "-x", "80", "-y", "24", "--", "/bin/sh"); err != nil {
		t.Fatalf("new-session: %v", err)
	}
	defer runner.Run(ctx, "kill-server")

	if err := runner.WaitForSession(ctx, 5*time.Second); err != nil {
		t.Fatalf("WaitForSession: %v", err)
	}
	out, err := runner.Run(ctx, "list-panes", "-F", "#{pane_id}")
	if err != nil || strings.TrimSpace(out) == "" {
		t.Fatalf("list-panes = %q, %v", out, err)
	}
}

func TestRunnerError(t *testing.T) {
	tmuxPath := findTmux(t)
	runner := New(tmuxPath, t.TempDir()+"/missing.sock")

	_, err := runner.Run(context.Background(), "list-panes")
	var tmuxErr *Error
	if !errors.As(err, &tmuxErr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if tmuxErr.Op != "list-panes" {
		t.Errorf("Op = %q, want list-panes", tmuxErr.Op)
	}
}
