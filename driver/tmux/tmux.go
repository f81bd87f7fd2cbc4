// Package tmux runs tmux commands against a private server socket.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// MinVersion is the oldest tmux known to support everything Terminal uses.
const MinVersion = "3.0"

// Runner executes tmux commands against one server socket.
type Runner struct {
	tmuxPath   string
	socketPath string
	configPath string
}

// New creates a Runner bound to the given tmux binary and socket path.
func New(tmuxPath, socketPath string) *Runner {
	return &Runner{
		tmuxPath:   tmuxPath,
		socketPath: socketPath,
	}
}

// SetConfigPath makes every invocation pass -f path.
func (r *Runner) SetConfigPath(path string) {
	r.configPath = path
}

// Run executes a tmux command and returns its stdout.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	var fullArgs []string
	if r.configPath != "" {
		fullArgs = append(fullArgs, "-f", r.configPath)
	}
	fullArgs = append(fullArgs, "-S", r.socketPath)
	fullArgs = append(fullArgs, args...)
	cmd := exec.CommandContext(ctx, r.tmuxPath, fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		op := ""
		if len(args) > 0 {
			op = args[0]
		}
		return "", &Error{
			Op:     op,
			Args:   fullArgs,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.String(), nil
}

func (r *Runner) SocketPath() string { return r.socketPath }

func (r *Runner) TmuxPath() string { return r.tmuxPath }

// Error is a failed tmux command.
type Error struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("tmux %s failed: %v", e.Op, e.Err)
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Version runs "tmux -V" and returns the bare version, e.g. "3.4".
func Version(ctx context.Context, tmuxPath string) (string, error) {
	cmd := exec.CommandContext(ctx, tmuxPath, "-V")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tmux -V failed: %v (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	// "tmux 3.4", "tmux next-3.5", "tmux 3.3a"
	return strings.TrimPrefix(strings.TrimSpace(stdout.String()), "tmux "), nil
}

// VersionAtLeast compares dotted major.minor versions, ignoring prefixes
// like "next-" and letter suffixes like "3.3a".
func VersionAtLeast(version, minVersion string) bool {
	vMajor, vMinor := parseVersion(version)
	mMajor, mMinor := parseVersion(minVersion)
	if vMajor != mMajor {
		return vMajor > mMajor
	}
	return vMinor >= mMinor
}

func parseVersion(v string) (major, minor int) {
	if i := strings.LastIndexByte(v, '-'); i >= 0 {
		v = v[i+1:]
	}
	majorStr, minorStr, _ := strings.Cut(v, ".")
	major, _ = strconv.Atoi(leadingDigits(majorStr))
	minor, _ = strconv.Atoi(leadingDigits(minorStr))
	return major, minor
}

func leadingDigits(s string) string {
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}

// WaitForSession polls until the server answers list-panes or timeout passes.
func (r *Runner) WaitForSession(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		_, err := r.Run(ctx, "list-panes", "-F", "#{pane_id}")
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("tmux session not ready after %v: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
