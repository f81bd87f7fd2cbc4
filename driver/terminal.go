package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/tty2048/driver/tmux"
	"github.com/brensch/tty2048/game"
)

const (
	defaultWidth        = 80
	defaultHeight       = 24
	defaultHistoryLimit = 200
	sessionTimeout      = 5 * time.Second
)

var ErrTmuxTooOld = errors.New("tmux version too old")

type options struct {
	tmuxPath     string
	args         []string
	env          []string
	dir          string
	width        int
	height       int
	historyLimit int
}

// TerminalOption configures Open.
type TerminalOption func(*options)

// WithArgs passes arguments to the game binary.
func WithArgs(args ...string) TerminalOption {
	return func(o *options) { o.args = append(o.args, args...) }
}

// WithEnv sets KEY=VALUE pairs for the game process.
func WithEnv(env ...string) TerminalOption {
	return func(o *options) { o.env = append(o.env, env...) }
}

// WithDir sets the game's working directory.
func WithDir(dir string) TerminalOption {
	return func(o *options) { o.dir = dir }
}

// WithSize sets the pane size.
func WithSize(width, height int) TerminalOption {
	return func(o *options) { o.width, o.height = width, height }
}

// WithTmux overrides the tmux binary looked up on PATH.
func WithTmux(path string) TerminalOption {
	return func(o *options) { o.tmuxPath = path }
}

// WithHistoryLimit sets the pane scrollback.
func WithHistoryLimit(lines int) TerminalOption {
	return func(o *options) { o.historyLimit = lines }
}

// Terminal is one game process running in its own detached tmux server.
type Terminal struct {
	runner     *tmux.Runner
	pane       string
	configPath string
}

// Open starts binary in a fresh tmux server and waits for its pane.
func Open(ctx context.Context, binary string, opts ...TerminalOption) (*Terminal, error) {
	o := options{width: defaultWidth, height: defaultHeight, historyLimit: defaultHistoryLimit}
	for _, opt := range opts {
		opt(&o)
	}

	tmuxPath := o.tmuxPath
	if tmuxPath == "" {
		found, err := exec.LookPath("tmux")
		if err != nil {
			return nil, fmt.Errorf("open: tmux not found: %w", err)
		}
		tmuxPath = found
	}
	version, err := tmux.Version(ctx, tmuxPath)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if !tmux.VersionAtLeast(version, tmux.MinVersion) {
		return nil, fmt.Errorf("open: %w: %s < %s", ErrTmuxTooOld, version, tmux.MinVersion)
	}

	socketPath := filepath.Join(os.TempDir(), "tty2048-"+uuid.NewString()[:8]+".sock")
	runner := tmux.New(tmuxPath, socketPath)

	configPath := socketPath + ".conf"
	config := fmt.Sprintf("set-option -g history-limit %d\nset-option -g remain-on-exit on\nset-option -g status off\n", o.historyLimit)
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		return nil, fmt.Errorf("open: write tmux config: %w", err)
	}
	runner.SetConfigPath(configPath)

	term := &Terminal{runner: runner, configPath: configPath}

	args := []string{
		"new-session", "-d",
		"-x", strconv.Itoa(o.width),
		"-y", strconv.Itoa(o.height),
	}
	if o.dir != "" {
		args = append(args, "-c", o.dir)
	}
	args = append(args, "--")
	if len(o.env) > 0 {
		args = append(args, "/usr/bin/env")
		args = append(args, o.env...)
	}
	args = append(args, binary)
	args = append(args, o.args...)

	if _, err := runner.Run(ctx, args...); err != nil {
		term.Close()
		return nil, fmt.Errorf("open: start session: %w", err)
	}
	if err := runner.WaitForSession(ctx, sessionTimeout); err != nil {
		term.Close()
		return nil, fmt.Errorf("open: %w", err)
	}

	out, err := runner.Run(ctx, "list-panes", "-F", "#{pane_id}")
	if err != nil {
		term.Close()
		return nil, fmt.Errorf("open: get pane id: %w", err)
	}
	term.pane = strings.TrimSpace(out)
	return term, nil
}

// SendKey types the key for d into the game.
func (term *Terminal) SendKey(ctx context.Context, d game.Direction) error {
	key, err := d.Key()
	if err != nil {
		return err
	}
	return term.SendByte(ctx, key)
}

// SendByte types a single protocol byte. Anything other than w, a, s or d is
// rejected with game.ErrInvalidKey.
func (term *Terminal) SendByte(ctx context.Context, key byte) error {
	if _, err := game.DirectionForKey(key); err != nil {
		return err
	}
	if _, err := term.runner.Run(ctx, "send-keys", "-t", term.pane, "-l", string(key)); err != nil {
		return fmt.Errorf("send-keys: %w", err)
	}
	return nil
}

// Capture returns the visible pane text.
func (term *Terminal) Capture(ctx context.Context) (string, error) {
	return term.runner.Run(ctx, "capture-pane", "-p", "-t", term.pane)
}

// Exited reports whether the game process has exited, and its status.
func (term *Terminal) Exited(ctx context.Context) (bool, int, error) {
	out, err := term.runner.Run(ctx, "list-panes", "-t", term.pane, "-F", "#{pane_dead} #{pane_dead_status}")
	if err != nil {
		return false, 0, err
	}
	parts := strings.SplitN(strings.TrimSpace(out), " ", 2)
	dead := parts[0] == "1"
	status := 0
	if dead && len(parts) == 2 {
		status, _ = strconv.Atoi(parts[1])
	}
	return dead, status, nil
}

// Alive is the inverse of Exited.
func (term *Terminal) Alive(ctx context.Context) (bool, error) {
	dead, _, err := term.Exited(ctx)
	return !dead, err
}

// Close kills the tmux server and removes its config file.
func (term *Terminal) Close() error {
	_, err := term.runner.Run(context.Background(), "kill-server")
	os.Remove(term.configPath)
	return err
}
