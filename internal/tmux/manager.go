// Package tmux mirrors a debug session transcript into a tmux pane so it
// can be watched live alongside the CLI.
package tmux

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	gotmux "github.com/GianlucaP106/gotmux/gotmux"
)

// ErrNoPaneAvailable is returned when no tmux pane is attached.
var ErrNoPaneAvailable = errors.New("no tmux pane available")

// Config holds tmux mirroring settings.
type Config struct {
	// SessionName is the tmux session the transcript is mirrored into.
	SessionName string
}

// Manager owns the tmux session used for mirroring.
type Manager struct {
	mu     sync.Mutex
	config Config
	tmux   *gotmux.Tmux
	pane   *gotmux.Session
}

// NewManager connects to the local tmux server and ensures the mirror
// session exists, creating it detached when missing.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.SessionName == "" {
		cfg.SessionName = "gdba"
	}

	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tmux: %w", err)
	}

	m := &Manager{
		config: cfg,
		tmux:   tmux,
	}

	session, err := tmux.GetSessionByName(cfg.SessionName)
	if err != nil || session == nil {
		session, err = tmux.NewSession(&gotmux.SessionOptions{
			Name:           cfg.SessionName,
			StartDirectory: "",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create tmux session %q: %w", cfg.SessionName, err)
		}
	}
	m.pane = session

	return m, nil
}

// SessionName returns the tmux session name used for mirroring.
func (m *Manager) SessionName() string {
	return m.config.SessionName
}

// Close kills the mirror session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pane == nil {
		return nil
	}
	err := m.pane.Kill()
	m.pane = nil
	return err
}

// command runs a raw tmux command against the local server. gotmux covers
// session lifecycle but not send-keys or clear-history, so those go
// through the tmux binary directly.
func (m *Manager) command(args ...string) (string, error) {
	out, err := exec.Command("tmux", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
