// Package workspace provides per-request scratch directories for uploaded
// content and the documents fetched while ingesting it.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrReleased is returned when a released workspace is used
var ErrReleased = errors.New("workspace released")

// Manager creates workspaces under a root directory
type Manager struct {
	root string
}

// NewManager creates a workspace manager rooted at root.
// An empty root means the system temp directory.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		root = os.TempDir()
	}
	// Ensure root directory exists
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the directory workspaces are created in
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a new, exclusively owned workspace.
// The caller must Release it.
func (m *Manager) Acquire() (*Workspace, error) {
	dir, err := os.MkdirTemp(m.root, "ingress-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Workspace is a scratch directory owned by one request.
// Artifacts are named by random identifiers, never by client input.
type Workspace struct {
	dir string

	mu       sync.Mutex
	released bool
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// WriteArtifact copies r into a new artifact and returns its path
func (w *Workspace) WriteArtifact(r io.Reader) (string, error) {
	path, err := w.newArtifactPath()
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	return path, nil
}

func (w *Workspace) newArtifactPath() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return "", ErrReleased
	}

	path := filepath.Join(w.dir, strings.ReplaceAll(uuid.New().String(), "-", ""))

	// Security: prevent directory traversal
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(w.dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact path: path traversal detected")
	}
	return path, nil
}

// Release removes the workspace and everything in it. It is safe to call more than once.
func (w *Workspace) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true

	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}
