package bridge

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scratch is a temporary directory owned by a single conversion. Close
// removes it and everything in it.
type Scratch struct {
	dir string
}

// NewScratch creates a fresh directory under root (os.TempDir when root is empty).
func NewScratch(root, pattern string) (*Scratch, error) {
	dir, err := os.MkdirTemp(root, pattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the directory path.
func (s *Scratch) Dir() string {
	return s.dir
}

// Path joins name onto the scratch directory.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// WriteFile writes data under name and returns the full path.
func (s *Scratch) WriteFile(name string, data []byte) (string, error) {
	p := s.Path(name)
	if err := os.WriteFile(p, data, 0600); err != nil {
		return "", err
	}
	return p, nil
}

// ReadFile reads a file produced inside the scratch directory.
func (s *Scratch) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(s.Path(name))
}

// Close removes the directory. It is safe to call more than once.
func (s *Scratch) Close() error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
