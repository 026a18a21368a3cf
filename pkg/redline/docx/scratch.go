package docx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is a per-job working directory. It is removed by Close whatever the outcome of the job.
type Scratch struct {
	Dir string
}

// NewScratch creates a unique scratch directory under base, or under the system temp dir when
// base is empty.
func NewScratch(base string) (*Scratch, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch base: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "redline-"+uuid.NewString()+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

// Path returns a file path inside the scratch directory.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

// Snapshot saves pkg into the scratch directory under name and returns the file path.
func (s *Scratch) Snapshot(pkg *Package, name string) (string, error) {
	target := s.Path(name)
	if err := pkg.Save(target); err != nil {
		return "", err
	}
	return target, nil
}

// Close removes the scratch directory and everything in it.
func (s *Scratch) Close() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// WithScratch runs fn with a fresh scratch directory and removes it afterwards, also when fn
// fails or panics.
func WithScratch(base string, fn func(*Scratch) error) (err error) {
	s, err := NewScratch(base)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
