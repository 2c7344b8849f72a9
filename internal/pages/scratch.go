// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pages

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Scratch holds the per-page artifacts of one document: single-page PDFs
// written by the splitter and page texts written by the extractor. Every
// artifact name carries its page index, which is the only thing Merge uses
// to order them. Only the coordinating goroutine writes; pool tasks read.
// Once Cleanup has run every write fails, so a stage abandoned on timeout
// cannot leave artifacts behind.
type Scratch struct {
	fs  afero.Fs
	dir string

	mu     sync.Mutex
	closed bool
}

// ErrScratchClosed is returned by writes after Cleanup.
var ErrScratchClosed = errors.New("scratch space already cleaned up")

// NewScratch creates a fresh artifact directory for the document name
// under root.
func NewScratch(fs afero.Fs, root, name string) (*Scratch, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch root %s: %w", root, err)
	}
	dir, err := afero.TempDir(fs, root, scratchPrefix(name))
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory for %s: %w", name, err)
	}
	return &Scratch{fs: fs, dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Scratch) Dir() string { return s.dir }

func (s *Scratch) pagePath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("page-%06d.pdf", index))
}

func (s *Scratch) textPath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("text-%06d.txt", index))
}

func (s *Scratch) put(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrScratchClosed
	}
	return afero.WriteFile(s.fs, path, data, 0o644)
}

// PutPage stores the single-page PDF for index.
func (s *Scratch) PutPage(index int, data []byte) error {
	return s.put(s.pagePath(index), data)
}

// ReadPage returns the single-page PDF for index. A page the splitter could
// not produce yields an error wrapping fs.ErrNotExist.
func (s *Scratch) ReadPage(index int) ([]byte, error) {
	return afero.ReadFile(s.fs, s.pagePath(index))
}

// PutText stores the extracted text for index.
func (s *Scratch) PutText(index int, text string) error {
	return s.put(s.textPath(index), []byte(text))
}

// ReadText returns the extracted text for index.
func (s *Scratch) ReadText(index int) (string, error) {
	data, err := afero.ReadFile(s.fs, s.textPath(index))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Artifacts lists the artifact file names currently stored.
func (s *Scratch) Artifacts() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Cleanup removes the directory and every artifact in it. It is safe to call
// more than once.
func (s *Scratch) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if err := s.fs.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing scratch directory %s: %w", s.dir, err)
	}
	return nil
}

// scratchPrefix turns a document path into a short directory-name prefix.
func scratchPrefix(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' || r == filepath.Separator {
			return '_'
		}
		return r
	}, base)
	if len(base) > 40 {
		base = base[:40]
	}
	return base + "-"
}
