// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	binPdfinfo     = "pdfinfo"
	binPdfseparate = "pdfseparate"
	binPdftotext   = "pdftotext"
)

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Poppler decodes PDFs with the poppler command-line tools. Every call works
// on files in its own temporary directory, so calls may run concurrently.
type Poppler struct {
	exec    executor
	tempDir string
}

var defaultExec = &osExecutor{}

// NewPoppler verifies that pdfinfo, pdfseparate and pdftotext are on PATH.
// Temporary files go under tempDir, or the system default when empty.
func NewPoppler(tempDir string) (*Poppler, error) {
	return newPoppler(defaultExec, tempDir)
}

func newPoppler(exec executor, tempDir string) (*Poppler, error) {
	for _, bin := range []string{binPdfinfo, binPdfseparate, binPdftotext} {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, fmt.Errorf("poppler backend needs %s on PATH: %w", bin, err)
		}
	}
	return &Poppler{exec: exec, tempDir: tempDir}, nil
}

func (p *Poppler) PageCount(ctx context.Context, src Source) (int, error) {
	path, cleanup, err := p.materialize(src)
	if err != nil {
		return 0, &ReadError{Path: src.Path, Err: err}
	}
	defer cleanup()

	out, err := p.exec.Output(ctx, binPdfinfo, path)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &ReadError{Path: src.Path, Err: err}
	}
	m := pagesLine.FindSubmatch(out)
	if len(m) != 2 {
		return 0, &ReadError{Path: src.Path, Err: errors.New("pdfinfo: pages not found")}
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, &ReadError{Path: src.Path, Err: err}
	}
	return n, nil
}

func (p *Poppler) RenderPage(ctx context.Context, src Source, index int) ([]byte, error) {
	path, cleanup, err := p.materialize(src)
	if err != nil {
		return nil, &ReadError{Path: src.Path, Page: index, Err: err}
	}
	defer cleanup()

	dir, err := os.MkdirTemp(p.tempDir, "pdfseparate-*")
	if err != nil {
		return nil, &ReadError{Path: src.Path, Page: index, Err: err}
	}
	defer os.RemoveAll(dir)

	page := strconv.Itoa(index)
	pattern := filepath.Join(dir, "page-%d.pdf")
	if _, err := p.exec.Output(ctx, binPdfseparate, "-f", page, "-l", page, path, pattern); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ReadError{Path: src.Path, Page: index, Err: err}
	}

	data, err := os.ReadFile(filepath.Join(dir, "page-"+page+".pdf"))
	if err != nil {
		return nil, &ReadError{Path: src.Path, Page: index, Err: err}
	}
	return data, nil
}

func (p *Poppler) ExtractText(ctx context.Context, page []byte) (string, error) {
	path, cleanup, err := p.materialize(Source{Data: page})
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	defer cleanup()

	out, err := p.exec.Output(ctx, binPdftotext, "-enc", "UTF-8", path, "-")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &SyntaxError{Err: err}
		}
		return "", &DecodeError{Err: err}
	}
	return string(out), nil
}

// materialize returns a file path holding src. Sources loaded from disk
// already have one; in-memory pages are written to a temp file.
func (p *Poppler) materialize(src Source) (string, func(), error) {
	if src.Path != "" {
		return src.Path, func() {}, nil
	}
	f, err := os.CreateTemp(p.tempDir, "page-*.pdf")
	if err != nil {
		return "", nil, err
	}
	name := f.Name()
	cleanup := func() { os.Remove(name) }
	if _, err := f.Write(src.Data); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return name, cleanup, nil
}
