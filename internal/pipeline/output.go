// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// OutputWriter writes one text file per accepted document. Each file is
// written to a temporary name and renamed into place, so a reader never
// sees a partial file. Two sources with the same base name in one run get
// distinct names: report.txt, report-2.txt, ... A name stays with the
// source that first claimed it, so a reprocessed document keeps its file.
type OutputWriter struct {
	fs     afero.Fs
	dir    string
	owners map[string]string // output name -> source path
}

// NewOutputWriter creates dir if needed.
func NewOutputWriter(fs afero.Fs, dir string) (*OutputWriter, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return &OutputWriter{fs: fs, dir: dir, owners: make(map[string]string)}, nil
}

// Dir returns the output directory.
func (o *OutputWriter) Dir() string { return o.dir }

// Claim reserves an output path for src, typically one recorded by an
// earlier run. An empty path or a name another source holds is ignored.
func (o *OutputWriter) Claim(src, path string) {
	if path == "" {
		return
	}
	name := filepath.Base(path)
	if _, taken := o.owners[name]; !taken {
		o.owners[name] = src
	}
}

// Release removes an earlier output of src that the current run no longer
// produces. Files owned by another source, or already gone, are left alone.
func (o *OutputWriter) Release(src, path string) error {
	if path == "" {
		return nil
	}
	name := filepath.Base(path)
	if owner, taken := o.owners[name]; taken && owner != src {
		return nil
	}
	delete(o.owners, name)
	err := o.fs.Remove(filepath.Join(o.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale output %s: %w", name, err)
	}
	return nil
}

// nameFor returns the name src already holds, or the first free one.
func (o *OutputWriter) nameFor(src string) string {
	for name, owner := range o.owners {
		if owner == src {
			return name
		}
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if base == "" {
		base = "document"
	}
	name := base + ".txt"
	for n := 2; o.taken(name, src); n++ {
		name = fmt.Sprintf("%s-%d.txt", base, n)
	}
	return name
}

// taken reports whether name belongs to another source, either in this run
// or as a file left by an earlier one.
func (o *OutputWriter) taken(name, src string) bool {
	if owner, ok := o.owners[name]; ok {
		return owner != src
	}
	exists, err := afero.Exists(o.fs, filepath.Join(o.dir, name))
	return err == nil && exists
}

// Write stores text for the source document and returns the path written.
func (o *OutputWriter) Write(src, text string) (string, error) {
	name := o.nameFor(src)
	final := filepath.Join(o.dir, name)

	tmp, err := afero.TempFile(o.fs, o.dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary output for %s: %w", src, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		o.fs.Remove(tmpName)
		return "", fmt.Errorf("writing output for %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		o.fs.Remove(tmpName)
		return "", fmt.Errorf("closing output for %s: %w", src, err)
	}
	if err := o.fs.Rename(tmpName, final); err != nil {
		o.fs.Remove(tmpName)
		return "", fmt.Errorf("renaming output for %s: %w", src, err)
	}

	o.owners[name] = src
	return final, nil
}
