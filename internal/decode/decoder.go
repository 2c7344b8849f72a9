// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decode wraps low-level PDF decoding behind a small interface that
// the page pipeline treats as an opaque capability that can fail. Two
// backends exist: Native (pure Go, pdfcpu + ledongthuc/pdf) and Poppler
// (pdfinfo, pdfseparate and pdftotext run as subprocesses).
package decode

import (
	"context"
	"fmt"

	"github.com/pdiddy/pdf-corpus/pkg/types"
)

// Source is one PDF document as seen by a decoder. Data holds the full file
// contents and is shared read-only between concurrent page tasks.
type Source struct {
	Path string
	Data []byte
}

// Decoder turns PDF documents into page-level text.
type Decoder interface {
	// PageCount reports the number of pages, or a *ReadError when the
	// container is corrupt.
	PageCount(ctx context.Context, src Source) (int, error)

	// RenderPage returns page index (1-based) as a standalone single-page
	// PDF, or a *ReadError when the page cannot be read.
	RenderPage(ctx context.Context, src Source, index int) ([]byte, error)

	// ExtractText decodes a single-page PDF to text. Malformed content
	// streams yield a *SyntaxError or *DecodeError.
	ExtractText(ctx context.Context, page []byte) (string, error)
}

// New returns the decoder for backend. Poppler temporary files go under
// tempDir.
func New(backend types.DecoderBackend, tempDir string) (Decoder, error) {
	switch backend {
	case types.BackendNative, "":
		return NewNative(), nil
	case types.BackendPdftotext:
		p, err := NewPoppler(tempDir)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown decoder backend %q (want %s or %s)",
			backend, types.BackendNative, types.BackendPdftotext)
	}
}

// ReadError reports a corrupt container or page.
type ReadError struct {
	Path string
	Page int // 0 when the whole document is affected
	Err  error
}

func (e *ReadError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("reading %s page %d: %v", e.Path, e.Page, e.Err)
	}
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// SyntaxError reports a malformed content stream.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("content syntax: %v", e.Err) }

func (e *SyntaxError) Unwrap() error { return e.Err }

// DecodeError reports a page whose bytes could not be parsed as a PDF or
// whose text could not be mapped.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decoding page: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// guard converts a panic raised by third-party parsing code into err.
func guard(err *error, wrap func(error) error) {
	if r := recover(); r != nil {
		*err = wrap(fmt.Errorf("panic: %v", r))
	}
}
