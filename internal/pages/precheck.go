// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pages implements the fault-isolated page pipeline that turns one
// PDF into an ordered text blob: a size precheck, a splitter producing
// single-page documents, parallel text extraction on a shared worker pool,
// and a merge that restores page order and removes the per-page artifacts.
package pages

import (
	"context"
	"errors"

	"github.com/pdiddy/pdf-corpus/internal/decode"
)

// SizeEstimate is the result of the size precheck.
type SizeEstimate struct {
	Pages        int
	Size         int64
	BytesPerPage int64
}

// ExceedsCutoff reports whether the document looks image-dominated. A
// cutoff of zero or less disables the check.
func (e SizeEstimate) ExceedsCutoff(cutoff int64) bool {
	return cutoff > 0 && e.BytesPerPage > cutoff
}

// Estimate obtains the page count and the bytes-per-page ratio of src. It
// fails with a *decode.ReadError when the page count cannot be obtained or
// the document has no pages.
func Estimate(ctx context.Context, dec decode.Decoder, src decode.Source) (SizeEstimate, error) {
	n, err := dec.PageCount(ctx, src)
	if err != nil {
		return SizeEstimate{}, err
	}
	if n <= 0 {
		return SizeEstimate{}, &decode.ReadError{Path: src.Path, Err: errors.New("document has no pages")}
	}
	size := int64(len(src.Data))
	return SizeEstimate{
		Pages:        n,
		Size:         size,
		BytesPerPage: size / int64(n),
	}, nil
}
