// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures of the pdf-corpus
// pipeline: run configuration, documents and per-document outcomes.
package types

import "time"

// Document describes one source PDF. It is filled in at enumeration and
// precheck time and never mutated afterwards.
type Document struct {
	// Path is the source PDF path.
	Path string `json:"path" yaml:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// ModTime is the file modification time at enumeration.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`

	// Pages is the page count reported by the decoder.
	Pages int `json:"pages" yaml:"pages"`

	// BytesPerPage is Size divided by Pages.
	BytesPerPage int64 `json:"bytes_per_page" yaml:"bytes_per_page"`
}

// DocumentStatus is the outcome of processing one document.
type DocumentStatus string

const (
	StatusAccepted DocumentStatus = "accepted"
	StatusRejected DocumentStatus = "rejected"
	StatusSkipped  DocumentStatus = "skipped"
	StatusTimeout  DocumentStatus = "timeout"
	StatusFailed   DocumentStatus = "failed"
)

// Terminal reports whether a later run may skip a document with this status.
// Timeouts and failures are retried on the next run.
func (s DocumentStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusSkipped
}

// DocumentResult records what happened to one document. A rejected document
// has no OutputPath; an accepted one has exactly one.
type DocumentResult struct {
	Document Document       `json:"document" yaml:"document"`
	Status   DocumentStatus `json:"status" yaml:"status"`

	// Reason explains a non-accepted status (gate name, timeout stage, error).
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// FailedPages lists the 1-based indexes of pages that contributed no text
	// because they could not be split or decoded.
	FailedPages []int `json:"failed_pages,omitempty" yaml:"failed_pages,omitempty"`

	// OutputPath is the written text file for accepted documents.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	// Duration is the wall time spent on the document.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// ProcessedAt is when the outcome was decided.
	ProcessedAt time.Time `json:"processed_at" yaml:"processed_at"`

	// Text is the final corpus text; it is not persisted in the ledger.
	Text string `json:"-" yaml:"-"`
}
