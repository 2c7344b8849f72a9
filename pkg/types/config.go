// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"runtime"
	"time"
)

const (
	// DefaultStageTimeout is the per-document deadline applied to each stage.
	DefaultStageTimeout = 240 * time.Second

	// DefaultBytesPerPageCutoff is the bytes-per-page estimate above which a
	// document is assumed to be image-dominated and skipped.
	DefaultBytesPerPageCutoff int64 = 300000
)

// DecoderBackend identifies the PDF decoding implementation.
type DecoderBackend string

const (
	BackendNative    DecoderBackend = "native"
	BackendPdftotext DecoderBackend = "pdftotext"
)

// StageBudget holds the deadline for each supervised stage of one document.
// A zero duration means DefaultStageTimeout.
type StageBudget struct {
	Precheck time.Duration `json:"precheck" yaml:"precheck" mapstructure:"precheck"`
	Split    time.Duration `json:"split" yaml:"split" mapstructure:"split"`
	Extract  time.Duration `json:"extract" yaml:"extract" mapstructure:"extract"`
}

// UniformBudget returns a StageBudget with the same deadline on every stage.
func UniformBudget(d time.Duration) StageBudget {
	return StageBudget{Precheck: d, Split: d, Extract: d}
}

// FilterPolicy holds the tunable thresholds of the quality filter. The values
// were tuned empirically; none of them is authoritative.
type FilterPolicy struct {
	// DocMaxCID is the highest cid-artifact density a whole document may have.
	DocMaxCID float64 `json:"doc_max_cid" yaml:"doc_max_cid" mapstructure:"doc_max_cid"`

	// MinDocLineLength is the lowest mean length of non-empty lines for a document.
	MinDocLineLength float64 `json:"min_doc_line_length" yaml:"min_doc_line_length" mapstructure:"min_doc_line_length"`

	// MinWordLength and MaxWordLength bound the document's average word length.
	MinWordLength float64 `json:"min_word_length" yaml:"min_word_length" mapstructure:"min_word_length"`
	MaxWordLength float64 `json:"max_word_length" yaml:"max_word_length" mapstructure:"max_word_length"`

	// MinParaLineLength is the lowest mean line length of a kept paragraph.
	MinParaLineLength float64 `json:"min_para_line_length" yaml:"min_para_line_length" mapstructure:"min_para_line_length"`

	// ParaMaxCID is the highest cid-artifact density of a kept paragraph.
	ParaMaxCID float64 `json:"para_max_cid" yaml:"para_max_cid" mapstructure:"para_max_cid"`

	// MinLetterDensity is the lowest fraction of ASCII letters in a kept paragraph.
	MinLetterDensity float64 `json:"min_letter_density" yaml:"min_letter_density" mapstructure:"min_letter_density"`

	// FurnitureMaxLength is the length below which copyright lines are dropped.
	FurnitureMaxLength int `json:"furniture_max_length" yaml:"furniture_max_length" mapstructure:"furniture_max_length"`
}

// DefaultFilterPolicy returns the thresholds used when none are configured.
func DefaultFilterPolicy() FilterPolicy {
	return FilterPolicy{
		DocMaxCID:          0.03,
		MinDocLineLength:   15,
		MinWordLength:      2,
		MaxWordLength:      45,
		MinParaLineLength:  2,
		ParaMaxCID:         0.10,
		MinLetterDensity:   0.40,
		FurnitureMaxLength: 50,
	}
}

// CorpusConfig holds the settings for one corpus run.
type CorpusConfig struct {
	// SourceDir is the root of the PDF tree, scanned recursively.
	SourceDir string `json:"source_dir" yaml:"source_dir" mapstructure:"source_dir"`

	// OutputDir receives one .txt file per accepted document.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// StateDir holds the run ledger and the per-document scratch space.
	StateDir string `json:"state_dir" yaml:"state_dir" mapstructure:"state_dir"`

	// Timeout is the per-stage deadline when Budget leaves a stage unset.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// Budget overrides Timeout per stage.
	Budget StageBudget `json:"budget" yaml:"budget" mapstructure:"budget"`

	// BytesPerPageCutoff skips documents whose size per page exceeds it.
	BytesPerPageCutoff int64 `json:"bytes_per_page_cutoff" yaml:"bytes_per_page_cutoff" mapstructure:"bytes_per_page_cutoff"`

	// FilteringEnabled runs the quality filter on merged text.
	FilteringEnabled bool `json:"filtering_enabled" yaml:"filtering_enabled" mapstructure:"filtering_enabled"`

	// Workers is the pool size; zero means one less than the number of cores.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// Backend selects the PDF decoder.
	Backend DecoderBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Force reprocesses documents the ledger already recorded.
	Force bool `json:"force" yaml:"force" mapstructure:"force"`

	// Filter holds the quality filter thresholds.
	Filter FilterPolicy `json:"filter" yaml:"filter" mapstructure:"filter"`
}

// DefaultCorpusConfig returns a config with every default applied.
func DefaultCorpusConfig() CorpusConfig {
	return CorpusConfig{
		SourceDir:          "samples",
		OutputDir:          "output",
		StateDir:           ".pdf-corpus",
		Timeout:            DefaultStageTimeout,
		BytesPerPageCutoff: DefaultBytesPerPageCutoff,
		FilteringEnabled:   true,
		Backend:            BackendNative,
		Filter:             DefaultFilterPolicy(),
	}
}

// StageBudget resolves the effective per-stage deadlines.
func (c CorpusConfig) StageBudget() StageBudget {
	fallback := c.Timeout
	if fallback <= 0 {
		fallback = DefaultStageTimeout
	}
	b := c.Budget
	if b.Precheck <= 0 {
		b.Precheck = fallback
	}
	if b.Split <= 0 {
		b.Split = fallback
	}
	if b.Extract <= 0 {
		b.Extract = fallback
	}
	return b
}

// PoolSize resolves the worker count: max(1, cores-1) unless configured.
func (c CorpusConfig) PoolSize() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return max(1, runtime.NumCPU()-1)
}
