// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf-corpus/internal/decode"
)

// errNotSplit marks a page the splitter already reported as failed.
var errNotSplit = errors.New("page was not split")

// Extractor decodes single-page artifacts to text on the shared pool.
type Extractor struct {
	dec  decode.Decoder
	pool *Pool
	log  zerolog.Logger
}

// NewExtractor returns an Extractor that decodes pages with dec on pool.
func NewExtractor(dec decode.Decoder, pool *Pool, log zerolog.Logger) *Extractor {
	return &Extractor{dec: dec, pool: pool, log: log}
}

// Extract decodes pages 1..n of the document held in scratch and stores one
// text artifact per page. A page that fails to decode, or was never split,
// contributes empty text. doc names the document in diagnostics.
func (e *Extractor) Extract(ctx context.Context, doc string, n int, scratch *Scratch) (Report, error) {
	report := Report{Pages: n}

	task := func(ctx context.Context, index int) PageOutcome {
		data, err := scratch.ReadPage(index)
		if errors.Is(err, fs.ErrNotExist) {
			return PageOutcome{Err: errNotSplit}
		}
		if err != nil {
			return PageOutcome{Err: err}
		}
		text, err := e.dec.ExtractText(ctx, data)
		return PageOutcome{Text: text, Err: err}
	}

	collect := func(out PageOutcome) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if out.Err != nil {
			if !errors.Is(out.Err, errNotSplit) {
				e.log.Warn().Err(out.Err).
					Str("document", doc).
					Int("page", out.Index).
					Msg("page extraction failed, using empty text")
			}
			report.Failed = append(report.Failed, out.Index)
			out.Text = ""
		}
		if err := scratch.PutText(out.Index, out.Text); err != nil {
			return fmt.Errorf("storing text of page %d of %s: %w", out.Index, doc, err)
		}
		return nil
	}

	err := e.pool.FanOut(ctx, n, task, collect)
	sort.Ints(report.Failed)
	return report, err
}
