// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pages

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf-corpus/internal/decode"
)

// Report summarizes a split or extraction stage. Failed holds the indexes of
// pages that carry a failure marker instead of an artifact.
type Report struct {
	Pages  int
	Failed []int
}

// Splitter decomposes a document into single-page PDFs, one pool task per
// page. A corrupt page is logged and marked failed; the remaining pages
// are unaffected.
type Splitter struct {
	dec  decode.Decoder
	pool *Pool
	log  zerolog.Logger
}

// NewSplitter returns a Splitter that renders pages with dec on pool.
func NewSplitter(dec decode.Decoder, pool *Pool, log zerolog.Logger) *Splitter {
	return &Splitter{dec: dec, pool: pool, log: log}
}

// Split renders pages 1..n of src into scratch. Page failures are recorded
// in the report, never returned; the error is non-nil only when ctx ends or
// an artifact cannot be stored.
func (s *Splitter) Split(ctx context.Context, src decode.Source, n int, scratch *Scratch) (Report, error) {
	report := Report{Pages: n}

	task := func(ctx context.Context, index int) PageOutcome {
		data, err := s.dec.RenderPage(ctx, src, index)
		return PageOutcome{Data: data, Err: err}
	}

	collect := func(out PageOutcome) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if out.Err != nil {
			s.log.Warn().Err(out.Err).
				Str("document", src.Path).
				Int("page", out.Index).
				Msg("page split failed")
			report.Failed = append(report.Failed, out.Index)
			return nil
		}
		if err := scratch.PutPage(out.Index, out.Data); err != nil {
			return fmt.Errorf("storing page %d of %s: %w", out.Index, src.Path, err)
		}
		return nil
	}

	err := s.pool.FanOut(ctx, n, task, collect)
	sort.Ints(report.Failed)
	return report, err
}
