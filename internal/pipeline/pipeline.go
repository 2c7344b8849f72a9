// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives a corpus run. Documents are processed one at a
// time: precheck, split, extraction with merge and filter, then the output
// is written or discarded. Each of the three stages runs under its own
// deadline; page-level parallelism is delegated to one shared worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pdiddy/pdf-corpus/internal/decode"
	"github.com/pdiddy/pdf-corpus/internal/filter"
	"github.com/pdiddy/pdf-corpus/internal/pages"
	"github.com/pdiddy/pdf-corpus/pkg/types"
)

const scratchDir = "scratch"

// Ledger remembers document outcomes across runs. *ledger.Store implements
// it.
type Ledger interface {
	Done(ctx context.Context, path string, modTime time.Time) (bool, error)
	Get(ctx context.Context, path string) (types.DocumentResult, bool, error)
	Record(ctx context.Context, r types.DocumentResult) error
}

// Progress is advanced once per document.
type Progress interface {
	Add(n int) error
}

// Options holds the collaborators of a Pipeline. Nil fields get defaults:
// the OS filesystem, the decoder for the configured backend, a pool of
// cfg.PoolSize() workers and no ledger.
type Options struct {
	Fs       afero.Fs
	Decoder  decode.Decoder
	Pool     *pages.Pool
	Ledger   Ledger
	Progress Progress
	Logger   *zerolog.Logger
}

// Pipeline processes documents with one configuration.
type Pipeline struct {
	cfg       types.CorpusConfig
	budget    types.StageBudget
	fs        afero.Fs
	dec       decode.Decoder
	pool      *pages.Pool
	ownsPool  bool
	splitter  *pages.Splitter
	extractor *pages.Extractor
	filter    *filter.Filter
	ledger    Ledger
	progress  Progress
	out       *OutputWriter
	log       zerolog.Logger
}

// New builds a Pipeline and creates the output directory.
func New(cfg types.CorpusConfig, opts Options) (*Pipeline, error) {
	p := &Pipeline{
		cfg:      cfg,
		budget:   cfg.StageBudget(),
		fs:       opts.Fs,
		dec:      opts.Decoder,
		pool:     opts.Pool,
		ledger:   opts.Ledger,
		progress: opts.Progress,
		log:      zerolog.Nop(),
	}
	if opts.Logger != nil {
		p.log = *opts.Logger
	}
	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	if p.dec == nil {
		dec, err := decode.New(cfg.Backend, filepath.Join(cfg.StateDir, scratchDir))
		if err != nil {
			return nil, err
		}
		p.dec = dec
	}

	out, err := NewOutputWriter(p.fs, cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	p.out = out

	if p.pool == nil {
		p.pool = pages.NewPool(cfg.PoolSize())
		p.ownsPool = true
	}
	p.splitter = pages.NewSplitter(p.dec, p.pool, p.log)
	p.extractor = pages.NewExtractor(p.dec, p.pool, p.log)
	p.filter = filter.New(cfg.Filter).WithLogger(p.log)
	return p, nil
}

// Close stops the worker pool if the Pipeline created it.
func (p *Pipeline) Close() error {
	if p.ownsPool {
		return p.pool.Close()
	}
	return nil
}

// BatchResult holds the outcome counts of a corpus run.
type BatchResult struct {
	Accepted int
	Rejected int
	Skipped  int
	TimedOut int
	Failed   int
	Resumed  int
}

// Total returns the number of documents seen.
func (r BatchResult) Total() int {
	return r.Accepted + r.Rejected + r.Skipped + r.TimedOut + r.Failed + r.Resumed
}

// HasFailures reports whether any document failed or timed out.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0 || r.TimedOut > 0
}

// Run processes paths in order, printing one status line per document to w
// and a summary at the end. No document error stops the run; a cancelled
// ctx does, after the current document.
func (p *Pipeline) Run(ctx context.Context, paths []string, w io.Writer) BatchResult {
	var result BatchResult
	for _, path := range paths {
		if ctx.Err() != nil {
			fmt.Fprintf(w, "interrupted: %d documents not processed\n", len(paths)-result.Total())
			break
		}

		prev := p.previous(ctx, path)
		p.out.Claim(path, prev.OutputPath)

		if p.resumable(ctx, path) {
			fmt.Fprintf(w, "resumed:  %s (unchanged since last run)\n", path)
			result.Resumed++
			p.advance()
			continue
		}

		r := p.ProcessDocument(ctx, path)
		p.record(ctx, r)
		if prev.OutputPath != "" && prev.OutputPath != r.OutputPath && ctx.Err() == nil {
			if err := p.out.Release(path, prev.OutputPath); err != nil {
				p.log.Warn().Err(err).Str("document", path).Msg("stale output left in place")
			}
		}
		report(w, r)
		switch r.Status {
		case types.StatusAccepted:
			result.Accepted++
		case types.StatusRejected:
			result.Rejected++
		case types.StatusSkipped:
			result.Skipped++
		case types.StatusTimeout:
			result.TimedOut++
		default:
			result.Failed++
		}
		p.advance()
	}

	fmt.Fprintf(w, "\nCorpus summary: %d accepted, %d rejected, %d skipped, %d timed out, %d failed, %d resumed (total: %d)\n",
		result.Accepted, result.Rejected, result.Skipped, result.TimedOut, result.Failed, result.Resumed, result.Total())
	return result
}

func report(w io.Writer, r types.DocumentResult) {
	path := r.Document.Path
	switch r.Status {
	case types.StatusAccepted:
		if len(r.FailedPages) > 0 {
			fmt.Fprintf(w, "accepted: %s -> %s (%d pages, %d unreadable)\n", path, r.OutputPath, r.Document.Pages, len(r.FailedPages))
		} else {
			fmt.Fprintf(w, "accepted: %s -> %s (%d pages)\n", path, r.OutputPath, r.Document.Pages)
		}
	case types.StatusRejected:
		fmt.Fprintf(w, "rejected: %s (%s)\n", path, r.Reason)
	case types.StatusSkipped:
		fmt.Fprintf(w, "skipped:  %s (%s)\n", path, r.Reason)
	case types.StatusTimeout:
		fmt.Fprintf(w, "timeout:  %s (%s)\n", path, r.Reason)
	default:
		fmt.Fprintf(w, "failed:   %s (%s)\n", path, r.Reason)
	}
}

func (p *Pipeline) advance() {
	if p.progress != nil {
		_ = p.progress.Add(1)
	}
}

// previous returns the ledger's last outcome for path, or a zero result.
func (p *Pipeline) previous(ctx context.Context, path string) types.DocumentResult {
	if p.ledger == nil {
		return types.DocumentResult{}
	}
	prev, ok, err := p.ledger.Get(ctx, path)
	if err != nil || !ok || prev.Status != types.StatusAccepted {
		return types.DocumentResult{}
	}
	return prev
}

// resumable reports whether the ledger already holds a final outcome for
// the unchanged file.
func (p *Pipeline) resumable(ctx context.Context, path string) bool {
	if p.ledger == nil || p.cfg.Force {
		return false
	}
	info, err := p.fs.Stat(path)
	if err != nil {
		return false
	}
	done, err := p.ledger.Done(ctx, path, info.ModTime())
	if err != nil {
		p.log.Warn().Err(err).Str("document", path).Msg("ledger lookup failed, reprocessing")
		return false
	}
	return done
}

func (p *Pipeline) record(ctx context.Context, r types.DocumentResult) {
	if p.ledger == nil {
		return
	}
	// The outcome is stored even when the run is being cancelled.
	if err := p.ledger.Record(context.WithoutCancel(ctx), r); err != nil {
		p.log.Error().Err(err).Str("document", r.Document.Path).Msg("recording outcome failed")
	}
}

// extraction is the result of the extract stage.
type extraction struct {
	text   string
	failed []int
}

// ProcessDocument runs one document through every stage and writes its
// output if accepted. It never returns an error: every outcome, including
// faults, is described by the result.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) types.DocumentResult {
	start := time.Now()
	r := p.processDocument(ctx, path)
	r.Duration = time.Since(start)
	r.ProcessedAt = time.Now()
	return r
}

func (p *Pipeline) processDocument(ctx context.Context, path string) types.DocumentResult {
	r := types.DocumentResult{Document: types.Document{Path: path}}
	log := p.log.With().Str("document", path).Logger()

	info, err := p.fs.Stat(path)
	if err != nil {
		return p.fail(log, r, &decode.ReadError{Path: path, Err: err})
	}
	r.Document.Size = info.Size()
	r.Document.ModTime = info.ModTime()

	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return p.fail(log, r, &decode.ReadError{Path: path, Err: err})
	}
	src := decode.Source{Path: path, Data: data}

	est, err := runStage(ctx, p.budget.Precheck, path, StagePrecheck,
		func(ctx context.Context) (pages.SizeEstimate, error) {
			return pages.Estimate(ctx, p.dec, src)
		})
	if err != nil {
		var readErr *decode.ReadError
		if errors.As(err, &readErr) {
			r.Status = types.StatusSkipped
			r.Reason = "page count unavailable: " + readErr.Err.Error()
			log.Warn().Err(err).Msg("document skipped")
			return r
		}
		return p.fail(log, r, err)
	}
	r.Document.Pages = est.Pages
	r.Document.BytesPerPage = est.BytesPerPage

	if est.ExceedsCutoff(p.cfg.BytesPerPageCutoff) {
		r.Status = types.StatusSkipped
		r.Reason = fmt.Sprintf("%d bytes per page above cutoff %d", est.BytesPerPage, p.cfg.BytesPerPageCutoff)
		log.Info().Int64("bytes_per_page", est.BytesPerPage).Msg("document skipped as image-dominated")
		return r
	}

	scratch, err := pages.NewScratch(p.fs, filepath.Join(p.cfg.StateDir, scratchDir), path)
	if err != nil {
		return p.fail(log, r, err)
	}
	defer func() {
		if err := scratch.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("removing page artifacts failed")
		}
	}()

	split, err := runStage(ctx, p.budget.Split, path, StageSplit,
		func(ctx context.Context) (pages.Report, error) {
			return p.splitter.Split(ctx, src, est.Pages, scratch)
		})
	if err != nil {
		return p.fail(log, r, err)
	}

	ext, err := runStage(ctx, p.budget.Extract, path, StageExtract,
		func(ctx context.Context) (extraction, error) {
			return p.extract(ctx, path, est.Pages, scratch)
		})
	r.FailedPages = unionSorted(split.Failed, ext.failed)
	if err != nil {
		var rej *filter.Rejection
		if errors.As(err, &rej) {
			r.Status = types.StatusRejected
			r.Reason = rej.Error()
			log.Info().Str("gate", rej.Gate).Msg(rej.Reason)
			return r
		}
		return p.fail(log, r, err)
	}

	outPath, err := p.out.Write(path, ext.text)
	if err != nil {
		return p.fail(log, r, err)
	}
	r.Status = types.StatusAccepted
	r.OutputPath = outPath
	r.Text = ext.text
	return r
}

// extract decodes every page, merges the page texts in order and filters
// the result. A rejection is returned as a *filter.Rejection along with the
// failed pages.
func (p *Pipeline) extract(ctx context.Context, path string, n int, scratch *pages.Scratch) (extraction, error) {
	rep, err := p.extractor.Extract(ctx, path, n, scratch)
	if err != nil {
		return extraction{}, err
	}
	text, err := pages.Merge(scratch, n)
	if err != nil {
		return extraction{failed: rep.Failed}, err
	}

	if !p.cfg.FilteringEnabled {
		if strings.TrimSpace(text) == "" {
			return extraction{failed: rep.Failed}, &filter.Rejection{Gate: "empty", Reason: "no text extracted"}
		}
		return extraction{text: text, failed: rep.Failed}, nil
	}

	out, err := p.filter.Apply(ctx, text)
	if err != nil {
		return extraction{failed: rep.Failed}, err
	}
	return extraction{text: out, failed: rep.Failed}, nil
}

// fail classifies a document fault as a timeout or a failure and logs it.
func (p *Pipeline) fail(log zerolog.Logger, r types.DocumentResult, err error) types.DocumentResult {
	var te *TimeoutError
	if errors.As(err, &te) {
		r.Status = types.StatusTimeout
		r.Reason = fmt.Sprintf("%s stage exceeded %s", te.Stage, te.Budget)
		log.Warn().Str("stage", te.Stage).Dur("budget", te.Budget).Msg("document abandoned after timeout")
		return r
	}
	r.Status = types.StatusFailed
	r.Reason = err.Error()
	log.Error().Err(err).Msg("document failed")
	return r
}

func unionSorted(a, b []int) []int {
	if len(a) == 0 {
		return b
	}
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, list := range [][]int{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	slices.Sort(out)
	return out
}
