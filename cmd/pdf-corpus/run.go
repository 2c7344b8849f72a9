// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-corpus/internal/ledger"
	"github.com/pdiddy/pdf-corpus/internal/pipeline"
	"github.com/pdiddy/pdf-corpus/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [source-dir]",
	Short: "Extract and filter every PDF under a directory",
	Long: `Run scans source-dir recursively for PDF files and processes them one
at a time: a size precheck skips image-dominated scans, pages are split and
decoded in parallel, the page texts are merged in page order and the result
goes through the quality filter. Each accepted document is written to
output-dir as <name>.txt.

Every stage of a document has its own deadline (--timeout). A document that
exceeds it is abandoned and retried on the next run; documents with a final
outcome are skipped unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCorpus,
}

func runCorpus(cmd *cobra.Command, args []string) error {
	cfg, err := loadCorpusConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.SourceDir = args[0]
	}
	if noFilter, _ := cmd.Flags().GetBool("no-filter"); noFilter {
		cfg.FilteringEnabled = false
	}

	fs := afero.NewOsFs()
	paths, err := pipeline.FindPDFs(fs, cfg.SourceDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "no PDF files found under %s\n", cfg.SourceDir)
		return nil
	}

	store, err := ledger.Open(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := pipeline.Options{Fs: fs, Ledger: store, Logger: &logger}
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		opts.Progress = newProgressBar(len(paths))
	}

	p, err := pipeline.New(cfg, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	logger.Info().
		Str("source", cfg.SourceDir).
		Int("documents", len(paths)).
		Int("workers", cfg.PoolSize()).
		Str("backend", string(cfg.Backend)).
		Msg("corpus run started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := p.Run(ctx, paths, os.Stdout)

	if path, err := store.Export(context.Background(), ledger.FormatYAML, ""); err != nil {
		fmt.Fprintf(os.Stderr, "warning: report write failed: %v\n", err)
	} else {
		logger.Debug().Str("path", path).Msg("report written")
	}

	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed and %d timed out", result.Failed, result.TimedOut)
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("documents"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func init() {
	d := types.DefaultCorpusConfig()
	runCmd.Flags().String("output-dir", d.OutputDir, "directory for the accepted .txt files")
	runCmd.Flags().Duration("timeout", d.Timeout, "deadline for each stage of one document")
	runCmd.Flags().Int64("bytes-per-page-cutoff", d.BytesPerPageCutoff, "skip documents above this many bytes per page (0 disables)")
	runCmd.Flags().Int("workers", 0, "worker pool size (0 = cores - 1)")
	runCmd.Flags().String("backend", string(d.Backend), "PDF decoder: native or pdftotext")
	runCmd.Flags().Bool("force", false, "reprocess documents the ledger already recorded")
	runCmd.Flags().Bool("no-filter", false, "write merged text without the quality filter")
	runCmd.Flags().Bool("progress", false, "show a progress bar on stderr")

	for key, flag := range map[string]string{
		"output_dir":            "output-dir",
		"timeout":               "timeout",
		"bytes_per_page_cutoff": "bytes-per-page-cutoff",
		"workers":               "workers",
		"backend":               "backend",
		"force":                 "force",
	} {
		_ = viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}

	rootCmd.AddCommand(runCmd)
}
