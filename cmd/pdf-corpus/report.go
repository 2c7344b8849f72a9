// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf-corpus/internal/ledger"
	"github.com/pdiddy/pdf-corpus/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the run ledger to YAML or JSON",
	Long: `Report writes every recorded document outcome (status, reason, page
count, unreadable pages, output path) to state-dir/report.yaml or
report.json, or to stdout with --stdout. Use --status to limit the export
to one outcome such as rejected or timeout.`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadCorpusConfig()
	if err != nil {
		return err
	}
	formatName, _ := cmd.Flags().GetString("format")
	format, err := ledger.ParseFormat(formatName)
	if err != nil {
		return err
	}
	statusName, _ := cmd.Flags().GetString("status")
	toStdout, _ := cmd.Flags().GetBool("stdout")

	if _, err := os.Stat(cfg.StateDir); err != nil {
		return fmt.Errorf("no ledger in %s: run the corpus first", cfg.StateDir)
	}
	store, err := ledger.Open(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	status := types.DocumentStatus(statusName)
	if toStdout {
		return store.WriteReport(context.Background(), cmd.OutOrStdout(), format, status)
	}
	path, err := store.Export(context.Background(), format, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

func init() {
	reportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	reportCmd.Flags().String("status", "", "only export documents with this status")
	reportCmd.Flags().Bool("stdout", false, "write the report to stdout instead of the state directory")

	rootCmd.AddCommand(reportCmd)
}
