// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf-corpus/internal/filter"
)

var filterCmd = &cobra.Command{
	Use:   "filter [file]",
	Short: "Run the quality filter on an existing text file",
	Long: `Filter applies the document gates, paragraph stages and repair chain to
already-extracted text read from file (or stdin when no file is given) and
prints the result. A rejected document prints nothing and exits non-zero.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFilter,
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadCorpusConfig()
	if err != nil {
		return err
	}

	var data []byte
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	out, err := filter.New(cfg.Filter).WithLogger(logger).Apply(context.Background(), string(data))
	var rej *filter.Rejection
	if errors.As(err, &rej) {
		fmt.Fprintf(cmd.ErrOrStderr(), "rejected: %s: %s\n", rej.Gate, rej.Reason)
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func init() {
	rootCmd.AddCommand(filterCmd)
}
