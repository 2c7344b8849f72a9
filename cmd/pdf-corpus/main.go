// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf-corpus CLI, which turns a tree
// of PDF documents into cleaned plain-text files for language-model
// training corpora.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-corpus/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger carries pipeline diagnostics; set up before any subcommand runs.
var logger = zerolog.Nop()

// rootCmd is the base command for the pdf-corpus CLI.
var rootCmd = &cobra.Command{
	Use:   "pdf-corpus",
	Short: "Convert PDF collections into cleaned plain-text corpora",
	Long: `pdf-corpus extracts text from every PDF under a directory tree, page by
page on a shared worker pool, and runs the merged text of each document
through a heuristic quality filter. Accepted documents are written as one
.txt file each; rejected, skipped and timed-out documents produce nothing.

Outcomes are recorded in a ledger in the state directory so a repeated run
only processes new or changed files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}

		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		logger = logging.New(logging.Config{
			Level:  viperString("log_level", level),
			Format: viperString("log_format", format),
			Output: os.Stderr,
		})
		return nil
	},
}

// viperString prefers an explicitly configured value over the flag value.
func viperString(key, flagValue string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return flagValue
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pdf-corpus.yaml or ~/.config/pdf-corpus/pdf-corpus.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with PDF_CORPUS_* overrides")
	rootCmd.PersistentFlags().String("log-level", "info", "diagnostic log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "diagnostic log format: console or json")
	rootCmd.PersistentFlags().String("state-dir", "", "directory for the run ledger and page scratch space")

	_ = viper.BindPFlag("state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf-corpus")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf-corpus"))
		}
	}

	viper.SetEnvPrefix("PDF_CORPUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
