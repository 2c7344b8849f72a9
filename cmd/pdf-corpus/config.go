// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-corpus/pkg/types"
)

// setDefaults registers every config key so environment variables such as
// PDF_CORPUS_FILTER_DOC_MAX_CID are picked up by Unmarshal.
func setDefaults() {
	d := types.DefaultCorpusConfig()
	viper.SetDefault("source_dir", d.SourceDir)
	viper.SetDefault("output_dir", d.OutputDir)
	viper.SetDefault("state_dir", d.StateDir)
	viper.SetDefault("timeout", d.Timeout)
	viper.SetDefault("budget.precheck", d.Budget.Precheck)
	viper.SetDefault("budget.split", d.Budget.Split)
	viper.SetDefault("budget.extract", d.Budget.Extract)
	viper.SetDefault("bytes_per_page_cutoff", d.BytesPerPageCutoff)
	viper.SetDefault("filtering_enabled", d.FilteringEnabled)
	viper.SetDefault("workers", d.Workers)
	viper.SetDefault("backend", string(d.Backend))
	viper.SetDefault("force", d.Force)

	f := d.Filter
	viper.SetDefault("filter.doc_max_cid", f.DocMaxCID)
	viper.SetDefault("filter.min_doc_line_length", f.MinDocLineLength)
	viper.SetDefault("filter.min_word_length", f.MinWordLength)
	viper.SetDefault("filter.max_word_length", f.MaxWordLength)
	viper.SetDefault("filter.min_para_line_length", f.MinParaLineLength)
	viper.SetDefault("filter.para_max_cid", f.ParaMaxCID)
	viper.SetDefault("filter.min_letter_density", f.MinLetterDensity)
	viper.SetDefault("filter.furniture_max_length", f.FurnitureMaxLength)

	viper.SetDefault("log_level", "")
	viper.SetDefault("log_format", "")
}

// backendHook validates decoder backend names while decoding.
func backendHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(types.DecoderBackend("")) || from.Kind() != reflect.String {
		return data, nil
	}
	b := types.DecoderBackend(strings.ToLower(strings.TrimSpace(reflect.ValueOf(data).String())))
	switch b {
	case types.BackendNative, types.BackendPdftotext:
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", b, types.BackendNative, types.BackendPdftotext)
	}
}

// loadCorpusConfig resolves the corpus settings from defaults, the config
// file, PDF_CORPUS_* environment variables and bound flags.
func loadCorpusConfig() (types.CorpusConfig, error) {
	cfg := types.DefaultCorpusConfig()
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		backendHook,
	))
	if err := viper.Unmarshal(&cfg, hook); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	return cfg, nil
}
