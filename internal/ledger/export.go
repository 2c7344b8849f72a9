// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf-corpus/pkg/types"
)

// Format is a report encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatYAML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want yaml or json)", s)
	}
}

// Report is the exported view of the ledger.
type Report struct {
	GeneratedAt time.Time                    `json:"generated_at" yaml:"generated_at"`
	Counts      map[types.DocumentStatus]int `json:"counts" yaml:"counts"`
	Documents   []types.DocumentResult       `json:"documents" yaml:"documents"`
}

// Report collects every recorded outcome, optionally limited to status.
func (s *Store) Report(ctx context.Context, status types.DocumentStatus) (Report, error) {
	docs, err := s.List(ctx, status)
	if err != nil {
		return Report{}, err
	}
	counts, err := s.Counts(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{GeneratedAt: time.Now().UTC(), Counts: counts, Documents: docs}, nil
}

// WriteReport encodes the report to w.
func (s *Store) WriteReport(ctx context.Context, w io.Writer, format Format, status types.DocumentStatus) error {
	report, err := s.Report(ctx, status)
	if err != nil {
		return err
	}
	data, err := encode(report, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Export writes the report to stateDir/report.yaml or report.json and
// returns the path written.
func (s *Store) Export(ctx context.Context, format Format, status types.DocumentStatus) (string, error) {
	report, err := s.Report(ctx, status)
	if err != nil {
		return "", err
	}
	data, err := encode(report, format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, "report."+string(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func encode(report Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML, "":
		data, err := yaml.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
