// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf-corpus/pkg/types"
)

// --- test helpers ---

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var modTime = time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

func result(path string, status types.DocumentStatus) types.DocumentResult {
	return types.DocumentResult{
		Document: types.Document{
			Path:         path,
			Size:         120000,
			ModTime:      modTime,
			Pages:        4,
			BytesPerPage: 30000,
		},
		Status:      status,
		FailedPages: []int{2},
		Duration:    1500 * time.Millisecond,
		ProcessedAt: modTime.Add(time.Hour),
	}
}

// --- store ---

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, dbFile))
	assert.NoError(t, err)
	assert.Equal(t, dir, s.Dir())
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	want := result("/corpus/a.pdf", types.StatusAccepted)
	want.OutputPath = "/out/a.txt"
	require.NoError(t, s.Record(ctx, want))

	got, ok, err := s.Get(ctx, "/corpus/a.pdf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Document.Path, got.Document.Path)
	assert.True(t, want.Document.ModTime.Equal(got.Document.ModTime))
	assert.Equal(t, want.Document.Pages, got.Document.Pages)
	assert.Equal(t, want.Document.BytesPerPage, got.Document.BytesPerPage)
	assert.Equal(t, types.StatusAccepted, got.Status)
	assert.Equal(t, []int{2}, got.FailedPages)
	assert.Equal(t, "/out/a.txt", got.OutputPath)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)

	_, ok, err = s.Get(ctx, "/corpus/missing.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecord_Replaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, result("/corpus/a.pdf", types.StatusTimeout)))
	next := result("/corpus/a.pdf", types.StatusRejected)
	next.Reason = "rejected by line length: mean line length 9.5 below 15.0"
	next.FailedPages = nil
	require.NoError(t, s.Record(ctx, next))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.StatusRejected, all[0].Status)
	assert.Equal(t, next.Reason, all[0].Reason)
	assert.Empty(t, all[0].FailedPages)
}

func TestDone(t *testing.T) {
	tests := []struct {
		name    string
		status  types.DocumentStatus
		modTime time.Time
		want    bool
	}{
		{"accepted unchanged", types.StatusAccepted, modTime, true},
		{"rejected unchanged", types.StatusRejected, modTime, true},
		{"skipped unchanged", types.StatusSkipped, modTime, true},
		{"timeout retried", types.StatusTimeout, modTime, false},
		{"failure retried", types.StatusFailed, modTime, false},
		{"file changed", types.StatusAccepted, modTime.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openStore(t)
			ctx := context.Background()
			require.NoError(t, s.Record(ctx, result("/corpus/a.pdf", tt.status)))

			done, err := s.Done(ctx, "/corpus/a.pdf", tt.modTime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, done)
		})
	}

	s := openStore(t)
	done, err := s.Done(context.Background(), "/never/seen.pdf", modTime)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestListAndCounts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for path, status := range map[string]types.DocumentStatus{
		"/c/b.pdf": types.StatusAccepted,
		"/c/a.pdf": types.StatusAccepted,
		"/c/c.pdf": types.StatusRejected,
		"/c/d.pdf": types.StatusTimeout,
	} {
		require.NoError(t, s.Record(ctx, result(path, status)))
	}

	accepted, err := s.List(ctx, types.StatusAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 2)
	assert.Equal(t, "/c/a.pdf", accepted[0].Document.Path)
	assert.Equal(t, "/c/b.pdf", accepted[1].Document.Path)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[types.DocumentStatus]int{
		types.StatusAccepted: 2,
		types.StatusRejected: 1,
		types.StatusTimeout:  1,
	}, counts)
}

// --- export ---

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"yaml": FormatYAML, "yml": FormatYAML, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, result("/c/a.pdf", types.StatusAccepted)))
	require.NoError(t, s.Record(ctx, result("/c/b.pdf", types.StatusRejected)))

	path, err := s.Export(ctx, FormatYAML, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "report.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report Report
	require.NoError(t, yaml.Unmarshal(data, &report))
	assert.Len(t, report.Documents, 2)
	assert.Equal(t, 1, report.Counts[types.StatusRejected])

	path, err = s.Export(ctx, FormatJSON, types.StatusAccepted)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var fromJSON Report
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	require.Len(t, fromJSON.Documents, 1)
	assert.Equal(t, "/c/a.pdf", fromJSON.Documents[0].Document.Path)
}

func TestWriteReport(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, result("/c/a.pdf", types.StatusSkipped)))

	var buf bytes.Buffer
	require.NoError(t, s.WriteReport(ctx, &buf, FormatJSON, ""))
	assert.Contains(t, buf.String(), `"status": "skipped"`)
	assert.NotContains(t, buf.String(), `"Text"`)
}
