// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pages

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-corpus/internal/decode"
	"github.com/pdiddy/pdf-corpus/internal/decode/decodetest"
)

// --- test helpers ---

func newScratch(t *testing.T) (*Scratch, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := NewScratch(fs, "/state/scratch", "/corpus/report.pdf")
	require.NoError(t, err)
	return s, fs
}

func newPool(t *testing.T, size int) *Pool {
	t.Helper()
	p := NewPool(size)
	t.Cleanup(func() { p.Close() })
	return p
}

// reverseDelay makes later pages finish first.
func reverseDelay(n int) func(int) time.Duration {
	return func(index int) time.Duration {
		return time.Duration(n-index+1) * 5 * time.Millisecond
	}
}

func runDocument(t *testing.T, dec decode.Decoder, pool *Pool, n int) (string, Report, Report) {
	t.Helper()
	ctx := context.Background()
	scratch, _ := newScratch(t)
	src := decode.Source{Path: "/corpus/report.pdf", Data: []byte("%PDF")}

	split, err := NewSplitter(dec, pool, zerolog.Nop()).Split(ctx, src, n, scratch)
	require.NoError(t, err)
	extracted, err := NewExtractor(dec, pool, zerolog.Nop()).Extract(ctx, src.Path, n, scratch)
	require.NoError(t, err)
	text, err := Merge(scratch, n)
	require.NoError(t, err)
	return text, split, extracted
}

// --- pool ---

func TestNewPool_DefaultSize(t *testing.T) {
	p := newPool(t, 0)
	assert.Equal(t, DefaultPoolSize(), p.Size())
	assert.GreaterOrEqual(t, p.Size(), 1)
}

func TestFanOut_CollectsEveryIndexOnce(t *testing.T) {
	p := newPool(t, 4)
	const n = 25

	seen := make(map[int]int)
	err := p.FanOut(context.Background(), n,
		func(ctx context.Context, index int) PageOutcome {
			time.Sleep(time.Duration((n-index)%7) * time.Millisecond)
			return PageOutcome{Text: "x"}
		},
		func(out PageOutcome) error {
			seen[out.Index]++
			return nil
		})
	require.NoError(t, err)

	require.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.Equal(t, 1, seen[i], "page %d", i)
	}
}

func TestFanOut_PanicBecomesPageError(t *testing.T) {
	p := newPool(t, 2)

	var failed []int
	err := p.FanOut(context.Background(), 3,
		func(ctx context.Context, index int) PageOutcome {
			if index == 2 {
				panic("boom")
			}
			return PageOutcome{Text: "ok"}
		},
		func(out PageOutcome) error {
			if out.Err != nil {
				failed = append(failed, out.Index)
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, failed)
}

func TestFanOut_CollectErrorStops(t *testing.T) {
	p := newPool(t, 2)
	stop := errors.New("disk full")

	err := p.FanOut(context.Background(), 5,
		func(ctx context.Context, index int) PageOutcome { return PageOutcome{} },
		func(out PageOutcome) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestFanOut_DeadlineLeavesPoolUsable(t *testing.T) {
	p := newPool(t, 2)
	release := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var mu sync.Mutex
	started := 0
	err := p.FanOut(ctx, 10,
		func(ctx context.Context, index int) PageOutcome {
			mu.Lock()
			started++
			mu.Unlock()
			<-release
			return PageOutcome{}
		},
		func(PageOutcome) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned tasks are still blocked; their results go nowhere.
	defer close(release)

	// The next document gets the whole pool and completes normally.
	count := 0
	err = p.FanOut(context.Background(), 4,
		func(ctx context.Context, index int) PageOutcome { return PageOutcome{Text: "ok"} },
		func(PageOutcome) error { count++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, started, 2, "queued tasks of the abandoned document must not start")
}

func TestFanOut_StuckTaskReleasesWorker(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	t.Cleanup(func() {
		close(release)
		p.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.FanOut(ctx, 1,
		func(context.Context, int) PageOutcome {
			<-release
			return PageOutcome{}
		},
		func(PageOutcome) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	next, cancelNext := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelNext()
	var collected []int
	err = p.FanOut(next, 3,
		func(_ context.Context, index int) PageOutcome { return PageOutcome{Text: "ok"} },
		func(out PageOutcome) error {
			collected = append(collected, out.Index)
			return nil
		})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, collected)
}

func TestFanOut_AfterClose(t *testing.T) {
	p := NewPool(1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.FanOut(context.Background(), 1,
		func(ctx context.Context, index int) PageOutcome { return PageOutcome{} },
		func(PageOutcome) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// --- precheck ---

func TestEstimate(t *testing.T) {
	src := decode.Source{Path: "scan.pdf", Data: make([]byte, 900000)}

	est, err := Estimate(context.Background(), &decodetest.Fake{Pages: 3}, src)
	require.NoError(t, err)
	assert.Equal(t, 3, est.Pages)
	assert.Equal(t, int64(300000), est.BytesPerPage)
	assert.False(t, est.ExceedsCutoff(300000))
	assert.True(t, est.ExceedsCutoff(299999))
	assert.False(t, est.ExceedsCutoff(0), "zero cutoff disables the check")
}

func TestEstimate_Failures(t *testing.T) {
	src := decode.Source{Path: "broken.pdf", Data: []byte("junk")}

	_, err := Estimate(context.Background(), &decodetest.Fake{CountErr: errors.New("bad xref")}, src)
	var readErr *decode.ReadError
	require.ErrorAs(t, err, &readErr)

	_, err = Estimate(context.Background(), &decodetest.Fake{Pages: 0}, src)
	require.ErrorAs(t, err, &readErr)
	assert.Contains(t, err.Error(), "no pages")
}

// --- split, extract, merge ---

func TestPipeline_PreservesPageOrder(t *testing.T) {
	const n = 6
	dec := &decodetest.Fake{
		Pages: n,
		Texts: map[int]string{1: "one ", 2: "two ", 3: "three ", 4: "four ", 5: "five ", 6: "six"},
		Delay: reverseDelay(n),
	}

	text, _, _ := runDocument(t, dec, newPool(t, 3), n)

	assert.Equal(t, "one two three four five six", text)
	order := dec.CompletionOrder()
	require.Len(t, order, n)
	assert.NotEqual(t, []int{1, 2, 3, 4, 5, 6}, order, "completion order should have been scrambled")
}

func TestPipeline_FailedDecodeContributesNothing(t *testing.T) {
	dec := &decodetest.Fake{
		Pages:       3,
		Texts:       map[int]string{1: "First page text. ", 2: "lost", 3: "Third page text."},
		ExtractErrs: map[int]error{2: errors.New("unexpected EOF in content stream")},
	}

	text, split, extracted := runDocument(t, dec, newPool(t, 2), 3)

	assert.Equal(t, "First page text. Third page text.", text)
	assert.Empty(t, split.Failed)
	assert.Equal(t, []int{2}, extracted.Failed)
}

func TestPipeline_CorruptPageIsIsolated(t *testing.T) {
	dec := &decodetest.Fake{
		Pages:      4,
		Texts:      map[int]string{1: "a", 2: "b", 3: "c", 4: "d"},
		RenderErrs: map[int]error{3: errors.New("invalid object")},
		PanicPage:  1,
	}

	text, split, extracted := runDocument(t, dec, newPool(t, 2), 4)

	assert.Equal(t, "bd", text)
	assert.Equal(t, []int{3}, split.Failed)
	assert.Equal(t, []int{1, 3}, extracted.Failed)
	assert.Equal(t, 0, dec.ExtractCalls(3), "a page that failed to split is never decoded")
}

func TestPipeline_OneExtractionPerPage(t *testing.T) {
	dec := &decodetest.Fake{Pages: 5, Texts: map[int]string{1: "a", 2: "b", 3: "c", 4: "d", 5: "e"}}

	runDocument(t, dec, newPool(t, 3), 5)

	for i := 1; i <= 5; i++ {
		assert.Equal(t, 1, dec.ExtractCalls(i), "page %d", i)
	}
}

func TestMerge_RemovesArtifacts(t *testing.T) {
	scratch, fs := newScratch(t)
	require.NoError(t, scratch.PutPage(1, []byte("page:1")))
	require.NoError(t, scratch.PutText(2, "second"))
	require.NoError(t, scratch.PutText(1, "first "))

	names, err := scratch.Artifacts()
	require.NoError(t, err)
	assert.Len(t, names, 3)

	text, err := Merge(scratch, 3)
	require.NoError(t, err)
	assert.Equal(t, "first second", text)

	exists, err := afero.DirExists(fs, scratch.Dir())
	require.NoError(t, err)
	assert.False(t, exists, "scratch directory should be removed after merge")
}

func TestExtract_Timeout(t *testing.T) {
	scratch, _ := newScratch(t)
	dec := &decodetest.Fake{Pages: 3, Texts: map[int]string{1: "a", 2: "b", 3: "c"}, Block: make(chan struct{})}
	pool := newPool(t, 2)

	_, err := NewSplitter(dec, pool, zerolog.Nop()).Split(context.Background(), decode.Source{Path: "a.pdf"}, 3, scratch)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = NewExtractor(dec, pool, zerolog.Nop()).Extract(ctx, "a.pdf", 3, scratch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, scratch.Cleanup())
}

func TestScratchPrefix(t *testing.T) {
	assert.Equal(t, "annual_report-", scratchPrefix("/docs/2020/annual report.pdf"))
	long := scratchPrefix("/x/abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz.pdf")
	assert.Len(t, long, 41)
}

func TestScratch_ClosedAfterCleanup(t *testing.T) {
	scratch, _ := newScratch(t)
	require.NoError(t, scratch.Cleanup())

	assert.ErrorIs(t, scratch.PutText(1, "late"), ErrScratchClosed)
	assert.ErrorIs(t, scratch.PutPage(1, []byte("late")), ErrScratchClosed)
	require.NoError(t, scratch.Cleanup())
}
