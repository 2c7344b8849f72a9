// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decodetest provides a scripted decode.Decoder for tests.
package decodetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/pdf-corpus/internal/decode"
)

// Fake is a decode.Decoder whose behavior is scripted per page. Rendered
// pages are the bytes "page:<index>", and ExtractText maps them back to
// Texts[index].
type Fake struct {
	// Pages is the page count reported for every source.
	Pages int
	// CountErr makes PageCount fail.
	CountErr error
	// Texts maps a page index to its text.
	Texts map[int]string
	// RenderErrs and ExtractErrs make a page fail in the given stage.
	RenderErrs  map[int]error
	ExtractErrs map[int]error
	// PanicPage makes ExtractText panic for that page.
	PanicPage int
	// Delay, when set, returns how long ExtractText sleeps for a page.
	Delay func(index int) time.Duration
	// Block, when non-nil, makes ExtractText wait until it is closed or the
	// context ends.
	Block chan struct{}

	mu       sync.Mutex
	extracts map[int]int
	order    []int
}

var _ decode.Decoder = (*Fake)(nil)

func (f *Fake) PageCount(ctx context.Context, src decode.Source) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.CountErr != nil {
		return 0, &decode.ReadError{Path: src.Path, Err: f.CountErr}
	}
	return f.Pages, nil
}

func (f *Fake) RenderPage(ctx context.Context, src decode.Source, index int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.RenderErrs[index]; ok {
		return nil, &decode.ReadError{Path: src.Path, Page: index, Err: err}
	}
	return []byte(fmt.Sprintf("page:%d", index)), nil
}

func (f *Fake) ExtractText(ctx context.Context, page []byte) (string, error) {
	var index int
	if _, err := fmt.Sscanf(string(page), "page:%d", &index); err != nil {
		return "", &decode.DecodeError{Err: err}
	}

	f.mu.Lock()
	if f.extracts == nil {
		f.extracts = make(map[int]int)
	}
	f.extracts[index]++
	f.mu.Unlock()

	if f.Delay != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.Delay(index)):
		}
	}
	if f.Block != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-f.Block:
		}
	}
	if index == f.PanicPage {
		panic(fmt.Sprintf("corrupt content stream on page %d", index))
	}
	if err, ok := f.ExtractErrs[index]; ok {
		return "", &decode.SyntaxError{Err: err}
	}

	f.mu.Lock()
	f.order = append(f.order, index)
	f.mu.Unlock()

	text, ok := f.Texts[index]
	if !ok {
		return "", &decode.DecodeError{Err: errors.New("no text scripted")}
	}
	return text, nil
}

// ExtractCalls returns how many times ExtractText ran for page index.
func (f *Fake) ExtractCalls(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extracts[index]
}

// CompletionOrder returns page indexes in the order their extraction
// succeeded.
func (f *Fake) CompletionOrder() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.order...)
}
