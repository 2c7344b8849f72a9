// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pages

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Merge concatenates the text artifacts of pages 1..n in ascending index
// order and then removes every artifact in scratch, whether or not the
// merged text is ever accepted. A missing text artifact contributes nothing.
func Merge(scratch *Scratch, n int) (text string, err error) {
	defer func() {
		if cerr := scratch.Cleanup(); cerr != nil {
			err = errors.Join(err, cerr)
			text = ""
		}
	}()

	var b strings.Builder
	for i := 1; i <= n; i++ {
		page, err := scratch.ReadText(i)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reading text of page %d: %w", i, err)
		}
		b.WriteString(page)
	}
	return b.String(), nil
}
