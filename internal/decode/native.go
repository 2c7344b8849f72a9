// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// Native decodes PDFs in-process. pdfcpu counts pages and trims a document
// down to a single page; ledongthuc/pdf maps the page's glyphs to text.
type Native struct{}

// NewNative returns a Native decoder. pdfcpu is told not to look for a
// user configuration directory so that concurrent calls stay side-effect free.
func NewNative() *Native {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Native{}
}

// configuration returns a fresh pdfcpu configuration per call; pdfcpu
// mutates it while reading, so it is never shared between tasks.
func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (n *Native) PageCount(ctx context.Context, src Source) (count int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer guard(&err, func(e error) error { return &ReadError{Path: src.Path, Err: e} })

	count, err = api.PageCount(bytes.NewReader(src.Data), configuration())
	if err != nil {
		return 0, &ReadError{Path: src.Path, Err: err}
	}
	return count, nil
}

func (n *Native) RenderPage(ctx context.Context, src Source, index int) (out []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer guard(&err, func(e error) error { return &ReadError{Path: src.Path, Page: index, Err: e} })

	var buf bytes.Buffer
	selected := []string{strconv.Itoa(index)}
	if err := api.Trim(bytes.NewReader(src.Data), &buf, selected, configuration()); err != nil {
		return nil, &ReadError{Path: src.Path, Page: index, Err: err}
	}
	if buf.Len() == 0 {
		return nil, &ReadError{Path: src.Path, Page: index, Err: errors.New("empty page output")}
	}
	return buf.Bytes(), nil
}

func (n *Native) ExtractText(ctx context.Context, page []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer guard(&err, func(e error) error { return &SyntaxError{Err: e} })

	r, err := pdf.NewReader(bytes.NewReader(page), int64(len(page)))
	if err != nil {
		return "", &DecodeError{Err: err}
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", &SyntaxError{Err: fmt.Errorf("page %d: %w", i, err)}
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
