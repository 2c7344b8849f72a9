// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter decides what of a merged document survives into the
// corpus. Document gates reject whole documents; paragraph stages drop or
// repair individual paragraphs. Every gate and repair is a pure function
// over text so each stage can be tested on its own.
package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf-corpus/pkg/types"
)

// maxPasses bounds the stage pipeline when a repair exposes something an
// earlier stage would have handled.
const maxPasses = 3

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Rejection is the policy outcome of a document failing a gate. It is not
// a fault.
type Rejection struct {
	Gate   string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected by %s: %s", r.Gate, r.Reason)
}

// docGate returns a non-empty reason when text fails it.
type docGate struct {
	name  string
	check func(p types.FilterPolicy, text string) string
}

var docGates = []docGate{
	{"cid density", func(p types.FilterPolicy, text string) string {
		if d := CIDPercentage(text); d > p.DocMaxCID {
			return fmt.Sprintf("cid density %.3f above %.3f", d, p.DocMaxCID)
		}
		return ""
	}},
	{"line length", func(p types.FilterPolicy, text string) string {
		if m := MeanLineLength(text); m < p.MinDocLineLength {
			return fmt.Sprintf("mean line length %.1f below %.1f", m, p.MinDocLineLength)
		}
		return ""
	}},
	{"word length", func(p types.FilterPolicy, text string) string {
		if w := AverageWordLength(text); w < p.MinWordLength || (p.MaxWordLength > 0 && w > p.MaxWordLength) {
			return fmt.Sprintf("average word length %.1f outside [%.0f, %.0f]", w, p.MinWordLength, p.MaxWordLength)
		}
		return ""
	}},
}

// paraStage transforms a paragraph; keep=false drops it.
type paraStage struct {
	name string
	run  func(p types.FilterPolicy, para string) (out string, keep bool)
}

var paraStages = []paraStage{
	{"hyphenation", func(_ types.FilterPolicy, s string) (string, bool) {
		return RepairHyphenation(s), true
	}},
	{"join lines", func(_ types.FilterPolicy, s string) (string, bool) {
		return JoinLines(s), true
	}},
	{"furniture", func(p types.FilterPolicy, s string) (string, bool) {
		return s, !IsFurniture(s, p.FurnitureMaxLength)
	}},
	{"whitespace", func(_ types.FilterPolicy, s string) (string, bool) {
		return CollapseWhitespace(s), true
	}},
	{"line length", keepIf(func(p types.FilterPolicy, s string) bool {
		return MeanLineLength(s) >= p.MinParaLineLength
	})},
	{"cid density", keepIf(func(p types.FilterPolicy, s string) bool {
		return CIDPercentage(s) <= p.ParaMaxCID
	})},
	{"letter density", keepIf(func(p types.FilterPolicy, s string) bool {
		return LetterDensity(s) >= p.MinLetterDensity
	})},
	{"repair", func(_ types.FilterPolicy, s string) (string, bool) {
		s = RepairParagraph(s)
		return s, s != ""
	}},
}

func keepIf(pred func(types.FilterPolicy, string) bool) func(types.FilterPolicy, string) (string, bool) {
	return func(p types.FilterPolicy, s string) (string, bool) {
		return s, pred(p, s)
	}
}

// Filter applies a FilterPolicy to merged document text.
type Filter struct {
	policy types.FilterPolicy
	log    zerolog.Logger
}

// New returns a Filter for policy. A non-positive MaxWordLength disables the
// upper word length bound; a non-positive FurnitureMaxLength falls back to
// the default.
func New(policy types.FilterPolicy) *Filter {
	if policy.FurnitureMaxLength <= 0 {
		policy.FurnitureMaxLength = types.DefaultFilterPolicy().FurnitureMaxLength
	}
	return &Filter{policy: policy, log: zerolog.Nop()}
}

// WithLogger returns a copy of f that logs dropped paragraphs at debug level.
func (f *Filter) WithLogger(log zerolog.Logger) *Filter {
	c := *f
	c.log = log
	return &c
}

// Policy returns the thresholds in effect.
func (f *Filter) Policy() types.FilterPolicy { return f.policy }

// Apply returns the corpus text for a merged document, or a *Rejection when
// the document fails a gate or no paragraph survives. The pipeline is
// repeated until its output is stable, so applying it to its own output
// returns that output unchanged.
func (f *Filter) Apply(ctx context.Context, text string) (string, error) {
	for range maxPasses {
		out, err := f.pass(ctx, text)
		if err != nil {
			return "", err
		}
		if out == text {
			break
		}
		text = out
	}
	return text, nil
}

func (f *Filter) pass(ctx context.Context, text string) (string, error) {
	if err := f.CheckDocument(text); err != nil {
		return "", err
	}

	text = RepairHyphenation(text)
	var kept []string
	for _, para := range blankLines.Split(text, -1) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if out, ok := f.Paragraph(para); ok {
			kept = append(kept, out)
		}
	}
	if len(kept) == 0 {
		return "", &Rejection{Gate: "paragraphs", Reason: "no paragraph survived"}
	}

	out := strings.Join(kept, "\n\n")
	if err := f.CheckDocument(out); err != nil {
		return "", err
	}
	return out, nil
}

// CheckDocument runs the document gates in order and returns the first
// failure as a *Rejection.
func (f *Filter) CheckDocument(text string) error {
	for _, g := range docGates {
		if reason := g.check(f.policy, text); reason != "" {
			return &Rejection{Gate: g.name, Reason: reason}
		}
	}
	return nil
}

// Paragraph runs the paragraph stages on one paragraph. It reports false
// when a stage drops the paragraph.
func (f *Filter) Paragraph(para string) (string, bool) {
	for _, st := range paraStages {
		out, keep := st.run(f.policy, para)
		if !keep {
			f.log.Debug().Str("stage", st.name).Str("paragraph", preview(para)).Msg("paragraph dropped")
			return "", false
		}
		para = out
	}
	// The repair chain can change what the gates measured.
	for _, st := range paraStages[2:7] {
		if _, keep := st.run(f.policy, para); !keep {
			f.log.Debug().Str("stage", st.name).Str("paragraph", preview(para)).Msg("repaired paragraph dropped")
			return "", false
		}
	}
	return para, true
}

// Clean filters text with the default policy and returns "" when the
// document is rejected.
func Clean(text string) string {
	out, err := New(types.DefaultFilterPolicy()).Apply(context.Background(), text)
	if err != nil {
		return ""
	}
	return out
}

func preview(s string) string {
	const n = 60
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
