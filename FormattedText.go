package docxfill

import (
	"fmt"
	"strings"
)

// VerticalAlign - vertical position of a run.
// Single field so superscript and subscript can never be set together.
type VerticalAlign int8

// Vertical positions
const (
	Baseline VerticalAlign = iota
	Superscript
	Subscript
)

// String ..
func (va VerticalAlign) String() string {
	switch va {
	case Superscript:
		return "superscript"
	case Subscript:
		return "subscript"
	}
	return "baseline"
}

// TextRun - smallest unit of formatted text
type TextRun struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	VertAlign VerticalAlign
}

// IsSuperscript ..
func (r TextRun) IsSuperscript() bool { return r.VertAlign == Superscript }

// IsSubscript ..
func (r TextRun) IsSubscript() bool { return r.VertAlign == Subscript }

// SetSuperscript - setting superscript clears subscript
func (r *TextRun) SetSuperscript(on bool) {
	switch {
	case on:
		r.VertAlign = Superscript
	case r.VertAlign == Superscript:
		r.VertAlign = Baseline
	}
}

// SetSubscript - setting subscript clears superscript
func (r *TextRun) SetSubscript(on bool) {
	switch {
	case on:
		r.VertAlign = Subscript
	case r.VertAlign == Subscript:
		r.VertAlign = Baseline
	}
}

// sameFormat - all flags equal, text ignored
func (r TextRun) sameFormat(other TextRun) bool {
	return r.Bold == other.Bold &&
		r.Italic == other.Italic &&
		r.Underline == other.Underline &&
		r.VertAlign == other.VertAlign
}

// String - debug representation "text"[b,i,u,sup]
func (r TextRun) String() string {
	var flags []string
	if r.Bold {
		flags = append(flags, "b")
	}
	if r.Italic {
		flags = append(flags, "i")
	}
	if r.Underline {
		flags = append(flags, "u")
	}
	if r.VertAlign != Baseline {
		flags = append(flags, r.VertAlign.String())
	}
	return fmt.Sprintf("%q[%s]", r.Text, strings.Join(flags, ","))
}

// FormattedText - ordered runs of formatted text.
// Run boundaries are meaningful: adjacent runs with the same format are never merged.
type FormattedText struct {
	Runs []TextRun
}

// Text - plain string as single unformatted run
func Text(s string) *FormattedText {
	return &FormattedText{Runs: []TextRun{{Text: s}}}
}

// Rich - formatted text from given runs
func Rich(runs ...TextRun) *FormattedText {
	return &FormattedText{Runs: runs}
}

// PlainText - all runs text concatenated in order
func (ft *FormattedText) PlainText() string {
	if ft == nil {
		return ""
	}
	var sb strings.Builder
	for _, r := range ft.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// IsPlain - no run carries any formatting
func (ft *FormattedText) IsPlain() bool {
	if ft == nil {
		return true
	}
	for _, r := range ft.Runs {
		if !r.sameFormat(TextRun{}) {
			return false
		}
	}
	return true
}

// Clone - deep copy
func (ft *FormattedText) Clone() *FormattedText {
	if ft == nil {
		return nil
	}
	out := &FormattedText{Runs: make([]TextRun, len(ft.Runs))}
	copy(out.Runs, ft.Runs)
	return out
}

// String ..
func (ft *FormattedText) String() string {
	if ft == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q (%d runs)", ft.PlainText(), len(ft.Runs))
}

// Transcode - model level transcoding is identity: the source runs are
// returned as an independent copy with boundaries and flags untouched.
// The real work lives in the reader (spreadsheet) and writer (document) adapters.
func Transcode(src FormattedText) FormattedText {
	return *src.Clone()
}

// normalizeLineEndings - CRLF and lone CR as LF
func normalizeLineEndings(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
