package docxfill

import (
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MissingPolicy - what to do with placeholder whose tag is not in record
type MissingPolicy int8

// Missing tag policies
const (
	// MissingSkip leaves placeholder as is and reports it
	MissingSkip MissingPolicy = iota
	// MissingFail fails the document
	MissingFail
)

// String ..
func (mp MissingPolicy) String() string {
	if mp == MissingFail {
		return "fail"
	}
	return "skip"
}

// Options of single fill operation
type Options struct {
	Policy        FormatPolicy
	Missing       MissingPolicy
	Comments      bool
	CommentAuthor string
	Now           func() time.Time // comment dates, nil = time.Now
}

// DefaultOptions - red generated text, comments on, unbound tags skipped
func DefaultOptions() Options {
	return Options{
		Policy:        DefaultFormatPolicy(),
		Missing:       MissingSkip,
		Comments:      true,
		CommentAuthor: DefaultCommentAuthor,
	}
}

// Report - outcome of filling one document
type Report struct {
	Replaced  []string // tags, once per replaced placeholder
	Unbound   []string // tags without key in record
	Null      []string // tags bound to null
	Nested    []string // tags skipped because outer placeholder replaced them
	Comments  int
	Normalize NormalizeStats
	Warnings  []error
}

// Err - all warnings combined, nil when there are none
func (r *Report) Err() error {
	return multierr.Combine(r.Warnings...)
}

// Filler runs locate, replace, normalize and annotate on one document
type Filler struct {
	opts      Options
	logger    *zap.Logger
	locator   *Locator
	annotator *Annotator
}

// NewFiller ..
func NewFiller(opts Options, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{
		opts:      opts,
		logger:    logger,
		locator:   NewLocator(logger),
		annotator: NewAnnotator(opts.CommentAuthor, opts.Now, logger),
	}
}

// Fill document with record values.
// Placeholder problems end up in report warnings; returned error means the
// document must not be saved (I/O failure or unbound tag under MissingFail).
func (f *Filler) Fill(d *Document, rec *Record) (*Report, error) {
	report := &Report{}

	// Collect first so the walk never sees tree being rewritten
	var found []*Placeholder
	for p, err := range f.locator.All(d) {
		if err != nil {
			if IsKind(err, StructuralError) {
				report.Warnings = append(report.Warnings, err)
				continue
			}
			return report, err
		}

		if _, ok := rec.Get(p.Tag); !ok {
			if f.opts.Missing == MissingFail {
				return report, &PlaceholderError{Kind: BindingError, Tag: p.Tag, Part: p.Part, Err: ErrUnboundPlaceholder}
			}
			if !inSlice(p.Tag, report.Unbound) {
				report.Unbound = append(report.Unbound, p.Tag)
				report.Warnings = append(report.Warnings, &PlaceholderError{Kind: BindingError, Tag: p.Tag, Part: p.Part, Err: ErrUnboundPlaceholder})
			}
			continue
		}
		found = append(found, p)
	}

	replacer := NewReplacer(d, f.opts.Policy, f.logger)
	var subs []Substitution
	for _, p := range found {
		v, _ := rec.Get(p.Tag)
		if v == nil {
			if !inSlice(p.Tag, report.Null) {
				report.Null = append(report.Null, p.Tag)
			}
			continue
		}
		if replacer.Stale(p) {
			report.Nested = append(report.Nested, p.Tag)
			continue
		}

		old := p.Text()
		// replaced value may still come with warning
		ok, err := replacer.Replace(p, v)
		if err != nil {
			report.Warnings = append(report.Warnings, err)
		}
		if ok {
			report.Replaced = append(report.Replaced, p.Tag)
			subs = append(subs, Substitution{Placeholder: p, Old: old, Value: v})
		}
	}

	report.Normalize = NormalizeTableCells(d, f.logger)
	report.Warnings = append(report.Warnings, report.Normalize.Warnings...)

	if f.opts.Comments {
		comments, err := f.annotator.Annotate(d, subs)
		report.Comments = len(comments)
		for _, err := range multierr.Errors(err) {
			var perr *PlaceholderError
			if errors.As(err, &perr) && perr.Kind == IOError {
				return report, err
			}
			report.Warnings = append(report.Warnings, err)
		}
	}

	f.logger.Info("document filled",
		zap.String("path", d.Path()),
		zap.Int("replaced", len(report.Replaced)),
		zap.Int("unbound", len(report.Unbound)),
		zap.Int("comments", report.Comments),
		zap.Int("cells", report.Normalize.CellsFixed),
		zap.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

// FillFile - open template, fill and save as output.
// Source archive is released on every path.
func (f *Filler) FillFile(template, output string, rec *Record) (report *Report, err error) {
	d, err := OpenDocument(template)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if report, err = f.Fill(d, rec); err != nil {
		return report, err
	}
	if err = d.Save(output); err != nil {
		return report, err
	}
	return report, nil
}
