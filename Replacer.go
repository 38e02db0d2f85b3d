package docxfill

import (
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// DefaultColor marks generated content in output documents
const DefaultColor = "FF0000"

// FormatPolicy - run formatting applied to every replaced value
type FormatPolicy struct {
	// Color as RRGGBB hex, empty keeps template colour
	Color string

	// Start new runs from run properties of first existing run in placeholder
	InheritRunProperties bool
}

// DefaultFormatPolicy ..
func DefaultFormatPolicy() FormatPolicy {
	return FormatPolicy{Color: DefaultColor}
}

// Replacer rewrites placeholder content in place
type Replacer struct {
	doc    *Document
	policy FormatPolicy
	logger *zap.Logger

	// content containers already rewritten, anything below them is gone
	replaced map[*etree.Element]bool
}

// NewReplacer ..
func NewReplacer(d *Document, policy FormatPolicy, logger *zap.Logger) *Replacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replacer{
		doc:      d,
		policy:   policy,
		logger:   logger,
		replaced: map[*etree.Element]bool{},
	}
}

// Stale - placeholder was inside content of already replaced placeholder
func (r *Replacer) Stale(p *Placeholder) bool {
	return p.insideAny(r.replaced)
}

// Replace placeholder content with value.
// nil value is a no-op and returns false. Flattened text of content equals
// value plain text afterwards, except characters not allowed in XML: those
// are written as U+FFFD and reported as RepairError next to true.
func (r *Replacer) Replace(p *Placeholder, v *FormattedText) (bool, error) {
	if v == nil {
		r.logger.Debug("null value, placeholder left as is", zap.String("tag", p.Tag))
		return false, nil
	}
	if p.content == nil {
		return false, &PlaceholderError{Kind: StructuralError, Tag: p.Tag, Part: p.Part, Err: ErrMalformedPlaceholder}
	}
	if r.Stale(p) {
		r.logger.Debug("placeholder inside replaced content, skipped", zap.String("tag", p.Tag))
		return false, nil
	}

	var base *etree.Element
	if r.policy.InheritRunProperties {
		if rPr := firstRPr(p.content); rPr != nil {
			base = rPr.Copy()
		}
	}
	runs := r.runsFor(v, base)

	switch p.Shape {
	case Inline:
		clearChildren(p.content)
		for _, run := range runs {
			p.content.AddChild(run)
		}

	case Block:
		var pPr *etree.Element
		if first := wChild(p.content, "p"); first != nil {
			if old := wChild(first, "pPr"); old != nil {
				pPr = old.Copy()
			}
		}
		clearChildren(p.content)
		p.content.AddChild(newParagraph(pPr, runs))

	case Cell:
		r.replaceCells(p.content, runs)

	default:
		return false, &PlaceholderError{Kind: StructuralError, Tag: p.Tag, Part: p.Part, Err: ErrMalformedPlaceholder}
	}

	// filled control no longer shows prompt text
	if flag := wChild(wChild(p.sdt, "sdtPr"), "showingPlcHdr"); flag != nil {
		flag.Parent().RemoveChild(flag)
	}

	r.replaced[p.content] = true
	r.doc.MarkDirty(p.Part)
	r.logger.Debug("placeholder replaced",
		zap.String("tag", p.Tag),
		zap.String("shape", p.Shape.String()),
		zap.String("value", ellipsis(v.PlainText(), 40)),
		zap.Int("runs", len(runs)),
	)

	if n := invalidXMLChars(v.PlainText()); n > 0 {
		r.logger.Warn("value characters substituted", zap.String("tag", p.Tag), zap.Int("count", n))
		return true, &PlaceholderError{Kind: RepairError, Tag: p.Tag, Part: p.Part,
			Err: fmt.Errorf("%w: %d character(s)", ErrInvalidXMLChar, n)}
	}
	return true, nil
}

// runs for value, at least one so the content never ends up empty
func (r *Replacer) runsFor(v *FormattedText, base *etree.Element) []*etree.Element {
	if len(v.Runs) == 0 {
		return []*etree.Element{buildRun(TextRun{}, base, r.policy.Color)}
	}
	return RunsFromText(v, base, r.policy.Color)
}

// First cell gets single paragraph with new runs, the rest of wrapped cells
// keep their properties and one empty paragraph so table grid stays intact.
func (r *Replacer) replaceCells(content *etree.Element, runs []*etree.Element) {
	cells := wChildren(content, "tc")
	if len(cells) == 0 {
		tc := content.CreateElement("w:tc")
		tc.AddChild(newParagraph(nil, runs))
		return
	}
	for i, tc := range cells {
		var pPr *etree.Element
		if first := wChild(tc, "p"); first != nil {
			if old := wChild(first, "pPr"); old != nil {
				pPr = old.Copy()
			}
		}

		// keep cell properties, drop everything else
		for _, child := range tc.ChildElements() {
			if !isW(child, "tcPr") {
				tc.RemoveChild(child)
			}
		}

		if i == 0 {
			tc.AddChild(newParagraph(pPr, runs))
		} else {
			tc.AddChild(newParagraph(pPr, nil))
		}
	}
}

// newParagraph - <w:p> with optional properties and runs
func newParagraph(pPr *etree.Element, runs []*etree.Element) *etree.Element {
	p := newW("p")
	if pPr != nil {
		p.AddChild(pPr)
	}
	for _, run := range runs {
		p.AddChild(run)
	}
	return p
}
