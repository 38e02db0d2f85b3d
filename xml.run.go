package docxfill

import (
	"strings"

	"github.com/beevik/etree"
)

// Child order of <w:rPr> as the schema wants it.
// Word refuses to open documents with run properties out of order.
var rPrOrder = []string{
	"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike",
	"dstrike", "outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid",
	"vanish", "webHidden", "color", "spacing", "w", "kern", "position", "sz",
	"szCs", "highlight", "u", "effect", "bdr", "shd", "fitText", "vertAlign",
	"rtl", "cs", "em", "lang", "eastAsianLayout", "specVanish", "oMath",
	"rPrChange",
}

func rPrRank(local string) int {
	for i, name := range rPrOrder {
		if name == local {
			return i
		}
	}
	return len(rPrOrder)
}

// setRPr replaces (or adds) <w:local w:val=val/> keeping schema order.
// Empty val writes the bare toggle form <w:b/>.
func setRPr(rPr *etree.Element, local, val string) {
	el := newW(local)
	if val != "" {
		el.CreateAttr("w:val", val)
	}

	if old := wChild(rPr, local); old != nil {
		idx := old.Index()
		rPr.RemoveChildAt(idx)
		rPr.InsertChildAt(idx, el)
		return
	}

	rank := rPrRank(local)
	for _, child := range rPr.ChildElements() {
		if child.Space == "w" && rPrRank(child.Tag) > rank {
			rPr.InsertChildAt(child.Index(), el)
			return
		}
	}
	rPr.AddChild(el)
}

func removeRPr(rPr *etree.Element, local string) {
	for _, el := range wChildren(rPr, local) {
		rPr.RemoveChild(el)
	}
}

// toggle property is on when present and not explicitly switched off
func rPrOn(rPr *etree.Element, local string) bool {
	val, ok := wVal(rPr, local)
	if !ok {
		return false
	}
	switch strings.ToLower(val) {
	case "0", "false", "off":
		return false
	}
	return true
}

// buildRun - <w:r> for single text run.
// base is cloned as starting run properties (may be nil); flags set on the
// run are written over it, vertical position is always taken from the run.
func buildRun(tr TextRun, base *etree.Element, color string) *etree.Element {
	r := newW("r")

	var rPr *etree.Element
	if base != nil {
		rPr = base.Copy()
	} else {
		rPr = newW("rPr")
	}
	// tracked formatting change of template text makes no sense for new text
	removeRPr(rPr, "rPrChange")

	if tr.Bold {
		setRPr(rPr, "b", "")
	}
	if tr.Italic {
		setRPr(rPr, "i", "")
	}
	if tr.Underline {
		if val, ok := wVal(rPr, "u"); !ok || val == "none" || val == "" {
			setRPr(rPr, "u", "single")
		}
	}
	switch tr.VertAlign {
	case Superscript:
		setRPr(rPr, "vertAlign", "superscript")
	case Subscript:
		setRPr(rPr, "vertAlign", "subscript")
	default:
		removeRPr(rPr, "vertAlign")
	}
	if color != "" {
		setRPr(rPr, "color", color)
	}

	if len(rPr.ChildElements()) > 0 {
		r.AddChild(rPr)
	}
	appendRunText(r, tr.Text)
	return r
}

// appendRunText writes text as <w:t> segments.
// New lines become <w:br/>, tabs <w:tab/>; every segment keeps its spaces.
func appendRunText(r *etree.Element, text string) {
	text = normalizeLineEndings(text)

	var seg strings.Builder
	flush := func(force bool) {
		if seg.Len() == 0 && !force {
			return
		}
		t := r.CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(seg.String())
		seg.Reset()
	}

	for _, ch := range text {
		switch ch {
		case '\n':
			flush(false)
			r.CreateElement("w:br")
		case '\t':
			flush(false)
			r.CreateElement("w:tab")
		default:
			if !isXMLChar(ch) {
				ch = '\uFFFD'
			}
			seg.WriteRune(ch)
		}
	}
	// empty value still gets a (empty) text node so the run is visible to editors
	flush(text == "")
}

// isXMLChar - rune allowed in XML 1.0 text
func isXMLChar(r rune) bool {
	switch {
	case r == 0x9, r == 0xA, r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// invalidXMLChars - number of runes appendRunText has to substitute
func invalidXMLChars(s string) int {
	n := 0
	for _, r := range s {
		if !isXMLChar(r) {
			n++
		}
	}
	return n
}

// RunsFromText - writer adapter: one <w:r> per text run, boundaries kept.
// base is optional <w:rPr> to start every run from.
func RunsFromText(ft *FormattedText, base *etree.Element, color string) []*etree.Element {
	if ft == nil {
		return nil
	}
	runs := make([]*etree.Element, 0, len(ft.Runs))
	for _, tr := range ft.Runs {
		runs = append(runs, buildRun(tr, base, color))
	}
	return runs
}

// TextFromRuns - reader for document runs, inverse of RunsFromText.
// Non <w:r> elements are ignored.
func TextFromRuns(runs []*etree.Element) *FormattedText {
	ft := &FormattedText{}
	for _, r := range runs {
		if !isW(r, "r") {
			continue
		}
		ft.Runs = append(ft.Runs, runFromElement(r))
	}
	return ft
}

func runFromElement(r *etree.Element) TextRun {
	tr := TextRun{Text: plainText(r)}

	rPr := wChild(r, "rPr")
	if rPr == nil {
		return tr
	}
	tr.Bold = rPrOn(rPr, "b")
	tr.Italic = rPrOn(rPr, "i")
	if val, ok := wVal(rPr, "u"); ok && val != "none" {
		tr.Underline = true
	}
	if val, _ := wVal(rPr, "vertAlign"); val == "superscript" {
		tr.SetSuperscript(true)
	} else if val == "subscript" {
		tr.SetSubscript(true)
	}
	return tr
}

// firstRPr - first run properties found inside container, nil if none
func firstRPr(container *etree.Element) *etree.Element {
	var found *etree.Element
	walk(container, func(el *etree.Element, _ []*etree.Element) bool {
		if found != nil {
			return false
		}
		if isW(el, "r") {
			found = wChild(el, "rPr")
			return false
		}
		return true
	})
	return found
}
