package docxfill

import (
	"iter"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Location - document region placeholder lives in
type Location int8

// Locations
const (
	Body Location = iota
	Header
	Footer
)

// String ..
func (l Location) String() string {
	switch l {
	case Body:
		return "body"
	case Header:
		return "header"
	case Footer:
		return "footer"
	}
	return "unknown"
}

// ContainerShape - what kind of children placeholder content holds
type ContainerShape int8

// Container shapes
const (
	// Inline - run level content inside paragraph
	Inline ContainerShape = iota
	// Block - paragraphs and tables
	Block
	// Cell - whole table cells
	Cell
)

// String ..
func (s ContainerShape) String() string {
	switch s {
	case Inline:
		return "inline"
	case Block:
		return "block"
	case Cell:
		return "cell"
	}
	return "unknown"
}

// Placeholder - tagged content control (<w:sdt>) found in document.
// It's a live view into document tree and valid only while document is open.
type Placeholder struct {
	Tag      string
	Title    string
	Location Location
	Shape    ContainerShape
	Part     string // zip part name

	sdt     *etree.Element // <w:sdt>
	content *etree.Element // <w:sdtContent>

	// ancestors of <w:sdt>, root first; lookup only, never mutated through
	ancestors []*etree.Element
}

// Content - <w:sdtContent> element
func (p *Placeholder) Content() *etree.Element {
	return p.content
}

// Element - <w:sdt> element
func (p *Placeholder) Element() *etree.Element {
	return p.sdt
}

// Text - current flattened text of placeholder content
func (p *Placeholder) Text() string {
	return plainText(p.content)
}

// InTableCell - placeholder sits inside table cell (or wraps one)
func (p *Placeholder) InTableCell() bool {
	return p.Shape == Cell || closestUp(p.ancestors, "tc") != nil
}

// Paragraph holding placeholder content.
// Inline: enclosing paragraph. Block/Cell: first paragraph inside content.
func (p *Placeholder) Paragraph() *etree.Element {
	if p.Shape == Inline {
		return closestUp(p.ancestors, "p")
	}

	var found *etree.Element
	walk(p.content, func(el *etree.Element, _ []*etree.Element) bool {
		if found != nil {
			return false
		}
		if isW(el, "p") {
			found = el
			return false
		}
		return true
	})
	return found
}

// insideAny - placeholder lies inside one of given elements
func (p *Placeholder) insideAny(set map[*etree.Element]bool) bool {
	if len(set) == 0 {
		return false
	}
	for _, el := range p.ancestors {
		if set[el] {
			return true
		}
	}
	return false
}

// String ..
func (p *Placeholder) String() string {
	return p.Tag + " (" + p.Location.String() + ", " + p.Shape.String() + ")"
}

// Children that can sit at any level and tell nothing about shape
var neutralContent = map[string]bool{
	"sdt":                  true,
	"customXml":            true,
	"bookmarkStart":        true,
	"bookmarkEnd":          true,
	"proofErr":             true,
	"permStart":            true,
	"permEnd":              true,
	"commentRangeStart":    true,
	"commentRangeEnd":      true,
	"moveFromRangeStart":   true,
	"moveFromRangeEnd":     true,
	"moveToRangeStart":     true,
	"moveToRangeEnd":       true,
	"customXmlInsRangeEnd": true,
}

// Run level children
var inlineContent = map[string]bool{
	"r":         true,
	"hyperlink": true,
	"ins":       true,
	"del":       true,
	"moveFrom":  true,
	"moveTo":    true,
	"smartTag":  true,
	"fldSimple": true,
	"dir":       true,
	"bdo":       true,
}

// shapeOf classifies <w:sdtContent>.
// First child with known level decides; with only neutral children (or none)
// the level of surrounding element decides. Anything else is malformed.
func shapeOf(content *etree.Element, ancestors []*etree.Element) (ContainerShape, bool) {
	if content == nil {
		return 0, false
	}

	unknown := false
	for _, child := range content.ChildElements() {
		switch {
		case child.Space == "m" && (child.Tag == "oMath" || child.Tag == "oMathPara"):
			return Inline, true
		case child.Space != "w":
			unknown = true
		case inlineContent[child.Tag]:
			return Inline, true
		case child.Tag == "p" || child.Tag == "tbl":
			return Block, true
		case child.Tag == "tc":
			return Cell, true
		case neutralContent[child.Tag]:
		default:
			unknown = true
		}
	}
	if unknown {
		return 0, false
	}
	return contextShape(ancestors), true
}

// level implied by nearest structural ancestor of <w:sdt>
func contextShape(ancestors []*etree.Element) ContainerShape {
	for i := len(ancestors) - 1; i >= 0; i-- {
		el := ancestors[i]
		if el.Space != "w" {
			continue
		}
		switch el.Tag {
		case "sdt", "sdtContent", "customXml", "smartTag":
			continue
		case "p", "hyperlink", "fldSimple", "ins", "del":
			return Inline
		case "tr":
			return Cell
		}
		return Block
	}
	return Block
}

// Locator - enumerates placeholders of document
type Locator struct {
	logger *zap.Logger
}

// NewLocator ..
func NewLocator(logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{logger: logger}
}

// region - one part with its location
type region struct {
	part     string
	location Location
}

// body first, then headers, then footers
func (d *Document) regions() []region {
	regions := []region{{part: mainDocumentPart, location: Body}}
	for _, name := range d.headers {
		regions = append(regions, region{part: name, location: Header})
	}
	for _, name := range d.footers {
		regions = append(regions, region{part: name, location: Footer})
	}
	return regions
}

// All - lazy sequence of every tagged placeholder in body, headers and footers,
// depth-first in document order. Malformed placeholders come as (nil, err)
// and iteration goes on. Every call walks the tree again.
func (l *Locator) All(d *Document) iter.Seq2[*Placeholder, error] {
	return func(yield func(*Placeholder, error) bool) {
		for _, reg := range d.regions() {
			doc, err := d.Part(reg.part)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !l.walkPart(doc.Root(), reg, yield) {
				return
			}
		}
	}
}

// walkPart returns false when consumer stopped
func (l *Locator) walkPart(root *etree.Element, reg region, yield func(*Placeholder, error) bool) bool {
	stopped := false
	walk(root, func(el *etree.Element, ancestors []*etree.Element) bool {
		if stopped {
			return false
		}
		if !isW(el, "sdt") {
			return true
		}

		sdtPr := wChild(el, "sdtPr")
		tag, ok := wVal(sdtPr, "tag")
		if !ok || tag == "" {
			l.logger.Debug("skip content control without tag", zap.String("part", reg.part))
			return true
		}
		title, _ := wVal(sdtPr, "alias")

		content := wChild(el, "sdtContent")
		shape, ok := shapeOf(content, ancestors)
		if !ok {
			l.logger.Warn("malformed placeholder", zap.String("tag", tag), zap.String("part", reg.part))
			perr := &PlaceholderError{Kind: StructuralError, Tag: tag, Part: reg.part, Err: ErrMalformedPlaceholder}
			if !yield(nil, perr) {
				stopped = true
				return false
			}
			return true
		}

		p := &Placeholder{
			Tag:       tag,
			Title:     title,
			Location:  reg.location,
			Shape:     shape,
			Part:      reg.part,
			sdt:       el,
			content:   content,
			ancestors: snapshot(ancestors),
		}
		if !yield(p, nil) {
			stopped = true
			return false
		}
		return true
	})
	return !stopped
}

// Placeholders - all placeholders of document, see Locator.All
func (d *Document) Placeholders() iter.Seq2[*Placeholder, error] {
	return NewLocator(nil).All(d)
}
