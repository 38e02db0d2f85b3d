package docxfill

import (
	"github.com/beevik/etree"
)

// tableCells - every <w:tc> below root, nested tables included, deepest first
func tableCells(root *etree.Element) []*etree.Element {
	var cells []*etree.Element
	walk(root, func(el *etree.Element, _ []*etree.Element) bool {
		if isW(el, "tc") {
			cells = append(cells, el)
		}
		return true
	})

	// pre-order reversed: inner cells come before the cells holding them
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

// Paragraph can't give its content away without losing something that
// belongs to paragraph itself: section break or tracked paragraph mark.
func unmergeable(p *etree.Element) bool {
	pPr := wChild(p, "pPr")
	if pPr == nil {
		return false
	}
	if wChild(pPr, "sectPr") != nil {
		return true
	}
	if rPr := wChild(pPr, "rPr"); rPr != nil {
		if wChild(rPr, "ins") != nil || wChild(rPr, "del") != nil {
			return true
		}
	}
	return false
}

// emptyParagraph - no children besides properties
func emptyParagraph(p *etree.Element) bool {
	for _, child := range p.ChildElements() {
		if !isW(child, "pPr") {
			return false
		}
	}
	return true
}

// lastBlock - last paragraph or table child of cell
func lastBlock(tc *etree.Element) *etree.Element {
	children := tc.ChildElements()
	for i := len(children) - 1; i >= 0; i-- {
		if isW(children[i], "p") || isW(children[i], "tbl") {
			return children[i]
		}
	}
	return nil
}

// moveParagraphContent moves everything except properties from src to the end of dst
func moveParagraphContent(dst, src *etree.Element) {
	for _, child := range src.ChildElements() {
		if isW(child, "pPr") {
			continue
		}
		appendTo(dst, child)
	}
}
