package docxfill

import (
	"strings"

	"github.com/beevik/etree"
)

// WordprocessingML main namespace
const nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// walkFunc receives every element together with its ancestors (root first).
// The ancestors slice is reused between calls, copy it with snapshot() to keep it.
// Return false to skip the element children.
type walkFunc func(el *etree.Element, ancestors []*etree.Element) bool

// Walk down all elements depth-first in document order.
// Ancestors are passed down as a stack, so upward lookups never need
// to follow parent links.
func walk(root *etree.Element, fn walkFunc) {
	if root == nil {
		return
	}

	var stack []*etree.Element
	var visit func(el *etree.Element)
	visit = func(el *etree.Element) {
		if !fn(el, stack) {
			return
		}
		stack = append(stack, el)
		for _, child := range el.ChildElements() {
			visit(child)
		}
		stack = stack[:len(stack)-1]
	}
	visit(root)
}

// copy of ancestors stack
func snapshot(stack []*etree.Element) []*etree.Element {
	out := make([]*etree.Element, len(stack))
	copy(out, stack)
	return out
}

// closest ancestor with given w: tag, searching from the nearest one
func closestUp(ancestors []*etree.Element, local string) *etree.Element {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if isW(ancestors[i], local) {
			return ancestors[i]
		}
	}
	return nil
}

// isW - element is <w:local>
func isW(el *etree.Element, local string) bool {
	return el != nil && el.Space == "w" && el.Tag == local
}

// newW creates detached <w:local> element
func newW(local string) *etree.Element {
	return etree.NewElement("w:" + local)
}

// wChildren - direct children with given w: tag
func wChildren(el *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if isW(child, local) {
			out = append(out, child)
		}
	}
	return out
}

// wChild - first direct child with given w: tag
func wChild(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if isW(child, local) {
			return child
		}
	}
	return nil
}

// wVal - value of w:val attribute of direct child <w:local w:val=".."/>
func wVal(el *etree.Element, local string) (string, bool) {
	child := wChild(el, local)
	if child == nil {
		return "", false
	}
	attr := child.SelectAttr("w:val")
	if attr == nil {
		return "", true
	}
	return attr.Value, true
}

// Remove all child tokens (elements, text, comments)
func clearChildren(el *etree.Element) {
	for len(el.Child) > 0 {
		el.RemoveChildAt(len(el.Child) - 1)
	}
}

// Detach element from its parent
func detach(el *etree.Element) {
	if parent := el.Parent(); parent != nil {
		parent.RemoveChild(el)
	}
}

// Insert el right before ref (same parent)
func insertBefore(ref, el *etree.Element) {
	parent := ref.Parent()
	if parent == nil {
		return
	}
	detach(el)
	parent.InsertChildAt(ref.Index(), el)
}

// Append el as last child of parent, moving it if it's attached elsewhere
func appendTo(parent, el *etree.Element) {
	detach(el)
	parent.AddChild(el)
}

// plainText - flattened text of element and all its descendants.
// <w:t> contributes its text, <w:tab/> a tab and <w:br/>/<w:cr/> a new line.
// Paragraph boundaries add nothing, so merged paragraphs flatten the same.
func plainText(el *etree.Element) string {
	var sb strings.Builder
	walk(el, func(n *etree.Element, _ []*etree.Element) bool {
		if n.Space != "w" {
			return true
		}
		switch n.Tag {
		case "t":
			sb.WriteString(n.Text())
			return false
		case "tab":
			sb.WriteByte('\t')
		case "br", "cr":
			sb.WriteByte('\n')
		case "rPr", "pPr", "sdtPr", "tcPr", "tblPr", "trPr", "delText", "instrText":
			// properties hold tab stops and no text
			return false
		}
		return true
	})
	return sb.String()
}
