package docxfill

import (
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// CleanOptions ..
type CleanOptions struct {
	Comments bool   // drop comments with their markers
	Controls bool   // unwrap content controls, keep content
	Color    string // generated colour to strip from commented runs, empty = DefaultColor
}

// CleanStats ..
type CleanStats struct {
	CommentsRemoved   int
	MarkersRemoved    int
	RunsRecolored     int
	ControlsUnwrapped int
}

// Clean turns filled document into final one: comments go away together
// with the marking colour of the text they covered, and content controls
// are replaced by their content.
func Clean(d *Document, opts CleanOptions, logger *zap.Logger) (CleanStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Color == "" {
		opts.Color = DefaultColor
	}

	var stats CleanStats
	if opts.Comments {
		if err := cleanComments(d, opts.Color, &stats); err != nil {
			return stats, err
		}
	}
	if opts.Controls {
		for _, reg := range d.regions() {
			doc, err := d.Part(reg.part)
			if err != nil {
				return stats, err
			}
			n := unwrapControls(doc.Root())
			if n > 0 {
				stats.ControlsUnwrapped += n
				d.MarkDirty(reg.part)
			}
		}
	}

	logger.Info("document cleaned",
		zap.Int("comments", stats.CommentsRemoved),
		zap.Int("markers", stats.MarkersRemoved),
		zap.Int("controls", stats.ControlsUnwrapped),
	)
	return stats, nil
}

func cleanComments(d *Document, color string, stats *CleanStats) error {
	root, partName, err := d.comments(false)
	if err != nil || root == nil {
		return err
	}

	ids := map[string]bool{}
	for _, c := range wChildren(root, "comment") {
		ids[c.SelectAttrValue("w:id", "")] = true
		root.RemoveChild(c)
		stats.CommentsRemoved++
	}
	if stats.CommentsRemoved == 0 {
		return nil
	}
	d.MarkDirty(partName)

	body, err := d.Part(mainDocumentPart)
	if err != nil {
		return err
	}

	var starts, markers []*etree.Element
	walk(body.Root(), func(el *etree.Element, _ []*etree.Element) bool {
		if el.Space != "w" || !ids[el.SelectAttrValue("w:id", "")] {
			return true
		}
		switch el.Tag {
		case "commentRangeStart":
			starts = append(starts, el)
			markers = append(markers, el)
		case "commentRangeEnd", "commentReference":
			markers = append(markers, el)
		}
		return true
	})

	for _, start := range starts {
		stats.RunsRecolored += recolorRange(start, color)
	}

	for _, m := range markers {
		parent := m.Parent()
		detach(m)
		stats.MarkersRemoved++

		// run left with nothing but properties goes too
		if isW(m, "commentReference") && isW(parent, "r") && len(wNonProps(parent)) == 0 {
			detach(parent)
		}
	}
	d.MarkDirty(mainDocumentPart)
	return nil
}

// children other than run properties
func wNonProps(r *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, child := range r.ChildElements() {
		if !isW(child, "rPr") {
			out = append(out, child)
		}
	}
	return out
}

// recolorRange drops generated colour from runs between range start and
// matching range end (siblings and their descendants)
func recolorRange(start *etree.Element, color string) int {
	parent := start.Parent()
	if parent == nil {
		return 0
	}
	id := start.SelectAttrValue("w:id", "")

	n := 0
	inRange := false
	for _, sib := range parent.ChildElements() {
		if sib == start {
			inRange = true
			continue
		}
		if !inRange {
			continue
		}
		if isW(sib, "commentRangeEnd") && sib.SelectAttrValue("w:id", "") == id {
			break
		}
		walk(sib, func(el *etree.Element, _ []*etree.Element) bool {
			if !isW(el, "r") {
				return true
			}
			rPr := wChild(el, "rPr")
			if val, ok := wVal(rPr, "color"); ok && strings.EqualFold(val, color) {
				removeRPr(rPr, "color")
				n++
			}
			return false
		})
	}
	return n
}

// unwrapControls replaces every <w:sdt> under root by its content.
// Control wrapping table cells inside a row keeps the cells.
// Returns number of controls unwrapped.
func unwrapControls(root *etree.Element) int {
	var sdts []*etree.Element
	walk(root, func(el *etree.Element, _ []*etree.Element) bool {
		if isW(el, "sdt") {
			sdts = append(sdts, el)
		}
		return true
	})

	// inner controls first
	n := 0
	for i := len(sdts) - 1; i >= 0; i-- {
		sdt := sdts[i]
		if sdt.Parent() == nil {
			continue
		}
		content := wChild(sdt, "sdtContent")
		if content != nil {
			for _, child := range content.ChildElements() {
				insertBefore(sdt, child)
			}
		}
		detach(sdt)
		n++
	}
	return n
}
