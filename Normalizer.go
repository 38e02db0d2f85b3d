package docxfill

import (
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// errCellEndsWithTable - cell must end with paragraph, so the last one stays
var errCellEndsWithTable = fmt.Errorf("%w: paragraph closes cell after nested table", ErrUnmergeableParagraph)

// NormalizeStats ..
type NormalizeStats struct {
	CellsFixed       int
	ParagraphsMerged int
	Warnings         []error // RepairError per paragraph left unmerged
}

// NormalizeTableCells brings every table cell with several direct paragraphs
// in body, headers and footers down to one paragraph. Content of following
// paragraphs moves to the end of the first one in order, emptied paragraphs
// are removed. Applies to all cells, not only ones holding placeholders.
func NormalizeTableCells(d *Document, logger *zap.Logger) NormalizeStats {
	if logger == nil {
		logger = zap.NewNop()
	}

	var stats NormalizeStats
	for _, reg := range d.regions() {
		doc, err := d.Part(reg.part)
		if err != nil {
			stats.Warnings = append(stats.Warnings, err)
			continue
		}

		before := stats.ParagraphsMerged
		for _, tc := range tableCells(doc.Root()) {
			merged := normalizeCell(tc, reg.part, &stats, logger)
			if merged > 0 {
				stats.CellsFixed++
				stats.ParagraphsMerged += merged
			}
		}
		if stats.ParagraphsMerged > before {
			d.MarkDirty(reg.part)
		}
	}

	logger.Debug("table cells normalized",
		zap.Int("cells", stats.CellsFixed),
		zap.Int("paragraphs", stats.ParagraphsMerged),
		zap.Int("warnings", len(stats.Warnings)),
	)
	return stats
}

// normalizeCell returns number of paragraphs merged into first one
func normalizeCell(tc *etree.Element, part string, stats *NormalizeStats, logger *zap.Logger) int {
	paras := wChildren(tc, "p")
	if len(paras) < 2 {
		return 0
	}

	survivor := paras[0]
	merged := 0
	for _, p := range paras[1:] {
		var reason error
		switch {
		case unmergeable(p):
			reason = ErrUnmergeableParagraph
		case p == lastBlock(tc) && endsAfterTable(tc, p):
			if emptyParagraph(p) {
				// required closing paragraph, nothing to lose
				continue
			}
			reason = errCellEndsWithTable
		}
		if reason != nil {
			logger.Warn("cell paragraph left unmerged", zap.String("part", part), zap.Error(reason))
			stats.Warnings = append(stats.Warnings, &PlaceholderError{Kind: RepairError, Part: part, Err: reason})
			continue
		}

		moveParagraphContent(survivor, p)
		tc.RemoveChild(p)
		merged++
	}
	return merged
}

// paragraph p directly follows nested table among cell block children
func endsAfterTable(tc, p *etree.Element) bool {
	var prev *etree.Element
	for _, child := range tc.ChildElements() {
		if child == p {
			return isW(prev, "tbl")
		}
		if isW(child, "p") || isW(child, "tbl") {
			prev = child
		}
	}
	return false
}
