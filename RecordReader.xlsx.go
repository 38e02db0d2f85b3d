package docxfill

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/xuri/excelize/v2"
)

// MaxXLSXRows - larger workbooks are refused
const MaxXLSXRows = 10000

// keyword cells look like "#Name#"
var keywordRe = regexp.MustCompile(`^#.*#$`)

// Defaults when workbook relationships say nothing
const (
	defaultWorkbookPart      = "xl/workbook.xml"
	defaultSharedStringsPart = "xl/sharedStrings.xml"
)

// Workbook - spreadsheet opened for reading records.
// Cells are read through excelize, the raw package is kept for run
// properties excelize does not report back (vertical alignment of
// shared string runs).
type Workbook struct {
	*excelize.File

	pkg *zip.Reader

	// resolved lazily
	layoutDone bool
	sheetParts map[string]string // sheet name -> part
	sharedPart string
	shared     [][]string                     // shared string -> vertAlign per run
	cellAligns map[string]map[string][]string // sheet -> cell -> vertAlign per run
}

// OpenWorkbook ..
func OpenWorkbook(fpath string) (*Workbook, error) {
	buf, err := os.ReadFile(fpath) // #nosec G304 - data path is caller supplied
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	pkg, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Workbook{File: f, pkg: pkg, cellAligns: map[string]map[string][]string{}}, nil
}

// ParseXLSXRecord - one record from first sheet of workbook.
// Column A holds tag, column B value with its rich text. No header row,
// rows with empty tag are skipped.
func ParseXLSXRecord(fpath string) (*Record, error) {
	w, err := OpenWorkbook(fpath)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	sheet, rows, err := w.firstSheetRows()
	if err != nil {
		return nil, err
	}

	rec := NewRecord()
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		tag := strings.TrimSpace(row[0])
		if tag == "" {
			continue
		}

		cell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return nil, err
		}
		v, err := w.ReadCellRichText(sheet, cell)
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", sheet, cell, err)
		}
		if err := rec.Set(tag, v); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return rec, nil
}

func (w *Workbook) firstSheetRows() (string, [][]string, error) {
	sheets := w.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("%w: workbook has no sheets", ErrUnsupportedDataFile)
	}
	sheet := sheets[0]

	rows, err := w.GetRows(sheet)
	if err != nil {
		return "", nil, err
	}
	if len(rows) > MaxXLSXRows {
		return "", nil, fmt.Errorf("workbook too large: %d rows, max %d", len(rows), MaxXLSXRows)
	}
	return sheet, rows, nil
}

// ReadCellRichText - reader adapter for spreadsheet cell.
// Rich text runs are kept one to one, runs without own font take the cell
// font. A cell without runs becomes single run styled by the cell font.
func (w *Workbook) ReadCellRichText(sheet, cell string) (*FormattedText, error) {
	base, err := w.cellFont(sheet, cell)
	if err != nil {
		return nil, err
	}

	runs, err := w.GetCellRichText(sheet, cell)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		value, err := w.GetCellValue(sheet, cell)
		if err != nil {
			return nil, err
		}
		return &FormattedText{Runs: []TextRun{FontRun(value, base)}}, nil
	}

	var aligns []string
	for _, run := range runs {
		if run.Font != nil {
			if aligns, err = w.vertAligns(sheet, cell); err != nil {
				return nil, err
			}
			break
		}
	}
	if len(aligns) != len(runs) {
		aligns = nil
	}

	ft := &FormattedText{Runs: make([]TextRun, 0, len(runs))}
	for i, run := range runs {
		font := run.Font
		switch {
		case font == nil:
			font = base
		case aligns != nil && aligns[i] != "":
			withAlign := *font
			withAlign.VertAlign = aligns[i]
			font = &withAlign
		}
		ft.Runs = append(ft.Runs, FontRun(run.Text, font))
	}
	return ft, nil
}

// font of cell style, nil for default style
func (w *Workbook) cellFont(sheet, cell string) (*excelize.Font, error) {
	styleID, err := w.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return nil, err
	}
	style, err := w.GetStyle(styleID)
	if err != nil || style == nil {
		return nil, err
	}
	return style.Font, nil
}

// vertAligns - "vertAlign" of every run of rich text cell in the order
// excelize reports runs, nil for cells without rich text
func (w *Workbook) vertAligns(sheet, cell string) ([]string, error) {
	if err := w.layout(); err != nil {
		return nil, err
	}

	cells, ok := w.cellAligns[sheet]
	if !ok {
		var err error
		if cells, err = w.sheetAligns(sheet); err != nil {
			return nil, err
		}
		w.cellAligns[sheet] = cells
	}
	return cells[strings.ToUpper(cell)], nil
}

// layout resolves sheet parts and reads run alignments of shared strings
func (w *Workbook) layout() error {
	if w.layoutDone {
		return nil
	}
	w.sheetParts = map[string]string{}
	w.sharedPart = defaultSharedStringsPart

	rels, err := w.relationships("_rels/.rels")
	if err != nil {
		return err
	}
	wbPart := defaultWorkbookPart
	for _, rel := range rels {
		if strings.HasSuffix(rel.SelectAttrValue("Type", ""), "/officeDocument") {
			wbPart = resolveTarget("", rel.SelectAttrValue("Target", ""))
			break
		}
	}
	wbDir := path.Dir(wbPart)

	rels, err = w.relationships(path.Join(wbDir, "_rels", path.Base(wbPart)+".rels"))
	if err != nil {
		return err
	}
	targets := map[string]string{}
	for _, rel := range rels {
		target := resolveTarget(wbDir, rel.SelectAttrValue("Target", ""))
		targets[rel.SelectAttrValue("Id", "")] = target
		if strings.HasSuffix(rel.SelectAttrValue("Type", ""), "/sharedStrings") {
			w.sharedPart = target
		}
	}

	wb, err := w.xmlPart(wbPart)
	if err != nil {
		return err
	}
	if wb != nil {
		if sheets := wb.Root().SelectElement("sheets"); sheets != nil {
			for _, sh := range sheets.SelectElements("sheet") {
				for _, a := range sh.Attr {
					if a.Key == "id" && a.Space != "" {
						w.sheetParts[sh.SelectAttrValue("name", "")] = targets[a.Value]
					}
				}
			}
		}
	}

	sst, err := w.xmlPart(w.sharedPart)
	if err != nil {
		return err
	}
	if sst != nil {
		for _, si := range sst.Root().SelectElements("si") {
			w.shared = append(w.shared, runAligns(si))
		}
	}
	w.layoutDone = true
	return nil
}

// relationships of rels part, none when part is missing
func (w *Workbook) relationships(name string) ([]*etree.Element, error) {
	doc, err := w.xmlPart(name)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Root().SelectElements("Relationship"), nil
}

// runAligns of string item (<si> or <is>): leading plain <t> counts as run
func runAligns(si *etree.Element) []string {
	var aligns []string
	if si.SelectElement("t") != nil {
		aligns = append(aligns, "")
	}
	for _, r := range si.SelectElements("r") {
		va := ""
		if rPr := r.SelectElement("rPr"); rPr != nil {
			if el := rPr.SelectElement("vertAlign"); el != nil {
				va = el.SelectAttrValue("val", "")
			}
		}
		aligns = append(aligns, va)
	}
	return aligns
}

// sheetAligns - run alignments of every shared or inline string cell of sheet
func (w *Workbook) sheetAligns(sheet string) (map[string][]string, error) {
	cells := map[string][]string{}
	part, ok := w.sheetParts[sheet]
	if !ok {
		return cells, nil
	}
	doc, err := w.xmlPart(part)
	if err != nil || doc == nil {
		return cells, err
	}

	data := doc.Root().SelectElement("sheetData")
	if data == nil {
		return cells, nil
	}
	for _, row := range data.SelectElements("row") {
		for _, c := range row.SelectElements("c") {
			ref := strings.ToUpper(c.SelectAttrValue("r", ""))
			if ref == "" {
				continue
			}
			switch c.SelectAttrValue("t", "") {
			case "s":
				v := c.SelectElement("v")
				if v == nil {
					continue
				}
				idx, err := strconv.Atoi(strings.TrimSpace(v.Text()))
				if err != nil {
					return nil, fmt.Errorf("%s!%s: shared string index: %w", sheet, ref, err)
				}
				if idx >= 0 && idx < len(w.shared) {
					cells[ref] = w.shared[idx]
				}
			case "inlineStr":
				if is := c.SelectElement("is"); is != nil {
					cells[ref] = runAligns(is)
				}
			}
		}
	}
	return cells, nil
}

// xmlPart - parsed package part, nil when part is missing
func (w *Workbook) xmlPart(name string) (*etree.Document, error) {
	fr, err := w.pkg.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	buf, err := readAllClose(fr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(buf); err != nil {
		return nil, fmt.Errorf("%s: parse: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%s: parse: no root element", name)
	}
	return doc, nil
}

// RichTextFromExcel maps excelize runs to text runs, boundaries untouched
func RichTextFromExcel(runs []excelize.RichTextRun) *FormattedText {
	ft := &FormattedText{Runs: make([]TextRun, 0, len(runs))}
	for _, run := range runs {
		ft.Runs = append(ft.Runs, FontRun(run.Text, run.Font))
	}
	return ft
}

// FontRun - text run with flags from spreadsheet font (nil font = plain)
func FontRun(text string, font *excelize.Font) TextRun {
	tr := TextRun{Text: normalizeLineEndings(text)}
	if font == nil {
		return tr
	}
	tr.Bold = font.Bold
	tr.Italic = font.Italic
	tr.Underline = font.Underline != "" && font.Underline != "none"
	switch font.VertAlign {
	case "superscript":
		tr.SetSuperscript(true)
	case "subscript":
		tr.SetSubscript(true)
	}
	return tr
}

// XLSXCheck - findings of workbook check, nothing here stops parsing
// except duplicates
type XLSXCheck struct {
	Rows              int
	Keywords          int
	InvalidKeywords   []string // not in "#...#" form, as "row N: text"
	DuplicateKeywords []string
	EmptyValues       []string
}

// Valid - no duplicates and at least one keyword
func (c *XLSXCheck) Valid() bool {
	return c.Keywords > 0 && len(c.DuplicateKeywords) == 0
}

// CheckXLSX inspects workbook layout without building record
func CheckXLSX(fpath string) (*XLSXCheck, error) {
	w, err := OpenWorkbook(fpath)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	_, rows, err := w.firstSheetRows()
	if err != nil {
		return nil, err
	}

	check := &XLSXCheck{Rows: len(rows)}
	seen := map[string]bool{}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		keyword := strings.TrimSpace(row[0])
		if keyword == "" {
			continue
		}

		if !keywordRe.MatchString(keyword) {
			check.InvalidKeywords = append(check.InvalidKeywords, fmt.Sprintf("row %d: %s", i+1, keyword))
		}
		if seen[keyword] {
			check.DuplicateKeywords = append(check.DuplicateKeywords, keyword)
		} else {
			seen[keyword] = true
		}
		if len(row) < 2 || row[1] == "" {
			check.EmptyValues = append(check.EmptyValues, keyword)
		}
	}
	check.Keywords = len(seen)
	return check, nil
}
