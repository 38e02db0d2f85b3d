package docxfill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteXLSXRecord - record as two column workbook ParseXLSXRecord reads back:
// tag in column A, value in column B. Formatted values become rich text,
// null values are written as empty cells.
func WriteXLSXRecord(rec *Record, fpath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	row := 0
	for tag, v := range rec.All() {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		row++

		if err := f.SetCellStr(sheet, fmt.Sprintf("A%d", row), tag); err != nil {
			return err
		}
		cell := fmt.Sprintf("B%d", row)
		if v.IsPlain() || v.PlainText() == "" {
			if err := f.SetCellStr(sheet, cell, v.PlainText()); err != nil {
				return err
			}
			continue
		}
		if err := f.SetCellRichText(sheet, cell, ExcelFromRichText(v)); err != nil {
			return fmt.Errorf("%s: %w", tag, err)
		}
	}
	return f.SaveAs(fpath)
}

// ExcelFromRichText - writer side of RichTextFromExcel, empty runs dropped
func ExcelFromRichText(ft *FormattedText) []excelize.RichTextRun {
	if ft == nil {
		return nil
	}
	var runs []excelize.RichTextRun
	for _, r := range ft.Runs {
		if r.Text == "" {
			continue
		}
		run := excelize.RichTextRun{Text: r.Text}
		if !r.sameFormat(TextRun{}) {
			run.Font = &excelize.Font{Bold: r.Bold, Italic: r.Italic}
			if r.Underline {
				run.Font.Underline = "single"
			}
			if r.VertAlign != Baseline {
				run.Font.VertAlign = r.VertAlign.String()
			}
		}
		runs = append(runs, run)
	}
	return runs
}

// ConvertJSONToXLSX - every record of JSON data file as keyword workbook.
// Single record goes to output, more records get "_N" suffix before extension.
// Returns written paths.
func ConvertJSONToXLSX(jsonPath, output string) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(jsonPath), ".json") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataFile, jsonPath)
	}
	f, err := os.Open(jsonPath) // #nosec G304 - data path is caller supplied
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ParseJSONRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", jsonPath, err)
	}

	if output == "" {
		output = strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".xlsx"
	}
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(output, ext)

	var written []string
	for i, rec := range records {
		fpath := output
		if len(records) > 1 {
			fpath = fmt.Sprintf("%s_%d%s", stem, i+1, ext)
		}
		if err := WriteXLSXRecord(rec, fpath); err != nil {
			return written, fmt.Errorf("record %d: %w", i+1, err)
		}
		written = append(written, fpath)
	}
	return written, nil
}
