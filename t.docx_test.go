package docxfill_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briiC/docxfill"
)

// Template used for most of end to end tests below
var contractFixture = docxfill.DocxFixture{
	Body: docxfill.P(docxfill.R("Contract with "), docxfill.SDT("Client", docxfill.R("CLIENT"))) +
		docxfill.SDT("Terms", docxfill.P(docxfill.R("TERMS"))) +
		docxfill.TBL(docxfill.TR(
			docxfill.TC(docxfill.P(docxfill.R("Total: ")), docxfill.P(docxfill.SDT("Total", docxfill.R("0"))), docxfill.P()),
			docxfill.TC(docxfill.P(docxfill.R("static"))),
		)) +
		docxfill.P(docxfill.SDT("Note", docxfill.R("keep me"))),
	Headers: []string{
		docxfill.P(docxfill.SDT("Company", docxfill.R("COMPANY"))),
		docxfill.P(docxfill.R("no controls here")),
	},
	Footers: []string{docxfill.P(docxfill.SDT("Page", docxfill.R("PAGE")))},
}

func contractRecord(t *testing.T) *docxfill.Record {
	t.Helper()
	rec := docxfill.NewRecord()
	require.NoError(t, rec.SetText("Client", "Alice"))
	require.NoError(t, rec.SetText("Terms", "Net 30\nNo refunds"))
	require.NoError(t, rec.Set("Total", docxfill.Rich(
		docxfill.TextRun{Text: "100", Bold: true},
		docxfill.TextRun{Text: " EUR"},
	)))
	require.NoError(t, rec.Set("Note", nil))
	require.NoError(t, rec.SetText("Company", "ACME"))
	require.NoError(t, rec.SetText("Page", "1/1"))
	return rec
}

func zipEntries(t *testing.T, fpath string) map[string][]byte {
	t.Helper()
	zipr, err := zip.OpenReader(fpath)
	require.NoError(t, err)
	defer zipr.Close()

	out := map[string][]byte{}
	for _, f := range zipr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		buf, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = buf
	}
	return out
}

func TestFillFile(t *testing.T) {
	template := contractFixture.Write(t, "contract.docx")
	output := filepath.Join(t.TempDir(), "filled.docx")

	filler := docxfill.NewFiller(docxfill.DefaultOptions(), nil)
	report, err := filler.FillFile(template, output, contractRecord(t))
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.ElementsMatch(t, []string{"Client", "Terms", "Total", "Company", "Page"}, report.Replaced)
	assert.Equal(t, []string{"Note"}, report.Null)
	assert.Empty(t, report.Unbound)
	assert.Equal(t, 3, report.Comments, "body placeholders only")
	assert.Equal(t, 1, report.Normalize.CellsFixed)

	d, err := docxfill.OpenDocument(output)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "Contract with AliceNet 30\nNo refundsTotal: 100 EURstatickeep me", d.Plaintext())

	texts := map[string]string{}
	for p, err := range d.Placeholders() {
		require.NoError(t, err)
		texts[p.Tag] = p.Text()
	}
	assert.Equal(t, map[string]string{
		"Client":  "Alice",
		"Terms":   "Net 30\nNo refunds",
		"Total":   "100 EUR",
		"Note":    "keep me",
		"Company": "ACME",
		"Page":    "1/1",
	}, texts)

	assert.True(t, d.HasPart("word/comments.xml"))
	assert.Contains(t, d.PartText("word/comments.xml"), "Tag: Client, old: [CLIENT], new: Alice")
	assert.NotContains(t, d.PartText("word/comments.xml"), "Company")
}

func TestFillFileKeepsUntouchedEntries(t *testing.T) {
	template := contractFixture.Write(t, "contract.docx")
	output := filepath.Join(t.TempDir(), "filled.docx")

	_, err := docxfill.NewFiller(docxfill.DefaultOptions(), nil).FillFile(template, output, contractRecord(t))
	require.NoError(t, err)

	before := zipEntries(t, template)
	after := zipEntries(t, output)

	for _, name := range []string{"_rels/.rels", "word/header2.xml"} {
		assert.Equal(t, before[name], after[name], name)
	}
	for _, name := range []string{"word/document.xml", "word/header1.xml", "word/footer1.xml", "[Content_Types].xml"} {
		assert.NotEqual(t, before[name], after[name], name)
	}
	assert.Contains(t, string(after["[Content_Types].xml"]), "/word/comments.xml")
	assert.Contains(t, after, "word/comments.xml")
	assert.Len(t, after, len(before)+1)
}

func TestFillFileMissingPolicy(t *testing.T) {
	template := contractFixture.Write(t, "contract.docx")
	rec := docxfill.NewRecord()
	require.NoError(t, rec.SetText("Client", "Bob"))

	t.Run("skip", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "out.docx")
		opts := docxfill.DefaultOptions()
		opts.Comments = false

		report, err := docxfill.NewFiller(opts, nil).FillFile(template, output, rec)
		require.NoError(t, err)
		assert.Equal(t, []string{"Client"}, report.Replaced)
		assert.Equal(t, []string{"Terms", "Total", "Note", "Company", "Page"}, report.Unbound)
		assert.ErrorIs(t, report.Err(), docxfill.ErrUnboundPlaceholder)

		d, err := docxfill.OpenDocument(output)
		require.NoError(t, err)
		defer d.Close()
		assert.True(t, strings.HasPrefix(d.Plaintext(), "Contract with BobTERMS"))
		assert.False(t, d.HasPart("word/comments.xml"))
	})

	t.Run("fail", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "out.docx")
		opts := docxfill.DefaultOptions()
		opts.Missing = docxfill.MissingFail

		_, err := docxfill.NewFiller(opts, nil).FillFile(template, output, rec)
		require.Error(t, err)
		assert.True(t, docxfill.IsKind(err, docxfill.BindingError))
		assert.ErrorIs(t, err, docxfill.ErrUnboundPlaceholder)

		var perr *docxfill.PlaceholderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "Terms", perr.Tag)

		_, statErr := os.Stat(output)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestFillFileErrors(t *testing.T) {
	filler := docxfill.NewFiller(docxfill.DefaultOptions(), nil)
	dir := t.TempDir()

	_, err := filler.FillFile(filepath.Join(dir, "none.docx"), filepath.Join(dir, "out.docx"), docxfill.NewRecord())
	assert.True(t, docxfill.IsKind(err, docxfill.IOError))

	notZip := filepath.Join(dir, "plain.docx")
	require.NoError(t, os.WriteFile(notZip, []byte("plain text"), 0o600))
	_, err = filler.FillFile(notZip, filepath.Join(dir, "out.docx"), docxfill.NewRecord())
	assert.True(t, docxfill.IsKind(err, docxfill.IOError))

	// output directory does not exist
	template := contractFixture.Write(t, "contract.docx")
	_, err = filler.FillFile(template, filepath.Join(dir, "missing", "out.docx"), contractRecord(t))
	assert.Error(t, err)
}

func TestFillMalformedPlaceholderIsWarning(t *testing.T) {
	d, err := docxfill.OpenDocumentBytes(docxfill.DocxFixture{
		Body: docxfill.P(`<w:sdt><w:sdtPr><w:tag w:val="Broken"/></w:sdtPr></w:sdt>`) +
			docxfill.P(docxfill.SDT("Client", docxfill.R("x"))),
	}.Bytes(t))
	require.NoError(t, err)
	defer d.Close()

	rec := docxfill.NewRecord()
	require.NoError(t, rec.SetText("Client", "Alice"))

	report, err := docxfill.NewFiller(docxfill.DefaultOptions(), nil).Fill(d, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"Client"}, report.Replaced)
	require.Len(t, report.Warnings, 1)
	assert.True(t, docxfill.IsKind(report.Warnings[0], docxfill.StructuralError))
	assert.ErrorIs(t, report.Warnings[0], docxfill.ErrMalformedPlaceholder)
}

func TestFillInvalidXMLCharsIsWarning(t *testing.T) {
	d, err := docxfill.OpenDocumentBytes(docxfill.DocxFixture{
		Body: docxfill.P(docxfill.SDT("Client", docxfill.R("x"))),
	}.Bytes(t))
	require.NoError(t, err)
	defer d.Close()

	rec := docxfill.NewRecord()
	require.NoError(t, rec.SetText("Client", "Al\x07ice"))

	report, err := docxfill.NewFiller(docxfill.DefaultOptions(), nil).Fill(d, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"Client"}, report.Replaced)
	assert.Equal(t, 1, report.Comments)
	require.Len(t, report.Warnings, 1)
	assert.True(t, docxfill.IsKind(report.Warnings[0], docxfill.RepairError))
	assert.ErrorIs(t, report.Err(), docxfill.ErrInvalidXMLChar)
	assert.Equal(t, "Al\uFFFDice", d.Plaintext())
}
