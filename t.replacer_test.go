package docxfill

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceInline(t *testing.T) {
	d := DocxFixture{
		Body: P(R("Dear "), SDT("Name", R("old")+R(" name")), R("!")),
	}.Open(t)
	p := findPlaceholder(t, d, "Name")

	rep := NewReplacer(d, DefaultFormatPolicy(), nil)
	ok, err := rep.Replace(p, Text("  Alice  "))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "  Alice  ", p.Text())
	assert.Equal(t, "Dear   Alice  !", d.Plaintext())
	assert.True(t, d.IsDirty(mainDocumentPart))

	runs := wChildren(p.Content(), "r")
	require.Len(t, runs, 1)
	color, ok := wVal(wChild(runs[0], "rPr"), "color")
	assert.True(t, ok)
	assert.Equal(t, DefaultColor, color)

	text := wChild(runs[0], "t")
	require.NotNil(t, text)
	assert.Equal(t, "preserve", text.SelectAttrValue("xml:space", ""))
}

func TestReplaceBlock(t *testing.T) {
	d := DocxFixture{
		Body: SDT("Block", `<w:p><w:pPr><w:jc w:val="center"/></w:pPr>`+R("one")+`</w:p>`+P(R("two"))+TBL(TR(TC(P(R("t")))))),
	}.Open(t)
	p := findPlaceholder(t, d, "Block")

	ok, err := NewReplacer(d, DefaultFormatPolicy(), nil).Replace(p, Text("new block"))
	require.NoError(t, err)
	require.True(t, ok)

	children := p.Content().ChildElements()
	require.Len(t, children, 1)
	require.True(t, isW(children[0], "p"))
	jc, ok := wVal(wChild(children[0], "pPr"), "jc")
	assert.True(t, ok)
	assert.Equal(t, "center", jc)
	assert.Equal(t, "new block", p.Text())
}

func TestReplaceCell(t *testing.T) {
	d := DocxFixture{
		Body: TBL(TR(SDT("Cell", TC(P(R("a")), P(R("b")))+TC(P(R("c")))))),
	}.Open(t)
	p := findPlaceholder(t, d, "Cell")
	require.Equal(t, Cell, p.Shape)

	ok, err := NewReplacer(d, FormatPolicy{}, nil).Replace(p, Text("cell value"))
	require.NoError(t, err)
	require.True(t, ok)

	cells := wChildren(p.Content(), "tc")
	require.Len(t, cells, 2, "table grid must stay intact")
	for _, tc := range cells {
		assert.NotNil(t, wChild(tc, "tcPr"))
		assert.Len(t, wChildren(tc, "p"), 1)
	}
	assert.Equal(t, "cell value", plainText(cells[0]))
	assert.Equal(t, "", plainText(cells[1]))
	assert.Equal(t, "cell value", p.Text())
}

func TestReplaceNullIsNoop(t *testing.T) {
	d := DocxFixture{Body: P(SDT("Name", R("as rendered")))}.Open(t)
	p := findPlaceholder(t, d, "Name")

	ok, err := NewReplacer(d, DefaultFormatPolicy(), nil).Replace(p, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "as rendered", p.Text())
	assert.False(t, d.IsDirty(mainDocumentPart))
}

func TestReplaceLineBreaksAndTabs(t *testing.T) {
	d := DocxFixture{Body: SDT("Address", P(R("x")))}.Open(t)
	p := findPlaceholder(t, d, "Address")

	value := "Street 1\r\nRiga\tLV-1010\n"
	_, err := NewReplacer(d, DefaultFormatPolicy(), nil).Replace(p, Text(value))
	require.NoError(t, err)

	assert.Equal(t, "Street 1\nRiga\tLV-1010\n", p.Text())
	run := wChild(p.Paragraph(), "r")
	assert.Len(t, wChildren(run, "br"), 2)
	assert.Len(t, wChildren(run, "tab"), 1)
}

func TestReplaceFormattedRuns(t *testing.T) {
	d := DocxFixture{Body: P(SDT("Formula", R("x")))}.Open(t)
	p := findPlaceholder(t, d, "Formula")

	value := Rich(
		TextRun{Text: "H"},
		TextRun{Text: "2", VertAlign: Subscript},
		TextRun{Text: "O", Bold: true, Italic: true, Underline: true},
	)
	_, err := NewReplacer(d, FormatPolicy{}, nil).Replace(p, value)
	require.NoError(t, err)

	got := TextFromRuns(p.Content().ChildElements())
	if diff := cmp.Diff(value, got); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceInheritRunProperties(t *testing.T) {
	base := `<w:r><w:rPr><w:rFonts w:ascii="Arial"/><w:b w:val="0"/><w:color w:val="00FF00"/><w:vertAlign w:val="superscript"/></w:rPr><w:t>old</w:t></w:r>`
	d := DocxFixture{Body: P(SDT("Styled", base))}.Open(t)
	p := findPlaceholder(t, d, "Styled")

	policy := FormatPolicy{Color: "FF0000", InheritRunProperties: true}
	_, err := NewReplacer(d, policy, nil).Replace(p, Rich(TextRun{Text: "new", Bold: true}))
	require.NoError(t, err)

	rPr := wChild(wChild(p.Content(), "r"), "rPr")
	require.NotNil(t, rPr)
	assert.NotNil(t, wChild(rPr, "rFonts"), "template font kept")
	assert.True(t, rPrOn(rPr, "b"))
	assert.Nil(t, wChild(rPr, "vertAlign"), "baseline run clears vertical position")
	color, _ := wVal(rPr, "color")
	assert.Equal(t, "FF0000", color)

	var order []string
	for _, el := range rPr.ChildElements() {
		order = append(order, el.Tag)
	}
	assert.Equal(t, []string{"rFonts", "b", "color"}, order)
}

func TestReplaceSkipsNestedInReplaced(t *testing.T) {
	d := DocxFixture{
		Body: SDT("Outer", P(R("a "), SDT("Inner", R("b")))),
	}.Open(t)
	ps := mustPlaceholders(t, d)
	require.Len(t, ps, 2)

	rep := NewReplacer(d, DefaultFormatPolicy(), nil)
	ok, err := rep.Replace(ps[0], Text("outer"))
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, rep.Stale(ps[1]))
	ok, err = rep.Replace(ps[1], Text("inner"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "outer", d.Plaintext())
}

func TestReplaceWithoutColor(t *testing.T) {
	d := DocxFixture{Body: P(SDT("Plain", R("x")))}.Open(t)
	p := findPlaceholder(t, d, "Plain")

	_, err := NewReplacer(d, FormatPolicy{}, nil).Replace(p, Text("y"))
	require.NoError(t, err)
	assert.Nil(t, wChild(wChild(p.Content(), "r"), "rPr"))
}

func TestReplaceEmptyValueKeepsRun(t *testing.T) {
	d := DocxFixture{Body: P(SDT("Empty", R("x")))}.Open(t)
	p := findPlaceholder(t, d, "Empty")

	_, err := NewReplacer(d, FormatPolicy{}, nil).Replace(p, &FormattedText{})
	require.NoError(t, err)
	assert.Equal(t, "", p.Text())
	assert.Len(t, wChildren(p.Content(), "r"), 1)
}

func TestSetRPrOrder(t *testing.T) {
	rPr := mustElement(t, `<w:rPr><w:sz w:val="20"/></w:rPr>`)
	setRPr(rPr, "vertAlign", "subscript")
	setRPr(rPr, "b", "")
	setRPr(rPr, "color", "123456")
	setRPr(rPr, "sz", "24")

	var got []string
	for _, el := range rPr.ChildElements() {
		got = append(got, el.Tag+"="+el.SelectAttrValue("w:val", ""))
	}
	assert.Equal(t, []string{"b=", "color=123456", "sz=24", "vertAlign=subscript"}, got)

	removeRPr(rPr, "b")
	assert.False(t, rPrOn(rPr, "b"))
	assert.Nil(t, wChild(etree.NewElement("w:rPr"), "b"))
}

func TestReplaceClearsPromptFlag(t *testing.T) {
	d := DocxFixture{
		Body: P(`<w:sdt><w:sdtPr><w:tag w:val="Prompt"/><w:showingPlcHdr/></w:sdtPr><w:sdtContent>` + R("Click here") + `</w:sdtContent></w:sdt>`),
	}.Open(t)
	p := findPlaceholder(t, d, "Prompt")

	_, err := NewReplacer(d, DefaultFormatPolicy(), nil).Replace(p, Text("filled"))
	require.NoError(t, err)
	assert.Nil(t, wChild(wChild(p.Element(), "sdtPr"), "showingPlcHdr"))
	assert.NotNil(t, wChild(wChild(p.Element(), "sdtPr"), "tag"))
}

func TestReplaceEmptyCellControl(t *testing.T) {
	d := DocxFixture{Body: TBL(TR(SDT("Cell", ""), TC(P())))}.Open(t)
	p := findPlaceholder(t, d, "Cell")
	require.Equal(t, Cell, p.Shape)

	ok, err := NewReplacer(d, FormatPolicy{}, nil).Replace(p, Text("new"))
	require.NoError(t, err)
	require.True(t, ok)

	cells := wChildren(p.Content(), "tc")
	require.Len(t, cells, 1)
	assert.Equal(t, "new", plainText(cells[0]))
}

func TestReplaceInvalidXMLChars(t *testing.T) {
	d := DocxFixture{
		Body: P(SDT("Ctrl", R("old"))),
	}.Open(t)
	p := findPlaceholder(t, d, "Ctrl")

	ok, err := NewReplacer(d, DefaultFormatPolicy(), nil).Replace(p, Text("a\x0bb\x01c\td\U0001F600"))
	assert.True(t, ok, "value is still written")
	require.Error(t, err)
	assert.True(t, IsKind(err, RepairError))
	assert.ErrorIs(t, err, ErrInvalidXMLChar)
	assert.ErrorContains(t, err, "2 character(s)")

	var perr *PlaceholderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Ctrl", perr.Tag)
	assert.Equal(t, mainDocumentPart, perr.Part)

	assert.Equal(t, "a\uFFFDb\uFFFDc\td\U0001F600", p.Text())

	// output parses back
	buf, err := d.Bytes()
	require.NoError(t, err)
	back, err := OpenDocumentBytes(buf)
	require.NoError(t, err)
	defer back.Close()
	assert.Equal(t, "a\uFFFDb\uFFFDc\td\U0001F600", back.Plaintext())
}

func TestIsXMLChar(t *testing.T) {
	for _, r := range []rune{'\t', '\n', '\r', ' ', 'ā', 0xD7FF, 0xE000, 0xFFFD, 0x10000, 0x10FFFF} {
		assert.True(t, isXMLChar(r), "%U", r)
	}
	for _, r := range []rune{0x0, 0x8, 0xB, 0x1F, 0xFFFE, 0xFFFF} {
		assert.False(t, isXMLChar(r), "%U", r)
	}
	assert.Equal(t, 0, invalidXMLChars("plain\ttext"))
	assert.Equal(t, 3, invalidXMLChars("\x00a\x1fb\uFFFF"))
}
