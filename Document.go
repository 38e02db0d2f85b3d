package docxfill

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// Well known package part names
const (
	mainDocumentPart = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"
	commentsPart     = "word/comments.xml"
)

// Relationship types
const (
	relTypeHeader   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	relTypeFooter   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer"
	relTypeComments = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
)

// Document - docx package loaded for one fill operation.
// XML parts are parsed on first use and only modified parts are written back,
// every other zip entry is copied as is.
// Not safe for concurrent use.
type Document struct {
	path string
	zipr *zip.ReadCloser // nil when opened from memory
	zipf []*zip.File     // entries in archive order

	// save all zip files here so we can build it again
	files map[string]*zip.File

	// parsed parts
	parts map[string]*etree.Document

	// parts to serialize on save (modified or new)
	dirty map[string]bool

	// parts not present in source archive, in creation order
	added []string

	headers []string
	footers []string

	// next comment id, 0 until seeded
	commentSeq int

	closed bool
}

// OpenDocument ..
func OpenDocument(docpath string) (*Document, error) {
	zipr, err := zip.OpenReader(docpath)
	if err != nil {
		return nil, &PlaceholderError{Kind: IOError, Part: docpath, Err: err}
	}

	d, err := newDocument(&zipr.Reader)
	if err != nil {
		_ = zipr.Close()
		return nil, err
	}
	d.path = docpath
	d.zipr = zipr
	return d, nil
}

// OpenDocumentBytes - open docx from memory
func OpenDocumentBytes(buf []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, &PlaceholderError{Kind: IOError, Err: err}
	}
	return newDocument(zr)
}

func newDocument(zr *zip.Reader) (*Document, error) {
	d := &Document{
		zipf:  zr.File,
		files: map[string]*zip.File{},
		parts: map[string]*etree.Document{},
		dirty: map[string]bool{},
	}
	for _, f := range zr.File {
		d.files[f.Name] = f
	}
	if _, ok := d.files[mainDocumentPart]; !ok {
		return nil, ErrMainDocumentNotFound
	}

	if err := d.discoverHeadersFooters(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path of source file, empty when opened from memory
func (d *Document) Path() string {
	return d.path
}

// Find header/footer parts from main document relationships.
// Without relationships part fall back to file names.
func (d *Document) discoverHeadersFooters() error {
	if d.HasPart(documentRelsPart) {
		rels, err := d.Part(documentRelsPart)
		if err != nil {
			return err
		}
		for _, rel := range rels.Root().ChildElements() {
			if rel.Tag != "Relationship" || rel.SelectAttrValue("TargetMode", "") == "External" {
				continue
			}
			name := resolveTarget("word", rel.SelectAttrValue("Target", ""))
			if !d.HasPart(name) {
				continue
			}
			switch rel.SelectAttrValue("Type", "") {
			case relTypeHeader:
				d.headers = append(d.headers, name)
			case relTypeFooter:
				d.footers = append(d.footers, name)
			}
		}
	} else {
		for _, f := range d.zipf {
			dir, base := path.Split(f.Name)
			if dir != "word/" || path.Ext(base) != ".xml" {
				continue
			}
			switch {
			case strings.HasPrefix(base, "header"):
				d.headers = append(d.headers, f.Name)
			case strings.HasPrefix(base, "footer"):
				d.footers = append(d.footers, f.Name)
			}
		}
	}

	sort.Strings(d.headers)
	sort.Strings(d.footers)
	return nil
}

// relationship target relative to source part directory
func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(dir, target)
}

// Headers - header part names, sorted
func (d *Document) Headers() []string {
	return d.headers
}

// Footers - footer part names, sorted
func (d *Document) Footers() []string {
	return d.footers
}

// HasPart - part exists in source archive or was added
func (d *Document) HasPart(name string) bool {
	if _, ok := d.files[name]; ok {
		return true
	}
	_, ok := d.parts[name]
	return ok
}

// Part - parsed xml part, cached after first call
func (d *Document) Part(name string) (*etree.Document, error) {
	if doc, ok := d.parts[name]; ok {
		return doc, nil
	}
	if d.closed {
		return nil, &PlaceholderError{Kind: IOError, Part: name, Err: os.ErrClosed}
	}

	f, ok := d.files[name]
	if !ok {
		return nil, &PlaceholderError{Kind: IOError, Part: name, Err: os.ErrNotExist}
	}

	fr, err := f.Open()
	if err != nil {
		return nil, &PlaceholderError{Kind: IOError, Part: name, Err: err}
	}
	buf, err := readAllClose(fr)
	if err != nil {
		return nil, &PlaceholderError{Kind: IOError, Part: name, Err: err}
	}

	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(buf); err != nil {
		return nil, &PlaceholderError{Kind: IOError, Part: name, Err: fmt.Errorf("parse: %w", err)}
	}
	if doc.Root() == nil {
		return nil, &PlaceholderError{Kind: IOError, Part: name, Err: errors.New("parse: no root element")}
	}

	d.parts[name] = doc
	return doc, nil
}

// MarkDirty - part will be serialized on save
func (d *Document) MarkDirty(name string) {
	d.dirty[name] = true
}

// IsDirty ..
func (d *Document) IsDirty(name string) bool {
	return d.dirty[name]
}

// addPart registers new part which is not in source archive
func (d *Document) addPart(name string, doc *etree.Document) {
	if _, ok := d.files[name]; !ok {
		if _, ok := d.parts[name]; !ok {
			d.added = append(d.added, name)
		}
	}
	d.parts[name] = doc
	d.dirty[name] = true
}

// Plaintext - flattened text of main document body
func (d *Document) Plaintext() string {
	doc, err := d.Part(mainDocumentPart)
	if err != nil {
		return ""
	}
	return plainText(doc.Root())
}

// PartText - flattened text of any parsed part
func (d *Document) PartText(name string) string {
	doc, err := d.Part(name)
	if err != nil {
		return ""
	}
	return plainText(doc.Root())
}

// Save - write package to file.
// Partially written file is removed on error.
func (d *Document) Save(docpath string) (err error) {
	fDocx, err := os.Create(docpath) // #nosec G304 - output path is caller supplied
	if err != nil {
		return &PlaceholderError{Kind: IOError, Part: docpath, Err: err}
	}
	defer func() {
		if cerr := fDocx.Close(); cerr != nil && err == nil {
			err = &PlaceholderError{Kind: IOError, Part: docpath, Err: cerr}
		}
		if err != nil {
			_ = os.Remove(docpath)
		}
	}()

	if _, err = d.WriteTo(fDocx); err != nil {
		return err
	}
	return nil
}

// WriteTo - write package as zip stream
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if d.closed {
		return 0, &PlaceholderError{Kind: IOError, Err: os.ErrClosed}
	}

	cw := &countWriter{w: w}
	zipw := zip.NewWriter(cw)

	// Loop existing files to build docx archive again
	for _, f := range d.zipf {
		if !d.dirty[f.Name] {
			if err := zipw.Copy(f); err != nil {
				return cw.n, &PlaceholderError{Kind: IOError, Part: f.Name, Err: err}
			}
			continue
		}

		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		}
		if err := d.writePart(zipw, hdr); err != nil {
			return cw.n, err
		}
	}

	// New parts go last
	for _, name := range d.added {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if err := d.writePart(zipw, hdr); err != nil {
			return cw.n, err
		}
	}

	if err := zipw.Close(); err != nil {
		return cw.n, &PlaceholderError{Kind: IOError, Err: err}
	}
	return cw.n, nil
}

// Write parsed part as single file inside zip
func (d *Document) writePart(zipw *zip.Writer, hdr *zip.FileHeader) error {
	doc, ok := d.parts[hdr.Name]
	if !ok {
		return &PlaceholderError{Kind: IOError, Part: hdr.Name, Err: errors.New("dirty part was never parsed")}
	}

	fw, err := zipw.CreateHeader(hdr)
	if err != nil {
		return &PlaceholderError{Kind: IOError, Part: hdr.Name, Err: err}
	}
	if _, err := doc.WriteTo(fw); err != nil {
		return &PlaceholderError{Kind: IOError, Part: hdr.Name, Err: err}
	}
	return nil
}

// Bytes - whole package in memory
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close - release source archive. Safe to call more than once.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.zipr != nil {
		return d.zipr.Close()
	}
	return nil
}

type countWriter struct {
	w io.Writer
	n int64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
