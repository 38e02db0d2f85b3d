package docxfill

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Package level namespaces and content types
const (
	nsContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"

	contentTypeComments = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"
)

// ensureOverride adds content type override for part (e.g. "/word/comments.xml")
// when [Content_Types].xml has none for it yet.
func (d *Document) ensureOverride(partName, contentType string) error {
	ctDoc, err := d.Part(contentTypesPart)
	if err != nil {
		return err
	}
	root := ctDoc.Root()

	for _, node := range root.ChildElements() {
		if node.Tag != "Override" {
			continue
		}
		if strings.EqualFold(node.SelectAttrValue("PartName", ""), partName) {
			return nil
		}
	}

	override := root.CreateElement("Override")
	override.CreateAttr("PartName", partName)
	override.CreateAttr("ContentType", contentType)
	d.MarkDirty(contentTypesPart)
	return nil
}

// relationships part name of given source part
// "word/document.xml" -> "word/_rels/document.xml.rels"
func relsPartOf(partName string) string {
	dir, base := path.Split(partName)
	return dir + "_rels/" + base + ".rels"
}

// ensureRelationship returns id of relationship with given type and target,
// adding one when missing. New ids never collide with existing ones.
func (d *Document) ensureRelationship(relsName, relType, target string) (string, error) {
	var rels *etree.Document
	if d.HasPart(relsName) {
		var err error
		if rels, err = d.Part(relsName); err != nil {
			return "", err
		}
	} else {
		rels = etree.NewDocument()
		rels.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		root := rels.CreateElement("Relationships")
		root.CreateAttr("xmlns", nsRelationships)
		d.addPart(relsName, rels)
	}
	root := rels.Root()

	maxID := 0
	for _, rel := range root.ChildElements() {
		if rel.Tag != "Relationship" {
			continue
		}
		id := rel.SelectAttrValue("Id", "")
		if rel.SelectAttrValue("Type", "") == relType && rel.SelectAttrValue("Target", "") == target {
			return id, nil
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > maxID {
			maxID = n
		}
	}

	rid := fmt.Sprintf("rId%d", maxID+1)
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", rid)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	d.MarkDirty(relsName)
	return rid, nil
}

// commentsPartName - comments part referenced by main document, if any
func (d *Document) commentsPartName() string {
	if !d.HasPart(documentRelsPart) {
		if d.HasPart(commentsPart) {
			return commentsPart
		}
		return ""
	}
	rels, err := d.Part(documentRelsPart)
	if err != nil {
		return ""
	}
	for _, rel := range rels.Root().ChildElements() {
		if rel.SelectAttrValue("Type", "") != relTypeComments {
			continue
		}
		name := resolveTarget("word", rel.SelectAttrValue("Target", ""))
		if d.HasPart(name) {
			return name
		}
	}
	return ""
}

// comments returns <w:comments> root element.
// With create, missing part is created and registered in
// content types and main document relationships.
func (d *Document) comments(create bool) (*etree.Element, string, error) {
	if name := d.commentsPartName(); name != "" {
		doc, err := d.Part(name)
		if err != nil {
			return nil, "", err
		}
		return doc.Root(), name, nil
	}
	if !create {
		return nil, "", nil
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("w:comments")
	root.CreateAttr("xmlns:w", nsW)
	d.addPart(commentsPart, doc)

	if err := d.ensureOverride("/"+commentsPart, contentTypeComments); err != nil {
		return nil, "", err
	}
	if _, err := d.ensureRelationship(relsPartOf(mainDocumentPart), relTypeComments, "comments.xml"); err != nil {
		return nil, "", err
	}
	return root, commentsPart, nil
}
