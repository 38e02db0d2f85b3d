package docxfill

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultCommentAuthor ..
const DefaultCommentAuthor = "docxfill"

var errNoAnchorParagraph = errors.New("no paragraph to anchor comment to")

// Comment - traceability note attached to body substitution
type Comment struct {
	ID     int
	Tag    string
	Author string
	Date   time.Time
	Text   string
}

// Substitution - placeholder that received value
type Substitution struct {
	Placeholder *Placeholder
	Old         string // flattened text before replace
	Value       *FormattedText
}

// Annotator attaches comments to body substitutions.
// Headers and footers can't hold comment anchors in this format, so
// substitutions there are skipped.
type Annotator struct {
	author   string
	initials string
	now      func() time.Time
	logger   *zap.Logger
}

// NewAnnotator - empty author means DefaultCommentAuthor, nil clock means time.Now
func NewAnnotator(author string, now func() time.Time, logger *zap.Logger) *Annotator {
	if author == "" {
		author = DefaultCommentAuthor
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{
		author:   author,
		initials: initialsOf(author),
		now:      now,
		logger:   logger,
	}
}

// Annotate creates one comment per performed body substitution.
// Ids continue from the highest id already used in document and are never
// reused, even across calls. Per substitution problems are combined into
// returned error while the rest still get annotated.
func (a *Annotator) Annotate(d *Document, subs []Substitution) ([]Comment, error) {
	var body []Substitution
	for _, sub := range subs {
		if sub.Placeholder == nil || sub.Value == nil {
			continue
		}
		if sub.Placeholder.Location != Body {
			a.logger.Debug("no comment outside body",
				zap.String("tag", sub.Placeholder.Tag),
				zap.String("location", sub.Placeholder.Location.String()),
			)
			continue
		}
		body = append(body, sub)
	}
	if len(body) == 0 {
		return nil, nil
	}

	root, partName, err := d.comments(true)
	if err != nil {
		return nil, err
	}
	if err := d.seedCommentIDs(); err != nil {
		return nil, err
	}

	var (
		comments []Comment
		errs     error
	)
	date := a.now().UTC().Truncate(time.Second)
	for _, sub := range body {
		p := sub.Placeholder
		start, end, ok := anchorPoints(p)
		if !ok {
			errs = multierr.Append(errs, &PlaceholderError{Kind: StructuralError, Tag: p.Tag, Part: p.Part, Err: errNoAnchorParagraph})
			continue
		}

		c := Comment{
			ID:     d.nextCommentID(),
			Tag:    p.Tag,
			Author: a.author,
			Date:   date,
			Text:   fmt.Sprintf("Tag: %s, old: [%s], new: %s", p.Tag, sub.Old, sub.Value.PlainText()),
		}
		id := strconv.Itoa(c.ID)

		rangeStart := newW("commentRangeStart")
		rangeStart.CreateAttr("w:id", id)
		rangeEnd := newW("commentRangeEnd")
		rangeEnd.CreateAttr("w:id", id)
		ref := newW("r")
		ref.CreateElement("w:commentReference").CreateAttr("w:id", id)

		start(rangeStart)
		end(rangeEnd)
		end(ref)

		root.AddChild(a.commentElement(c))
		comments = append(comments, c)
		d.MarkDirty(p.Part)
	}

	if len(comments) > 0 {
		d.MarkDirty(partName)
	}
	a.logger.Debug("comments added", zap.Int("count", len(comments)))
	return comments, errs
}

// anchorPoints returns functions placing element before first run and
// after last run of replaced content.
// Inline content is anchored inside content container, paragraph shapes
// inside the paragraph that holds new runs.
func anchorPoints(p *Placeholder) (start, end func(*etree.Element), ok bool) {
	var holder *etree.Element
	switch p.Shape {
	case Inline:
		holder = p.content
	default:
		holder = p.Paragraph()
	}
	if holder == nil {
		return nil, nil, false
	}

	start = func(el *etree.Element) {
		for _, child := range holder.ChildElements() {
			if isW(child, "pPr") {
				continue
			}
			insertBefore(child, el)
			return
		}
		holder.AddChild(el)
	}
	end = func(el *etree.Element) {
		holder.AddChild(el)
	}
	return start, end, true
}

// <w:comment> with single paragraph holding annotation mark and text
func (a *Annotator) commentElement(c Comment) *etree.Element {
	el := newW("comment")
	el.CreateAttr("w:id", strconv.Itoa(c.ID))
	el.CreateAttr("w:author", c.Author)
	el.CreateAttr("w:date", c.Date.Format(time.RFC3339))
	el.CreateAttr("w:initials", a.initials)

	p := el.CreateElement("w:p")
	p.CreateElement("w:r").CreateElement("w:annotationRef")
	appendRunText(p.CreateElement("w:r"), c.Text)
	return el
}

// Elements carrying comment ids
var commentIDTags = []string{"comment", "commentRangeStart", "commentRangeEnd", "commentReference"}

// seedCommentIDs sets counter above every id already in use.
// Done once per document, counter lives as long as document does.
func (d *Document) seedCommentIDs() error {
	if d.commentSeq > 0 {
		return nil
	}

	maxID := 0
	scan := func(root *etree.Element) {
		walk(root, func(el *etree.Element, _ []*etree.Element) bool {
			if el.Space == "w" && inSlice(el.Tag, commentIDTags) {
				if n, err := strconv.Atoi(el.SelectAttrValue("w:id", "")); err == nil && n > maxID {
					maxID = n
				}
			}
			return true
		})
	}

	if name := d.commentsPartName(); name != "" {
		doc, err := d.Part(name)
		if err != nil {
			return err
		}
		scan(doc.Root())
	}
	doc, err := d.Part(mainDocumentPart)
	if err != nil {
		return err
	}
	scan(doc.Root())

	d.commentSeq = maxID + 1
	return nil
}

func (d *Document) nextCommentID() int {
	id := d.commentSeq
	d.commentSeq++
	return id
}

// "Document Filler" -> "DF"
func initialsOf(author string) string {
	var sb strings.Builder
	for _, word := range strings.Fields(author) {
		r := []rune(word)
		sb.WriteRune(unicode.ToUpper(r[0]))
		if sb.Len() >= 3 {
			break
		}
	}
	return sb.String()
}
