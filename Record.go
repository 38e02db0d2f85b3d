package docxfill

import (
	"fmt"
	"iter"
)

// Record - ordered tag:value mapping for one output document.
// Tags are unique and matched exactly (case sensitive).
// nil value means tag is bound to null: placeholder stays as rendered.
type Record struct {
	tags   []string
	values map[string]*FormattedText
}

// NewRecord ..
func NewRecord() *Record {
	return &Record{values: map[string]*FormattedText{}}
}

// Set - add tag, duplicates are rejected
func (r *Record) Set(tag string, v *FormattedText) error {
	if r.values == nil {
		r.values = map[string]*FormattedText{}
	}
	if _, ok := r.values[tag]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
	}
	r.tags = append(r.tags, tag)
	r.values[tag] = v
	return nil
}

// SetText - add plain string value
func (r *Record) SetText(tag, s string) error {
	return r.Set(tag, Text(s))
}

// Get - value and whether tag is bound at all
func (r *Record) Get(tag string) (*FormattedText, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[tag]
	return v, ok
}

// Tags in insertion order
func (r *Record) Tags() []string {
	if r == nil {
		return nil
	}
	return r.tags
}

// Len ..
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tags)
}

// All - tag, value pairs in insertion order
func (r *Record) All() iter.Seq2[string, *FormattedText] {
	return func(yield func(string, *FormattedText) bool) {
		if r == nil {
			return
		}
		for _, tag := range r.tags {
			if !yield(tag, r.values[tag]) {
				return
			}
		}
	}
}
