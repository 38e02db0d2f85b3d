package docxfill

import (
	"errors"
	"fmt"
)

// Sentinel errors, match them with errors.Is
var (
	ErrMainDocumentNotFound = errors.New("mandatory [ word/document.xml ] not found")
	ErrMalformedPlaceholder = errors.New("placeholder has no recognizable content container")
	ErrUnboundPlaceholder   = errors.New("placeholder tag has no value in data record")
	ErrDuplicateTag         = errors.New("duplicate tag in data record")
	ErrUnmergeableParagraph = errors.New("paragraph can not be merged into cell")
	ErrUnsupportedDataFile  = errors.New("unsupported data file")
	ErrInvalidXMLChar       = errors.New("characters not allowed in XML written as U+FFFD")
)

// ErrorKind - class of per placeholder problem
type ErrorKind int8

// Error kinds
const (
	// StructuralError - content container has unrecognized shape, placeholder skipped
	StructuralError ErrorKind = iota
	// BindingError - tag not found in data record
	BindingError
	// RepairError - document changed other than asked: cell paragraph left
	// unmerged or value characters substituted
	RepairError
	// IOError - package open/save failure, fatal to single document
	IOError
)

// String ..
func (k ErrorKind) String() string {
	switch k {
	case StructuralError:
		return "structural"
	case BindingError:
		return "binding"
	case RepairError:
		return "repair"
	case IOError:
		return "io"
	}
	return fmt.Sprintf("kind(%d)", int8(k))
}

// PlaceholderError ..
type PlaceholderError struct {
	Kind ErrorKind
	Tag  string // empty when problem is not tied to single placeholder
	Part string // zip part name, e.g. "word/header1.xml"
	Err  error
}

// Error ..
func (e *PlaceholderError) Error() string {
	switch {
	case e.Tag != "" && e.Part != "":
		return fmt.Sprintf("%s error: [ %s ] in %s: %v", e.Kind, e.Tag, e.Part, e.Err)
	case e.Tag != "":
		return fmt.Sprintf("%s error: [ %s ]: %v", e.Kind, e.Tag, e.Err)
	case e.Part != "":
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Part, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

// Unwrap ..
func (e *PlaceholderError) Unwrap() error {
	return e.Err
}

// IsKind - err chain holds *PlaceholderError of given kind
func IsKind(err error, kind ErrorKind) bool {
	var perr *PlaceholderError
	return errors.As(err, &perr) && perr.Kind == kind
}
