package docxfill

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Read everything and close reader, close error is not lost
func readAllClose(rdr io.ReadCloser) ([]byte, error) {
	if rdr == nil {
		return nil, errors.New("can't read bytes from empty reader")
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(rdr); err != nil {
		_ = rdr.Close()
		return nil, fmt.Errorf("can't read bytes: %w", err)
	}

	if err := rdr.Close(); err != nil {
		return nil, fmt.Errorf("can't close reader: %w", err)
	}

	return buf.Bytes(), nil
}

// Is slice contains item
func inSlice(a string, slice []string) bool {
	for _, b := range slice {
		if a == b {
			return true
		}
	}
	return false
}

// file name without directory and extension
func baseName(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// shorten long text for logs and comments
func ellipsis(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
