package docxfill

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// keywordsKey - array of {key, value} objects expanded into tags
const keywordsKey = "keywords"

// ParseDataFile - records from .json or .xlsx file
func ParseDataFile(fpath string) ([]*Record, error) {
	switch strings.ToLower(filepath.Ext(fpath)) {
	case ".json":
		f, err := os.Open(fpath) // #nosec G304 - data path is caller supplied
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseJSONRecords(f)

	case ".xlsx", ".xlsm":
		rec, err := ParseXLSXRecord(fpath)
		if err != nil {
			return nil, err
		}
		return []*Record{rec}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataFile, fpath)
}

// ParseJSONRecords - single object or array of objects.
// Key order is kept. Text may be UTF-8 (with or without BOM), UTF-16 with BOM or GB18030.
func ParseJSONRecords(r io.Reader) ([]*Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	buf, err := decodeText(raw)
	if err != nil {
		return nil, fmt.Errorf("decode data text: %w", err)
	}
	buf = bytes.TrimSpace(buf)
	if len(buf) == 0 {
		return nil, errors.New("json: empty data")
	}

	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()

	switch buf[0] {
	case '{':
		rec, err := readJSONObject(dec)
		if err != nil {
			return nil, err
		}
		return []*Record{rec}, nil

	case '[':
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		var records []*Record
		for i := 0; dec.More(); i++ {
			rec, err := readJSONObject(dec)
			if err != nil {
				return nil, fmt.Errorf("json: record %d: %w", i+1, err)
			}
			records = append(records, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		return records, nil
	}
	return nil, errors.New("json: must be object or array of objects")
}

// readJSONObject reads next object from stream keeping key order
func readJSONObject(dec *json.Decoder) (*Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	rec := NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%q: %w", key, err)
		}

		if strings.EqualFold(key, keywordsKey) && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			if err := expandKeywords(rec, raw); err != nil {
				return nil, err
			}
			continue
		}

		v, err := jsonValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", key, err)
		}
		if err := rec.Set(key, v); err != nil {
			return nil, err
		}
	}

	// closing }
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return rec, nil
}

// [{"key": "Name", "value": "Alice"}, ...]
func expandKeywords(rec *Record, raw json.RawMessage) error {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("%s: %w", keywordsKey, err)
	}
	for _, item := range items {
		var key string
		if err := json.Unmarshal(item["key"], &key); err != nil || strings.TrimSpace(key) == "" {
			continue
		}
		v, err := jsonValue(item["value"])
		if err != nil {
			return fmt.Errorf("%s: %q: %w", keywordsKey, key, err)
		}
		if err := rec.Set(key, v); err != nil {
			return err
		}
	}
	return nil
}

// jsonValue - string as is, null (or missing) as nil, numbers and bools as
// their literal, objects and arrays as compact json
func jsonValue(raw json.RawMessage) (*FormattedText, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return Text(normalizeLineEndings(s)), nil
	case '{', '[':
		var out bytes.Buffer
		if err := json.Compact(&out, raw); err != nil {
			return nil, err
		}
		return Text(out.String()), nil
	}
	return Text(string(raw)), nil
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText returns UTF-8 text without BOM.
// BOM decides encoding when present, invalid UTF-8 is read as GB18030.
func decodeText(buf []byte) ([]byte, error) {
	hasBOM := bytes.HasPrefix(buf, bomUTF8) || bytes.HasPrefix(buf, bomUTF16LE) || bytes.HasPrefix(buf, bomUTF16BE)
	if hasBOM || utf8.Valid(buf) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), buf)
		return out, err
	}
	out, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), buf)
	return out, err
}
