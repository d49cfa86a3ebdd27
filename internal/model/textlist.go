package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TextList is a report field that holds a list of short statements. LLM
// output and legacy rows store these in several shapes; DecodeTextList folds
// all of them into a plain string slice.
type TextList []string

// headKeys name an object item's main statement, probed in order.
var headKeys = []string{"topic", "point", "text", "angle", "risk", "use_case", "opportunity", "title", "name"}

// detailKeys hold supporting text appended after the head.
var detailKeys = []string{"detail", "explanation", "mitigation", "description", "question"}

// DecodeTextList accepts a JSON array of strings, a JSON array of objects,
// a JSON string containing either, or free text with one item per line.
func DecodeTextList(raw []byte) TextList {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return TextList{}
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			return decodeItems(items)
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return DecodeTextList([]byte(s))
		}
	case '{':
		return decodeItems([]json.RawMessage{raw})
	}
	return splitLines(string(raw))
}

func decodeItems(items []json.RawMessage) TextList {
	out := make(TextList, 0, len(items))
	for _, item := range items {
		if s := decodeItem(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeItem(item json.RawMessage) string {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj map[string]any
	if err := json.Unmarshal(item, &obj); err == nil {
		return decodeObject(obj)
	}

	return strings.TrimSpace(string(item))
}

// decodeObject renders {"topic":"Timeline","detail":"...","question":"..."}
// as "Timeline: ... ...". Objects with none of the known keys yield their
// first non-blank string value in key order.
func decodeObject(obj map[string]any) string {
	str := func(k string) string {
		v, _ := obj[k].(string)
		return strings.TrimSpace(v)
	}

	var head string
	for _, k := range headKeys {
		if head = str(k); head != "" {
			break
		}
	}
	var details []string
	for _, k := range detailKeys {
		if d := str(k); d != "" {
			details = append(details, d)
		}
	}
	switch {
	case head != "" && len(details) > 0:
		return head + ": " + strings.Join(details, " ")
	case head != "":
		return head
	case len(details) > 0:
		return strings.Join(details, " ")
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := str(k); v != "" {
			return v
		}
	}
	return ""
}

func splitLines(s string) TextList {
	out := TextList{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TextList) UnmarshalJSON(data []byte) error {
	*t = DecodeTextList(data)
	return nil
}

// MarshalJSON always emits a JSON array of strings.
func (t TextList) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// String returns the storage form of the list.
func (t TextList) String() string {
	b, _ := t.MarshalJSON()
	return string(b)
}

// Value implements driver.Valuer so the list is stored as text.
func (t TextList) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *TextList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = TextList{}
	case string:
		*t = DecodeTextList([]byte(v))
	case []byte:
		*t = DecodeTextList(v)
	default:
		return fmt.Errorf("textlist: cannot scan %T", src)
	}
	return nil
}
