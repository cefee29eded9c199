package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 style canonical JSON for a sequence.
// It is the only serialization used for result hashing and golden output.
//
// Mapping:
//   - Int      -> JSON number
//   - Dec      -> {"decimal":"<lexical>"} (no floats anywhere)
//   - Str      -> JSON string, NFC normalized, no HTML escaping
//   - Bool     -> true / false
//   - *Node    -> {"children":[...],"element":"<name>"} or {"document":[...]}
//   - Seq      -> JSON array
func MarshalCanonical(s Seq) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonicalSeq(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonicalSeq(buf *bytes.Buffer, s []Item) error {
	buf.WriteByte('[')
	for i, it := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalItem(buf, it); err != nil {
			return fmt.Errorf("item[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalItem(buf *bytes.Buffer, it Item) error {
	switch v := it.(type) {
	case Int:
		fmt.Fprintf(buf, "%d", int64(v))
	case Dec:
		return writeCanonicalObject(buf, map[string]func(*bytes.Buffer) error{
			"decimal": func(b *bytes.Buffer) error { return writeCanonicalString(b, v.String()) },
		})
	case Str:
		return writeCanonicalString(buf, string(v))
	case Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case *Node:
		children := func(b *bytes.Buffer) error { return writeCanonicalSeq(b, v.Children) }
		if v.Document {
			return writeCanonicalObject(buf, map[string]func(*bytes.Buffer) error{"document": children})
		}
		return writeCanonicalObject(buf, map[string]func(*bytes.Buffer) error{
			"children": children,
			"element":  func(b *bytes.Buffer) error { return writeCanonicalString(b, v.Name) },
		})
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	default:
		return fmt.Errorf("unsupported item for canonical JSON: %T", it)
	}
	return nil
}

// writeCanonicalObject writes fields ordered by UTF-16 code units.
func writeCanonicalObject(buf *bytes.Buffer, fields map[string]func(*bytes.Buffer) error) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessUTF16(keys[i], keys[j]) })

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := fields[k](buf); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}

// writeCanonicalString writes a JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; in particular
// <, >, &, U+2028 and U+2029 are written literally.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters. An escape preceded by an odd
// number of backslashes is literal text and is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) && data[i+1] == '\\' {
			out = append(out, '\\', '\\')
			i++
			continue
		}
		if data[i] == '\\' && i+5 < len(data) && string(data[i:i+5]) == `\u202` && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}
