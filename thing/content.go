package thing

import (
	"encoding/json"

	"github.com/mikiec84/perception-toolkit/errors"
)

type contentKind int

const (
	contentNone contentKind = iota
	contentRaw
	contentStructured
)

// Content is the displayable payload of a catalog entry: either a raw string
// (interpreted as a URL reference to content) or a structured Thing. The
// zero value represents absent content.
type Content struct {
	kind  contentKind
	raw   string
	thing Thing
}

// RawContent creates content holding a raw string reference.
func RawContent(raw string) Content {
	return Content{kind: contentRaw, raw: raw}
}

// StructuredContent creates content holding a structured Thing.
func StructuredContent(t Thing) Content {
	return Content{kind: contentStructured, thing: t}
}

// IsZero reports whether the content is absent.
func (c Content) IsZero() bool {
	return c.kind == contentNone
}

// Raw returns the raw string reference and whether the content holds one.
func (c Content) Raw() (string, bool) {
	return c.raw, c.kind == contentRaw
}

// Structured returns the structured record and whether the content holds one.
func (c Content) Structured() (Thing, bool) {
	return c.thing, c.kind == contentStructured
}

// MarshalJSON encodes raw content as a JSON string and structured content as
// a JSON object. Absent content encodes as null.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case contentRaw:
		return json.Marshal(c.raw)
	case contentStructured:
		return json.Marshal(c.thing)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string (raw reference), object (structured
// record), or null (absent).
func (c *Content) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Content{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*c = RawContent(raw)
		return nil
	}

	var record Thing
	if err := json.Unmarshal(data, &record); err == nil {
		if record == nil {
			*c = Content{}
			return nil
		}
		*c = StructuredContent(record)
		return nil
	}

	return errors.WrapInvalid(errors.ErrInvalidData, "Content", "UnmarshalJSON",
		"content must be a string, object, or null")
}
