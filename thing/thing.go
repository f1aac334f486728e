// Package thing provides the structured content record exchanged between the
// artifact catalog, the page-metadata extractor, and the enrichment step.
//
// A Thing is a typed key/value record in the style of schema.org structured
// data: a required type tag, optional url and name fields, and arbitrary
// other fields. The package makes no assumption about a closed set of types;
// any record carrying a type tag is valid.
package thing

import (
	"github.com/mikiec84/perception-toolkit/errors"
)

// Well-known field keys.
const (
	// TypeKey holds the record's type tag (e.g. "Event", "Place").
	TypeKey = "@type"

	// URLKey holds the canonical URL of the content the record describes.
	URLKey = "url"

	// NameKey holds the display name. Its absence signals an
	// under-populated record eligible for enrichment.
	NameKey = "name"
)

// Thing is a structured content record. The zero value is an empty record;
// use New to create one with a type tag.
type Thing map[string]any

// New creates a Thing with the given type tag.
func New(typeTag string) Thing {
	return Thing{TypeKey: typeTag}
}

// Type returns the record's type tag, or "" when absent or non-string.
func (t Thing) Type() string {
	return t.stringField(TypeKey)
}

// URL returns the record's url field, or "" when absent or non-string.
func (t Thing) URL() string {
	return t.stringField(URLKey)
}

// Name returns the record's name field, or "" when absent or non-string.
func (t Thing) Name() string {
	return t.stringField(NameKey)
}

// HasName reports whether the record carries a name field of any value.
func (t Thing) HasName() bool {
	_, ok := t[NameKey]
	return ok
}

// HasURL reports whether the record carries a url field of any value.
func (t Thing) HasURL() bool {
	_, ok := t[URLKey]
	return ok
}

func (t Thing) stringField(key string) string {
	value, ok := t[key].(string)
	if !ok {
		return ""
	}
	return value
}

// Validate ensures the record carries a type tag.
func (t Thing) Validate() error {
	if t.Type() == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Thing", "Validate", "type tag cannot be empty")
	}
	return nil
}

// Clone returns a shallow copy of the record. Nested values are shared.
func (t Thing) Clone() Thing {
	if t == nil {
		return nil
	}
	clone := make(Thing, len(t))
	for key, value := range t {
		clone[key] = value
	}
	return clone
}

// Merge combines a fetched record with an original partial record: the
// fetched record is the base and every field present on the original is
// overlaid on top, so explicit original values always win over fetched ones.
// Neither input is mutated.
func Merge(fetched, original Thing) Thing {
	merged := fetched.Clone()
	if merged == nil {
		merged = make(Thing, len(original))
	}
	for key, value := range original {
		merged[key] = value
	}
	return merged
}
