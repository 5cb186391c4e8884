package httpu

import (
	"encoding/json"
	"strings"
)

// Field is one "Name: value" header line.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Header is an ordered, case-insensitive collection of header fields.
// The zero value is an empty header ready to use.
type Header struct {
	fields []Field
}

// NewHeader creates a header from name/value pairs. A trailing odd name is
// added with an empty value.
func NewHeader(pairs ...string) Header {
	var h Header
	for i := 0; i < len(pairs); i += 2 {
		value := ""
		if i+1 < len(pairs) {
			value = pairs[i+1]
		}
		h.Add(pairs[i], value)
	}
	return h
}

// Add appends a field, keeping any existing fields with the same name.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Set replaces the value of the first field named name, or appends a new
// field if none exists. Later duplicates are removed.
func (h *Header) Set(name, value string) {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Name, name) {
			h.fields[i].Value = value
			h.removeAfter(i, name)
			return
		}
	}
	h.Add(name, value)
}

func (h *Header) removeAfter(index int, name string) {
	kept := h.fields[:index+1]
	for _, f := range h.fields[index+1:] {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Get returns the value of the first field named name, or "".
func (h Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the value of the first field named name and whether it was
// present at all. A present header may have an empty value (EXT, for one).
func (h Header) Lookup(name string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Has reports whether a field named name is present.
func (h Header) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Values returns all values for name in wire order.
func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Fields returns a copy of the fields in wire order.
func (h Header) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

// Len returns the number of fields.
func (h Header) Len() int {
	return len(h.fields)
}

// Map returns the header as a map keyed by upper-cased name. When a name
// repeats, the first value wins.
func (h Header) Map() map[string]string {
	m := make(map[string]string, len(h.fields))
	for _, f := range h.fields {
		key := strings.ToUpper(f.Name)
		if _, exists := m[key]; !exists {
			m[key] = f.Value
		}
	}
	return m
}

// Clone returns a deep copy of the header.
func (h Header) Clone() Header {
	return Header{fields: h.Fields()}
}

// MarshalJSON encodes the header as an ordered list of fields.
func (h Header) MarshalJSON() ([]byte, error) {
	if h.fields == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.fields)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (h *Header) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &h.fields)
}
