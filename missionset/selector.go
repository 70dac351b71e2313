package missionset

import (
	"sort"
)

// Selector is a structural predicate over entities: a category and type
// plus optional discriminating attributes such as license_plate. Attributes
// may nest further selectors, as in
//
//	{"category": "prop", "type": "cargo",
//	 "located_at": {"category": "building", "type": "hospital"}}
//
// Selectors are data only; missionset never matches them against entities.
type Selector struct {
	Category   string
	Type       string
	Attributes map[string]Value
}

// Value is either a literal JSON value (string, number, bool, null, array)
// or a nested entity Selector.
type Value struct {
	literal  any
	selector *Selector
}

// LiteralValue wraps a literal JSON value.
func LiteralValue(v any) Value { return Value{literal: v} }

// SelectorValue wraps a nested selector.
func SelectorValue(s *Selector) Value { return Value{selector: s} }

// IsSelector reports whether v is a nested entity reference.
func (v Value) IsSelector() bool { return v.selector != nil }

// Selector returns the nested selector, or nil for literals.
func (v Value) Selector() *Selector { return v.selector }

// Literal returns the literal value, or nil for selectors.
func (v Value) Literal() any { return v.literal }

// Interface returns v as plain JSON-shaped data.
func (v Value) Interface() any {
	if v.selector != nil {
		return v.selector.Map()
	}
	return v.literal
}

// MarshalJSON encodes v in its document form.
func (v Value) MarshalJSON() ([]byte, error) { return jsonCodec.Marshal(v.Interface()) }

// MarshalYAML encodes v in its document form.
func (v Value) MarshalYAML() (any, error) { return v.Interface(), nil }

// Attribute returns the named attribute and whether it is present.
func (s *Selector) Attribute(name string) (Value, bool) {
	v, ok := s.Attributes[name]
	return v, ok
}

// AttributeNames returns the attribute names in sorted order.
func (s *Selector) AttributeNames() []string {
	return sortedKeys(s.Attributes)
}

// Map returns s in its document form.
func (s *Selector) Map() map[string]any {
	m := make(map[string]any, len(s.Attributes)+2)
	for name, v := range s.Attributes {
		m[name] = v.Interface()
	}
	if s.Category != "" {
		m["category"] = s.Category
	}
	if s.Type != "" {
		m["type"] = s.Type
	}
	return m
}

// MarshalJSON encodes s in its document form.
func (s Selector) MarshalJSON() ([]byte, error) { return jsonCodec.Marshal(s.Map()) }

// MarshalYAML encodes s in its document form.
func (s Selector) MarshalYAML() (any, error) { return s.Map(), nil }

// -----------------------------------------------------------------------------
// Decoding
// -----------------------------------------------------------------------------

// selectorFrom builds a selector from a decoded JSON object. Top-level
// targets require category and type; nested references may omit them.
func selectorFrom(field string, m map[string]any, requireKind bool) (*Selector, *fieldError) {
	s := &Selector{}
	for _, key := range []string{"category", "type"} {
		raw, ok := m[key]
		if !ok {
			if requireKind {
				return nil, missingField(field + "." + key)
			}
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return nil, wrongType(field+"."+key, "a string", raw)
		}
		if str == "" && requireKind {
			return nil, &fieldError{field: field + "." + key, message: "must not be empty"}
		}
		if key == "category" {
			s.Category = str
		} else {
			s.Type = str
		}
	}

	for _, name := range sortedKeys(m) {
		if name == "category" || name == "type" {
			continue
		}
		v, fe := valueFrom(field+"."+name, m[name])
		if fe != nil {
			return nil, fe
		}
		if s.Attributes == nil {
			s.Attributes = make(map[string]Value)
		}
		s.Attributes[name] = v
	}
	return s, nil
}

// valueFrom classifies a decoded JSON value: objects become selectors,
// everything else stays literal.
func valueFrom(field string, raw any) (Value, *fieldError) {
	m, ok := raw.(map[string]any)
	if !ok {
		return LiteralValue(raw), nil
	}
	s, fe := selectorFrom(field, m, false)
	if fe != nil {
		return Value{}, fe
	}
	return SelectorValue(s), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
