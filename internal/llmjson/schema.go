package llmjson

import (
	"fmt"
	"math"
)

// Kind is the expected JSON type of a schema field.
type Kind string

// Field kind constants.
const (
	Bool   Kind = "bool"
	Number Kind = "number"
	String Kind = "string"
	Object Kind = "object"
)

// Field describes one expected key of a model response object.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	// Enum restricts a String field to the listed values.
	Enum []string
	// Min and Max bound a Number field (inclusive).
	Min *float64
	Max *float64
	// Nested validates an Object field's contents.
	Nested *Schema
}

// Schema describes the expected shape of a model response object: required
// keys, value types, and value domains. Unknown keys are ignored; null is
// accepted for optional fields only. Values are never coerced across types
// or into enum domains.
type Schema struct {
	Fields []Field
}

// Validate checks obj against the schema and reports the first violation in
// declared field order.
func (s *Schema) Validate(obj map[string]any) error {
	return s.validate(obj, "")
}

func (s *Schema) validate(obj map[string]any, path string) error {
	for _, f := range s.Fields {
		name := f.Name
		if path != "" {
			name = path + "." + f.Name
		}
		v, ok := obj[f.Name]
		if !ok || v == nil {
			if f.Required {
				return fmt.Errorf("missing required key %q", name)
			}
			continue
		}
		if err := f.check(v, name); err != nil {
			return err
		}
	}
	return nil
}

func (f *Field) check(v any, name string) error {
	switch f.Kind {
	case Bool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("key %q: want bool, got %T", name, v)
		}
	case Number:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("key %q: want number, got %T", name, v)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("key %q: non-finite number", name)
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Errorf("key %q: %v below minimum %v", name, n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Errorf("key %q: %v above maximum %v", name, n, *f.Max)
		}
	case String:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("key %q: want string, got %T", name, v)
		}
		if len(f.Enum) > 0 && !inEnum(f.Enum, str) {
			return fmt.Errorf("key %q: %q not in %v", name, str, f.Enum)
		}
	case Object:
		nested, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("key %q: want object, got %T", name, v)
		}
		if f.Nested != nil {
			return f.Nested.validate(nested, name)
		}
	default:
		return fmt.Errorf("key %q: unknown schema kind %q", name, f.Kind)
	}
	return nil
}

func inEnum(enum []string, v string) bool {
	for _, e := range enum {
		if e == v {
			return true
		}
	}
	return false
}
