// Package toolschema builds the declarative tool contracts exposed to the
// model. Action authors state their parameter schemas directly through the
// builder API; nothing here inspects Go types at run time.
package toolschema

import "fmt"

// Kind tags the variant of a ParameterSchema.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindEnum    Kind = "enum"
)

// ParameterSchema is an immutable, JSON-schema-shaped description of a
// single value. Modifier methods return copies.
type ParameterSchema struct {
	kind         Kind
	description  string
	defaultValue any
	hasDefault   bool
	items        *ParameterSchema
	enum         []string
	properties   []Property
	required     []string
}

// Property is a named member of an object schema.
type Property struct {
	Name   string
	Schema ParameterSchema
}

// String returns a string schema.
func String() ParameterSchema { return ParameterSchema{kind: KindString} }

// Integer returns an integer schema.
func Integer() ParameterSchema { return ParameterSchema{kind: KindInteger} }

// Number returns a floating point schema.
func Number() ParameterSchema { return ParameterSchema{kind: KindNumber} }

// Boolean returns a boolean schema.
func Boolean() ParameterSchema { return ParameterSchema{kind: KindBoolean} }

// Enum returns a string schema restricted to the given values, in order.
// Duplicates are dropped.
func Enum(values ...string) ParameterSchema {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return ParameterSchema{kind: KindEnum, enum: out}
}

// Array returns an array schema. An unparameterized array (nil element)
// holds strings.
func Array(elem *ParameterSchema) ParameterSchema {
	item := String()
	if elem != nil {
		item = *elem
	}
	return ParameterSchema{kind: KindArray, items: &item}
}

// ArrayOf is Array for a non-nil element schema.
func ArrayOf(elem ParameterSchema) ParameterSchema { return Array(&elem) }

// Object returns an empty object schema. Add members with Field.
func Object() ParameterSchema { return ParameterSchema{kind: KindObject} }

// Optional collapses "optional of T" to T. Whether the parameter ends up
// required is decided solely by the presence of a default.
func Optional(s ParameterSchema) ParameterSchema { return s }

// FromKind returns the empty schema of a scalar kind. Unrecognized kinds
// fall back to string.
func FromKind(k Kind) ParameterSchema {
	switch k {
	case KindString, KindInteger, KindNumber, KindBoolean:
		return ParameterSchema{kind: k}
	case KindObject:
		return Object()
	case KindArray:
		return Array(nil)
	case KindEnum:
		return Enum()
	default:
		return String()
	}
}

// Describe attaches a human-readable description.
func (s ParameterSchema) Describe(text string) ParameterSchema {
	c := s.clone()
	c.description = text
	return c
}

// WithDefault attaches a default value, which also makes the parameter
// optional wherever it is used as a member.
func (s ParameterSchema) WithDefault(v any) ParameterSchema {
	c := s.clone()
	c.defaultValue = v
	c.hasDefault = true
	return c
}

// Field adds a member to an object schema. A member without a default joins
// the required set in declaration order. Re-adding a name replaces the
// earlier member in place.
func (s ParameterSchema) Field(name string, member ParameterSchema) ParameterSchema {
	if s.kind != KindObject {
		return s
	}
	c := s.clone()
	if member.description == "" {
		member = member.Describe(placeholderParamDescription(name))
	}
	replaced := false
	for i, p := range c.properties {
		if p.Name == name {
			c.properties[i].Schema = member
			replaced = true
			break
		}
	}
	if !replaced {
		c.properties = append(c.properties, Property{Name: name, Schema: member})
	}
	c.required = c.required[:0]
	for _, p := range c.properties {
		if !p.Schema.hasDefault {
			c.required = append(c.required, p.Name)
		}
	}
	return c
}

// Kind reports the variant tag.
func (s ParameterSchema) Kind() Kind { return s.kind }

// Description returns the attached description, possibly empty.
func (s ParameterSchema) Description() string { return s.description }

// Default returns the default value and whether one was declared.
func (s ParameterSchema) Default() (any, bool) { return s.defaultValue, s.hasDefault }

// Items returns the element schema of an array.
func (s ParameterSchema) Items() (ParameterSchema, bool) {
	if s.items == nil {
		return ParameterSchema{}, false
	}
	return *s.items, true
}

// EnumValues returns the allowed values of an enum, in declaration order.
func (s ParameterSchema) EnumValues() []string {
	return append([]string(nil), s.enum...)
}

// Properties returns the members of an object, in declaration order.
func (s ParameterSchema) Properties() []Property {
	return append([]Property(nil), s.properties...)
}

// Property looks up a member of an object by name.
func (s ParameterSchema) Property(name string) (ParameterSchema, bool) {
	for _, p := range s.properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return ParameterSchema{}, false
}

// Required returns the required member names, in declaration order.
func (s ParameterSchema) Required() []string {
	return append([]string(nil), s.required...)
}

// IsRequired reports whether the named member is in the required set.
func (s ParameterSchema) IsRequired(name string) bool {
	for _, r := range s.required {
		if r == name {
			return true
		}
	}
	return false
}

func (s ParameterSchema) clone() ParameterSchema {
	c := s
	if s.items != nil {
		item := s.items.clone()
		c.items = &item
	}
	c.enum = append([]string(nil), s.enum...)
	c.properties = append([]Property(nil), s.properties...)
	c.required = append([]string(nil), s.required...)
	return c
}

func placeholderParamDescription(name string) string {
	return fmt.Sprintf("Parameter '%s'.", name)
}

func placeholderToolDescription(name string) string {
	return fmt.Sprintf("Function for '%s'.", name)
}
