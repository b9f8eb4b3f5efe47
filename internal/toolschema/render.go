package toolschema

import (
	"github.com/invopop/jsonschema"
)

// JSONSchema renders the schema as a draft 2020-12 JSON Schema. Object
// members keep their declaration order. Enums render as strings restricted
// to their allowed values.
func (s ParameterSchema) JSONSchema() *jsonschema.Schema {
	js := &jsonschema.Schema{Description: s.description}

	switch s.kind {
	case KindEnum:
		js.Type = string(KindString)
		for _, v := range s.enum {
			js.Enum = append(js.Enum, v)
		}
	case KindArray:
		js.Type = string(KindArray)
		item := String()
		if s.items != nil {
			item = *s.items
		}
		js.Items = item.JSONSchema()
	case KindObject:
		js.Type = string(KindObject)
		js.Properties = jsonschema.NewProperties()
		for _, p := range s.properties {
			js.Properties.Set(p.Name, p.Schema.JSONSchema())
		}
		if len(s.required) > 0 {
			js.Required = append([]string(nil), s.required...)
		}
	case KindInteger, KindNumber, KindBoolean, KindString:
		js.Type = string(s.kind)
	default:
		js.Type = string(KindString)
	}

	if s.hasDefault {
		js.Default = s.defaultValue
	}
	return js
}

// JSONSchema renders the declaration's parameter object.
func (d ToolDeclaration) JSONSchema() *jsonschema.Schema {
	js := d.parameters.JSONSchema()
	js.Title = d.name
	if js.Description == "" {
		js.Description = d.description
	}
	return js
}
