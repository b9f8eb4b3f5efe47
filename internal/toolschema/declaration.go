package toolschema

import (
	json "github.com/json-iterator/go"
)

// ToolDeclaration is the contract exposed to the model for one action. It is
// immutable once built and safe to share across concurrent runs.
type ToolDeclaration struct {
	name        string
	description string
	parameters  ParameterSchema
}

// Name is the unique action name.
func (d ToolDeclaration) Name() string { return d.name }

// Description is the human-readable purpose of the action.
func (d ToolDeclaration) Description() string { return d.description }

// Parameters is the object schema of the action's arguments.
func (d ToolDeclaration) Parameters() ParameterSchema { return d.parameters }

// MarshalJSON renders the declaration with its parameters as JSON Schema.
func (d ToolDeclaration) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters"`
	}{
		Name:        d.name,
		Description: d.description,
		Parameters:  d.parameters.JSONSchema(),
	})
}

// ToolBuilder assembles a ToolDeclaration. The zero value is not usable; start
// with NewTool.
type ToolBuilder struct {
	name        string
	description string
	params      ParameterSchema
}

// NewTool starts a declaration for the named action.
func NewTool(name string) *ToolBuilder {
	return &ToolBuilder{name: name, params: Object()}
}

// Describe sets the action description.
func (b *ToolBuilder) Describe(text string) *ToolBuilder {
	b.description = text
	return b
}

// Param appends a parameter. Parameters without a default are required.
func (b *ToolBuilder) Param(name string, s ParameterSchema) *ToolBuilder {
	b.params = b.params.Field(name, s)
	return b
}

// Build finalizes the declaration. It never fails.
func (b *ToolBuilder) Build() ToolDeclaration {
	desc := b.description
	if desc == "" {
		desc = placeholderToolDescription(b.name)
	}
	return ToolDeclaration{
		name:        b.name,
		description: desc,
		parameters:  b.params.clone(),
	}
}

// Set is an ordered, name-indexed collection of declarations.
type Set struct {
	order []string
	byKey map[string]ToolDeclaration
}

// NewSet indexes the given declarations. A later declaration with the same
// name replaces an earlier one.
func NewSet(decls ...ToolDeclaration) *Set {
	s := &Set{byKey: make(map[string]ToolDeclaration, len(decls))}
	for _, d := range decls {
		if _, exists := s.byKey[d.name]; !exists {
			s.order = append(s.order, d.name)
		}
		s.byKey[d.name] = d
	}
	return s
}

// Lookup finds a declaration by name.
func (s *Set) Lookup(name string) (ToolDeclaration, bool) {
	if s == nil {
		return ToolDeclaration{}, false
	}
	d, ok := s.byKey[name]
	return d, ok
}

// All returns the declarations in registration order.
func (s *Set) All() []ToolDeclaration {
	if s == nil {
		return nil
	}
	out := make([]ToolDeclaration, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.byKey[n])
	}
	return out
}

// Without returns the declarations whose names are not excluded.
func (s *Set) Without(excluded ...string) []ToolDeclaration {
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e] = struct{}{}
	}
	var out []ToolDeclaration
	for _, d := range s.All() {
		if _, ok := skip[d.name]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Names returns the declared names in registration order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}
