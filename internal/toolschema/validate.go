package toolschema

import (
	"fmt"
	"strings"
	"sync"

	json "github.com/json-iterator/go"
	"github.com/xeipuuv/gojsonschema"
)

// Validator checks argument maps against compiled declarations. Schemas are
// compiled lazily and cached; a Validator is safe for concurrent use.
type Validator struct {
	set *Set

	mu       sync.RWMutex
	compiled map[string]*gojsonschema.Schema
}

// NewValidator creates a validator over the given declarations.
func NewValidator(set *Set) *Validator {
	return &Validator{
		set:      set,
		compiled: make(map[string]*gojsonschema.Schema),
	}
}

// Validate returns nil when args satisfy the named declaration. Unknown names
// are not a validation concern and pass.
func (v *Validator) Validate(name string, args map[string]any) error {
	schema, err := v.schemaFor(name)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("failed to validate arguments for '%s': %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return fmt.Errorf("invalid arguments for '%s': %s", name, strings.Join(msgs, "; "))
}

func (v *Validator) schemaFor(name string) (*gojsonschema.Schema, error) {
	v.mu.RLock()
	s, ok := v.compiled[name]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	decl, found := v.set.Lookup(name)
	if !found {
		return nil, nil
	}

	raw, err := json.Marshal(decl.Parameters().JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to render schema for '%s': %w", name, err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for '%s': %w", name, err)
	}

	v.mu.Lock()
	v.compiled[name] = compiled
	v.mu.Unlock()
	return compiled, nil
}
