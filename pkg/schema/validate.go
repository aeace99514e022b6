// Package schema validates JSON documents against the bridge's named
// JSON Schemas.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Built-in schema names.
const (
	Config        = "config"
	SetEntity     = "set_entity"
	EntityCommand = "entity_command"
)

//go:embed schemas/*.json
var builtin embed.FS

// ErrUnknownSchema is returned when validating against a name that was
// never registered.
var ErrUnknownSchema = errors.New("unknown schema")

// Error reports a document that failed validation. Paths lists the JSON
// pointers of the offending values.
type Error struct {
	Schema string
	Paths  []string
	err    error
}

func (e *Error) Error() string {
	if len(e.Paths) == 0 {
		return fmt.Sprintf("%s: %v", e.Schema, e.err)
	}
	return fmt.Sprintf("%s: invalid value at %s", e.Schema, strings.Join(e.Paths, ", "))
}

func (e *Error) Unwrap() error { return e.err }

// Validator holds compiled schemas by name.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewValidator returns a Validator with the built-in schemas registered.
func NewValidator() *Validator {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema)}

	entries, err := builtin.ReadDir("schemas")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		raw, err := builtin.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			panic(err)
		}
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		if err := v.Register(name, raw); err != nil {
			panic(fmt.Sprintf("built-in schema %s: %v", name, err))
		}
	}
	return v
}

// Register compiles doc and stores it under name, replacing any earlier
// schema with that name.
func (v *Validator) Register(name string, doc []byte) error {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("failed to parse schema: %w", err)
	}

	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, parsed); err != nil {
		return fmt.Errorf("failed to add schema: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	v.mu.Lock()
	v.schemas[name] = compiled
	v.mu.Unlock()
	return nil
}

// Names lists the registered schemas.
func (v *Validator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.schemas))
	for n := range v.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks doc, a value decoded from JSON, against the named schema.
func (v *Validator) Validate(name string, doc any) error {
	v.mu.RLock()
	compiled, ok := v.schemas[name]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}

	if err := compiled.Validate(doc); err != nil {
		return &Error{Schema: name, Paths: failedPaths(err), err: err}
	}
	return nil
}

// ValidateJSON decodes raw and validates it against the named schema.
func (v *Validator) ValidateJSON(name string, raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return v.Validate(name, doc)
}

// ValidateValue checks the JSON encoding of value against the named schema.
func (v *Validator) ValidateValue(name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return v.ValidateJSON(name, raw)
}

// failedPaths collects the instance locations of the leaf causes.
func failedPaths(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}

	seen := make(map[string]bool)
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		seen["/"+strings.Join(e.InstanceLocation, "/")] = true
	}
	walk(ve)

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
