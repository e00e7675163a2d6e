package fact

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Field describes one exposed query field: the backing column it addresses
// and its declared type. The column path is opaque to the query engine.
type Field struct {
	Column string
	Type   FieldType
}

// Schema is the per-record-type mapping from exposed field name to backing
// column and declared type. Every field referenced anywhere in a query must
// resolve through the schema.
type Schema struct {
	// Type is the exposed record type name, e.g. "measurement".
	Type string

	// Table is the backing relation the record type's facts live in.
	Table string

	// RecordScoped marks record types whose facts belong to a single
	// record. Record-type-agnostic types, e.g. audit entries, are not
	// restricted to a record scope.
	RecordScoped bool

	// Fields maps exposed field names to their backing definition.
	Fields map[string]Field
}

// Resolve returns the backing definition of an exposed field name, or an
// InvalidFieldError naming the record type and the offending field.
func (s *Schema) Resolve(name string) (Field, error) {
	f, ok := s.Fields[name]
	if !ok {
		return Field{}, NewInvalidFieldError(s.Type, name)
	}
	return f, nil
}

// FieldNames returns the exposed field names in sorted order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// baseFields are present on every record type: the identifier, creation
// time and document status every fact carries.
func baseFields() map[string]Field {
	return map[string]Field{
		"id":      {Column: "id", Type: TypeString},
		"created": {Column: "created_at", Type: TypeDate},
		"status":  {Column: "status", Type: TypeString},
	}
}

func newSchema(typ, table string, recordScoped bool, fields map[string]Field) *Schema {
	all := baseFields()
	for name, f := range fields {
		all[name] = f
	}
	return &Schema{Type: typ, Table: table, RecordScoped: recordScoped, Fields: all}
}

// Builtin record types, mirroring the clinical fact types the store ships
// with. Additional types can be registered from a schema file.
func builtinSchemas() []*Schema {
	return []*Schema{
		newSchema("measurement", "measurements", true, map[string]Field{
			"name":          {Column: "name", Type: TypeString},
			"value":         {Column: "value", Type: TypeNumber},
			"unit":          {Column: "unit", Type: TypeString},
			"date_measured": {Column: "date_measured", Type: TypeDate},
		}),
		newSchema("allergy", "allergies", true, map[string]Field{
			"allergen":       {Column: "allergen", Type: TypeString},
			"reaction":       {Column: "reaction", Type: TypeString},
			"severity":       {Column: "severity", Type: TypeString},
			"date_diagnosed": {Column: "date_diagnosed", Type: TypeDate},
		}),
		newSchema("medication", "medications", true, map[string]Field{
			"name":         {Column: "name", Type: TypeString},
			"dose":         {Column: "dose_value", Type: TypeNumber},
			"dose_unit":    {Column: "dose_unit", Type: TypeString},
			"frequency":    {Column: "frequency", Type: TypeString},
			"date_started": {Column: "date_started", Type: TypeDate},
		}),
		newSchema("audit", "audit_entries", false, map[string]Field{
			"actor":    {Column: "actor", Type: TypeString},
			"action":   {Column: "action", Type: TypeString},
			"resource": {Column: "resource", Type: TypeString},
		}),
	}
}

// Registry holds the field schemas of all known record types. It is
// populated at startup and immutable for the process lifetime thereafter.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates a registry pre-populated with the builtin record
// types.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]*Schema)}
	for _, s := range builtinSchemas() {
		r.schemas[s.Type] = s
	}
	return r
}

// Register adds a record type schema. Registering a type name twice is an
// error; schemas are immutable once installed.
func (r *Registry) Register(s *Schema) error {
	if s.Type == "" || s.Table == "" {
		return fmt.Errorf("schema must name a record type and table")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[s.Type]; ok {
		return fmt.Errorf("record type already registered: %s", s.Type)
	}
	r.schemas[s.Type] = s
	return nil
}

// Lookup returns the schema of a record type, or an InvalidFieldError-style
// failure when the type is unknown.
func (r *Registry) Lookup(recordType string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[recordType]
	if !ok {
		return nil, fmt.Errorf("unknown record type: %s", recordType)
	}
	return s, nil
}

// Types returns the registered record type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Schemas returns all registered schemas, ordered by record type name.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// schemaFile is the YAML shape of a record type definition file.
type schemaFile struct {
	RecordTypes []struct {
		Type         string `yaml:"type"`
		Table        string `yaml:"table"`
		RecordScoped *bool  `yaml:"record_scoped"`
		Fields       map[string]struct {
			Column string `yaml:"column"`
			Type   string `yaml:"type"`
		} `yaml:"fields"`
	} `yaml:"record_types"`
}

// LoadFile registers additional record types from a YAML definition file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file %q: %w", path, err)
	}
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse schema file %q: %w", path, err)
	}
	for _, rt := range file.RecordTypes {
		fields := make(map[string]Field, len(rt.Fields))
		for name, def := range rt.Fields {
			ft, err := ParseFieldType(def.Type)
			if err != nil {
				return fmt.Errorf("record type %s, field %s: %w", rt.Type, name, err)
			}
			column := def.Column
			if column == "" {
				column = name
			}
			fields[name] = Field{Column: column, Type: ft}
		}
		scoped := true
		if rt.RecordScoped != nil {
			scoped = *rt.RecordScoped
		}
		if err := r.Register(newSchema(rt.Type, rt.Table, scoped, fields)); err != nil {
			return err
		}
	}
	return nil
}
