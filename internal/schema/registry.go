// Package schema loads the procedure definitions document (procedures.yml)
// into an immutable, per-process registry of field descriptors, one
// ProcedureSchema per measurement procedure label.
package schema

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/joaquim-mph/optostage/internal/xerrors"
)

// FieldType is one of the five primitive types a schema field can carry.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeBool     FieldType = "bool"
	TypeDatetime FieldType = "datetime"
)

// FieldSpec describes one declared field of a procedure's Parameters,
// Metadata, or Data section.
type FieldSpec struct {
	Type     FieldType `yaml:"type"`
	Unit     string    `yaml:"unit"`
	Required bool      `yaml:"required"`
}

// ProcedureSchema is the immutable set of fields for one procedure. Fields
// are stored as maps, so declaration order is not kept; order does not
// affect casting or renaming semantics.
type ProcedureSchema struct {
	Label      string
	Parameters map[string]FieldSpec `yaml:"parameters"`
	Metadata   map[string]FieldSpec `yaml:"metadata"`
	Data       map[string]FieldSpec `yaml:"data"`
}

// rawDoc mirrors the on-disk YAML shape: a mapping of procedure label to
// its three sections.
type rawDoc map[string]struct {
	Parameters map[string]FieldSpec `yaml:"parameters"`
	Metadata   map[string]FieldSpec `yaml:"metadata"`
	Data       map[string]FieldSpec `yaml:"data"`
}

// Registry is the immutable, in-memory representation of the schema
// document, keyed by procedure label.
type Registry struct {
	procedures map[string]ProcedureSchema
}

// Load parses the procedure definitions document at path into a Registry.
// A malformed document is a SchemaLoadFailure — fatal at startup, per the
// error propagation policy.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read procedures document %s: %w", path, err)
	}

	var doc rawDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.New(xerrors.SchemaLoadFailure, "schema.Load", path, err)
	}

	procedures := make(map[string]ProcedureSchema, len(doc))
	for label, sections := range doc {
		procedures[label] = ProcedureSchema{
			Label:      label,
			Parameters: sections.Parameters,
			Metadata:   sections.Metadata,
			Data:       sections.Data,
		}
	}

	return &Registry{procedures: procedures}, nil
}

// Lookup returns the schema for proc, or ok=false if the procedure label is
// not present in the registry.
func (r *Registry) Lookup(proc string) (ProcedureSchema, bool) {
	s, ok := r.procedures[proc]
	return s, ok
}

// cache is the per-worker-process lazy singleton described in the Design
// Notes: registries are immutable once loaded, so a single load per process
// (keyed by path, in case tests load more than one document) is safe to
// share across every Worker goroutine in that process.
type cache struct {
	mu     sync.Mutex
	byPath map[string]*Registry
}

var processCache = &cache{byPath: make(map[string]*Registry)}

// LoadCached behaves like Load but memoizes the result per path for the
// lifetime of the process, so concurrent Workers pay the parse cost once.
func LoadCached(path string) (*Registry, error) {
	processCache.mu.Lock()
	defer processCache.mu.Unlock()

	if r, ok := processCache.byPath[path]; ok {
		return r, nil
	}

	r, err := Load(path)
	if err != nil {
		return nil, err
	}
	processCache.byPath[path] = r
	return r, nil
}
