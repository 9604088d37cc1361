package declarative

import (
	"embed"
	"io/fs"
	"sort"

	"duck-analytics/internal/domain"
)

//go:embed schemas/*.yaml
var builtinFS embed.FS

// Registry holds compiled schemas by name. It is immutable once built.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry indexes defs by name; two definitions with one name conflict.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.Name()]; dup {
			return nil, domain.ErrConflict("schema %q is declared more than once", d.Name())
		}
		r.defs[d.Name()] = d
	}
	return r, nil
}

// CompileAll compiles docs into a registry.
func CompileAll(docs []*SchemaDoc) (*Registry, error) {
	defs := make([]*Definition, 0, len(docs))
	for _, doc := range docs {
		def, err := Compile(doc)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewRegistry(defs...)
}

// Load compiles the schemas found at paths, or the built-in schemas when
// paths is empty.
func Load(paths []string, opts LoadOptions) (*Registry, error) {
	if len(paths) == 0 {
		return Builtin()
	}
	docs, err := LoadPaths(paths, opts)
	if err != nil {
		return nil, err
	}
	return CompileAll(docs)
}

// Builtin compiles the schemas shipped with the binary, which describe the
// demo merge request tables.
func Builtin() (*Registry, error) {
	sub, err := fs.Sub(builtinFS, "schemas")
	if err != nil {
		return nil, err
	}
	docs, err := LoadFS(sub, LoadOptions{})
	if err != nil {
		return nil, err
	}
	return CompileAll(docs)
}

// Get returns the named schema.
func (r *Registry) Get(name string) (*Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return nil, domain.ErrNotFound("schema %q not found", name)
	}
	return d, nil
}

// Names returns the schema names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of schemas.
func (r *Registry) Len() int { return len(r.defs) }
