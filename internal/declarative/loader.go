package declarative

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// Parse decodes every schema document in data, which may hold several
// "---" separated documents. source names the input in error messages.
func Parse(data []byte, source string, opts LoadOptions) ([]*SchemaDoc, error) {
	var docs []*SchemaDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(!opts.AllowUnknownFields)
	for i := 1; ; i++ {
		doc := &SchemaDoc{}
		if err := dec.Decode(doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse %s: document %d: %w", source, i, err)
		}
		if err := validateDocument(source, doc.APIVersion, doc.Kind); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: no documents", source)
	}
	return docs, nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path, apiVersion, kind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != KindAggregationSchema {
		return fmt.Errorf("%s: unexpected kind %q (expected %q)", path, kind, KindAggregationSchema)
	}
	return nil
}

// LoadFile reads the schema documents of one YAML file.
func LoadFile(path string, opts LoadOptions) ([]*SchemaDoc, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified schema files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, path, opts)
}

// LoadFS reads every *.yaml and *.yml file of fsys, in lexical order.
func LoadFS(fsys fs.FS, opts LoadOptions) ([]*SchemaDoc, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAML(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk schemas: %w", err)
	}
	sort.Strings(paths)

	var docs []*SchemaDoc
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		parsed, err := Parse(data, p, opts)
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

// LoadPaths loads files and directories; directories are read with LoadFS.
func LoadPaths(paths []string, opts LoadOptions) ([]*SchemaDoc, error) {
	var docs []*SchemaDoc
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("schema path: %w", err)
		}
		var loaded []*SchemaDoc
		if info.IsDir() {
			loaded, err = LoadFS(os.DirFS(p), opts)
		} else {
			loaded, err = LoadFile(p, opts)
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
