package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Parse decodes a YAML catalog strictly (unknown fields are rejected) and
// compiles it.
func Parse(data []byte) (*Catalog, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Decode decodes a YAML catalog document without validating it.
func Decode(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidCatalog)
		}
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidCatalog, err)
	}
	return &doc, nil
}

// Load reads and compiles the catalog at path. An empty path loads the
// embedded default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default compiles the embedded default catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// DefaultDocument returns a fresh copy of the embedded default document, for
// callers that adjust it before compiling.
func DefaultDocument() (*Document, error) {
	return Decode(defaultCatalog)
}
