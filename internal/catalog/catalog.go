// Package catalog loads the template manifest handed over by the rendering
// side.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/roughcut/internal/schema"
	"github.com/forPelevin/roughcut/internal/types"
)

//go:embed default.yaml
var defaultManifest []byte

// Default returns the built-in catalog.
func Default() []types.CatalogEntry {
	entries, err := Parse(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return entries
}

// Load reads a YAML or JSON manifest from path.
func Load(path string) ([]types.CatalogEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	entries, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return entries, nil
}

// Parse accepts either {templates: [...]} or a bare list and validates the
// entries. Order is preserved.
func Parse(b []byte) ([]types.CatalogEntry, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("manifest is empty")
	}
	root := node.Content[0]

	var entries []types.CatalogEntry
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("decode templates: %w", err)
		}
	case yaml.MappingNode:
		var m struct {
			Templates []types.CatalogEntry `yaml:"templates"`
		}
		if err := root.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode templates: %w", err)
		}
		entries = m.Templates
	default:
		return nil, fmt.Errorf("manifest must be a list or a mapping with a templates key")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest has no templates")
	}
	if err := schema.ValidateCatalog(entries); err != nil {
		return nil, err
	}
	return entries, nil
}
