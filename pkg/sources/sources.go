// Package sources is the catalog of built-in source definitions.
package sources

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/mapping"
)

//go:embed definitions/*.yaml
var definitionFiles embed.FS

// Catalog holds validated definitions by name.
type Catalog struct {
	definitions map[string]*mapping.Definition
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog of embedded definitions, loaded once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(definitionFiles, "definitions")
	})
	return defaultCatalog, defaultErr
}

// Load parses every .yaml file in dir of fsys.
func Load(fsys embed.FS, dir string) (*Catalog, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source definitions: %w", err)
	}

	c := &Catalog{definitions: make(map[string]*mapping.Definition)}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		data, err := fsys.ReadFile(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		def, err := mapping.ParseDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if err := c.Add(def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers def, rejecting duplicate names.
func (c *Catalog) Add(def *mapping.Definition) error {
	if _, ok := c.definitions[def.Name]; ok {
		return fmt.Errorf("duplicate source definition %q", def.Name)
	}
	c.definitions[def.Name] = def
	return nil
}

func (c *Catalog) Lookup(name string) (*mapping.Definition, bool) {
	def, ok := c.definitions[name]
	return def, ok
}

// Names returns the sorted definition names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.definitions))
	for name := range c.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Len() int {
	return len(c.definitions)
}
