// Package regions serves the static batyr data shown on the map.
package regions

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog maps a region id to its record. Records are kept as decoded
// trees and returned to clients unchanged.
type Catalog struct {
	mu      sync.RWMutex
	regions map[string]interface{}
}

func NewCatalog() *Catalog {
	return &Catalog{regions: make(map[string]interface{})}
}

// Load replaces the catalog with the contents of path. The file may be
// JSON or YAML. On error the previous contents are kept.
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read region data: %w", err)
	}
	return c.Parse(data)
}

// Parse replaces the catalog with the records in data.
func (c *Catalog) Parse(data []byte) error {
	regions := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &regions); err != nil {
		return fmt.Errorf("failed to parse region data: %w", err)
	}

	c.mu.Lock()
	c.regions = regions
	c.mu.Unlock()
	return nil
}

// Get returns the record for id.
func (c *Catalog) Get(id string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.regions[id]
	if !ok || r == nil {
		return nil, false
	}
	return r, true
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regions)
}
