// Package catalog loads the store catalog from a YAML file and serves it to
// the rest of the backend. The catalog is immutable after load.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"raplifeBack/internal/models"
)

type fileCatalog struct {
	Items []models.PurchaseItem `yaml:"items"`
}

// Catalog is the loaded set of purchasable items keyed by product id.
type Catalog struct {
	items []models.PurchaseItem
	byID  map[string]models.PurchaseItem
}

// Load reads and validates a catalog file. Duplicate ids and invalid items
// are load-time errors so a bad catalog never reaches players.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(fc.Items) == 0 {
		return nil, fmt.Errorf("catalog has no items")
	}
	c := &Catalog{
		items: fc.Items,
		byID:  make(map[string]models.PurchaseItem, len(fc.Items)),
	}
	for _, item := range fc.Items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("catalog item %q: %w", item.ID, err)
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("catalog item %q: duplicate id", item.ID)
		}
		c.byID[item.ID] = item
	}
	return c, nil
}

// List returns every item in file order.
func (c *Catalog) List() []models.PurchaseItem {
	out := make([]models.PurchaseItem, len(c.items))
	copy(out, c.items)
	return out
}

// Get looks an item up by product id.
func (c *Catalog) Get(id string) (models.PurchaseItem, error) {
	item, ok := c.byID[id]
	if !ok {
		return models.PurchaseItem{}, fmt.Errorf("%w: %s", models.ErrItemNotFound, id)
	}
	return item, nil
}
