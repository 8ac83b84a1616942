// Package catalog holds the static reference data of the rewards program:
// the price paid per kilogram of each waste category, the drop-off centers
// shown on the map and the recycling guide.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"ecocycle/internal/domain"
)

// OtherCategory is used for anything the classifier cannot place
const OtherCategory = "Other"

//go:embed default.yaml
var defaultYAML []byte

// Price is the payout for one kilogram of a category
type Price struct {
	Category   string  `yaml:"category" json:"category"`
	PricePerKg float64 `yaml:"price_per_kg" json:"price_per_kg"`
}

// CenterSpec seeds a drop-off center
type CenterSpec struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Address       string  `yaml:"address"`
	Lat           float64 `yaml:"lat"`
	Lng           float64 `yaml:"lng"`
	CapacityKg    float64 `yaml:"capacity_kg"`
	InitialLoadKg float64 `yaml:"initial_load_kg"`
}

// GuideEntry is one card of the how-to-recycle page
type GuideEntry struct {
	Category string   `yaml:"category" json:"category"`
	Title    string   `yaml:"title" json:"title"`
	VideoID  string   `yaml:"video_id" json:"video_id"`
	Tips     []string `yaml:"tips" json:"tips"`
}

// Catalog is the decoded YAML document
type Catalog struct {
	Currency string       `yaml:"currency"`
	Pricing  []Price      `yaml:"pricing"`
	Centers  []CenterSpec `yaml:"centers"`
	Guide    []GuideEntry `yaml:"guide"`

	prices map[string]decimal.Decimal
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if c.Currency == "" {
		c.Currency = domain.DefaultCurrency
	}
	c.prices = make(map[string]decimal.Decimal, len(c.Pricing))
	for _, p := range c.Pricing {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			return nil, fmt.Errorf("pricing entry without category")
		}
		if p.PricePerKg < 0 {
			return nil, fmt.Errorf("negative price for %s", name)
		}
		if _, dup := c.prices[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("duplicate pricing for %s", name)
		}
		c.prices[strings.ToLower(name)] = decimal.NewFromFloat(p.PricePerKg).Round(2)
	}
	seen := make(map[string]bool, len(c.Centers))
	for _, cs := range c.Centers {
		if cs.ID == "" {
			return nil, fmt.Errorf("center %q has no id", cs.Name)
		}
		if seen[cs.ID] {
			return nil, fmt.Errorf("duplicate center id %s", cs.ID)
		}
		seen[cs.ID] = true
		if cs.CapacityKg <= 0 {
			return nil, fmt.Errorf("center %s needs a positive capacity", cs.ID)
		}
	}
	return &c, nil
}

// PriceFor returns the per-kilogram payout; unknown categories pay nothing.
func (c *Catalog) PriceFor(category string) decimal.Decimal {
	if p, ok := c.prices[strings.ToLower(strings.TrimSpace(category))]; ok {
		return p
	}
	return decimal.Zero
}

// Known reports whether the category has a pricing entry.
func (c *Catalog) Known(category string) bool {
	_, ok := c.prices[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

// Categories lists the priced categories in declared order.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.Pricing))
	for _, p := range c.Pricing {
		out = append(out, p.Category)
	}
	return out
}

// CenterModels converts the specs into rows ready for seeding.
func (c *Catalog) CenterModels() []domain.Center {
	out := make([]domain.Center, 0, len(c.Centers))
	for _, cs := range c.Centers {
		out = append(out, domain.Center{
			ID:         cs.ID,
			Name:       cs.Name,
			Address:    cs.Address,
			Lat:        cs.Lat,
			Lng:        cs.Lng,
			CapacityKg: decimal.NewFromFloat(cs.CapacityKg),
			LoadKg:     decimal.NewFromFloat(cs.InitialLoadKg),
		})
	}
	return out
}

// Canonical returns the declared spelling of a known category, or "".
func (c *Catalog) Canonical(category string) string {
	category = strings.TrimSpace(category)
	for _, p := range c.Pricing {
		if strings.EqualFold(p.Category, category) {
			return p.Category
		}
	}
	return ""
}
