package inventory

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// seedProduct is the on-disk form of a catalog entry. Prices are in major units.
type seedProduct struct {
	Name        string        `json:"name" yaml:"name"`
	Brand       string        `json:"brand" yaml:"brand"`
	Category    string        `json:"category" yaml:"category"`
	Description string        `json:"description" yaml:"description"`
	Composition string        `json:"composition" yaml:"composition"`
	PhotoURL    string        `json:"photo_url" yaml:"photo_url"`
	Variants    []seedVariant `json:"variants" yaml:"variants"`
}

type seedVariant struct {
	Size  string  `json:"size" yaml:"size"`
	Price float64 `json:"price" yaml:"price"`
	Stock int     `json:"stock" yaml:"stock"`
}

// LoadSeedFile reads products from a JSON or YAML file (by extension).
func LoadSeedFile(path string) ([]model.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var raw []seedProduct
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", filepath.Base(path), err)
	}

	products := make([]model.Product, 0, len(raw))
	for _, sp := range raw {
		p := model.Product{
			Name:        sp.Name,
			Brand:       sp.Brand,
			Category:    sp.Category,
			Description: sp.Description,
			Composition: sp.Composition,
			PhotoURL:    sp.PhotoURL,
			Variants:    make([]model.Variant, 0, len(sp.Variants)),
		}
		for _, sv := range sp.Variants {
			p.Variants = append(p.Variants, model.Variant{
				Size:  sv.Size,
				Price: model.Amount(math.Round(sv.Price * 100)),
				Stock: sv.Stock,
			})
		}
		products = append(products, p)
	}
	return products, nil
}
