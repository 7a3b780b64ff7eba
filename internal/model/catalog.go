// Package model defines the storefront domain types shared by the session,
// the catalog client, and the catalog server.
package model

// Product is a catalog entry as served by /api/products and /api/product/{id}.
// Fetched products are treated as immutable; a re-fetch replaces them wholesale.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Category    string    `json:"category"`
	PhotoURL    string    `json:"photo_url"`
	Description string    `json:"description,omitempty"`
	Composition string    `json:"composition,omitempty"`
	Variants    []Variant `json:"variants"`
}

// Variant is a purchasable size/price option owned by exactly one Product.
type Variant struct {
	ID    int64  `json:"id"`
	Size  string `json:"size"`
	Price Amount `json:"price"`
	Stock int    `json:"stock,omitempty"`
}

// Variant returns the product's variant with the given ID.
func (p *Product) Variant(id int64) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Filters narrows the catalog view. Empty fields match everything.
type Filters struct {
	Category string `json:"category"`
	Brand    string `json:"brand"`
	Query    string `json:"query"`
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool {
	return f.Category == "" && f.Brand == "" && f.Query == ""
}
