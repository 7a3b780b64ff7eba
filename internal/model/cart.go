package model

import (
	"fmt"
)

// CartLine binds a variant to a quantity. Name, photo, size, and price are a
// snapshot taken when the line was added and never follow later catalog changes.
type CartLine struct {
	VariantID   int64  `json:"variant_id"`
	ProductName string `json:"product_name"`
	PhotoURL    string `json:"photo_url"`
	Size        string `json:"size"`
	Price       Amount `json:"price"`
	Quantity    int    `json:"quantity"`
}

// Subtotal returns price × quantity.
func (l CartLine) Subtotal() Amount {
	return l.Price.Mul(l.Quantity)
}

// NewCartLine snapshots a product and one of its variants into a line of quantity 1.
func NewCartLine(p *Product, v Variant) CartLine {
	return CartLine{
		VariantID:   v.ID,
		ProductName: p.Name,
		PhotoURL:    p.PhotoURL,
		Size:        v.Size,
		Price:       v.Price,
		Quantity:    1,
	}
}

// Cart is the ordered list of lines. At most one line exists per variant ID and
// every line has quantity >= 1.
type Cart []CartLine

// Find returns the index of the line for variantID, or -1.
func (c Cart) Find(variantID int64) int {
	for i, line := range c {
		if line.VariantID == variantID {
			return i
		}
	}
	return -1
}

// Contains reports whether a line exists for variantID.
func (c Cart) Contains(variantID int64) bool {
	return c.Find(variantID) >= 0
}

// Add appends line unless a line for the same variant exists.
// Reports whether the cart changed.
func (c *Cart) Add(line CartLine) bool {
	if c.Contains(line.VariantID) {
		return false
	}
	*c = append(*c, line)
	return true
}

// Adjust adds delta to the quantity of the line for variantID. A line whose
// quantity drops to zero or below is removed. Reports whether a line was found.
func (c *Cart) Adjust(variantID int64, delta int) bool {
	i := c.Find(variantID)
	if i < 0 {
		return false
	}
	lines := *c
	lines[i].Quantity += delta
	if lines[i].Quantity <= 0 {
		*c = append(lines[:i:i], lines[i+1:]...)
	}
	return true
}

// Count is the sum of quantities.
func (c Cart) Count() int {
	n := 0
	for _, line := range c {
		n += line.Quantity
	}
	return n
}

// Total is the sum of price × quantity.
func (c Cart) Total() Amount {
	var total Amount
	for _, line := range c {
		total += line.Subtotal()
	}
	return total
}

// Clone returns an independent copy. A nil cart clones to an empty, non-nil cart
// so it always serializes as [].
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Validate checks the cart invariants. Used on snapshots restored from storage,
// which are otherwise untrusted.
func (c Cart) Validate() error {
	seen := make(map[int64]bool, len(c))
	for i, line := range c {
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d has quantity %d", ErrCorruptCart, i, line.Quantity)
		}
		if line.Price < 0 {
			return fmt.Errorf("%w: line %d has negative price", ErrCorruptCart, i)
		}
		if seen[line.VariantID] {
			return fmt.Errorf("%w: duplicate variant %d", ErrCorruptCart, line.VariantID)
		}
		seen[line.VariantID] = true
	}
	return nil
}
