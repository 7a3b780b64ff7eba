package session

import (
	"sort"
	"strings"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// FilterProducts returns the products matching every active filter, in
// catalog order. Category and brand match by equality; the query matches a
// case-insensitive substring of the name or the brand.
func FilterProducts(products []model.Product, f model.Filters) []model.Product {
	query := strings.ToLower(f.Query)

	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Brand != "" && p.Brand != f.Brand {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Brand), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// UniqueBrands returns the sorted, de-duplicated brand names of products.
func UniqueBrands(products []model.Product) []string {
	return uniqueSorted(products, func(p model.Product) string { return p.Brand })
}

// UniqueCategories returns the sorted, de-duplicated categories of products.
func UniqueCategories(products []model.Product) []string {
	return uniqueSorted(products, func(p model.Product) string { return p.Category })
}

func uniqueSorted(products []model.Product, field func(model.Product) string) []string {
	seen := make(map[string]bool, len(products))
	out := make([]string, 0, len(products))
	for _, p := range products {
		v := field(p)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
