package model

import "fmt"

// ViewState is the active screen. Exactly one is visible at a time.
type ViewState int

const (
	ViewCatalog ViewState = iota
	ViewProduct
	ViewCart
)

func (v ViewState) String() string {
	switch v {
	case ViewCatalog:
		return "catalog"
	case ViewProduct:
		return "product"
	case ViewCart:
		return "cart"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// ParseViewState maps a view name back to its ViewState.
func ParseViewState(s string) (ViewState, error) {
	switch s {
	case "catalog":
		return ViewCatalog, nil
	case "product":
		return ViewProduct, nil
	case "cart":
		return ViewCart, nil
	default:
		return ViewCatalog, NewValidationError("view", fmt.Sprintf("unknown view %q", s))
	}
}

// MarshalText lets ViewState appear by name in JSON and logs.
func (v ViewState) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *ViewState) UnmarshalText(text []byte) error {
	parsed, err := ParseViewState(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
