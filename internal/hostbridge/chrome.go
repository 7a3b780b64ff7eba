package hostbridge

import (
	"fmt"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// DefaultOrderButtonFormat is the main-button label; %s is the rounded total.
const DefaultOrderButtonFormat = "Оформить заказ на %s ₽"

// Chrome is what the host's native buttons should show.
type Chrome struct {
	MainButtonVisible bool
	MainButtonText    string
	BackButtonVisible bool
}

// DeriveChrome computes the button state from the view and cart aggregates.
// It is pure: the same inputs always give the same Chrome.
//
// The order button shows only on the cart view with a non-empty cart.
// The back button shows everywhere except the catalog.
func DeriveChrome(view model.ViewState, count int, total model.Amount, orderFormat string) Chrome {
	if orderFormat == "" {
		orderFormat = DefaultOrderButtonFormat
	}

	var c Chrome
	if view == model.ViewCart && count > 0 {
		c.MainButtonVisible = true
		c.MainButtonText = fmt.Sprintf(orderFormat, total.Rounded())
	}
	c.BackButtonVisible = view != model.ViewCatalog
	return c
}

// ApplyChrome pushes c to the host. Applying the same Chrome twice leaves the
// host in the same state. The back button is skipped on hosts that predate it.
func ApplyChrome(b Bridge, c Chrome) {
	b.SetMainButton(c.MainButtonText, c.MainButtonVisible)
	if Supports(b.Version(), FeatureBackButton) {
		b.SetBackButton(c.BackButtonVisible)
	}
}
