package session

import "github.com/Roman-G-men/vipsneaker-bot/internal/hostbridge"

// DefaultCartKey is the storage key holding the cart snapshot.
const DefaultCartKey = "vibesCart"

// Messages holds the user-facing texts a session shows through the host.
type Messages struct {
	LoadProductsFailed string
	LoadProductFailed  string
	DuplicateTitle     string
	DuplicateMessage   string

	// OrderButton is a fmt format for the main button; %s is the rounded total.
	OrderButton string
}

// DefaultMessages returns the storefront's Russian texts.
func DefaultMessages() Messages {
	return Messages{
		LoadProductsFailed: "Не удалось загрузить товары.",
		LoadProductFailed:  "Не удалось загрузить информацию о товаре.",
		DuplicateTitle:     "Уведомление",
		DuplicateMessage:   "Этот товар уже в корзине. Вы можете изменить количество в корзине.",
		OrderButton:        hostbridge.DefaultOrderButtonFormat,
	}
}

// withDefaults fills empty fields from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.LoadProductsFailed == "" {
		m.LoadProductsFailed = d.LoadProductsFailed
	}
	if m.LoadProductFailed == "" {
		m.LoadProductFailed = d.LoadProductFailed
	}
	if m.DuplicateTitle == "" {
		m.DuplicateTitle = d.DuplicateTitle
	}
	if m.DuplicateMessage == "" {
		m.DuplicateMessage = d.DuplicateMessage
	}
	if m.OrderButton == "" {
		m.OrderButton = d.OrderButton
	}
	return m
}
