// Package hostbridge abstracts the mini-app host shell a storefront session runs in:
// native main/back buttons, haptics, alerts and popups, the outbound data
// channel, and the back/main-button signals coming the other way.
package hostbridge

import (
	"context"
	"sync"
)

// Bridge is the host capability interface. A session calls it from a single
// goroutine; implementations need not be safe for concurrent use unless they
// are shared across sessions.
type Bridge interface {
	// Version reports the host platform version (e.g. "6.9"). Empty means unknown.
	Version() string

	// Expand asks the host to give the app its full height.
	Expand()

	// ScrollToTop resets the viewport after a view change.
	ScrollToTop()

	// ShowAlert shows a native alert with a single dismiss button.
	ShowAlert(message string)

	// ShowPopup shows a native popup with a title and buttons.
	ShowPopup(p Popup)

	// NotificationOccurred requests a notification haptic.
	NotificationOccurred(kind Notification)

	// ImpactOccurred requests an impact haptic.
	ImpactOccurred(style Impact)

	// SetMainButton updates the native main button's label and visibility.
	SetMainButton(text string, visible bool)

	// SetBackButton updates the native back button's visibility.
	SetBackButton(visible bool)

	// OnBack registers the handler invoked when the user presses back.
	OnBack(fn func())

	// OnMainButton registers the handler invoked when the main button is pressed.
	OnMainButton(fn func())

	// SendData hands data to the controlling application. There is no
	// acknowledgment: a nil error only means the host accepted the bytes.
	SendData(ctx context.Context, data []byte) error
}

// Popup describes a native popup.
type Popup struct {
	Title   string        `json:"title,omitempty"`
	Message string        `json:"message"`
	Buttons []PopupButton `json:"buttons,omitempty"`
}

// PopupButton is one popup button. Type is "ok", "close", "cancel", "default" or "destructive".
type PopupButton struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Notification is a notification haptic kind.
type Notification string

const (
	NotificationSuccess Notification = "success"
)

// Impact is an impact haptic style.
type Impact string

const (
	ImpactLight Impact = "light"
)

// DataSink receives the bytes a host forwards through SendData.
// relay provides the writer, HTTP, and watermill sinks.
type DataSink interface {
	Publish(ctx context.Context, payload []byte) error
}

// signals stores the back/main-button handlers for hosts implemented in Go.
type signals struct {
	mu     sync.Mutex
	onBack func()
	onMain func()
}

func (s *signals) OnBack(fn func()) {
	s.mu.Lock()
	s.onBack = fn
	s.mu.Unlock()
}

func (s *signals) OnMainButton(fn func()) {
	s.mu.Lock()
	s.onMain = fn
	s.mu.Unlock()
}

// TriggerBack fires the registered back handler, if any.
func (s *signals) TriggerBack() {
	s.mu.Lock()
	fn := s.onBack
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// TriggerMainButton fires the registered main-button handler, if any.
func (s *signals) TriggerMainButton() {
	s.mu.Lock()
	fn := s.onMain
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
