package hostbridge

import (
	"context"
	"sync"
)

// Recorder implements Bridge for testing. It records every call instead of
// driving a real host, and lets tests fire the back/main-button signals.
type Recorder struct {
	signals

	// HostVersion is returned by Version.
	HostVersion string

	// SendErr, when set, is returned by SendData after recording the payload.
	SendErr error

	mu            sync.Mutex
	Calls         []string
	Alerts        []string
	Popups        []Popup
	Notifications []Notification
	Impacts       []Impact
	Sent          [][]byte
	Expanded      bool
	Scrolls       int
	MainText      string
	MainVisible   bool
	BackVisible   bool
}

func (r *Recorder) record(call string) {
	r.Calls = append(r.Calls, call)
}

func (r *Recorder) Version() string { return r.HostVersion }

func (r *Recorder) Expand() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Expand")
	r.Expanded = true
}

func (r *Recorder) ScrollToTop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ScrollToTop")
	r.Scrolls++
}

func (r *Recorder) ShowAlert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ShowAlert")
	r.Alerts = append(r.Alerts, message)
}

func (r *Recorder) ShowPopup(p Popup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ShowPopup")
	r.Popups = append(r.Popups, p)
}

func (r *Recorder) NotificationOccurred(kind Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("NotificationOccurred")
	r.Notifications = append(r.Notifications, kind)
}

func (r *Recorder) ImpactOccurred(style Impact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ImpactOccurred")
	r.Impacts = append(r.Impacts, style)
}

func (r *Recorder) SetMainButton(text string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetMainButton")
	r.MainText = text
	r.MainVisible = visible
}

func (r *Recorder) SetBackButton(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetBackButton")
	r.BackVisible = visible
}

func (r *Recorder) SendData(_ context.Context, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SendData")
	payload := make([]byte, len(data))
	copy(payload, data)
	r.Sent = append(r.Sent, payload)
	return r.SendErr
}

// CallCount returns how many times method was called.
func (r *Recorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// Verify Recorder implements Bridge interface at compile time.
var _ Bridge = (*Recorder)(nil)
