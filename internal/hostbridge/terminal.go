package hostbridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Terminal is a Bridge rendered on a text terminal. Native buttons become a
// status line, alerts and popups are printed, and SendData forwards the payload
// to a DataSink. The REPL in cmd/storefront fires the back/main signals.
type Terminal struct {
	signals

	out     io.Writer
	sink    DataSink
	logger  *slog.Logger
	version string

	mainText    string
	mainVisible bool
	backVisible bool
}

// NewTerminal creates a terminal host writing to out and relaying orders to sink.
// version emulates the host platform version ("" = latest).
func NewTerminal(out io.Writer, sink DataSink, version string, logger *slog.Logger) *Terminal {
	return &Terminal{
		out:     out,
		sink:    sink,
		logger:  logger,
		version: version,
	}
}

func (t *Terminal) Version() string { return t.version }

func (t *Terminal) Expand() {}

func (t *Terminal) ScrollToTop() {
	fmt.Fprintln(t.out)
}

func (t *Terminal) ShowAlert(message string) {
	fmt.Fprintf(t.out, "[!] %s\n", message)
}

func (t *Terminal) ShowPopup(p Popup) {
	if p.Title != "" {
		fmt.Fprintf(t.out, "[%s] %s\n", p.Title, p.Message)
	} else {
		fmt.Fprintf(t.out, "[i] %s\n", p.Message)
	}
	if len(p.Buttons) > 0 {
		labels := make([]string, len(p.Buttons))
		for i, b := range p.Buttons {
			labels[i] = b.Text
			if labels[i] == "" {
				labels[i] = strings.ToUpper(b.Type)
			}
		}
		fmt.Fprintf(t.out, "    [%s]\n", strings.Join(labels, "] ["))
	}
}

func (t *Terminal) NotificationOccurred(kind Notification) {
	t.logger.Debug("haptic notification", slog.String("kind", string(kind)))
}

func (t *Terminal) ImpactOccurred(style Impact) {
	t.logger.Debug("haptic impact", slog.String("style", string(style)))
}

func (t *Terminal) SetMainButton(text string, visible bool) {
	t.mainText = text
	t.mainVisible = visible
}

func (t *Terminal) SetBackButton(visible bool) {
	t.backVisible = visible
}

// StatusLine renders the native buttons, e.g. "[< back]  [Оформить заказ на 250 ₽ (order)]".
func (t *Terminal) StatusLine() string {
	var parts []string
	if t.backVisible {
		parts = append(parts, "[< back]")
	}
	if t.mainVisible {
		parts = append(parts, fmt.Sprintf("[%s (order)]", t.mainText))
	}
	return strings.Join(parts, "  ")
}

// MainButtonVisible reports whether the main button is currently shown.
func (t *Terminal) MainButtonVisible() bool { return t.mainVisible }

// BackButtonVisible reports whether the back button is currently shown.
func (t *Terminal) BackButtonVisible() bool { return t.backVisible }

func (t *Terminal) SendData(ctx context.Context, data []byte) error {
	if t.sink == nil {
		return fmt.Errorf("no data sink configured")
	}
	if err := t.sink.Publish(ctx, data); err != nil {
		return fmt.Errorf("relaying data: %w", err)
	}
	return nil
}

var _ Bridge = (*Terminal)(nil)
