package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeStandard, false},
		{"standard", ModeStandard, false},
		{" Chrome ", ModeChrome, false},
		{"firefox", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewStandard(t *testing.T) {
	rt := New(ModeStandard, 5*time.Second)
	tr, ok := rt.(*http.Transport)
	if !ok {
		t.Fatalf("New(standard) = %T, want *http.Transport", rt)
	}
	if tr.TLSHandshakeTimeout != 5*time.Second {
		t.Errorf("TLSHandshakeTimeout = %v", tr.TLSHandshakeTimeout)
	}
}

func TestChromeTransportPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "[]")
	}))
	defer srv.Close()

	client := &http.Client{Transport: New(ModeChrome, time.Second)}
	resp, err := client.Get(srv.URL + "/api/products")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "[]" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
}
