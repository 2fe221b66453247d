package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", defaultBodyLimit},
		{"512", 512},
		{"64K", 64 << 10},
		{"64KB", 64 << 10},
		{"1M", 1 << 20},
		{"2gb", 2 << 30},
		{"abc", defaultBodyLimit},
		{"-5", defaultBodyLimit},
	}
	for _, tt := range tests {
		if got := ParseLimit(tt.in); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBodyLimit_ContentLength(t *testing.T) {
	c, _ := newContext(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 20))))
	err := BodyLimit("10")(ok)(c)
	he, isHTTP := err.(*echo.HTTPError)
	if !isHTTP || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestBodyLimit_StreamingBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 20)))
	req.ContentLength = -1
	c, _ := newContext(req)

	var readErr error
	BodyLimit("10")(func(c echo.Context) error {
		_, readErr = io.ReadAll(c.Request().Body)
		return nil
	})(c)
	if readErr == nil {
		t.Error("expected read error once the limit is exceeded")
	}
}

func TestBodyLimit_WithinLimit(t *testing.T) {
	c, _ := newContext(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"answer":true}`)))
	var body []byte
	err := BodyLimit("1K")(func(c echo.Context) error {
		body, _ = io.ReadAll(c.Request().Body)
		return nil
	})(c)
	if err != nil || string(body) != `{"answer":true}` {
		t.Errorf("unexpected result %q %v", body, err)
	}
}
