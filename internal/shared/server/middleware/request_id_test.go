package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requestIDRouter(capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		*capture = RequestIDFromContext(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	var seen string
	r := requestIDRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	header := resp.Header().Get("X-Request-Id")
	if header == "" {
		t.Fatalf("expected generated X-Request-Id header")
	}
	if _, err := uuid.Parse(header); err != nil {
		t.Fatalf("generated id should be a UUID, got %q: %v", header, err)
	}
	if seen != header {
		t.Fatalf("handler saw %q, header has %q", seen, header)
	}
}

func TestRequestIDKeepsValidInbound(t *testing.T) {
	var seen string
	r := requestIDRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-Id", "client-retry-42")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if got := resp.Header().Get("X-Request-Id"); got != "client-retry-42" {
		t.Fatalf("expected inbound id echoed back, got %q", got)
	}
	if seen != "client-retry-42" {
		t.Fatalf("handler saw %q", seen)
	}
}

func TestRequestIDReplacesInvalidInbound(t *testing.T) {
	cases := []struct {
		name string
		id   string
	}{
		{"spaces", "not a valid id"},
		{"control characters", "abc\x00def"},
		{"oversized", strings.Repeat("a", maxRequestIDLen+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			r := requestIDRouter(&seen)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("X-Request-Id", tc.id)
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			got := resp.Header().Get("X-Request-Id")
			if got == tc.id {
				t.Fatalf("invalid inbound id %q should be replaced", tc.id)
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("replacement should be a UUID, got %q: %v", got, err)
			}
		})
	}
}
