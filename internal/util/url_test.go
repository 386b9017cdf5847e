package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRedirectAllowed(t *testing.T) {
	allowed := []string{"blog.example.com", "localhost:3000"}

	tests := []struct {
		name     string
		redirect string
		hosts    []string
		want     bool
	}{
		{"empty", "", nil, false},
		{"relative path", "/dashboard?tab=1", allowed, true},
		{"protocol relative", "//evil.com", nil, false},
		{"backslash", "/\\evil.com", nil, false},
		{"header injection", "/ok\r\nSet-Cookie: x=1", nil, false},
		{"javascript scheme", "javascript:alert(1)", nil, false},
		{"missing host", "https:///path", nil, false},
		{"any host without allowlist", "https://anywhere.io/cb", nil, true},
		{"allowed host", "https://Blog.Example.com/welcome", allowed, true},
		{"allowed host any port", "http://blog.example.com:8080/", allowed, true},
		{"allowed host and port", "http://localhost:3000/cb", allowed, true},
		{"wrong port", "http://localhost:4000/cb", allowed, false},
		{"other host", "https://evil.com/", allowed, false},
		{"suffix trick", "https://blog.example.com.evil.com/", allowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRedirectAllowed(tt.redirect, tt.hosts))
		})
	}
}
