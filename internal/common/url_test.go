package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrigin(t *testing.T) {
	tests := []struct {
		rawURL   string
		expected string
	}{
		{"https://example.com/products/1", "https://example.com"},
		{"https://Example.COM/products/1", "https://example.com"},
		{"http://example.com:8080/a", "http://example.com:8080"},
		{"not a url", ""},
		{"/relative/path", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Origin(tt.rawURL), "Origin(%q)", tt.rawURL)
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://example.com:8080/x"))
	assert.Equal(t, "sub.example.com", Domain("http://Sub.Example.com/"))
	assert.Equal(t, "", Domain("://bad"))
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://example.com/catalog/page1"

	tests := []struct {
		href     string
		expected string
	}{
		{"/products/2", "https://example.com/products/2"},
		{"page2", "https://example.com/catalog/page2"},
		{"https://other.com/x", "https://other.com/x"},
		{"#section", ""},
		{"javascript:void(0)", ""},
		{"mailto:a@b.com", ""},
		{"  /trimmed  ", "https://example.com/trimmed"},
		{"https://example.com/x#frag", "https://example.com/x"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, AbsoluteURL(base, tt.href), "AbsoluteURL(%q)", tt.href)
	}
}
