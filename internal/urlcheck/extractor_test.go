package urlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "plain https URL",
			text:     "Materi kuliah ada di https://elearning.uir.ac.id/course/123",
			expected: []string{"https://elearning.uir.ac.id/course/123"},
		},
		{
			name:     "www URL gets scheme",
			text:     "cek www.example.com ya",
			expected: []string{"https://www.example.com"},
		},
		{
			name:     "bare domain with path",
			text:     "buka kampus-uir.tk/login sekarang",
			expected: []string{"https://kampus-uir.tk/login"},
		},
		{
			name:     "trailing punctuation stripped",
			text:     "link: https://bit.ly/abc123!",
			expected: []string{"https://bit.ly/abc123"},
		},
		{
			name:     "duplicates removed",
			text:     "https://bit.ly/x dan lagi https://bit.ly/x",
			expected: []string{"https://bit.ly/x"},
		},
		{
			name:     "no URLs",
			text:     "besok ada kuis jam 10 pagi",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractURLs(tt.text))
		})
	}
}

func TestHasURLs(t *testing.T) {
	assert.True(t, HasURLs("lihat https://example.com"))
	assert.False(t, HasURLs("tidak ada tautan di sini"))
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.example.com/path?q=1", "example.com"},
		{"http://sub.domain.co.id:8080/x", "sub.domain.co.id"},
		{"https://bit.ly/abc", "bit.ly"},
		{"example.com/page", "example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ExtractDomain(tt.url), "url: %s", tt.url)
	}
}

func TestIsIPAddress(t *testing.T) {
	assert.True(t, IsIPAddress("192.168.1.1"))
	assert.True(t, IsIPAddress("10.0.0.1:8080"))
	assert.False(t, IsIPAddress("example.com"))
}
