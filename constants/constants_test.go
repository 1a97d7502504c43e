package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapExtToFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want FileType
	}{
		{".JPG", IMAGE},
		{"jpeg", IMAGE},
		{"bmp", IMAGE},
		{".pdf", PDF},
		{"TXT", TEXT},
		{"docx", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapExtToFormat(tt.ext), tt.ext)
	}
}

func TestCanonicalize(t *testing.T) {
	cat, ok := Canonicalize("  Restaurant ")
	assert.True(t, ok)
	assert.Equal(t, Dining, cat)

	cat, ok = Canonicalize("utilities")
	assert.True(t, ok)
	assert.Equal(t, Utilities, cat)

	_, ok = Canonicalize("spaceships")
	assert.False(t, ok)

	_, ok = Canonicalize("")
	assert.False(t, ok)
}
