package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "New Conversation"},
		{"whitespace only", "   \n\t", "New Conversation"},
		{"short message", "hello there", "hello there"},
		{"caps at ten words", "one two three four five six seven eight nine ten eleven twelve", "one two three four five six seven eight nine ten"},
		{"collapses whitespace", "  hello \n  world  ", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromContent(tt.content))
		})
	}
}

func TestTitleFromContent_LongWordsTruncated(t *testing.T) {
	title := TitleFromContent(strings.Repeat("verylongword ", 10))
	assert.LessOrEqual(t, len(title), 80)
	assert.True(t, strings.HasSuffix(title, "..."))
}
