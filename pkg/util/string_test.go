package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"long string truncated", strings.Repeat("a", 10), 8, "aaaaa..."},
		{"tiny ceiling has no room for ellipsis", "hello", 2, "he"},
		{"empty string", "", 5, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TruncateWithEllipsis(tc.input, tc.maxLen))
		})
	}
}

func TestTruncateWithEllipsisCountsRunes(t *testing.T) {
	s := strings.Repeat("ü", 300)
	got := TruncateWithEllipsis(s, 280)
	assert.Equal(t, 280, RuneLen(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestStripWrappingQuotes(t *testing.T) {
	assert.Equal(t, "hello", StripWrappingQuotes(`"hello"`))
	assert.Equal(t, "hello", StripWrappingQuotes(`'hello'`))
	assert.Equal(t, `"mixed'`, StripWrappingQuotes(`"mixed'`))
	assert.Equal(t, `say "hi"`, StripWrappingQuotes(`say "hi"`))
	assert.Equal(t, `"`, StripWrappingQuotes(`"`))
	assert.Equal(t, "", StripWrappingQuotes(`""`))
}

func TestSplitTitleBody(t *testing.T) {
	title, body := SplitTitleBody("Launch day\n\nWe shipped the thing.")
	assert.Equal(t, "Launch day", title)
	assert.Equal(t, "We shipped the thing.", body)

	title, body = SplitTitleBody("Just a title")
	assert.Equal(t, "Just a title", title)
	assert.Empty(t, body)
}
