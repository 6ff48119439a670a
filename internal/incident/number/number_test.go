package number

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "HEL001-2026-0001", Format("HEL001", 2026, 1))
	assert.Equal(t, "HEL001-2026-0042", Format("hel001", 2026, 42))
	assert.Equal(t, "TKU002-2025-9999", Format("TKU002", 2025, 9999))
	assert.Equal(t, "TKU002-2025-10000", Format("TKU002", 2025, 10000))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "HEL001-2026-", Prefix("HEL001", 2026))
	assert.Equal(t, "GEN-2026-", Prefix("gen", 2026))
}

func TestParseSequence(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		want   int64
		wantOK bool
	}{
		{name: "simple", input: "HEL001-2026-0001", want: 1, wantOK: true},
		{name: "wide", input: "HEL001-2026-10001", want: 10001, wantOK: true},
		{name: "fallback", input: "GEN-2026-082814300512", want: 82814300512, wantOK: true},
		{name: "missing_separator", input: "HEL0012026", wantOK: false},
		{name: "trailing_separator", input: "HEL001-2026-", wantOK: false},
		{name: "non_numeric", input: "HEL001-2026-00AB", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseSequence(tc.input)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	at := time.Date(2026, time.August, 28, 14, 30, 5, 120_000_000, time.UTC)
	got := Fallback(at)
	assert.Equal(t, "GEN-2026-082814300512", got)
	assert.Regexp(t, regexp.MustCompile(`^GEN-\d{4}-\d{12}$`), got)
}
