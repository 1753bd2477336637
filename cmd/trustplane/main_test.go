package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{
			name:   "short prompt unchanged",
			prompt: "hello",
			want:   "hello",
		},
		{
			name:   "exact length unchanged",
			prompt: strings.Repeat("a", promptPreviewLen),
			want:   strings.Repeat("a", promptPreviewLen),
		},
		{
			name:   "ascii truncated with ellipsis",
			prompt: strings.Repeat("a", promptPreviewLen+50),
			want:   strings.Repeat("a", promptPreviewLen) + "...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preview(tt.prompt); got != tt.want {
				t.Errorf("preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreviewKeepsRuneBoundaries(t *testing.T) {
	// Two-byte runes guarantee the byte limit lands mid-rune.
	prompt := strings.Repeat("é", promptPreviewLen)

	got := preview(prompt)
	if !utf8.ValidString(got) {
		t.Fatalf("preview emitted invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long prompt should be truncated, got %q", got)
	}
	if cut := strings.TrimSuffix(got, "..."); !strings.HasPrefix(prompt, cut) {
		t.Errorf("preview %q is not a prefix of the prompt", cut)
	}
}
