package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalTitle(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"case folded", "Weekly Report", "weekly report", true},
		{"whitespace trimmed", "  Weekly Report ", "Weekly Report", true},
		// "é" precomposed (U+00E9) vs "e" + combining acute (U+0301).
		{"composed and decomposed accents", "café", "café", true},
		{"different titles", "Weekly Report", "Monthly Report", false},
		{"interior whitespace preserved", "Weekly  Report", "Weekly Report", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, canonicalTitle(tt.a) == canonicalTitle(tt.b))
		})
	}
}
