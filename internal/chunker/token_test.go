package chunker

import "testing"

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"alphanumeric only", "ab12", 4},
		{"non-latin script", "日本語", 6},
		{"mixed with space", "a b", 4},
		{"punctuation", "hello, world", 14},
		{"newline counts double", "a\nb", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}
