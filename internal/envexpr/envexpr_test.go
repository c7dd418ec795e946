package envexpr

import (
	"os"
	"testing"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		input    string
		expected string
	}{
		{
			name:     "no expressions",
			input:    "just a plain string",
			expected: "just a plain string",
		},
		{
			name:     "single expression",
			env:      map[string]string{"FOO": "bar"},
			input:    "value is ${env.FOO}",
			expected: "value is bar",
		},
		{
			name:     "multiple expressions",
			env:      map[string]string{"A": "1", "B": "2"},
			input:    "${env.A}-${env.B}-${env.A}",
			expected: "1-2-1",
		},
		{
			name:     "unset variable becomes empty",
			input:    "x${env.MISSING_KEY}y",
			expected: "xy",
		},
		{
			name:     "unterminated expression stays literal",
			input:    "x${env.FOO",
			expected: "x${env.FOO",
		},
		{
			name:     "invalid key stays literal",
			env:      map[string]string{"FOO": "bar"},
			input:    "${env.FO-O}",
			expected: "${env.FO-O}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if actual := Expand(tt.input); actual != tt.expected {
				t.Errorf("expected %q but had %q", tt.expected, actual)
			}
		})
	}
}

func TestExpand_EmptyKey(t *testing.T) {
	_ = os.Environ()
	if actual := Expand("a${env.}b"); actual != "ab" {
		t.Errorf("expected %q but had %q", "ab", actual)
	}
}
