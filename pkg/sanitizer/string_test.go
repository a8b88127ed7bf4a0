package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t\n  ", ""},
		{"already clean", "calibration run", "calibration run"},
		{"leading and trailing", "  calibration run  ", "calibration run"},
		{"internal runs collapse", "calibration \t\t run", "calibration run"},
		{"newlines collapse", "line one\nline two", "line one line two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Ada@Lab.EDU", "ada@lab.edu"},
		{"  ada@lab.edu ", "ada@lab.edu"},
		{"ada@lab.edu", "ada@lab.edu"},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.input); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
