package security

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"john.doe@mail.utoronto.ca", true},
		{"j_doe+test@mail.utoronto.ca", true},
		{"john.doe@utoronto.ca", false},
		{"john.doe@gmail.com", false},
		{"@mail.utoronto.ca", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateEmail(tt.email); got != tt.want {
			t.Errorf("ValidateEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  hello  ", "hello"},
		{"strips NUL bytes", "he\x00llo", "hello"},
		{"plain text untouched", "regular name", "regular name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeRemark_StripsMarkup(t *testing.T) {
	got := SanitizeRemark("<script>alert(1)</script>thanks")
	if got != "thanks" {
		t.Errorf("SanitizeRemark() = %q, want %q", got, "thanks")
	}
}
