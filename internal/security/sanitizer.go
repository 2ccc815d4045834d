package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicy = bluemonday.StrictPolicy()
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@mail\.utoronto\.ca$`)
)

// SanitizeString trims and strips control characters from free-text input
// such as remarks, names and descriptions.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	if len(input) > 1000 {
		input = input[:1000]
	}

	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeRemark applies both passes to caller-supplied remark text.
func SanitizeRemark(input string) string {
	return SanitizeHTML(SanitizeString(input))
}

// ValidateEmail checks for a University of Toronto address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}
