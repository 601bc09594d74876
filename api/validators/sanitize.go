package validators

import "strings"

// SanitizeString trims input and caps it at maxLen bytes when maxLen > 0.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// SanitizeEmail trims and lowercases an address so buyer matching on release
// is case-insensitive.
func SanitizeEmail(input string) string {
	return strings.ToLower(SanitizeString(input, 320))
}
