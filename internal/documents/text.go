package documents

import (
	"strings"
	"unicode/utf8"
)

// SimulatedMarker tags text produced by the processing simulator.
const SimulatedMarker = "[simulated extraction]"

// MinRealTextLength is the rune count below which parsed text is treated as a
// placeholder.
const MinRealTextLength = 200

var placeholderMarkers = []string{
	strings.ToLower(SimulatedMarker),
	"this is simulated",
	"mock extracted text",
	"lorem ipsum",
}

// IsPlaceholderText reports whether parsed text is missing, simulated or too
// short to be a real extraction.
func IsPlaceholderText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return utf8.RuneCountInString(trimmed) < MinRealTextLength
}
