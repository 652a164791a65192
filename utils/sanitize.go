package utils

import "github.com/microcosm-cc/bluemonday"

// Nicknames are plain display text; strip all markup rather than allowing a
// safe subset.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML from user supplied display text to prevent XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
