// Package sanitize strips markup from user-supplied text
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element and trims surrounding space. The result is
// HTML-escaped and safe to render.
func Text(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
