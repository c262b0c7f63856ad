// Package sanitize cleans free text submitted through the API before it is
// stored and snapshotted into the change history.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// strictPolicy removes all HTML tags and attributes.
	strictPolicy = bluemonday.StrictPolicy()

	// richTextPolicy keeps basic formatting (<p>, <b>, <i>, <a>, lists).
	richTextPolicy = bluemonday.UGCPolicy()

	// plainEntities undoes the escaping bluemonday applies to harmless
	// characters. &lt; and &gt; stay encoded.
	plainEntities = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)
)

// Text strips all markup and surrounding whitespace. Ampersands and quotes
// are kept as typed, so "Sound & Light" is not stored as "Sound &amp; Light".
// Use for names, roles, categories, serial numbers and locations.
func Text(input string) string {
	return strings.TrimSpace(plainEntities.Replace(strictPolicy.Sanitize(input)))
}

// RichText removes scripts, frames, event handlers and styles but keeps
// basic formatting. Use for descriptions and notes.
func RichText(input string) string {
	return strings.TrimSpace(richTextPolicy.Sanitize(input))
}
