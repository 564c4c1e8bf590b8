// Package codeblock identifies fenced code blocks in generated text and
// coordinates the best-effort repair round trip.
package codeblock

import (
	"regexp"
	"strings"
)

// fenceRE matches a fenced block tagged with one of the supported languages
// or untagged. The capture group is the block body.
var fenceRE = regexp.MustCompile("(?s)```(?:html|javascript|css|react)?\n?(.*?)```")

// Policy selects which fenced block wins when a text contains several.
type Policy int

const (
	// FirstBlock takes the first match. Used for the repair-reply contract,
	// where the reconstructed code leads the reply.
	FirstBlock Policy = iota
	// LastBlock takes the last match. Used for chat detection and the
	// sandbox preview, where code typically follows prose.
	LastBlock
)

// Extract returns the selected fenced block body and whether one was found.
func Extract(text string, policy Policy) (string, bool) {
	matches := fenceRE.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	switch policy {
	case FirstBlock:
		return matches[0][1], true
	default:
		return matches[len(matches)-1][1], true
	}
}

// StripFences removes any fence markers left inside a block body.
func StripFences(code string) string {
	cleaned := strings.NewReplacer(
		"```html", "",
		"```javascript", "",
		"```css", "",
		"```react", "",
		"```", "",
	).Replace(code)
	return strings.TrimSpace(cleaned)
}
