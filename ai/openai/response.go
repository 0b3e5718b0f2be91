package openai

import (
	"regexp"
	"strings"
)

var (
	// a key that lost its opening quote: `, type":` or `{ type":`
	unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)":`)
	// a comma left before a closing bracket
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// cleanJSON turns a model reply into something json.Unmarshal can read.
// It drops code fences and any prose around the outermost object, then
// repairs the quoting and comma mistakes small models tend to make.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end < start {
			return s
		}
		s = s[start : end+1]
	}

	s = unquotedKey.ReplaceAllString(s, `$1"$2":`)
	return trailingComma.ReplaceAllString(s, "$1")
}
