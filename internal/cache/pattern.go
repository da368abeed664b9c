package cache

import (
	"path"
	"regexp"
	"strings"
)

var disallowedKeyChars = regexp.MustCompile(`[^A-Za-z0-9:_.\-*]+`)

// NormalizeKey trims the key and collapses every run of characters outside
// [A-Za-z0-9:_.-*] into a single underscore.
func NormalizeKey(key string) string {
	return disallowedKeyChars.ReplaceAllString(strings.TrimSpace(key), "_")
}

// pattern matches normalized keys against a "*" wildcard expression
type pattern struct {
	expr string
}

func newPattern(expr string) pattern {
	return pattern{expr: NormalizeKey(expr)}
}

// match reports whether the whole key matches. Normalized keys never contain
// '/', '?', '[' or '\\', so path.Match sees "*" as the only metacharacter
// and it spans ':' separators.
func (p pattern) match(key string) bool {
	ok, err := path.Match(p.expr, key)
	return err == nil && ok
}

// MatchPattern reports whether key matches the wildcard pattern
func MatchPattern(expr, key string) bool {
	return newPattern(expr).match(NormalizeKey(key))
}
