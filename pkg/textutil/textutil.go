package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and strips every whitespace character, this
// makes "Heimat Zweigstelle" and "heimatzweigstelle" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports if the normalized name contains any of the matchers, matchers
// are expected to be normalized already.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// LongestMatch returns the longest matcher contained in the normalized name, or ""
// if none match.
func LongestMatch(name string, matchers []string) string {
	name = NormalizeName(name)
	longest := ""
	for _, m := range matchers {
		if len(m) > len(longest) && strings.Contains(name, m) {
			longest = m
		}
	}
	return longest
}

// StripPunctuation removes everything that is not a letter or a digit.
func StripPunctuation(s string) string {
	var out strings.Builder
	for _, c := range s {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// CollapseWhitespace trims the string and replaces runs of whitespace with a single space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
