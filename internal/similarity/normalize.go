package similarity

import (
	"strings"
	"unicode"
)

// strippedPunctuation is the fixed punctuation set removed during content
// normalization. It covers both ASCII and full-width Japanese forms.
const strippedPunctuation = "。、！？.,!?・：:；;（）()「」『』…―～~"

// NormalizeContent canonicalizes knowledge text for duplicate comparison:
// lowercase, the fixed punctuation set stripped, all whitespace removed.
// Whitespace is dropped rather than collapsed so that CJK text with
// incidental spacing compares equal.
func NormalizeContent(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(strippedPunctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// ExactMatch reports whether two contents are exact duplicates, i.e. their
// normalized forms are equal.
func ExactMatch(a, b string) bool {
	return NormalizeContent(a) == NormalizeContent(b)
}
