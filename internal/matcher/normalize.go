package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

var brackets = map[rune]rune{
	'(': ')',
	'[': ']',
	'{': '}',
	'（': '）',
	'【': '】',
	'「': '」',
	'《': '》',
	'<': '>',
}

// qualifiers mark a trailing " - ..." segment as a version tag rather than part of the title.
var qualifiers = []string{
	"live", "remix", "cover", "instrumental", "version", "ver.", "edit", "remaster", "acoustic", "karaoke", "mix",
	"现场", "伴奏", "翻唱", "纯音乐", "版",
}

var artistSeparators = []string{"/", "、", "&", ",", "，", ";", "；", " feat. ", " ft. ", " x "}

// fold lowercases s and keeps only letters and digits.
func fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// core folds s after removing bracketed segments and a trailing dash qualifier.
// A title made only of qualifiers falls back to its plain fold.
func core(s string) string {
	stripped := fold(stripQualifiers(s))
	if stripped == "" {
		return fold(s)
	}
	return stripped
}

func stripQualifiers(s string) string {
	var b strings.Builder
	var stack []rune
	for _, r := range s {
		if closer, ok := brackets[r]; ok {
			stack = append(stack, closer)
			continue
		}
		if len(stack) > 0 {
			if r == stack[len(stack)-1] {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		b.WriteRune(r)
	}

	out := b.String()
	for _, sep := range []string{" - ", " – ", " — ", "-"} {
		idx := strings.LastIndex(out, sep)
		if idx <= 0 {
			continue
		}
		tail := strings.ToLower(out[idx+len(sep):])
		for _, q := range qualifiers {
			if strings.Contains(tail, q) {
				return out[:idx]
			}
		}
	}
	return out
}

// splitArtists expands combined artist strings such as "周杰伦/费玉清".
func splitArtists(artists []string) []string {
	var out []string
	for _, a := range artists {
		parts := []string{a}
		for _, sep := range artistSeparators {
			var next []string
			for _, p := range parts {
				next = append(next, strings.Split(p, sep)...)
			}
			parts = next
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// similarity is 1 − editDistance/maxLen over already-normalized strings.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
