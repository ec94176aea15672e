package caption

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeWord trims and lowercases a word. It is the key for saved words and
// translation cache entries.
func NormalizeWord(word string) string {
	return toLower(strings.TrimSpace(word))
}

// Token is a tappable word in a rendered line.
type Token struct {
	Text string // as displayed
	Key  string // lowercased, letters/digits/underscore only
}

// Tokens splits a line on whitespace into tappable words.
func Tokens(line string) []Token {
	fields := strings.Fields(line)
	out := make([]Token, 0, len(fields))
	for _, f := range fields {
		out = append(out, Token{Text: f, Key: wordKey(f)})
	}
	return out
}

func wordKey(s string) string {
	var b strings.Builder
	for _, r := range toLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// A Caser keeps state between calls, so each call gets its own.
func toLower(s string) string {
	return cases.Lower(language.Und).String(s)
}
