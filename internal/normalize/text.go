package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letters that do not decompose under NFD but have a plain ASCII spelling.
var foldReplacer = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "ae", "œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o", "ł", "l", "Ł", "l", "đ", "d", "Đ", "d",
	"þ", "th", "Þ", "th", "ı", "i",
)

// joiners are dropped when they sit inside a word and become a space otherwise.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘', 'ʼ', '`', '´', '-', '‐', '‑', '–', '.':
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Fold converts display text into tokenization-safe search text.
//
//	"Amélie"              -> "amelie"
//	"Schindler's List"    -> "schindlers list"
//	"Spider-Man: No Way"  -> "spiderman no way"
//	"S.W.A.T."            -> "swat"
//
// Fold is pure and idempotent.
func Fold(s string) string {
	s = sanitizeString(s)
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.ToLower(foldReplacer.Replace(s))

	in := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range in {
		switch {
		case isWordRune(r):
			b.WriteRune(r)
		case isJoiner(r):
			prevWord := i > 0 && isWordRune(in[i-1])
			nextWord := i+1 < len(in) && isWordRune(in[i+1])
			if !prevWord || !nextWord {
				b.WriteByte(' ')
			}
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FoldAll folds each value, dropping empties and duplicates while keeping order.
func FoldAll(values []string, exclude ...string) []string {
	seen := make(map[string]struct{}, len(values)+len(exclude))
	for _, e := range exclude {
		seen[e] = struct{}{}
	}
	var out []string
	for _, v := range values {
		f := Fold(v)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// LanguageCode converts a language tag to its base ISO 639-1 code where one exists.
//
//	"en" -> "en", "en-US" -> "en", "pt_BR" -> "pt", "deu" -> "de"
//
// Returns empty string for unrecognized values.
func LanguageCode(raw string) string {
	s := strings.TrimSpace(sanitizeString(raw))
	if s == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// sanitizeString removes null bytes, which some upstream payloads carry in strings.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
