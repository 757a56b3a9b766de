package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds the base slug in runes, before any disambiguator.
const MaxSlugLength = 80

// foldLatinDiacritics drops combining marks attached to Latin letters only.
// Marks on other scripts (kana dakuten) carry meaning and are recomposed.
func foldLatinDiacritics(s string) string {
	var b strings.Builder
	latinBase := false
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			if !latinBase {
				b.WriteRune(r)
			}
			continue
		}
		latinBase = unicode.Is(unicode.Latin, r)
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// Slugify lower-cases title, strips Latin diacritics, collapses every run of
// non-letter, non-digit runes into a single "-" and truncates to maxLen runes.
// Letters outside Latin (Hangul, CJK, kana) are kept.
func Slugify(title string, maxLen int) string {
	folded := foldLatinDiacritics(title)

	var b strings.Builder
	pendingSep := false
	n := 0
	for _, r := range strings.ToLower(folded) {
		if unicode.Is(unicode.Mn, r) {
			// A kept mark belongs to the letter before it.
			if b.Len() > 0 && !pendingSep && (maxLen <= 0 || n < maxLen) {
				b.WriteRune(r)
				n++
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSep = b.Len() > 0
			continue
		}
		if maxLen > 0 && n >= maxLen {
			break
		}
		if pendingSep {
			if maxLen > 0 && n+1 >= maxLen {
				break
			}
			b.WriteByte('-')
			n++
			pendingSep = false
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
