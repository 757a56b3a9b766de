package platform

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"prodcrawl/internal/browser"
)

var (
	numberRe   = regexp.MustCompile(`\d[\d.,\s]*\d|\d`)
	isoCodeRe  = regexp.MustCompile(`\b([A-Z]{3})\b`)
	countRe    = regexp.MustCompile(`(\d[\d,.]*)\s*([kKmM]\b|천|만)?`)
	floatRe    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	knownCodes = map[string]bool{
		"USD": true, "EUR": true, "GBP": true, "KRW": true, "JPY": true, "CAD": true,
		"AUD": true, "HKD": true, "CNY": true, "CHF": true, "SGD": true, "NZD": true,
		"SEK": true, "NOK": true, "DKK": true, "MXN": true, "PLN": true,
	}
)

// currencySymbols is checked in order; longer prefixes first.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US $", "USD"}, {"US$", "USD"},
	{"C $", "CAD"}, {"CA $", "CAD"}, {"CA$", "CAD"}, {"C$", "CAD"},
	{"AU $", "AUD"}, {"AU$", "AUD"}, {"A$", "AUD"},
	{"HK$", "HKD"}, {"NZ$", "NZD"}, {"S$", "SGD"},
	{"₩", "KRW"}, {"원", "KRW"},
	{"€", "EUR"}, {"£", "GBP"}, {"¥", "JPY"},
	{"$", "USD"},
}

// parsePrice reads the first amount in text and the currency it names. For
// ranges ("$10.00 - $15.00") the lower bound wins.
func parsePrice(text string) (amount float64, currency string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}
	m := numberRe.FindString(text)
	if m == "" {
		return 0, "", false
	}
	amount, ok = parseAmount(joinSpacedGroups(m))
	if !ok {
		return 0, "", false
	}
	return amount, detectCurrency(text), true
}

// joinSpacedGroups keeps only the leading number of a match. A space counts as
// a thousands separator when exactly three digits follow it and no decimal
// mark came before it, so "12 900" stays one amount but "12.99 15.99" does not.
func joinSpacedGroups(m string) string {
	fields := strings.Fields(m)
	out := fields[0]
	for _, f := range fields[1:] {
		if strings.ContainsAny(out, ".,") || !leadingThreeDigits(f) {
			break
		}
		out += f
	}
	return out
}

func leadingThreeDigits(s string) bool {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n == 3
}

func detectCurrency(text string) string {
	for _, m := range isoCodeRe.FindAllStringSubmatch(text, -1) {
		if knownCodes[m[1]] {
			return m[1]
		}
	}
	for _, cs := range currencySymbols {
		if strings.Contains(text, cs.symbol) {
			return cs.code
		}
	}
	return ""
}

// parseAmount interprets thousands and decimal separators. With both "," and
// "." present the last one is the decimal mark; a lone separator followed by
// exactly three digits is a thousands separator.
func parseAmount(s string) (float64, bool) {
	s = strings.Join(strings.Fields(s), "")
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0, false
	}
	return v, true
}

// parseCount reads counts like "1,234 ratings", "2.5K sold" or "3천명".
func parseCount(text string) int {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	mult := 1.0
	switch m[2] {
	case "k", "K", "천":
		mult = 1_000
	case "m", "M":
		mult = 1_000_000
	case "만":
		mult = 10_000
	}
	raw := m[1]
	if mult == 1 {
		raw = strings.NewReplacer(",", "", ".", "").Replace(raw)
	} else {
		raw = strings.ReplaceAll(raw, ",", "")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(v * mult))
}

// parseFloat reads the first decimal number in text, accepting "," as the
// decimal mark ("4,5 von 5").
func parseFloat(text string) (float64, bool) {
	m := floatRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeRating maps value on a 0..scale range onto 0..5.
func NormalizeRating(value, scale float64) *float64 {
	if scale <= 0 || math.IsNaN(value) {
		return nil
	}
	v := value * 5 / scale
	if v < 0 {
		v = 0
	}
	if v > 5 {
		v = 5
	}
	v = math.Round(v*100) / 100
	return &v
}

// absURL resolves ref against base. Protocol-relative refs get https.
func absURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// absURLs resolves and de-duplicates refs, keeping first occurrences.
func absURLs(base string, refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		u := absURL(base, ref)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// firstText returns the first non-empty text among selectors.
func firstText(n browser.Node, selectors ...string) string {
	for _, s := range selectors {
		if t, ok := n.Text(s); ok {
			return t
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute among selectors.
func firstAttr(n browser.Node, name string, selectors ...string) string {
	for _, s := range selectors {
		if v, ok := n.Attr(s, name); ok {
			return v
		}
	}
	return ""
}

func floatPtr(v float64) *float64 { return &v }

// uniqueTags trims, drops empties and de-duplicates case-insensitively.
func uniqueTags(tags ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
