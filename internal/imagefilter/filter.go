package imagefilter

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode"
)

// Filter applies a Rules table. It is safe for concurrent use.
type Filter struct {
	rules  Rules
	tokens map[string]struct{}
	params map[string]struct{}
}

// New builds a Filter over the given rule table.
func New(rules Rules) *Filter {
	f := &Filter{
		rules:  rules,
		tokens: make(map[string]struct{}, len(rules.BlockedPathTokens)),
		params: make(map[string]struct{}, len(rules.DimensionParams)),
	}
	for _, t := range rules.BlockedPathTokens {
		f.tokens[strings.ToLower(t)] = struct{}{}
	}
	for _, p := range rules.DimensionParams {
		f.params[strings.ToLower(p)] = struct{}{}
	}
	return f
}

// IsValidDetailImage reports whether raw looks like a real product image.
func (f *Filter) IsValidDetailImage(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || f.blockedHost(host) {
		return false
	}

	p := strings.ToLower(u.Path)
	if f.blockedPath(p) {
		return false
	}
	if f.belowMinDimension(p, u.Query()) {
		return false
	}
	return true
}

// FilterDetailImages keeps the valid URLs of urls in their original order.
func (f *Filter) FilterDetailImages(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if f.IsValidDetailImage(u) {
			out = append(out, u)
		}
	}
	return out
}

func (f *Filter) blockedHost(host string) bool {
	for _, b := range f.rules.BlockedHosts {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

func (f *Filter) blockedPath(p string) bool {
	for _, s := range f.rules.BlockedPathSubstrings {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && strings.Contains(p, s) {
			return true
		}
	}

	ext := path.Ext(p)
	for _, e := range f.rules.BlockedExtensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}

	for _, tok := range strings.FieldsFunc(p, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if _, ok := f.tokens[tok]; ok {
			return true
		}
	}
	return false
}

// belowMinDimension reports whether any size hint in the URL is smaller than
// the configured minimum.
func (f *Filter) belowMinDimension(p string, q url.Values) bool {
	min := f.rules.MinDimension
	if min <= 0 {
		return false
	}
	for _, d := range f.dimensionHints(p, q) {
		if d < min {
			return true
		}
	}
	return false
}

func (f *Filter) dimensionHints(p string, q url.Values) []int {
	var hints []int
	for key, values := range q {
		if _, ok := f.params[strings.ToLower(key)]; !ok {
			continue
		}
		for _, v := range values {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				hints = append(hints, n)
			}
		}
	}
	for _, re := range f.rules.DimensionPatterns {
		for _, m := range re.FindAllStringSubmatch(p, -1) {
			for _, g := range m[1:] {
				if n, err := strconv.Atoi(g); err == nil && n > 0 {
					hints = append(hints, n)
				}
			}
		}
	}
	return hints
}
