// Package imagefilter decides which scraped detail-image URLs are real product
// imagery. All decisions come from a Rules table; nothing here touches the network.
package imagefilter

import "regexp"

// Rules is the declarative rule table consumed by Filter.
type Rules struct {
	// BlockedHosts match the URL host exactly or as a parent domain
	// ("doubleclick.net" also blocks "stats.g.doubleclick.net").
	BlockedHosts []string

	// BlockedPathSubstrings match anywhere in the lower-cased path.
	BlockedPathSubstrings []string

	// BlockedPathTokens match whole alphanumeric tokens of the lower-cased path,
	// so "icon" blocks "/img/icon-cart.png" but not "/silicone-case.jpg".
	BlockedPathTokens []string

	// BlockedExtensions are lower-case file extensions including the dot.
	BlockedExtensions []string

	// MinDimension is the smallest acceptable width/height hint in pixels.
	// Zero disables the resolution rule.
	MinDimension int

	// DimensionParams are query parameter names carrying a pixel size.
	DimensionParams []string

	// DimensionPatterns extract pixel sizes embedded in the path. Every
	// capture group that parses as an integer counts as one dimension hint.
	DimensionPatterns []*regexp.Regexp
}

// DefaultRules returns the built-in table. MinDimension is left at zero: the
// threshold is deployment configuration, see config IMAGE_MIN_DIMENSION.
func DefaultRules() Rules {
	return Rules{
		BlockedHosts: []string{
			"doubleclick.net",
			"google-analytics.com",
			"googletagmanager.com",
			"googleadservices.com",
			"facebook.com",
			"facebook.net",
			"scorecardresearch.com",
			"bat.bing.com",
			"analytics.tiktok.com",
			"fls-na.amazon.com",
			"fls-eu.amazon.com",
			"pixel.wp.com",
			"rover.ebay.com",
			"gtm.alicdn.com",
		},
		BlockedPathSubstrings: []string{
			"/sprites/",
			"/icons/",
			"/logos/",
			"/badges/",
			"1x1.",
			"/pixel.gif",
			"tracking-pixel",
			"trackingpixel",
			"/p.gif",
			"/blank.gif",
			"/spacer.gif",
			"/images/g/01/x-locale/",
		},
		BlockedPathTokens: []string{
			"logo",
			"icon",
			"icons",
			"favicon",
			"sprite",
			"1x1",
			"spacer",
			"blank",
			"badge",
			"avatar",
			"loading",
			"placeholder",
			"emoji",
			"tracking",
			"transparent",
		},
		BlockedExtensions: []string{".svg", ".ico"},
		DimensionParams:   []string{"w", "h", "width", "height", "wid", "hei"},
		DimensionPatterns: []*regexp.Regexp{
			// AliExpress / generic CDN resize suffix: _50x50.jpg, _220x220q75.jpg
			regexp.MustCompile(`(?i)[_\-.](\d{2,4})x(\d{2,4})(?:q\d+)?(?:[._]|$)`),
			// Amazon media modifiers: ._SS40_.jpg, ._AC_SX679_.jpg
			regexp.MustCompile(`(?i)\._(?:[a-z]{2}_)*(?:sx|sy|ss|sl|ux|uy|us|ul|sr)(\d{2,4})`),
			// eBay thumbnail sizes: /s-l64.jpg
			regexp.MustCompile(`(?i)/s-l(\d{2,4})\.`),
		},
	}
}

// Extend appends extra blocklist entries, e.g. from configuration.
func (r Rules) Extend(hosts, pathSubstrings []string) Rules {
	r.BlockedHosts = append(append([]string(nil), r.BlockedHosts...), hosts...)
	r.BlockedPathSubstrings = append(append([]string(nil), r.BlockedPathSubstrings...), pathSubstrings...)
	return r
}
