package domain

import (
	"fmt"
	"strings"
)

// CrawlMode selects how candidate items are discovered.
type CrawlMode string

const (
	ModeDirectURL CrawlMode = "direct-url"
	ModeSearch    CrawlMode = "search"
	ModeCategory  CrawlMode = "category"
	ModePopular   CrawlMode = "popular"
	ModeAmount    CrawlMode = "amount"
	ModeRecent    CrawlMode = "recent"
	ModeClosing   CrawlMode = "closing"
)

var crawlModes = []CrawlMode{
	ModeDirectURL, ModeSearch, ModeCategory, ModePopular, ModeAmount, ModeRecent, ModeClosing,
}

// ParseCrawlMode validates a crawl mode coming from configuration.
func ParseCrawlMode(s string) (CrawlMode, error) {
	m := CrawlMode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range crawlModes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown crawl mode %q", s)
}

// CrawlParams carries the mode-specific parameters of a run.
type CrawlParams struct {
	URLs     []string
	Keyword  string
	Category string
	MaxItems int
}
