// Package platform holds one extraction variant per supported site. Each
// variant maps a loaded page into a RawRecord; a dispatch table keyed by
// domain.Platform selects the variant for a run.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/browser"
	"prodcrawl/internal/domain"
)

// ErrExtraction marks a missing required field. The orchestrator treats it as
// a skippable per-item failure.
var ErrExtraction = errors.New("extraction failed")

// ExtractionError names the required field that could not be resolved.
type ExtractionError struct {
	Platform domain.Platform
	Field    string
	URL      string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: required field %q not found at %s", e.Platform, e.Field, e.URL)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

func missing(p domain.Platform, field, url string) error {
	return &ExtractionError{Platform: p, Field: field, URL: url}
}

// RawRecord is the site-shaped result of one extraction. Prices are in the
// source currency, images are unfiltered.
type RawRecord struct {
	Platform     domain.Platform
	SourceItemID string
	SourceURL    string

	Title        string
	Description  string
	ThumbnailURL string
	VideoURL     string
	Images       []string

	// Price is nil only together with PriceUnavailable.
	Price            *float64
	PriceUnavailable bool
	OriginalPrice    *float64
	Currency         string

	Rating      *float64
	ReviewCount int
	Tags        []string
}

// Adapter extracts a RawRecord from a loaded item page.
type Adapter interface {
	Platform() domain.Platform
	Extract(ctx context.Context, page browser.Page) (*RawRecord, error)
}

// ReviewExtractor is the optional review capability of an adapter.
type ReviewExtractor interface {
	ExtractReviews(ctx context.Context, page browser.Page, maxCount int) []domain.Review
}

// Listing is one page of a paginated discovery listing.
type Listing struct {
	ItemURLs []string
	HasNext  bool
}

// Lister is the discovery capability used by list-based crawl modes.
type Lister interface {
	Modes() []domain.CrawlMode
	ListingURL(mode domain.CrawlMode, params domain.CrawlParams, pageNo int) (string, error)
	ExtractListing(ctx context.Context, page browser.Page) (Listing, error)
}

// Registry dispatches by platform.
type Registry map[domain.Platform]Adapter

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewRegistry returns every built-in adapter. Adapters that decode embedded
// JSON payloads report malformed ones through logger at debug level.
func NewRegistry(logger logrus.FieldLogger) Registry {
	log := logger.WithField("component", "adapter")

	ali := NewAliExpress()
	ali.Log = log.WithField("platform", domain.PlatformAliExpress)
	ks := NewKickstarter()
	ks.Log = log.WithField("platform", domain.PlatformKickstarter)
	wz := NewWadiz()
	wz.Log = log.WithField("platform", domain.PlatformWadiz)

	r := Registry{}
	for _, a := range []Adapter{ali, NewAmazon(), NewEbay(), ks, wz} {
		r[a.Platform()] = a
	}
	return r
}

// DefaultRegistry returns every built-in adapter with logging discarded.
func DefaultRegistry() Registry {
	return NewRegistry(discardLogger())
}

// Get returns the adapter registered for p.
func (r Registry) Get(p domain.Platform) (Adapter, error) {
	a, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", p)
	}
	return a, nil
}

// SupportedModes lists the crawl modes the adapter can drive. direct-url is
// always supported.
func SupportedModes(a Adapter) []domain.CrawlMode {
	modes := []domain.CrawlMode{domain.ModeDirectURL}
	if l, ok := a.(Lister); ok {
		modes = append(modes, l.Modes()...)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// Supports reports whether a can run mode.
func Supports(a Adapter, mode domain.CrawlMode) bool {
	for _, m := range SupportedModes(a) {
		if m == mode {
			return true
		}
	}
	return false
}
