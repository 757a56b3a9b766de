package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/domain"
	"prodcrawl/internal/identity"
	"prodcrawl/internal/platform"
)

// ImageFilter drops non-product images.
type ImageFilter interface {
	FilterDetailImages(urls []string) []string
}

// Converter converts source prices into the display currency.
type Converter interface {
	ToDisplayCurrency(ctx context.Context, amount float64, sourceCurrency string) (float64, error)
}

// Options are per-run attributes applied to every ingested product.
type Options struct {
	Featured    bool
	CategoryRef string
}

// Pipeline runs filter, convert, resolve and upsert for one raw record.
type Pipeline struct {
	filter   ImageFilter
	fx       Converter
	resolver *identity.Resolver
	upserter *Upserter
	opts     Options
	log      logrus.FieldLogger
}

// NewPipeline wires the ingestion stages.
func NewPipeline(filter ImageFilter, fx Converter, resolver *identity.Resolver, upserter *Upserter, opts Options, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		filter:   filter,
		fx:       fx,
		resolver: resolver,
		upserter: upserter,
		opts:     opts,
		log:      logger.WithField("component", "ingest"),
	}
}

// Ingest stores rec and its reviews. Errors wrapping platform.ErrExtraction
// or currency.ErrRateUnavailable are per-item and skippable.
func (p *Pipeline) Ingest(ctx context.Context, rec *platform.RawRecord, reviews []domain.Review) (Result, error) {
	res, err := p.resolver.ResolveIdentity(rec)
	if err != nil {
		return Result{}, err
	}
	log := p.log.WithFields(logrus.Fields{"platform": rec.Platform, "identity": res.Key.String()})

	if !rec.PriceUnavailable && rec.Price == nil {
		return Result{}, &platform.ExtractionError{Platform: rec.Platform, Field: "price", URL: rec.SourceURL}
	}

	images := p.filter.FilterDetailImages(rec.Images)
	if dropped := len(rec.Images) - len(images); dropped > 0 {
		log.WithField("dropped", dropped).Debug("Filtered detail images")
	}

	c := Candidate{
		PriceKnown: !rec.PriceUnavailable,
		Product: domain.Product{
			SourcePlatform:      rec.Platform,
			SourceItemID:        strings.TrimSpace(rec.SourceItemID),
			SourceURL:           rec.SourceURL,
			IdentityKey:         res.Key.Key,
			Title:               strings.TrimSpace(rec.Title),
			Description:         strings.TrimSpace(rec.Description),
			ThumbnailURL:        rec.ThumbnailURL,
			VideoURL:            rec.VideoURL,
			DetailImages:        images,
			OriginalPrice:       rec.OriginalPrice,
			Currency:            strings.ToUpper(rec.Currency),
			ExternalRating:      rec.Rating,
			ExternalReviewCount: rec.ReviewCount,
			Tags:                rec.Tags,
			IsFeatured:          p.opts.Featured,
		},
	}
	if p.opts.CategoryRef != "" {
		ref := p.opts.CategoryRef
		c.Product.CategoryRef = &ref
	}
	if c.PriceKnown {
		c.Product.Price = *rec.Price
		display, err := p.fx.ToDisplayCurrency(ctx, *rec.Price, c.Product.Currency)
		if err != nil {
			return Result{}, fmt.Errorf("convert price for %s: %w", res.Key, err)
		}
		c.Product.PriceInDisplayCurrency = display
	}

	existing, err := p.resolver.LookupExisting(ctx, res.Key)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		c.Product.Slug = existing.Slug
	} else {
		slug, err := p.resolver.UniqueSlug(ctx, res.Key, res.SlugCandidate)
		if err != nil {
			return Result{}, err
		}
		c.Product.Slug = slug
	}

	return p.upserter.Upsert(ctx, c, reviews, existing)
}
