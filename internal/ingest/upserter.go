// Package ingest turns raw extraction results into stored products: images
// are filtered, prices converted, identity resolved and the record upserted.
package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"prodcrawl/internal/currency"
	"prodcrawl/internal/domain"
	"prodcrawl/internal/metrics"
	"prodcrawl/internal/storage"
)

// Outcome says which path an upsert took.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
)

// Candidate is a fully normalized product awaiting persistence. ID,
// CreatedAt and UpdatedAt of Product are assigned by the Upserter.
type Candidate struct {
	Product domain.Product
	// PriceKnown is false when the page carried an explicit price-unavailable marker.
	PriceKnown bool
}

// Result describes one upsert.
type Result struct {
	Outcome       Outcome
	Product       *domain.Product
	PriceChanged  bool
	ReviewsStored int
}

// Upserter writes candidates through the insert or update path.
type Upserter struct {
	repo  storage.Repository
	now   func() time.Time
	newID func() string
	log   logrus.FieldLogger
}

// NewUpserter creates an Upserter over repo.
func NewUpserter(repo storage.Repository, logger logrus.FieldLogger) *Upserter {
	return &Upserter{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		log:   logger.WithField("component", "upserter"),
	}
}

// DiscountRate returns (original-price)/original as a percentage with one
// decimal, or nil when there is no discount.
func DiscountRate(original *float64, price float64) *float64 {
	if original == nil || *original <= 0 || *original <= price {
		return nil
	}
	v := math.Round((*original-price) / *original * 1000) / 10
	return &v
}

// Upsert inserts c when existing is nil and updates existing otherwise.
func (u *Upserter) Upsert(ctx context.Context, c Candidate, reviews []domain.Review, existing *domain.Product) (Result, error) {
	now := u.now()
	if existing == nil {
		return u.insert(ctx, c, reviews, now)
	}
	return u.update(ctx, c, reviews, existing, now)
}

func (u *Upserter) stamp(reviews []domain.Review, productID string, now time.Time) []domain.Review {
	out := make([]domain.Review, 0, len(reviews))
	for _, rv := range reviews {
		rv.ID = u.newID()
		rv.ProductID = productID
		rv.CreatedAt = now
		out = append(out, rv)
	}
	return out
}

func (u *Upserter) insert(ctx context.Context, c Candidate, reviews []domain.Review, now time.Time) (Result, error) {
	p := c.Product
	p.ID = u.newID()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.IsActive = true
	if !c.PriceKnown {
		p.Price = 0
		p.PriceInDisplayCurrency = 0
	}
	if p.DetailImages == nil {
		p.DetailImages = []string{}
	}

	n, err := u.repo.InsertProduct(ctx, &p, u.stamp(reviews, p.ID, now))
	if err != nil {
		return Result{}, fmt.Errorf("insert %s: %w", p.Identity(), err)
	}
	return Result{Outcome: OutcomeInserted, Product: &p, ReviewsStored: n}, nil
}

// priceChanged compares in source currency units at the currency's precision.
// A stored price of zero is an unknown price, not a baseline.
func priceChanged(old *domain.Product, price float64, cur string) bool {
	if old.Price <= 0 {
		return false
	}
	if old.Currency != cur {
		return true
	}
	return currency.Round(old.Price, cur) != currency.Round(price, cur)
}

func (u *Upserter) update(ctx context.Context, c Candidate, reviews []domain.Review, existing *domain.Product, now time.Time) (Result, error) {
	p := *existing
	in := c.Product

	if in.SourceItemID != "" {
		p.SourceItemID = in.SourceItemID
	}
	p.SourceURL = in.SourceURL
	p.Title = in.Title
	p.Description = in.Description
	p.ThumbnailURL = in.ThumbnailURL
	p.VideoURL = in.VideoURL
	p.DetailImages = in.DetailImages
	if p.DetailImages == nil {
		p.DetailImages = []string{}
	}
	p.ExternalRating = in.ExternalRating
	p.ExternalReviewCount = in.ExternalReviewCount
	p.Tags = in.Tags
	if in.CategoryRef != nil {
		p.CategoryRef = in.CategoryRef
	}
	if in.IsFeatured {
		p.IsFeatured = true
	}
	p.IsActive = true
	p.UpdatedAt = now

	var history *domain.PriceHistory
	if c.PriceKnown {
		if priceChanged(existing, in.Price, in.Currency) {
			history = &domain.PriceHistory{
				ID:            u.newID(),
				ProductID:     existing.ID,
				Price:         existing.Price,
				OriginalPrice: existing.OriginalPrice,
				DiscountRate:  DiscountRate(existing.OriginalPrice, existing.Price),
				RecordedAt:    now,
			}
		}
		p.Price = in.Price
		p.OriginalPrice = in.OriginalPrice
		p.Currency = in.Currency
		p.PriceInDisplayCurrency = in.PriceInDisplayCurrency
	}

	// Anonymous reviews cannot be matched against stored ones, so only the
	// insert path stores them.
	var keyed []domain.Review
	for _, rv := range reviews {
		if rv.SourceReviewID != "" {
			keyed = append(keyed, rv)
		}
	}

	n, err := u.repo.UpdateProduct(ctx, &p, history, u.stamp(keyed, p.ID, now))
	if err != nil {
		return Result{}, fmt.Errorf("update %s: %w", p.Identity(), err)
	}
	if history != nil {
		metrics.RecordPriceChange(string(p.SourcePlatform))
		u.log.WithFields(logrus.Fields{
			"identity": p.Identity().String(),
			"old":      existing.Price,
			"new":      p.Price,
			"currency": p.Currency,
		}).Info("Price changed")
	}
	return Result{Outcome: OutcomeUpdated, Product: &p, PriceChanged: history != nil, ReviewsStored: n}, nil
}
