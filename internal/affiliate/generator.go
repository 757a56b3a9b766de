package affiliate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"prodcrawl/internal/domain"
)

// Partner is the subset of Client the generator needs.
type Partner interface {
	Search(ctx context.Context, p SearchParams) (*SearchResult, error)
	GenerateLink(ctx context.Context, productURL string) (*PromotionLink, error)
	TrackingID() string
}

// Store persists partner listings and affiliate links.
type Store interface {
	FindAffiliateLink(ctx context.Context, productID string) (*domain.AffiliateLink, error)
	SaveAffiliateLink(ctx context.Context, link domain.AffiliateLink) (bool, error)
	UpsertAffiliateProducts(ctx context.Context, items []domain.AffiliateProduct) (int, error)
}

// Generator mints at most one AffiliateLink per product and mirrors partner
// search results into storage.
type Generator struct {
	partner Partner
	store   Store
	log     logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// NewGenerator creates a Generator.
func NewGenerator(partner Partner, store Store, logger logrus.FieldLogger) *Generator {
	return &Generator{
		partner: partner,
		store:   store,
		log:     logger.WithField("component", "affiliate"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// EnsureLink returns the product's affiliate link, minting it on first use.
// created is false when a link already existed; existing links are never
// overwritten.
func (g *Generator) EnsureLink(ctx context.Context, p domain.Product) (link *domain.AffiliateLink, created bool, err error) {
	existing, err := g.store.FindAffiliateLink(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	promo, err := g.partner.GenerateLink(ctx, p.SourceURL)
	if err != nil {
		return nil, false, err
	}

	l := domain.AffiliateLink{
		ID:            g.newID(),
		ProductID:     p.ID,
		LongURL:       p.SourceURL,
		PromotionLink: promo.PromotionLink,
		SourceValue:   promo.SourceValue,
		TrackingID:    g.partner.TrackingID(),
		CreatedAt:     g.now(),
	}
	saved, err := g.store.SaveAffiliateLink(ctx, l)
	if err != nil {
		return nil, false, err
	}
	if !saved {
		// Another writer got there first; theirs stands.
		existing, err := g.store.FindAffiliateLink(ctx, p.ID)
		return existing, false, err
	}
	return &l, true, nil
}

// LinkReport summarizes a LinkMissing pass.
type LinkReport struct {
	Created  int
	Existing int
	Failed   int
}

// LinkMissing ensures a link for every product. Per-product partner errors are
// logged and counted; an exhausted rate limit stops the pass since the
// remaining calls would be throttled too.
func (g *Generator) LinkMissing(ctx context.Context, products []domain.Product) (LinkReport, error) {
	var rep LinkReport
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		_, created, err := g.EnsureLink(ctx, p)
		switch {
		case err == nil && created:
			rep.Created++
		case err == nil:
			rep.Existing++
		case IsRateLimited(err):
			rep.Failed++
			return rep, err
		default:
			rep.Failed++
			g.log.WithError(err).WithFields(logrus.Fields{"product_id": p.ID, "url": p.SourceURL}).Warn("Affiliate link generation failed")
		}
	}
	return rep, nil
}

// SyncProducts pages through a partner search and upserts every listing.
// It stops early when a page comes back empty or the total is reached.
func (g *Generator) SyncProducts(ctx context.Context, params SearchParams, pages int) (int, error) {
	if pages <= 0 {
		pages = 1
	}
	if params.PageNo <= 0 {
		params.PageNo = 1
	}
	stored, seen := 0, 0
	for i := 0; i < pages; i++ {
		res, err := g.partner.Search(ctx, params)
		if err != nil {
			return stored, fmt.Errorf("search page %d: %w", params.PageNo, err)
		}
		if len(res.Products) == 0 {
			break
		}
		n, err := g.store.UpsertAffiliateProducts(ctx, res.Products)
		if err != nil {
			return stored, err
		}
		stored += n
		seen += len(res.Products)
		g.log.WithFields(logrus.Fields{"page": params.PageNo, "stored": n, "total": res.TotalCount}).Info("Affiliate search page synced")
		if res.TotalCount > 0 && seen >= res.TotalCount {
			break
		}
		params.PageNo++
	}
	return stored, nil
}
