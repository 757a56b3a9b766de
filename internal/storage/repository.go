package storage

import (
	"context"
	"errors"

	"prodcrawl/internal/domain"
)

var (
	// ErrDuplicateIdentity is returned by InsertProduct when another writer
	// stored the same identity key between lookup and insert.
	ErrDuplicateIdentity = errors.New("product identity already stored")
	// ErrSlugTaken is returned when the slug belongs to a different product.
	ErrSlugTaken = errors.New("slug already taken")
)

// Repository defines the interface for data storage operations.
// Lookups return nil, nil when nothing matches.
type Repository interface {
	// FindProduct returns the product stored under key.
	FindProduct(ctx context.Context, key domain.IdentityKey) (*domain.Product, error)

	// SlugOwner returns the identity key string of the product holding slug,
	// or "" if the slug is free.
	SlugOwner(ctx context.Context, slug string) (string, error)

	// InsertProduct creates the product and its reviews. It returns the
	// number of reviews actually stored.
	InsertProduct(ctx context.Context, p *domain.Product, reviews []domain.Review) (int, error)

	// UpdateProduct overwrites the product in place, appends history when
	// non-nil and adds reviews not already present. Existing reviews are never
	// removed.
	UpdateProduct(ctx context.Context, p *domain.Product, history *domain.PriceHistory, reviews []domain.Review) (int, error)

	ListProducts(ctx context.Context, platform domain.Platform, limit int) ([]domain.Product, error)
	ListReviews(ctx context.Context, productID string) ([]domain.Review, error)
	// ListPriceHistory returns entries oldest first.
	ListPriceHistory(ctx context.Context, productID string) ([]domain.PriceHistory, error)

	FindAffiliateLink(ctx context.Context, productID string) (*domain.AffiliateLink, error)
	// SaveAffiliateLink stores link unless the product already has one; it
	// reports whether link was stored.
	SaveAffiliateLink(ctx context.Context, link domain.AffiliateLink) (bool, error)
	UpsertAffiliateProducts(ctx context.Context, items []domain.AffiliateProduct) (int, error)
	ListAffiliateProducts(ctx context.Context) ([]domain.AffiliateProduct, error)

	// Close gracefully shuts down the repository connection.
	Close() error
}
