package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodcrawl/internal/domain"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProduct(id string, platform domain.Platform, key, slug string) *domain.Product {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
	}
	orig := 59.99
	return &domain.Product{
		ID:                     id,
		SourcePlatform:         platform,
		SourceItemID:           key,
		SourceURL:              "https://example.com/item/" + key,
		IdentityKey:            key,
		Title:                  "Test product " + key,
		Slug:                   slug,
		DetailImages:           []string{"https://cdn.example.com/a.jpg"},
		Price:                  59.99,
		OriginalPrice:          &orig,
		Currency:               "USD",
		PriceInDisplayCurrency: 80000,
		Tags:                   []string{"audio"},
		IsActive:               true,
		CreatedAt:              baseTime,
		UpdatedAt:              baseTime,
	}
}

func newTestReview(sourceID, content string) domain.Review {
	return domain.Review{
		ID:             uuid.NewString(),
		Content:        content,
		SourceReviewID: sourceID,
		CreatedAt:      baseTime,
	}
}

// runRepositoryContract exercises behaviour every backend must share.
func runRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("lookup of unknown identity returns nil", func(t *testing.T) {
		p, err := repo.FindProduct(ctx, domain.IdentityKey{Platform: domain.PlatformAmazon, Key: "nope"})
		require.NoError(t, err)
		assert.Nil(t, p)

		owner, err := repo.SlugOwner(ctx, "no-such-slug")
		require.NoError(t, err)
		assert.Empty(t, owner)
	})

	p := newTestProduct("contract-1", domain.PlatformAliExpress, "1005", "earbuds")

	t.Run("insert stores product, indexes and deduplicated reviews", func(t *testing.T) {
		reviews := []domain.Review{
			newTestReview("r1", "great"),
			newTestReview("r1", "great again"),
			newTestReview("", "anonymous one"),
			newTestReview("", "anonymous two"),
		}
		n, err := repo.InsertProduct(ctx, p, reviews)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		got, err := repo.FindProduct(ctx, p.Identity())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, p.Title, got.Title)
		assert.Equal(t, p.DetailImages, got.DetailImages)
		assert.InDelta(t, 59.99, *got.OriginalPrice, 0.0001)

		owner, err := repo.SlugOwner(ctx, "earbuds")
		require.NoError(t, err)
		assert.Equal(t, p.Identity().String(), owner)

		stored, err := repo.ListReviews(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 3)
	})

	t.Run("second insert of same identity is rejected", func(t *testing.T) {
		dup := newTestProduct("contract-dup", domain.PlatformAliExpress, "1005", "earbuds-2")
		_, err := repo.InsertProduct(ctx, dup, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateIdentity))
	})

	t.Run("insert with a slug owned by another identity is rejected", func(t *testing.T) {
		other := newTestProduct("contract-other", domain.PlatformAmazon, "B0X", "earbuds")
		_, err := repo.InsertProduct(ctx, other, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSlugTaken))
	})

	t.Run("update overwrites, appends history and only new reviews", func(t *testing.T) {
		updated := *p
		updated.Title = "Earbuds v2"
		updated.Price = 29.99
		updated.UpdatedAt = baseTime.Add(24 * time.Hour)
		rate := 50.0
		history := &domain.PriceHistory{
			ID:            uuid.NewString(),
			Price:         59.99,
			OriginalPrice: p.OriginalPrice,
			DiscountRate:  &rate,
			RecordedAt:    updated.UpdatedAt,
		}

		n, err := repo.UpdateProduct(ctx, &updated, history, []domain.Review{
			newTestReview("r1", "great"),
			newTestReview("r2", "new one"),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := repo.FindProduct(ctx, p.Identity())
		require.NoError(t, err)
		assert.Equal(t, "Earbuds v2", got.Title)
		assert.InDelta(t, 29.99, got.Price, 0.0001)

		hist, err := repo.ListPriceHistory(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.InDelta(t, 59.99, hist[0].Price, 0.0001)
		assert.Equal(t, p.ID, hist[0].ProductID)
		assert.True(t, hist[0].RecordedAt.Equal(updated.UpdatedAt))

		stored, err := repo.ListReviews(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 4)
	})

	t.Run("list products filters by platform", func(t *testing.T) {
		second := newTestProduct("contract-2", domain.PlatformKickstarter, "42", "synth")
		second.CreatedAt = baseTime.Add(time.Hour)
		_, err := repo.InsertProduct(ctx, second, nil)
		require.NoError(t, err)

		all, err := repo.ListProducts(ctx, "", 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(all), 2)

		ks, err := repo.ListProducts(ctx, domain.PlatformKickstarter, 10)
		require.NoError(t, err)
		require.Len(t, ks, 1)
		assert.Equal(t, second.ID, ks[0].ID)

		one, err := repo.ListProducts(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, one, 1)
	})

	t.Run("affiliate link is created once", func(t *testing.T) {
		got, err := repo.FindAffiliateLink(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		link := domain.AffiliateLink{
			ID:            uuid.NewString(),
			ProductID:     p.ID,
			LongURL:       p.SourceURL,
			PromotionLink: "https://s.click.example.com/e/abc",
			CreatedAt:     baseTime,
		}
		saved, err := repo.SaveAffiliateLink(ctx, link)
		require.NoError(t, err)
		assert.True(t, saved)

		link.ID = uuid.NewString()
		link.PromotionLink = "https://s.click.example.com/e/other"
		saved, err = repo.SaveAffiliateLink(ctx, link)
		require.NoError(t, err)
		assert.False(t, saved)

		got, err = repo.FindAffiliateLink(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "https://s.click.example.com/e/abc", got.PromotionLink)
	})

	t.Run("affiliate products upsert by partner id", func(t *testing.T) {
		item := domain.AffiliateProduct{
			PartnerProductID: "1005006",
			Title:            "Cable",
			DetailURL:        "https://www.aliexpress.com/item/1005006.html",
			SalePrice:        3.5,
			Currency:         "USD",
			CommissionRate:   7,
			UpdatedAt:        baseTime,
		}
		n, err := repo.UpsertAffiliateProducts(ctx, []domain.AffiliateProduct{item, {Title: "no id"}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		item.SalePrice = 2.99
		_, err = repo.UpsertAffiliateProducts(ctx, []domain.AffiliateProduct{item})
		require.NoError(t, err)

		items, err := repo.ListAffiliateProducts(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.InDelta(t, 2.99, items[0].SalePrice, 0.0001)
	})
}
