package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform names a supported source site.
type Platform string

const (
	PlatformAliExpress  Platform = "aliexpress"
	PlatformAmazon      Platform = "amazon"
	PlatformEbay        Platform = "ebay"
	PlatformKickstarter Platform = "kickstarter"
	PlatformWadiz       Platform = "wadiz"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []Platform{
	PlatformAliExpress,
	PlatformAmazon,
	PlatformEbay,
	PlatformKickstarter,
	PlatformWadiz,
}

// ParsePlatform validates a platform name coming from configuration.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// IdentityKey uniquely determines one Product row.
// Key is the platform-native item id when known, otherwise the normalized source URL.
type IdentityKey struct {
	Platform Platform `json:"platform"`
	Key      string   `json:"key"`
}

func (k IdentityKey) String() string {
	return string(k.Platform) + ":" + k.Key
}

// Product is the canonical, platform-agnostic record every adapter converges to.
type Product struct {
	// ID is the storage identifier (uuid).
	ID string `json:"id"`

	SourcePlatform Platform `json:"source_platform"`

	// SourceItemID is empty for URL-only crawls.
	SourceItemID string `json:"source_item_id,omitempty"`
	SourceURL    string `json:"source_url"`

	// IdentityKey is the stable identity component (item id or normalized URL).
	IdentityKey string `json:"identity_key"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Slug        string `json:"slug"`

	ThumbnailURL string `json:"thumbnail_url"`
	VideoURL     string `json:"video_url,omitempty"`

	// DetailImages holds the post-filter image set, in page order.
	DetailImages []string `json:"detail_images"`

	// Price is expressed in Currency (source currency units).
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	Currency      string   `json:"currency"`

	PriceInDisplayCurrency float64 `json:"price_in_display_currency"`

	// ExternalRating is on a 0-5 scale.
	ExternalRating      *float64 `json:"external_rating,omitempty"`
	ExternalReviewCount int      `json:"external_review_count"`

	CategoryRef *string  `json:"category_ref,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	IsActive   bool `json:"is_active"`
	IsFeatured bool `json:"is_featured"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity returns the product's identity key.
func (p Product) Identity() IdentityKey {
	return IdentityKey{Platform: p.SourcePlatform, Key: p.IdentityKey}
}

// Review is a single customer review attached to a product.
type Review struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`

	Content         string `json:"content"`
	ReviewerName    string `json:"reviewer_name,omitempty"`
	ReviewerCountry string `json:"reviewer_country,omitempty"`

	// Rating is normalized to 0-5 regardless of the source scale.
	Rating     *float64   `json:"rating,omitempty"`
	ReviewDate *time.Time `json:"review_date,omitempty"`

	HelpfulCount       int  `json:"helpful_count"`
	IsVerifiedPurchase bool `json:"is_verified_purchase"`

	// SourceReviewID makes the review deduplicable within its product when present.
	SourceReviewID string `json:"source_review_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PriceHistory is an immutable snapshot of a product's prior price.
type PriceHistory struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	DiscountRate  *float64  `json:"discount_rate,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}
