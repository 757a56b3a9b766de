package domain

import "time"

// AffiliateLink represents a partner-issued trackable link for one product.
type AffiliateLink struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`

	// LongURL is the raw product URL the link was minted for.
	LongURL string `json:"long_url"`

	// PromotionLink is the trackable URL substituted for LongURL.
	PromotionLink string `json:"promotion_link"`

	// SourceValue is the partner's echo of the requested URL.
	SourceValue string `json:"source_value,omitempty"`
	TrackingID  string `json:"tracking_id,omitempty"`

	// Counters are only ever advanced by click/conversion events, never by the crawler.
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`

	CreatedAt     time.Time  `json:"created_at"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
}

// AffiliateProduct is one listing returned by the partner product search.
type AffiliateProduct struct {
	// PartnerProductID is the partner's product id and the row key.
	PartnerProductID string `json:"partner_product_id"`

	Title         string   `json:"title"`
	DetailURL     string   `json:"detail_url"`
	ImageURL      string   `json:"image_url,omitempty"`
	PromotionLink string   `json:"promotion_link,omitempty"`
	ShopURL       string   `json:"shop_url,omitempty"`
	SalePrice     float64  `json:"sale_price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	Currency      string   `json:"currency"`

	// CommissionRate is a percentage, e.g. 7.5.
	CommissionRate float64 `json:"commission_rate"`

	// PositiveRate is the partner's positive feedback percentage.
	PositiveRate *float64 `json:"positive_rate,omitempty"`
	Volume       int      `json:"volume"`
	CategoryID   string   `json:"category_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
