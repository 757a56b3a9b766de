package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"prodcrawl/internal/domain"
)

// PostgresRepository implements the Repository interface on PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// NewPostgresRepository connects, verifies the connection and applies migrations.
func NewPostgresRepository(ctx context.Context, dsn string, maxConns int, logger logrus.FieldLogger) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	logger.Info("PostgreSQL connected and migrated")

	return &PostgresRepository{pool: pool, log: logger.WithField("component", "repository")}, nil
}

func (r *PostgresRepository) Close() error {
	r.log.Info("Closing PostgreSQL pool...")
	r.pool.Close()
	return nil
}

const productColumns = `id, source_platform, source_item_id, source_url, identity_key, title, description,
	slug, thumbnail_url, video_url, detail_images, price, original_price, currency,
	price_in_display_currency, external_rating, external_review_count, category_ref, tags,
	is_active, is_featured, created_at, updated_at`

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p             domain.Product
		platform      string
		itemID, video *string
		images, tags  []string
	)
	err := row.Scan(&p.ID, &platform, &itemID, &p.SourceURL, &p.IdentityKey, &p.Title, &p.Description,
		&p.Slug, &p.ThumbnailURL, &video, &images, &p.Price, &p.OriginalPrice, &p.Currency,
		&p.PriceInDisplayCurrency, &p.ExternalRating, &p.ExternalReviewCount, &p.CategoryRef, &tags,
		&p.IsActive, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.SourcePlatform = domain.Platform(platform)
	p.SourceItemID = derefString(itemID)
	p.VideoURL = derefString(video)
	p.DetailImages = images
	if p.DetailImages == nil {
		p.DetailImages = []string{}
	}
	p.Tags = tags
	return &p, nil
}

func productArgs(p *domain.Product) []any {
	images := p.DetailImages
	if images == nil {
		images = []string{}
	}
	return []any{p.ID, string(p.SourcePlatform), nullString(p.SourceItemID), p.SourceURL, p.IdentityKey,
		p.Title, p.Description, p.Slug, p.ThumbnailURL, nullString(p.VideoURL), images, p.Price,
		p.OriginalPrice, p.Currency, p.PriceInDisplayCurrency, p.ExternalRating, p.ExternalReviewCount,
		p.CategoryRef, nonNilTags(p.Tags), p.IsActive, p.IsFeatured, p.CreatedAt, p.UpdatedAt}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func isSlugViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "products_slug_uq"
}

func (r *PostgresRepository) FindProduct(ctx context.Context, key domain.IdentityKey) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products
		WHERE source_platform = $1 AND identity_key = $2`, string(key.Platform), key.Key)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", key, err)
	}
	return p, nil
}

func (r *PostgresRepository) SlugOwner(ctx context.Context, slug string) (string, error) {
	var platform, key string
	err := r.pool.QueryRow(ctx, `SELECT source_platform, identity_key FROM products WHERE slug = $1`, slug).
		Scan(&platform, &key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read slug %q: %w", slug, err)
	}
	return domain.IdentityKey{Platform: domain.Platform(platform), Key: key}.String(), nil
}

func insertReviews(ctx context.Context, tx pgx.Tx, productID string, reviews []domain.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for _, rv := range reviews {
		b.Queue(`INSERT INTO reviews
			(id, product_id, content, reviewer_name, reviewer_country, rating, review_date,
			 helpful_count, is_verified_purchase, source_review_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (product_id, source_review_id) DO NOTHING`,
			rv.ID, productID, rv.Content, nullString(rv.ReviewerName), nullString(rv.ReviewerCountry),
			rv.Rating, rv.ReviewDate, rv.HelpfulCount, rv.IsVerifiedPurchase,
			nullString(rv.SourceReviewID), rv.CreatedAt)
	}
	br := tx.SendBatch(ctx, b)
	total := 0
	for range reviews {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return total, err
		}
		total += int(tag.RowsAffected())
	}
	return total, br.Close()
}

func (r *PostgresRepository) InsertProduct(ctx context.Context, p *domain.Product, reviews []domain.Review) (int, error) {
	log := r.log.WithFields(logrus.Fields{"identity": p.Identity().String(), "slug": p.Slug})

	var stored int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO products (`+productColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
			ON CONFLICT (source_platform, identity_key) DO NOTHING`, productArgs(p)...)
		if err != nil {
			if isSlugViolation(err) {
				return fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrDuplicateIdentity
		}
		stored, err = insertReviews(ctx, tx, p.ID, reviews)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to insert product")
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	log.WithField("reviews", stored).Debug("Product inserted")
	return stored, nil
}

func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *domain.Product, history *domain.PriceHistory, reviews []domain.Review) (int, error) {
	log := r.log.WithFields(logrus.Fields{"identity": p.Identity().String(), "product_id": p.ID})

	var stored int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		images := p.DetailImages
		if images == nil {
			images = []string{}
		}
		tag, err := tx.Exec(ctx, `UPDATE products SET
			source_item_id = $2, source_url = $3, title = $4, description = $5, slug = $6,
			thumbnail_url = $7, video_url = $8, detail_images = $9, price = $10, original_price = $11,
			currency = $12, price_in_display_currency = $13, external_rating = $14,
			external_review_count = $15, category_ref = $16, tags = $17, is_active = $18,
			is_featured = $19, updated_at = $20
			WHERE id = $1`,
			p.ID, nullString(p.SourceItemID), p.SourceURL, p.Title, p.Description, p.Slug,
			p.ThumbnailURL, nullString(p.VideoURL), images, p.Price, p.OriginalPrice,
			p.Currency, p.PriceInDisplayCurrency, p.ExternalRating,
			p.ExternalReviewCount, p.CategoryRef, nonNilTags(p.Tags), p.IsActive,
			p.IsFeatured, p.UpdatedAt)
		if err != nil {
			if isSlugViolation(err) {
				return fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("product %s does not exist", p.ID)
		}

		if history != nil {
			if _, err := tx.Exec(ctx, `INSERT INTO price_history
				(id, product_id, price, original_price, discount_rate, recorded_at)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				history.ID, p.ID, history.Price, history.OriginalPrice, history.DiscountRate, history.RecordedAt); err != nil {
				return err
			}
		}
		stored, err = insertReviews(ctx, tx, p.ID, reviews)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to update product")
		return 0, fmt.Errorf("failed to update product: %w", err)
	}
	log.WithFields(logrus.Fields{"reviews": stored, "price_changed": history != nil}).Debug("Product updated")
	return stored, nil
}

func (r *PostgresRepository) ListProducts(ctx context.Context, platform domain.Platform, limit int) ([]domain.Product, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR source_platform = $1)
		ORDER BY created_at, id
		LIMIT $2`, string(platform), lim)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, content, reviewer_name, reviewer_country, rating,
		review_date, helpful_count, is_verified_purchase, source_review_id, created_at
		FROM reviews WHERE product_id = $1 ORDER BY created_at, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for %s: %w", productID, err)
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var (
			rv                   domain.Review
			name, country, srcID *string
		)
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.Content, &name, &country, &rv.Rating,
			&rv.ReviewDate, &rv.HelpfulCount, &rv.IsVerifiedPurchase, &srcID, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		rv.ReviewerName = derefString(name)
		rv.ReviewerCountry = derefString(country)
		rv.SourceReviewID = derefString(srcID)
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListPriceHistory(ctx context.Context, productID string) ([]domain.PriceHistory, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, price, original_price, discount_rate, recorded_at
		FROM price_history WHERE product_id = $1 ORDER BY recorded_at, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history for %s: %w", productID, err)
	}
	defer rows.Close()

	var out []domain.PriceHistory
	for rows.Next() {
		var h domain.PriceHistory
		if err := rows.Scan(&h.ID, &h.ProductID, &h.Price, &h.OriginalPrice, &h.DiscountRate, &h.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) FindAffiliateLink(ctx context.Context, productID string) (*domain.AffiliateLink, error) {
	var (
		l                  domain.AffiliateLink
		source, trackingID *string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, long_url, promotion_link, source_value, tracking_id,
		clicks, conversions, revenue, created_at, last_clicked_at
		FROM affiliate_links WHERE product_id = $1`, productID).
		Scan(&l.ID, &l.ProductID, &l.LongURL, &l.PromotionLink, &source, &trackingID,
			&l.Clicks, &l.Conversions, &l.Revenue, &l.CreatedAt, &l.LastClickedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find affiliate link for %s: %w", productID, err)
	}
	l.SourceValue = derefString(source)
	l.TrackingID = derefString(trackingID)
	return &l, nil
}

func (r *PostgresRepository) SaveAffiliateLink(ctx context.Context, link domain.AffiliateLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO affiliate_links
		(id, product_id, long_url, promotion_link, source_value, tracking_id,
		 clicks, conversions, revenue, created_at, last_clicked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (product_id) DO NOTHING`,
		link.ID, link.ProductID, link.LongURL, link.PromotionLink, nullString(link.SourceValue),
		nullString(link.TrackingID), link.Clicks, link.Conversions, link.Revenue, link.CreatedAt, link.LastClickedAt)
	if err != nil {
		return false, fmt.Errorf("failed to save affiliate link for %s: %w", link.ProductID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) UpsertAffiliateProducts(ctx context.Context, items []domain.AffiliateProduct) (int, error) {
	b := &pgx.Batch{}
	for _, it := range items {
		if it.PartnerProductID == "" {
			continue
		}
		b.Queue(`INSERT INTO affiliate_products
			(partner_product_id, title, detail_url, image_url, promotion_link, shop_url, sale_price,
			 original_price, currency, commission_rate, positive_rate, volume, category_id, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (partner_product_id) DO UPDATE SET
			  title = EXCLUDED.title, detail_url = EXCLUDED.detail_url, image_url = EXCLUDED.image_url,
			  promotion_link = EXCLUDED.promotion_link, shop_url = EXCLUDED.shop_url,
			  sale_price = EXCLUDED.sale_price, original_price = EXCLUDED.original_price,
			  currency = EXCLUDED.currency, commission_rate = EXCLUDED.commission_rate,
			  positive_rate = EXCLUDED.positive_rate, volume = EXCLUDED.volume,
			  category_id = EXCLUDED.category_id, updated_at = EXCLUDED.updated_at`,
			it.PartnerProductID, it.Title, it.DetailURL, nullString(it.ImageURL), nullString(it.PromotionLink),
			nullString(it.ShopURL), it.SalePrice, it.OriginalPrice, it.Currency, it.CommissionRate,
			it.PositiveRate, it.Volume, nullString(it.CategoryID), it.UpdatedAt)
	}
	if b.Len() == 0 {
		return 0, nil
	}

	br := r.pool.SendBatch(ctx, b)
	n := 0
	for k := 0; k < b.Len(); k++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return n, fmt.Errorf("failed to upsert affiliate products: %w", err)
		}
		n++
	}
	if err := br.Close(); err != nil {
		return n, fmt.Errorf("failed to upsert affiliate products: %w", err)
	}
	r.log.WithField("count", n).Debug("Affiliate products upserted")
	return n, nil
}

func (r *PostgresRepository) ListAffiliateProducts(ctx context.Context) ([]domain.AffiliateProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT partner_product_id, title, detail_url, image_url, promotion_link,
		shop_url, sale_price, original_price, currency, commission_rate, positive_rate, volume,
		category_id, updated_at
		FROM affiliate_products ORDER BY partner_product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliate products: %w", err)
	}
	defer rows.Close()

	var out []domain.AffiliateProduct
	for rows.Next() {
		var (
			p                         domain.AffiliateProduct
			image, promo, shop, catID *string
		)
		if err := rows.Scan(&p.PartnerProductID, &p.Title, &p.DetailURL, &image, &promo, &shop,
			&p.SalePrice, &p.OriginalPrice, &p.Currency, &p.CommissionRate, &p.PositiveRate, &p.Volume,
			&catID, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan affiliate product: %w", err)
		}
		p.ImageURL = derefString(image)
		p.PromotionLink = derefString(promo)
		p.ShopURL = derefString(shop)
		p.CategoryID = derefString(catID)
		out = append(out, p)
	}
	return out, rows.Err()
}
