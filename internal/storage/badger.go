package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"prodcrawl/internal/domain"
)

// BadgerRepository implements the Repository interface using BadgerDB.
// Values are JSON documents; secondary indexes (identity, slug) are plain
// keys pointing at the owning record.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository creates and initializes a new BadgerDB repository.
// It opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// Key layout:
//
//	product:{id}                      -> Product
//	identity:{platform}:{key}         -> product id
//	slug:{slug}                       -> identity key string
//	review:{productID}:src:{sourceID} -> Review
//	review:{productID}:anon:{id}      -> Review
//	history:{productID}:{nanos}:{id}  -> PriceHistory
//	afflink:{productID}               -> AffiliateLink
//	affprod:{partnerID}               -> AffiliateProduct
const (
	productPrefix  = "product:"
	affprodPrefix  = "affprod:"
	afflinkPrefix  = "afflink:"
	identityPrefix = "identity:"
	slugPrefix     = "slug:"
)

func productKey(id string) []byte             { return []byte(productPrefix + id) }
func identityKey(k domain.IdentityKey) []byte { return []byte(identityPrefix + k.String()) }
func slugKey(slug string) []byte              { return []byte(slugPrefix + slug) }
func reviewPrefix(productID string) []byte    { return []byte("review:" + productID + ":") }
func historyPrefix(productID string) []byte   { return []byte("history:" + productID + ":") }
func afflinkKey(productID string) []byte      { return []byte(afflinkPrefix + productID) }
func affprodKey(partnerID string) []byte      { return []byte(affprodPrefix + partnerID) }

func reviewKey(productID string, rv domain.Review) []byte {
	if rv.SourceReviewID != "" {
		return append(reviewPrefix(productID), "src:"+rv.SourceReviewID...)
	}
	return append(reviewPrefix(productID), "anon:"+rv.ID...)
}

func historyKey(h domain.PriceHistory) []byte {
	return append(historyPrefix(h.ProductID), fmt.Sprintf("%020d:%s", h.RecordedAt.UnixNano(), h.ID)...)
}

func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal value for key %s: %w", string(key), err)
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", string(key), err)
	}
	return txn.SetEntry(badger.NewEntry(key, b))
}

func getString(txn *badger.Txn, key []byte) (string, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanPrefix decodes every value under prefix in key order.
func scanPrefix[T any](txn *badger.Txn, prefix []byte, fn func(T)) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return fmt.Errorf("failed to unmarshal data for key %s: %w", string(item.KeyCopy(nil)), err)
		}
		fn(v)
	}
	return nil
}

// FindProduct resolves the identity index and loads the product.
func (r *BadgerRepository) FindProduct(ctx context.Context, key domain.IdentityKey) (*domain.Product, error) {
	var found *domain.Product
	err := r.db.View(func(txn *badger.Txn) error {
		id, ok, err := getString(txn, identityKey(key))
		if err != nil || !ok {
			return err
		}
		var p domain.Product
		ok, err = getJSON(txn, productKey(id), &p)
		if err != nil {
			return err
		}
		if !ok {
			r.log.WithField("identity", key.String()).Warn("Identity index points at a missing product")
			return nil
		}
		found = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", key, err)
	}
	return found, nil
}

// SlugOwner returns the identity owning slug.
func (r *BadgerRepository) SlugOwner(ctx context.Context, slug string) (string, error) {
	var owner string
	err := r.db.View(func(txn *badger.Txn) error {
		v, _, err := getString(txn, slugKey(slug))
		owner = v
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to read slug %q: %w", slug, err)
	}
	return owner, nil
}

// putReviews stores reviews not already present. Reviews with a source id
// are keyed by it; anonymous ones are always appended.
func putReviews(txn *badger.Txn, productID string, reviews []domain.Review) (int, error) {
	n := 0
	for _, rv := range reviews {
		rv.ProductID = productID
		key := reviewKey(productID, rv)
		dup, err := exists(txn, key)
		if err != nil {
			return n, err
		}
		if dup {
			continue
		}
		if err := setJSON(txn, key, rv); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// InsertProduct stores a new product with its indexes and reviews in one transaction.
func (r *BadgerRepository) InsertProduct(ctx context.Context, p *domain.Product, reviews []domain.Review) (int, error) {
	log := r.log.WithFields(logrus.Fields{"identity": p.Identity().String(), "slug": p.Slug})
	owner := p.Identity().String()

	var stored int
	err := r.db.Update(func(txn *badger.Txn) error {
		taken, err := exists(txn, identityKey(p.Identity()))
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateIdentity
		}
		current, ok, err := getString(txn, slugKey(p.Slug))
		if err != nil {
			return err
		}
		if ok && current != owner {
			return fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
		}

		if err := setJSON(txn, productKey(p.ID), p); err != nil {
			return err
		}
		if err := txn.Set(identityKey(p.Identity()), []byte(p.ID)); err != nil {
			return err
		}
		if err := txn.Set(slugKey(p.Slug), []byte(owner)); err != nil {
			return err
		}
		stored, err = putReviews(txn, p.ID, reviews)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to insert product")
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	log.WithField("reviews", stored).Debug("Product inserted")
	return stored, nil
}

// UpdateProduct overwrites an existing product in place.
func (r *BadgerRepository) UpdateProduct(ctx context.Context, p *domain.Product, history *domain.PriceHistory, reviews []domain.Review) (int, error) {
	log := r.log.WithFields(logrus.Fields{"identity": p.Identity().String(), "product_id": p.ID})
	owner := p.Identity().String()

	var stored int
	err := r.db.Update(func(txn *badger.Txn) error {
		var old domain.Product
		ok, err := getJSON(txn, productKey(p.ID), &old)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("product %s does not exist", p.ID)
		}

		if old.Slug != p.Slug {
			current, taken, err := getString(txn, slugKey(p.Slug))
			if err != nil {
				return err
			}
			if taken && current != owner {
				return fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
			}
			if err := txn.Delete(slugKey(old.Slug)); err != nil {
				return err
			}
			if err := txn.Set(slugKey(p.Slug), []byte(owner)); err != nil {
				return err
			}
		}

		if err := setJSON(txn, productKey(p.ID), p); err != nil {
			return err
		}
		if history != nil {
			h := *history
			h.ProductID = p.ID
			if err := setJSON(txn, historyKey(h), h); err != nil {
				return err
			}
		}
		stored, err = putReviews(txn, p.ID, reviews)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to update product")
		return 0, fmt.Errorf("failed to update product: %w", err)
	}
	log.WithFields(logrus.Fields{"reviews": stored, "price_changed": history != nil}).Debug("Product updated")
	return stored, nil
}

// ListProducts returns products oldest first. An empty platform matches all;
// limit <= 0 means no limit.
func (r *BadgerRepository) ListProducts(ctx context.Context, platform domain.Platform, limit int) ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(productPrefix), func(p domain.Product) {
			if platform == "" || p.SourcePlatform == platform {
				out = append(out, p)
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListReviews returns a product's reviews ordered by creation time.
func (r *BadgerRepository) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	var out []domain.Review
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, reviewPrefix(productID), func(rv domain.Review) {
			out = append(out, rv)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for %s: %w", productID, err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListPriceHistory returns history entries in recording order.
func (r *BadgerRepository) ListPriceHistory(ctx context.Context, productID string) ([]domain.PriceHistory, error) {
	var out []domain.PriceHistory
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, historyPrefix(productID), func(h domain.PriceHistory) {
			out = append(out, h)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list price history for %s: %w", productID, err)
	}
	return out, nil
}

func (r *BadgerRepository) FindAffiliateLink(ctx context.Context, productID string) (*domain.AffiliateLink, error) {
	var found *domain.AffiliateLink
	err := r.db.View(func(txn *badger.Txn) error {
		var l domain.AffiliateLink
		ok, err := getJSON(txn, afflinkKey(productID), &l)
		if ok {
			found = &l
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find affiliate link for %s: %w", productID, err)
	}
	return found, nil
}

func (r *BadgerRepository) SaveAffiliateLink(ctx context.Context, link domain.AffiliateLink) (bool, error) {
	saved := false
	err := r.db.Update(func(txn *badger.Txn) error {
		dup, err := exists(txn, afflinkKey(link.ProductID))
		if err != nil || dup {
			return err
		}
		if link.CreatedAt.IsZero() {
			link.CreatedAt = time.Now().UTC()
		}
		saved = true
		return setJSON(txn, afflinkKey(link.ProductID), link)
	})
	if err != nil {
		return false, fmt.Errorf("failed to save affiliate link for %s: %w", link.ProductID, err)
	}
	return saved, nil
}

// UpsertAffiliateProducts overwrites partner listings keyed by partner id.
func (r *BadgerRepository) UpsertAffiliateProducts(ctx context.Context, items []domain.AffiliateProduct) (int, error) {
	n := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, it := range items {
			if it.PartnerProductID == "" {
				continue
			}
			if err := setJSON(txn, affprodKey(it.PartnerProductID), it); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert affiliate products: %w", err)
	}
	r.log.WithField("count", n).Debug("Affiliate products upserted")
	return n, nil
}

// ListAffiliateProducts returns every stored partner listing ordered by partner id.
func (r *BadgerRepository) ListAffiliateProducts(ctx context.Context) ([]domain.AffiliateProduct, error) {
	var out []domain.AffiliateProduct
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(affprodPrefix), func(p domain.AffiliateProduct) {
			out = append(out, p)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliate products: %w", err)
	}
	return out, nil
}

// RunGC reclaims value-log space until there is nothing left to rewrite.
func (r *BadgerRepository) RunGC() {
	for {
		if err := r.db.RunValueLogGC(0.7); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				r.log.WithError(err).Warn("BadgerDB GC failed")
			}
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
