package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"prodcrawl/internal/domain"
	"prodcrawl/internal/platform"
)

const maxSlugAttempts = 50

// Store is the storage surface the resolver needs.
type Store interface {
	// FindProduct returns nil, nil when no product has key.
	FindProduct(ctx context.Context, key domain.IdentityKey) (*domain.Product, error)
	// SlugOwner returns the identity key string of the product holding slug,
	// or "" when the slug is free.
	SlugOwner(ctx context.Context, slug string) (string, error)
}

// Resolution is the identity of one raw record.
type Resolution struct {
	Key           domain.IdentityKey
	SlugCandidate string
}

// Resolver implements identity resolution and slug disambiguation.
type Resolver struct {
	store      Store
	maxSlugLen int
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, maxSlugLen: MaxSlugLength}
}

// ResolveIdentity derives the identity key and a slug candidate. The key is
// the platform item id when present, otherwise the normalized source URL.
func (r *Resolver) ResolveIdentity(rec *platform.RawRecord) (Resolution, error) {
	key := strings.TrimSpace(rec.SourceItemID)
	if key == "" {
		normalized, err := NormalizeURL(rec.SourceURL)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: %v", &platform.ExtractionError{
				Platform: rec.Platform, Field: "source identity", URL: rec.SourceURL,
			}, err)
		}
		key = normalized
	}

	slug := Slugify(rec.Title, r.maxSlugLen)
	if slug == "" {
		slug = string(rec.Platform) + "-item"
	}
	return Resolution{
		Key:           domain.IdentityKey{Platform: rec.Platform, Key: key},
		SlugCandidate: slug,
	}, nil
}

// LookupExisting returns the stored product for key, or nil.
func (r *Resolver) LookupExisting(ctx context.Context, key domain.IdentityKey) (*domain.Product, error) {
	p, err := r.store.FindProduct(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}
	return p, nil
}

// UniqueSlug returns candidate if it is free or already owned by key.
// Otherwise it appends a short hash of key, then a counter, until unique.
func (r *Resolver) UniqueSlug(ctx context.Context, key domain.IdentityKey, candidate string) (string, error) {
	owner := key.String()
	for i := 0; i < maxSlugAttempts; i++ {
		slug := slugAttempt(candidate, owner, i)
		current, err := r.store.SlugOwner(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if current == "" || current == owner {
			return slug, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", candidate, maxSlugAttempts)
}

func slugAttempt(base, owner string, attempt int) string {
	switch attempt {
	case 0:
		return base
	case 1:
		return base + "-" + shortHash(owner)
	default:
		return base + "-" + shortHash(owner) + "-" + strconv.Itoa(attempt)
	}
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:3])
}
