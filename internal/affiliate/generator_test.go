package affiliate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodcrawl/internal/domain"
	"prodcrawl/internal/storage"
)

type fakePartner struct {
	linkCalls  int
	linkErrs   map[string]error
	pages      map[int][]domain.AffiliateProduct
	total      int
	searchArgs []SearchParams
	searchErr  error
}

func (f *fakePartner) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	f.searchArgs = append(f.searchArgs, p)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &SearchResult{PageNo: p.PageNo, TotalCount: f.total, Products: f.pages[p.PageNo]}, nil
}

func (f *fakePartner) GenerateLink(ctx context.Context, productURL string) (*PromotionLink, error) {
	f.linkCalls++
	if err := f.linkErrs[productURL]; err != nil {
		return nil, err
	}
	return &PromotionLink{PromotionLink: "https://s.click.aliexpress.com/e/" + productURL[len(productURL)-6:], SourceValue: productURL}, nil
}

func (f *fakePartner) TrackingID() string { return "deals" }

func setupGenerator(t *testing.T, partner *fakePartner) (*Generator, *storage.BadgerRepository) {
	t.Helper()
	repo, err := storage.NewBadgerRepository(t.TempDir(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewGenerator(partner, repo, quietLogger()), repo
}

func product(id, url string) domain.Product {
	return domain.Product{ID: id, SourcePlatform: domain.PlatformAliExpress, SourceURL: url}
}

func TestEnsureLink_CreatesOnceAndNeverOverwrites(t *testing.T) {
	partner := &fakePartner{}
	g, repo := setupGenerator(t, partner)
	ctx := context.Background()
	p := product("p-1", "https://www.aliexpress.com/item/100001.html")

	first, created, err := g.EnsureLink(ctx, p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "p-1", first.ProductID)
	assert.Equal(t, p.SourceURL, first.LongURL)
	assert.Equal(t, "deals", first.TrackingID)
	assert.Zero(t, first.Clicks)

	second, created, err := g.EnsureLink(ctx, p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, partner.linkCalls)

	stored, err := repo.FindAffiliateLink(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, first.PromotionLink, stored.PromotionLink)
}

func TestLinkMissing_CountsAndStopsOnRateLimit(t *testing.T) {
	throttled := "https://www.aliexpress.com/item/100003.html"
	partner := &fakePartner{linkErrs: map[string]error{
		"https://www.aliexpress.com/item/100002.html": &Error{Kind: KindAPI, Code: "NotInProgram", Message: "product not eligible"},
		throttled: &Error{Kind: KindRateLimited, Attempts: 5},
	}}
	g, _ := setupGenerator(t, partner)
	ctx := context.Background()

	_, _, err := g.EnsureLink(ctx, product("p-0", "https://www.aliexpress.com/item/100000.html"))
	require.NoError(t, err)

	rep, err := g.LinkMissing(ctx, []domain.Product{
		product("p-0", "https://www.aliexpress.com/item/100000.html"),
		product("p-1", "https://www.aliexpress.com/item/100001.html"),
		product("p-2", "https://www.aliexpress.com/item/100002.html"),
		product("p-3", throttled),
		product("p-4", "https://www.aliexpress.com/item/100004.html"),
	})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, LinkReport{Created: 1, Existing: 1, Failed: 2}, rep)
}

func TestSyncProducts_PagesUntilTotalReached(t *testing.T) {
	partner := &fakePartner{
		total: 3,
		pages: map[int][]domain.AffiliateProduct{
			1: {{PartnerProductID: "a", Title: "A"}, {PartnerProductID: "b", Title: "B"}},
			2: {{PartnerProductID: "c", Title: "C"}},
			3: {{PartnerProductID: "d", Title: "D"}},
		},
	}
	g, repo := setupGenerator(t, partner)
	ctx := context.Background()

	n, err := g.SyncProducts(ctx, SearchParams{Keywords: "earbuds", PageSize: 2}, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, partner.searchArgs, 2)

	// A rerun overwrites rows in place.
	partner.pages[1][0].Title = "A v2"
	_, err = g.SyncProducts(ctx, SearchParams{Keywords: "earbuds", PageSize: 2}, 1)
	require.NoError(t, err)

	stored, err := repo.ListAffiliateProducts(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "A v2", stored[0].Title)
}

func TestSyncProducts_WrapsSearchErrors(t *testing.T) {
	g, _ := setupGenerator(t, &fakePartner{
		searchErr: &Error{Kind: KindAPI, Code: "InvalidParameter", Message: "keywords required", Attempts: 1},
	})
	_, err := g.SyncProducts(context.Background(), SearchParams{}, 1)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "InvalidParameter", apiErr.Code)
}
