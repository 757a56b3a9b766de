package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodcrawl/internal/browser/browsertest"
	"prodcrawl/internal/domain"
)

var el = browsertest.El

func TestDefaultRegistry_CoversEveryPlatform(t *testing.T) {
	reg := DefaultRegistry()
	for _, p := range domain.Platforms {
		a, err := reg.Get(p)
		require.NoError(t, err, p)
		assert.Equal(t, p, a.Platform())
	}

	_, err := Registry{}.Get(domain.PlatformEbay)
	assert.Error(t, err)
}

func TestSupportedModes(t *testing.T) {
	assert.Equal(t,
		[]domain.CrawlMode{domain.ModeCategory, domain.ModeDirectURL, domain.ModeSearch},
		SupportedModes(NewEbay()))

	assert.True(t, Supports(NewKickstarter(), domain.ModeClosing))
	assert.True(t, Supports(NewWadiz(), domain.ModePopular))
	assert.False(t, Supports(NewWadiz(), domain.ModeSearch))
	assert.False(t, Supports(NewAmazon(), domain.ModePopular))
	assert.True(t, Supports(NewAmazon(), domain.ModeDirectURL))
}

func TestReviewCapability(t *testing.T) {
	reg := DefaultRegistry()
	capable := map[domain.Platform]bool{}
	for p, a := range reg {
		_, ok := a.(ReviewExtractor)
		capable[p] = ok
	}
	assert.True(t, capable[domain.PlatformAliExpress])
	assert.True(t, capable[domain.PlatformAmazon])
	assert.True(t, capable[domain.PlatformWadiz])
	assert.False(t, capable[domain.PlatformEbay])
	assert.False(t, capable[domain.PlatformKickstarter])
}

func TestExtract_MissingTitleIsExtractionError(t *testing.T) {
	ctx := context.Background()
	for _, a := range DefaultRegistry() {
		t.Run(string(a.Platform()), func(t *testing.T) {
			page := browsertest.NewPage("https://example.com/nothing-here")
			rec, err := a.Extract(ctx, page)
			assert.Nil(t, rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrExtraction))

			var xerr *ExtractionError
			require.ErrorAs(t, err, &xerr)
			assert.Equal(t, "title", xerr.Field)
			assert.Equal(t, a.Platform(), xerr.Platform)
		})
	}
}

func TestAliExpress_Extract(t *testing.T) {
	page := browsertest.NewPage("https://www.aliexpress.com/item/1005001234567890.html").
		With(`h1[data-pl="product-title"]`, el("Wireless Earbuds Pro")).
		With(`.product-price-current`, el("US $29.99")).
		With(`.price--originalText`, el("US $59.99")).
		With(`meta[name="description"]`, el("", "content", "Noise cancelling earbuds")).
		With(`meta[property="og:image"]`, el("", "content", "https://ae01.alicdn.com/kf/main.jpg")).
		With(`[class*="slider--img"] img`,
			el("", "src", "//ae01.alicdn.com/kf/a.jpg"),
			el("", "src", "//ae01.alicdn.com/kf/a.jpg")).
		With(`#product-description img`, el("", "data-src", "https://ae01.alicdn.com/kf/desc.jpg")).
		With(`[class*="reviewer--rating"] strong`, el("4.8")).
		With(`[class*="reviewer--reviews"]`, el("1,024 Reviews")).
		With(`[class*="breadcrumb"] a`, el("Home"), el("Consumer Electronics"))

	rec, err := NewAliExpress().Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, domain.PlatformAliExpress, rec.Platform)
	assert.Equal(t, "1005001234567890", rec.SourceItemID)
	assert.Equal(t, "Wireless Earbuds Pro", rec.Title)
	require.NotNil(t, rec.Price)
	assert.Equal(t, 29.99, *rec.Price)
	require.NotNil(t, rec.OriginalPrice)
	assert.Equal(t, 59.99, *rec.OriginalPrice)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, "Noise cancelling earbuds", rec.Description)
	assert.Equal(t, "https://ae01.alicdn.com/kf/main.jpg", rec.ThumbnailURL)
	assert.Equal(t, []string{"https://ae01.alicdn.com/kf/a.jpg", "https://ae01.alicdn.com/kf/desc.jpg"}, rec.Images)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.8, *rec.Rating)
	assert.Equal(t, 1024, rec.ReviewCount)
	assert.Equal(t, []string{"Home", "Consumer Electronics"}, rec.Tags)
}

func TestAliExpress_Extract_GalleryThumbnailsBecomeFullSize(t *testing.T) {
	page := browsertest.NewPage("https://www.aliexpress.com/item/1005001234567890.html").
		With(`h1[data-pl="product-title"]`, el("Desk Lamp")).
		With(`.product-price-current`, el("US $18.50")).
		With(`[class*="slider--img"] img`,
			el("", "src", "//ae01.alicdn.com/kf/Sa1b2c3.jpg_80x80.jpg"),
			el("", "src", "//ae01.alicdn.com/kf/Sd4e5f6.png_220x220q75.png_.avif")).
		With(`.images-view-item img`, el("", "src", "https://ae01.alicdn.com/kf/Sa1b2c3.jpg_50x50.jpg"))

	rec, err := NewAliExpress().Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://ae01.alicdn.com/kf/Sa1b2c3.jpg",
		"https://ae01.alicdn.com/kf/Sd4e5f6.png",
	}, rec.Images)
}

func TestAliExpress_MissingPriceIsExtractionError(t *testing.T) {
	page := browsertest.NewPage("https://www.aliexpress.com/item/1.html").
		With(`h1[data-pl="product-title"]`, el("Gadget"))

	_, err := NewAliExpress().Extract(context.Background(), page)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "price", xerr.Field)
}

func TestAliExpress_ExtractReviews(t *testing.T) {
	const feed = `{"data":{"evaViewList":[
		{"evaluationId":111,"buyerName":"A***b","buyerCountry":"US","buyerEval":100,"buyerFeedback":"Works great","evalDate":"05 Mar 2024","upVoteCount":3},
		{"evaluationId":112,"buyerName":"C***d","buyerCountry":"KR","buyerEval":80,"buyerFeedback":"  ","evalDate":"06 Mar 2024"},
		{"evaluationId":113,"buyerName":"E***f","buyerCountry":"FR","buyerEval":60,"buyerFeedback":"Okay","evalDate":"bad date"},
		{"evaluationId":114,"buyerName":"G***h","buyerCountry":"DE","buyerEval":20,"buyerFeedback":"Broke","evalDate":"07 Mar 2024"}
	]}}`
	page := browsertest.NewPage("https://www.aliexpress.com/item/42.html").
		Script(aliFeedbackScript("42", 2), feed)

	reviews := NewAliExpress().ExtractReviews(context.Background(), page, 2)
	require.Len(t, reviews, 2)

	assert.Equal(t, "Works great", reviews[0].Content)
	assert.Equal(t, "111", reviews[0].SourceReviewID)
	assert.Equal(t, "US", reviews[0].ReviewerCountry)
	assert.Equal(t, 3, reviews[0].HelpfulCount)
	assert.True(t, reviews[0].IsVerifiedPurchase)
	require.NotNil(t, reviews[0].Rating)
	assert.Equal(t, 5.0, *reviews[0].Rating)
	require.NotNil(t, reviews[0].ReviewDate)
	assert.Equal(t, 2024, reviews[0].ReviewDate.Year())

	// The blank review is omitted rather than failing the batch.
	assert.Equal(t, "Okay", reviews[1].Content)
	assert.Equal(t, 3.0, *reviews[1].Rating)
	assert.Nil(t, reviews[1].ReviewDate)
}

func TestAliExpress_ExtractReviews_FailureYieldsEmpty(t *testing.T) {
	page := browsertest.NewPage("https://www.aliexpress.com/item/42.html").
		Script(aliFeedbackScript("42", 5), "<html>captcha</html>")
	assert.Empty(t, NewAliExpress().ExtractReviews(context.Background(), page, 5))
	assert.Empty(t, NewAliExpress().ExtractReviews(context.Background(), page, 0))
}

func TestAmazon_Extract(t *testing.T) {
	page := browsertest.NewPage("https://www.amazon.com/Some-Product/dp/B0C1234567?ref=sr_1_1").
		With(`#productTitle`, el("  Echo Dot (5th Gen)  ")).
		With(`#corePriceDisplay_desktop_feature_div .a-price .a-offscreen`, el("$29.99")).
		With(`.basisPrice .a-offscreen`, el("$49.99")).
		With(`#feature-bullets li`, el("Better sound"), el("Smart home hub")).
		With(`#landingImage`, el("", "data-old-hires", "https://m.media-amazon.com/images/I/71abc.jpg")).
		With(`#altImages li.imageThumbnail img`,
			el("", "src", "https://m.media-amazon.com/images/I/41one._AC_US40_.jpg"),
			el("", "src", "https://m.media-amazon.com/images/I/41two._AC_US40_.jpg")).
		With(`#acrPopover`, el("", "title", "4.7 out of 5 stars")).
		With(`#acrCustomerReviewText`, el("12,345 ratings")).
		With(`#wayfinding-breadcrumbs_feature_div a`, el("Electronics"), el("Smart Speakers"))

	rec, err := NewAmazon().Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "B0C1234567", rec.SourceItemID)
	assert.Equal(t, "Echo Dot (5th Gen)", rec.Title)
	assert.Equal(t, 29.99, *rec.Price)
	assert.Equal(t, 49.99, *rec.OriginalPrice)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, "Better sound\nSmart home hub", rec.Description)
	assert.Equal(t, "https://m.media-amazon.com/images/I/71abc.jpg", rec.ThumbnailURL)
	assert.Equal(t, []string{
		"https://m.media-amazon.com/images/I/41one.jpg",
		"https://m.media-amazon.com/images/I/41two.jpg",
	}, rec.Images)
	assert.Equal(t, 4.7, *rec.Rating)
	assert.Equal(t, 12345, rec.ReviewCount)
	assert.Equal(t, []string{"Electronics", "Smart Speakers"}, rec.Tags)
}

func TestAmazon_ExtractUnavailable(t *testing.T) {
	page := browsertest.NewPage("https://www.amazon.com/dp/B0C1234567").
		With(`#productTitle`, el("Discontinued Thing")).
		With(`#availability`, el("Currently unavailable."))

	rec, err := NewAmazon().Extract(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, rec.PriceUnavailable)
	assert.Nil(t, rec.Price)
}

func TestAmazon_ExtractReviews(t *testing.T) {
	review := func(id, body, stars, date, helpful string, verified bool) *browsertest.Node {
		n := el("", "id", id).
			With(`[data-hook="review-body"]`, el(body)).
			With(`.a-profile-name`, el("Jamie")).
			With(`[data-hook="review-star-rating"]`, el(stars)).
			With(`[data-hook="review-date"]`, el(date)).
			With(`[data-hook="helpful-vote-statement"]`, el(helpful))
		if verified {
			n.With(`[data-hook="avp-badge"]`, el("Verified Purchase"))
		}
		return n
	}
	page := browsertest.NewPage("https://www.amazon.com/dp/B0C1234567").
		With(`[data-hook="review"]`,
			review("R1", "Love it", "5.0 out of 5 stars", "Reviewed in the United States on January 2, 2024", "12 people found this helpful", true),
			review("R2", "", "1.0 out of 5 stars", "", "", false),
			review("R3", "Meh", "3,0 von 5 Sternen", "Reviewed in Germany on March 4, 2024", "One person found this helpful", false),
			review("R4", "Extra", "4.0 out of 5 stars", "", "", false))

	reviews := NewAmazon().ExtractReviews(context.Background(), page, 2)
	require.Len(t, reviews, 2)

	r := reviews[0]
	assert.Equal(t, "R1", r.SourceReviewID)
	assert.Equal(t, "Love it", r.Content)
	assert.Equal(t, "Jamie", r.ReviewerName)
	assert.Equal(t, "United States", r.ReviewerCountry)
	assert.Equal(t, 5.0, *r.Rating)
	require.NotNil(t, r.ReviewDate)
	assert.Equal(t, "2024-01-02", r.ReviewDate.Format("2006-01-02"))
	assert.Equal(t, 12, r.HelpfulCount)
	assert.True(t, r.IsVerifiedPurchase)

	r = reviews[1]
	assert.Equal(t, "R3", r.SourceReviewID)
	assert.Equal(t, 3.0, *r.Rating)
	assert.Equal(t, "Germany", r.ReviewerCountry)
	assert.Equal(t, 1, r.HelpfulCount)
	assert.False(t, r.IsVerifiedPurchase)
}

func TestEbay_Extract(t *testing.T) {
	page := browsertest.NewPage("https://www.ebay.com/itm/Vintage-Camera/123456789012?hash=abc").
		With(`h1.x-item-title__mainTitle span`, el("Vintage Film Camera")).
		With(`.x-price-primary span`, el("US $120.00")).
		With(`.x-additional-info .ux-textspans--STRIKETHROUGH`, el("US $150.00")).
		With(`.ux-image-carousel-item img`,
			el("", "data-zoom-src", "https://i.ebayimg.com/images/g/a/s-l1600.jpg", "src", "https://i.ebayimg.com/images/g/a/s-l500.jpg"),
			el("", "src", "https://i.ebayimg.com/images/g/b/s-l500.jpg")).
		With(`.x-item-condition-text .ux-textspans`, el("Used")).
		With(`.seo-breadcrumb-text`, el("Cameras & Photo"))

	rec, err := NewEbay().Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "123456789012", rec.SourceItemID)
	assert.Equal(t, 120.0, *rec.Price)
	assert.Equal(t, 150.0, *rec.OriginalPrice)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, []string{
		"https://i.ebayimg.com/images/g/a/s-l1600.jpg",
		"https://i.ebayimg.com/images/g/b/s-l500.jpg",
	}, rec.Images)
	assert.Equal(t, "https://i.ebayimg.com/images/g/a/s-l1600.jpg", rec.ThumbnailURL)
	assert.Equal(t, []string{"Cameras & Photo", "Used"}, rec.Tags)
}

func TestKickstarter_Extract_LowestRewardIsPrice(t *testing.T) {
	const initial = `{"project":{"pid":987654,"name":"Pocket Synth","description":"A tiny synthesizer",
		"currency":"usd","imageUrl":"https://ksr-ugc.imgix.net/assets/1/photo.jpg",
		"video":{"videoSources":{"high":{"src":"https://v.kickstarter.com/high.mp4"}}},
		"category":{"name":"Sound","parentCategory":{"name":"Technology"}},
		"location":{"displayableName":"Berlin, Germany"},"state":"LIVE","commentsCount":41,
		"rewards":{"nodes":[{"amount":{"amount":"79.0","currency":"USD"}},{"amount":{"amount":"49.0","currency":"USD"}},{"amount":{"amount":"0.0","currency":"USD"}}]}}}`
	page := browsertest.NewPage("https://www.kickstarter.com/projects/maker/pocket-synth").
		With(`#react-project-header`, el("", "data-initial", initial)).
		With(`.rte__content img`,
			el("", "data-src", "https://ksr-ugc.imgix.net/assets/story1.gif"),
			el("", "src", "https://ksr-ugc.imgix.net/assets/story2.jpg"))

	rec, err := NewKickstarter().Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "987654", rec.SourceItemID)
	assert.Equal(t, "Pocket Synth", rec.Title)
	require.NotNil(t, rec.Price)
	assert.Equal(t, 49.0, *rec.Price)
	assert.False(t, rec.PriceUnavailable)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, "https://v.kickstarter.com/high.mp4", rec.VideoURL)
	assert.Len(t, rec.Images, 2)
	assert.Equal(t, 41, rec.ReviewCount)
	assert.Equal(t, []string{"Technology", "Sound", "Berlin, Germany", "LIVE"}, rec.Tags)
}

func TestKickstarter_Extract_NoTiersIsPriceUnavailable(t *testing.T) {
	page := browsertest.NewPage("https://www.kickstarter.com/projects/maker/idea").
		With(`#react-project-header`, el("", "data-initial", `{"project":{"pid":1,"name":"Just an Idea","currency":"GBP"}}`))

	rec, err := NewKickstarter().Extract(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, rec.PriceUnavailable)
	assert.Nil(t, rec.Price)
	assert.Equal(t, "GBP", rec.Currency)
}

func TestWadiz_Extract(t *testing.T) {
	const campaign = `{"data":{"campaignId":12345,"title":"접이식 전기자전거","coreMessage":"가볍고 튼튼한",
		"photoUrl":"https://cdn.wadiz.kr/wwwwadiz/green001/main.jpg","categoryName":"테크·가전",
		"satisfactionScoreAvg":4.6,"satisfactionCount":88,
		"rewardList":[{"amount":390000},{"amount":290000},{"amount":0}]}}`
	page := browsertest.NewPage("https://www.wadiz.kr/web/campaign/detail/12345").
		Script(wadizFetchScript("/web/apip/funding/campaigns/12345"), campaign).
		With(`.wd-story-content img`, el("", "data-src", "https://cdn.wadiz.kr/story/1.jpg"))

	rec, err := NewWadiz().Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "12345", rec.SourceItemID)
	assert.Equal(t, "접이식 전기자전거", rec.Title)
	assert.Equal(t, 290000.0, *rec.Price)
	assert.Equal(t, "KRW", rec.Currency)
	assert.Equal(t, 4.6, *rec.Rating)
	assert.Equal(t, 88, rec.ReviewCount)
	assert.Equal(t, []string{"https://cdn.wadiz.kr/story/1.jpg"}, rec.Images)
	assert.Equal(t, []string{"테크·가전"}, rec.Tags)
}

func TestWadiz_ExtractReviews(t *testing.T) {
	const feed = `{"data":{"content":[
		{"satisfactionNo":7,"body":"배송 빨라요","nickName":"후원자1","score":4,"registered":"2024-05-01T10:00:00","goodCount":2,"isSupporter":true},
		{"satisfactionNo":8,"body":"","nickName":"후원자2","score":1}
	]}}`
	page := browsertest.NewPage("https://www.wadiz.kr/web/campaign/detail/12345").
		Script(wadizFetchScript("/web/apip/funding/supporter/satisfaction/12345?page=0&size=10"), feed)

	reviews := NewWadiz().ExtractReviews(context.Background(), page, 10)
	require.Len(t, reviews, 1)
	assert.Equal(t, "7", reviews[0].SourceReviewID)
	assert.Equal(t, 4.0, *reviews[0].Rating)
	assert.True(t, reviews[0].IsVerifiedPurchase)
	require.NotNil(t, reviews[0].ReviewDate)
	assert.Equal(t, 5, int(reviews[0].ReviewDate.Month()))
}

func TestWadiz_ExtractReviews_MalformedPayloadIsLogged(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	w := NewWadiz()
	w.Log = logger

	page := browsertest.NewPage("https://www.wadiz.kr/web/campaign/detail/12345").
		Script(wadizFetchScript("/web/apip/funding/supporter/satisfaction/12345?page=0&size=10"), `{"data":{"content":[{"satisfactionNo":`)

	assert.Empty(t, w.ExtractReviews(context.Background(), page, 10))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "Malformed review payload")
	assert.NotNil(t, hook.LastEntry().Data[logrus.ErrorKey])
}

func TestNewRegistry_AttachesLogger(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	reg := NewRegistry(logger)

	a, err := reg.Get(domain.PlatformWadiz)
	require.NoError(t, err)
	entry, ok := a.(*Wadiz).Log.(*logrus.Entry)
	require.True(t, ok)
	assert.Equal(t, "adapter", entry.Data["component"])
	assert.Equal(t, domain.PlatformWadiz, entry.Data["platform"])
}

func TestListingURLs(t *testing.T) {
	params := domain.CrawlParams{Keyword: "usb hub", Category: "100003109"}

	tests := []struct {
		name   string
		lister Lister
		mode   domain.CrawlMode
		want   string
	}{
		{"aliexpress search", NewAliExpress(), domain.ModeSearch, "https://www.aliexpress.com/w/wholesale-usb-hub.html?page=2"},
		{"aliexpress category", NewAliExpress(), domain.ModeCategory, "https://www.aliexpress.com/category/100003109.html?page=2"},
		{"amazon search", NewAmazon(), domain.ModeSearch, "https://www.amazon.com/s?k=usb+hub&page=2"},
		{"ebay search", NewEbay(), domain.ModeSearch, "https://www.ebay.com/sch/i.html?_nkw=usb+hub&_pgn=2"},
		{"ebay category", NewEbay(), domain.ModeCategory, "https://www.ebay.com/sch/100003109/i.html?_pgn=2"},
		{"kickstarter popular", NewKickstarter(), domain.ModePopular, "https://www.kickstarter.com/discover/advanced?category_id=100003109&page=2&sort=popularity"},
		{"wadiz closing", NewWadiz(), domain.ModeClosing, "https://www.wadiz.kr/web/wreward/category?categoryCode=100003109&order=closing&page=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lister.ListingURL(tt.mode, params, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewAmazon().ListingURL(domain.ModePopular, params, 1)
	assert.Error(t, err)
	_, err = NewWadiz().ListingURL(domain.ModeSearch, params, 1)
	assert.Error(t, err)
}

func TestExtractListing(t *testing.T) {
	ctx := context.Background()

	t.Run("ebay", func(t *testing.T) {
		page := browsertest.NewPage("https://www.ebay.com/sch/i.html?_nkw=camera").
			With(`a.s-item__link`,
				el("", "href", "https://www.ebay.com/itm/123456"),
				el("", "href", "https://www.ebay.com/itm/Camera/123456789012?hash=1"),
				el("", "href", "https://www.ebay.com/itm/123456789012")).
			With(`a.pagination__next`, el("", "href", "https://www.ebay.com/sch/i.html?_nkw=camera&_pgn=2"))

		l, err := NewEbay().ExtractListing(ctx, page)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://www.ebay.com/itm/123456789012"}, l.ItemURLs)
		assert.True(t, l.HasNext)
	})

	t.Run("amazon last page", func(t *testing.T) {
		page := browsertest.NewPage("https://www.amazon.com/s?k=hub").
			With(`div[data-component-type="s-search-result"]`, el("", "data-asin", "B000000001"), el("", "data-asin", "")).
			With(`.s-pagination-next`, el("Next", "aria-disabled", "true"))

		l, err := NewAmazon().ExtractListing(ctx, page)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://www.amazon.com/dp/B000000001"}, l.ItemURLs)
		assert.False(t, l.HasNext)
	})

	t.Run("kickstarter", func(t *testing.T) {
		page := browsertest.NewPage("https://www.kickstarter.com/discover/advanced").
			With(`[data-project]`,
				el("", "data-project", `{"urls":{"web":{"project":"https://www.kickstarter.com/projects/a/one?ref=discovery"}}}`),
				el("", "data-project", `not json`)).
			With(`.load_more`, el("Load more"))

		l, err := NewKickstarter().ExtractListing(ctx, page)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://www.kickstarter.com/projects/a/one"}, l.ItemURLs)
		assert.True(t, l.HasNext)
	})

	t.Run("wadiz empty page ends", func(t *testing.T) {
		l, err := NewWadiz().ExtractListing(ctx, browsertest.NewPage("https://www.wadiz.kr/web/wreward/category"))
		require.NoError(t, err)
		assert.Empty(t, l.ItemURLs)
		assert.False(t, l.HasNext)
	})
}
