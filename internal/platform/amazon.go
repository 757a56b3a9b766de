package platform

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"prodcrawl/internal/browser"
	"prodcrawl/internal/domain"
)

var (
	amazonASINRe     = regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d)/([A-Z0-9]{10})`)
	amazonModifierRe = regexp.MustCompile(`\._[^/]*_\.`)
	amazonReviewOnRe = regexp.MustCompile(`(?i)reviewed in (?:the )?(.+?) on (.+)$`)
)

// Amazon extracts items from amazon.com product pages.
type Amazon struct {
	BaseURL string
}

// NewAmazon creates the Amazon adapter.
func NewAmazon() *Amazon {
	return &Amazon{BaseURL: "https://www.amazon.com"}
}

func (a *Amazon) Platform() domain.Platform { return domain.PlatformAmazon }

// fullSizeImage drops Amazon's size modifiers ("._AC_SX38_.") so the
// thumbnail strip yields full-size detail images.
func fullSizeImage(u string) string {
	return amazonModifierRe.ReplaceAllString(u, ".")
}

func (a *Amazon) Extract(ctx context.Context, page browser.Page) (*RawRecord, error) {
	pageURL := page.URL()
	rec := &RawRecord{Platform: a.Platform(), SourceURL: pageURL}

	if m := amazonASINRe.FindStringSubmatch(pageURL); m != nil {
		rec.SourceItemID = m[1]
	} else if v, ok := page.Attr(`input#ASIN`, "value"); ok {
		rec.SourceItemID = v
	}

	rec.Title = firstText(page, `#productTitle`, `#title`)
	if rec.Title == "" {
		return nil, missing(a.Platform(), "title", pageURL)
	}

	priceText := firstText(page,
		`#corePriceDisplay_desktop_feature_div .a-price .a-offscreen`,
		`#corePrice_feature_div .a-price .a-offscreen`,
		`#priceblock_ourprice`,
		`#priceblock_dealprice`,
	)
	if amount, cur, ok := parsePrice(priceText); ok {
		rec.Price = floatPtr(amount)
		rec.Currency = cur
	} else if avail, _ := page.Text(`#availability`); strings.Contains(strings.ToLower(avail), "unavailable") {
		rec.PriceUnavailable = true
	} else {
		return nil, missing(a.Platform(), "price", pageURL)
	}
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	if orig, _, ok := parsePrice(firstText(page, `#corePriceDisplay_desktop_feature_div .a-price.a-text-price .a-offscreen`, `.basisPrice .a-offscreen`)); ok {
		rec.OriginalPrice = floatPtr(orig)
	}

	bullets := page.Texts(`#feature-bullets li`)
	if len(bullets) > 0 {
		rec.Description = strings.Join(bullets, "\n")
	} else {
		rec.Description = firstText(page, `#productDescription`)
	}

	rec.ThumbnailURL = absURL(pageURL, firstAttr(page, "data-old-hires", `#landingImage`))
	if rec.ThumbnailURL == "" {
		rec.ThumbnailURL = absURL(pageURL, firstAttr(page, "src", `#landingImage`, `#imgBlkFront`))
	}

	var refs []string
	for _, src := range page.Attrs(`#altImages li.imageThumbnail img`, "src") {
		refs = append(refs, fullSizeImage(src))
	}
	refs = append(refs, page.Attrs(`#aplus img`, "data-src")...)
	refs = append(refs, page.Attrs(`#aplus img`, "src")...)
	rec.Images = absURLs(pageURL, refs)

	if title, ok := page.Attr(`#acrPopover`, "title"); ok {
		if v, ok := parseFloat(title); ok {
			rec.Rating = NormalizeRating(v, 5)
		}
	}
	rec.ReviewCount = parseCount(firstText(page, `#acrCustomerReviewText`))
	rec.Tags = uniqueTags(page.Texts(`#wayfinding-breadcrumbs_feature_div a`)...)

	return rec, nil
}

// ExtractReviews reads the top reviews rendered on the product page.
func (a *Amazon) ExtractReviews(ctx context.Context, page browser.Page, maxCount int) []domain.Review {
	var out []domain.Review
	for _, n := range page.All(`[data-hook="review"]`) {
		if len(out) >= maxCount {
			break
		}
		content := firstText(n, `[data-hook="review-body"]`)
		if content == "" {
			continue
		}
		r := domain.Review{
			Content:        content,
			ReviewerName:   firstText(n, `.a-profile-name`),
			SourceReviewID: firstAttr(n, "id", ""),
		}
		if v, ok := parseFloat(firstText(n, `[data-hook="review-star-rating"]`, `[data-hook="cmps-review-star-rating"]`)); ok {
			r.Rating = NormalizeRating(v, 5)
		}
		if m := amazonReviewOnRe.FindStringSubmatch(firstText(n, `[data-hook="review-date"]`)); m != nil {
			r.ReviewerCountry = strings.TrimSpace(m[1])
			if t, err := time.Parse("January 2, 2006", strings.TrimSpace(m[2])); err == nil {
				r.ReviewDate = &t
			}
		}
		if _, ok := n.Text(`[data-hook="avp-badge"]`); ok {
			r.IsVerifiedPurchase = true
		}
		helpful := firstText(n, `[data-hook="helpful-vote-statement"]`)
		if strings.HasPrefix(strings.ToLower(helpful), "one person") {
			r.HelpfulCount = 1
		} else {
			r.HelpfulCount = parseCount(helpful)
		}
		out = append(out, r)
	}
	return out
}

func (a *Amazon) Modes() []domain.CrawlMode {
	return []domain.CrawlMode{domain.ModeSearch, domain.ModeCategory}
}

func (a *Amazon) ListingURL(mode domain.CrawlMode, params domain.CrawlParams, pageNo int) (string, error) {
	q := url.Values{}
	switch mode {
	case domain.ModeSearch:
		q.Set("k", params.Keyword)
	case domain.ModeCategory:
		q.Set("rh", "n:"+params.Category)
	default:
		return "", fmt.Errorf("amazon does not support crawl mode %q", mode)
	}
	q.Set("page", strconv.Itoa(pageNo))
	return a.BaseURL + "/s?" + q.Encode(), nil
}

func (a *Amazon) ExtractListing(ctx context.Context, page browser.Page) (Listing, error) {
	var items []string
	seen := map[string]bool{}
	for _, n := range page.All(`div[data-component-type="s-search-result"]`) {
		asin, ok := n.Attr("", "data-asin")
		if !ok || seen[asin] {
			continue
		}
		seen[asin] = true
		items = append(items, a.BaseURL+"/dp/"+asin)
	}
	disabled, _ := page.Attr(`.s-pagination-next`, "aria-disabled")
	hasNext := len(items) > 0 && len(page.All(`.s-pagination-next`)) > 0 && disabled != "true"
	return Listing{ItemURLs: items, HasNext: hasNext}, nil
}
