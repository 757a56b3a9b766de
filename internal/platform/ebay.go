package platform

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"prodcrawl/internal/browser"
	"prodcrawl/internal/domain"
)

var ebayItemIDRe = regexp.MustCompile(`/itm/(?:[^/?#]+/)?(\d{9,15})`)

// Ebay extracts items from ebay.com listing pages. eBay listings carry no
// product reviews, so the adapter has no review capability.
type Ebay struct {
	BaseURL string
}

// NewEbay creates the eBay adapter.
func NewEbay() *Ebay {
	return &Ebay{BaseURL: "https://www.ebay.com"}
}

func (e *Ebay) Platform() domain.Platform { return domain.PlatformEbay }

func (e *Ebay) Extract(ctx context.Context, page browser.Page) (*RawRecord, error) {
	pageURL := page.URL()
	rec := &RawRecord{Platform: e.Platform(), SourceURL: pageURL}

	if m := ebayItemIDRe.FindStringSubmatch(pageURL); m != nil {
		rec.SourceItemID = m[1]
	}

	rec.Title = firstText(page, `h1.x-item-title__mainTitle span`, `h1.x-item-title__mainTitle`, `#itemTitle`)
	if rec.Title == "" {
		return nil, missing(e.Platform(), "title", pageURL)
	}

	if amount, cur, ok := parsePrice(firstText(page, `.x-price-primary span`, `.x-price-primary`, `#prcIsum`)); ok {
		rec.Price = floatPtr(amount)
		rec.Currency = cur
	} else if _, ended := page.Text(`.d-statusmessage`); ended {
		rec.PriceUnavailable = true
	} else {
		return nil, missing(e.Platform(), "price", pageURL)
	}
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	if orig, _, ok := parsePrice(firstText(page, `.x-additional-info .ux-textspans--STRIKETHROUGH`, `#orgPrc`)); ok {
		rec.OriginalPrice = floatPtr(orig)
	}

	rec.Description = firstAttr(page, "content", `meta[name="description"]`, `meta[property="og:description"]`)

	var refs []string
	for _, n := range page.All(`.ux-image-carousel-item img`) {
		if v, ok := n.Attr("", "data-zoom-src"); ok {
			refs = append(refs, v)
		} else if v, ok := n.Attr("", "src"); ok {
			refs = append(refs, v)
		}
	}
	rec.Images = absURLs(pageURL, refs)
	rec.ThumbnailURL = absURL(pageURL, firstAttr(page, "content", `meta[property="og:image"]`))
	if rec.ThumbnailURL == "" && len(rec.Images) > 0 {
		rec.ThumbnailURL = rec.Images[0]
	}

	if title, ok := page.Attr(`.reviews-star-rating`, "title"); ok {
		if v, ok := parseFloat(title); ok {
			rec.Rating = NormalizeRating(v, 5)
		}
	}
	rec.ReviewCount = parseCount(firstText(page, `.reviews-total-count`, `.ux-summary__count`))

	condition := firstText(page, `.x-item-condition-text .ux-textspans`, `#vi-itm-cond`)
	rec.Tags = uniqueTags(append(page.Texts(`.seo-breadcrumb-text`), condition)...)

	return rec, nil
}

func (e *Ebay) Modes() []domain.CrawlMode {
	return []domain.CrawlMode{domain.ModeSearch, domain.ModeCategory}
}

func (e *Ebay) ListingURL(mode domain.CrawlMode, params domain.CrawlParams, pageNo int) (string, error) {
	switch mode {
	case domain.ModeSearch:
		q := url.Values{}
		q.Set("_nkw", params.Keyword)
		q.Set("_pgn", strconv.Itoa(pageNo))
		return e.BaseURL + "/sch/i.html?" + q.Encode(), nil
	case domain.ModeCategory:
		return e.BaseURL + "/sch/" + url.PathEscape(params.Category) + "/i.html?_pgn=" + strconv.Itoa(pageNo), nil
	}
	return "", fmt.Errorf("ebay does not support crawl mode %q", mode)
}

func (e *Ebay) ExtractListing(ctx context.Context, page browser.Page) (Listing, error) {
	seen := map[string]bool{}
	var items []string
	for _, href := range page.Attrs(`a.s-item__link`, "href") {
		// The template row links to /itm/123456, which the id pattern rejects.
		m := ebayItemIDRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		items = append(items, e.BaseURL+"/itm/"+m[1])
	}
	_, hasNextLink := page.Attr(`a.pagination__next`, "href")
	return Listing{ItemURLs: items, HasNext: len(items) > 0 && hasNextLink}, nil
}
