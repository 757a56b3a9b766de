package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"prodcrawl/internal/browser"
	"prodcrawl/internal/domain"
)

var (
	aliItemIDRe = regexp.MustCompile(`/item/(\d+)\.html`)
	aliResizeRe = regexp.MustCompile(`(?i)(\.(?:jpe?g|png|webp|gif))_\d{2,4}x\d{2,4}[^/]*$`)
)

// AliExpress extracts items from aliexpress.com product pages.
type AliExpress struct {
	BaseURL string
	Log     logrus.FieldLogger
}

// NewAliExpress creates the AliExpress adapter.
func NewAliExpress() *AliExpress {
	return &AliExpress{BaseURL: "https://www.aliexpress.com", Log: discardLogger()}
}

// fullSizeAliImage drops the alicdn resize suffix ("_80x80.jpg",
// "_220x220q75.jpg_.avif") so gallery thumbnails yield the original image.
func fullSizeAliImage(u string) string {
	return aliResizeRe.ReplaceAllString(strings.TrimSpace(u), "$1")
}

func (a *AliExpress) Platform() domain.Platform { return domain.PlatformAliExpress }

func (a *AliExpress) Extract(ctx context.Context, page browser.Page) (*RawRecord, error) {
	pageURL := page.URL()
	rec := &RawRecord{Platform: a.Platform(), SourceURL: pageURL}

	if m := aliItemIDRe.FindStringSubmatch(pageURL); m != nil {
		rec.SourceItemID = m[1]
	}

	rec.Title = firstText(page, `h1[data-pl="product-title"]`, `.product-title-text`)
	if rec.Title == "" {
		rec.Title = firstAttr(page, "content", `meta[property="og:title"]`)
	}
	if rec.Title == "" {
		return nil, missing(a.Platform(), "title", pageURL)
	}

	priceText := firstText(page, `.product-price-current`, `[class*="price--currentPriceText"]`, `.product-price-value`)
	if amount, cur, ok := parsePrice(priceText); ok {
		rec.Price = floatPtr(amount)
		rec.Currency = cur
	} else if _, soldOut := page.Text(`[class*="quantity--soldOut"]`); soldOut {
		rec.PriceUnavailable = true
	} else {
		return nil, missing(a.Platform(), "price", pageURL)
	}
	if rec.Currency == "" {
		rec.Currency = "USD"
	}
	if orig, _, ok := parsePrice(firstText(page, `.price--originalText`, `.product-price-original`, `[class*="price--originalText"]`)); ok {
		rec.OriginalPrice = floatPtr(orig)
	}

	rec.Description = firstAttr(page, "content", `meta[name="description"]`, `meta[property="og:description"]`)
	rec.ThumbnailURL = absURL(pageURL, firstAttr(page, "content", `meta[property="og:image"]`))
	rec.VideoURL = absURL(pageURL, firstAttr(page, "src", `video source`, `video`))

	var refs []string
	gallery := append(page.Attrs(`[class*="slider--img"] img`, "src"), page.Attrs(`.images-view-item img`, "src")...)
	for _, src := range gallery {
		refs = append(refs, fullSizeAliImage(src))
	}
	refs = append(refs, page.Attrs(`#product-description img`, "data-src")...)
	refs = append(refs, page.Attrs(`#product-description img`, "src")...)
	rec.Images = absURLs(pageURL, refs)
	if rec.ThumbnailURL == "" && len(rec.Images) > 0 {
		rec.ThumbnailURL = rec.Images[0]
	}

	if v, ok := parseFloat(firstText(page, `[class*="reviewer--rating"] strong`, `.overview-rating-average`)); ok {
		rec.Rating = NormalizeRating(v, 5)
	}
	rec.ReviewCount = parseCount(firstText(page, `[class*="reviewer--reviews"]`, `.product-reviewer-reviews`))
	rec.Tags = uniqueTags(page.Texts(`[class*="breadcrumb"] a`)...)

	return rec, nil
}

// aliFeedbackScript fetches the public feedback feed from inside the page so
// the request carries the page's cookies.
func aliFeedbackScript(itemID string, pageSize int) string {
	return fmt.Sprintf(`() => fetch("https://feedback.aliexpress.com/pc/searchEvaluation.do?productId=%s&lang=en_US&country=US&page=1&pageSize=%d&filter=all&sort=complex_default", {credentials: "include"}).then(r => r.text())`,
		url.QueryEscape(itemID), pageSize)
}

type aliFeedback struct {
	Data struct {
		EvaViewList []struct {
			EvaluationID  json.Number `json:"evaluationId"`
			BuyerName     string      `json:"buyerName"`
			BuyerCountry  string      `json:"buyerCountry"`
			BuyerEval     *float64    `json:"buyerEval"`
			BuyerFeedback string      `json:"buyerFeedback"`
			EvalDate      string      `json:"evalDate"`
			UpVoteCount   int         `json:"upVoteCount"`
		} `json:"evaViewList"`
	} `json:"data"`
}

// ExtractReviews reads reviews from the feedback feed. buyerEval is a 0-100 score.
func (a *AliExpress) ExtractReviews(ctx context.Context, page browser.Page, maxCount int) []domain.Review {
	if maxCount <= 0 {
		return nil
	}
	m := aliItemIDRe.FindStringSubmatch(page.URL())
	if m == nil {
		return nil
	}
	raw, err := page.Eval(aliFeedbackScript(m[1], maxCount))
	if err != nil || raw == "" {
		return nil
	}
	var fb aliFeedback
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		a.Log.WithError(err).WithField("url", page.URL()).Debug("Malformed feedback payload, no reviews kept")
		return nil
	}

	var out []domain.Review
	for _, e := range fb.Data.EvaViewList {
		if len(out) >= maxCount {
			break
		}
		content := strings.TrimSpace(e.BuyerFeedback)
		if content == "" {
			continue
		}
		r := domain.Review{
			Content:         content,
			ReviewerName:    strings.TrimSpace(e.BuyerName),
			ReviewerCountry: strings.TrimSpace(e.BuyerCountry),
			HelpfulCount:    e.UpVoteCount,
			// Feedback can only be left after an order.
			IsVerifiedPurchase: true,
			SourceReviewID:     e.EvaluationID.String(),
		}
		if e.BuyerEval != nil {
			r.Rating = NormalizeRating(*e.BuyerEval, 100)
		}
		if t, err := time.Parse("02 Jan 2006", strings.TrimSpace(e.EvalDate)); err == nil {
			r.ReviewDate = &t
		}
		out = append(out, r)
	}
	return out
}

func (a *AliExpress) Modes() []domain.CrawlMode {
	return []domain.CrawlMode{domain.ModeSearch, domain.ModeCategory}
}

func (a *AliExpress) ListingURL(mode domain.CrawlMode, params domain.CrawlParams, pageNo int) (string, error) {
	switch mode {
	case domain.ModeSearch:
		kw := strings.Join(strings.Fields(params.Keyword), "-")
		return a.BaseURL + "/w/wholesale-" + url.PathEscape(kw) + ".html?page=" + strconv.Itoa(pageNo), nil
	case domain.ModeCategory:
		return a.BaseURL + "/category/" + url.PathEscape(params.Category) + ".html?page=" + strconv.Itoa(pageNo), nil
	}
	return "", fmt.Errorf("aliexpress does not support crawl mode %q", mode)
}

func (a *AliExpress) ExtractListing(ctx context.Context, page browser.Page) (Listing, error) {
	seen := map[string]bool{}
	var items []string
	for _, href := range page.Attrs(`a[href*="/item/"]`, "href") {
		m := aliItemIDRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		items = append(items, a.BaseURL+"/item/"+m[1]+".html")
	}
	disabled, _ := page.Attr(`.comet-pagination-next`, "aria-disabled")
	hasNext := len(items) > 0 && len(page.All(`.comet-pagination-next`)) > 0 && disabled != "true"
	return Listing{ItemURLs: items, HasNext: hasNext}, nil
}
