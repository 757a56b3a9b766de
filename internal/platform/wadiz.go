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

var wadizCampaignRe = regexp.MustCompile(`/campaign/detail/(\d+)`)

// Wadiz extracts crowdfunding campaigns from wadiz.kr. Campaign details and
// supporter reviews come from the site's JSON endpoints, fetched in-page.
type Wadiz struct {
	BaseURL string
	Log     logrus.FieldLogger
}

// NewWadiz creates the Wadiz adapter.
func NewWadiz() *Wadiz {
	return &Wadiz{BaseURL: "https://www.wadiz.kr", Log: discardLogger()}
}

func (w *Wadiz) Platform() domain.Platform { return domain.PlatformWadiz }

func wadizFetchScript(path string) string {
	return fmt.Sprintf(`() => fetch(%q, {credentials: "include"}).then(r => r.text())`, path)
}

type wadizCampaign struct {
	Data struct {
		CampaignID     json.Number `json:"campaignId"`
		Title          string      `json:"title"`
		CoreMessage    string      `json:"coreMessage"`
		PhotoURL       string      `json:"photoUrl"`
		VideoURL       string      `json:"videoUrl"`
		CategoryName   string      `json:"categoryName"`
		CustValueName  string      `json:"custValueCodeNm"`
		SatisfyAvg     *float64    `json:"satisfactionScoreAvg"`
		SatisfyCount   int         `json:"satisfactionCount"`
		ParticipantCnt int         `json:"participationCnt"`
		Rewards        []struct {
			Amount float64 `json:"amount"`
		} `json:"rewardList"`
	} `json:"data"`
}

func (w *Wadiz) Extract(ctx context.Context, page browser.Page) (*RawRecord, error) {
	pageURL := page.URL()
	rec := &RawRecord{Platform: w.Platform(), SourceURL: pageURL, Currency: "KRW"}

	var c wadizCampaign
	if m := wadizCampaignRe.FindStringSubmatch(pageURL); m != nil {
		rec.SourceItemID = m[1]
		if raw, err := page.Eval(wadizFetchScript("/web/apip/funding/campaigns/" + m[1])); err == nil && raw != "" {
			if err := json.Unmarshal([]byte(raw), &c); err != nil {
				w.Log.WithError(err).WithField("url", pageURL).Debug("Malformed campaign payload, falling back to page markup")
			}
		}
	}
	d := c.Data

	rec.Title = strings.TrimSpace(d.Title)
	if rec.Title == "" {
		rec.Title = firstText(page, `h2.common-info-title`, `.campaign-title`)
	}
	if rec.Title == "" {
		rec.Title = firstAttr(page, "content", `meta[property="og:title"]`)
	}
	if rec.Title == "" {
		return nil, missing(w.Platform(), "title", pageURL)
	}

	rec.Description = strings.TrimSpace(d.CoreMessage)
	if rec.Description == "" {
		rec.Description = firstAttr(page, "content", `meta[property="og:description"]`, `meta[name="description"]`)
	}

	var lowest float64
	for _, r := range d.Rewards {
		if r.Amount > 0 && (lowest == 0 || r.Amount < lowest) {
			lowest = r.Amount
		}
	}
	if lowest == 0 {
		for _, t := range page.Texts(`.reward-amount`) {
			if v, _, ok := parsePrice(t); ok && v > 0 && (lowest == 0 || v < lowest) {
				lowest = v
			}
		}
	}
	if lowest > 0 {
		rec.Price = floatPtr(lowest)
	} else {
		rec.PriceUnavailable = true
	}

	rec.ThumbnailURL = absURL(pageURL, d.PhotoURL)
	if rec.ThumbnailURL == "" {
		rec.ThumbnailURL = absURL(pageURL, firstAttr(page, "content", `meta[property="og:image"]`))
	}
	rec.VideoURL = absURL(pageURL, d.VideoURL)

	var refs []string
	refs = append(refs, page.Attrs(`.wd-story-content img`, "data-src")...)
	refs = append(refs, page.Attrs(`.wd-story-content img`, "src")...)
	rec.Images = absURLs(pageURL, refs)

	if d.SatisfyAvg != nil {
		rec.Rating = NormalizeRating(*d.SatisfyAvg, 5)
	}
	rec.ReviewCount = d.SatisfyCount
	rec.Tags = uniqueTags(d.CategoryName, d.CustValueName)

	return rec, nil
}

type wadizSatisfaction struct {
	Data struct {
		Content []struct {
			ID           json.Number `json:"satisfactionNo"`
			Body         string      `json:"body"`
			NickName     string      `json:"nickName"`
			Score        *float64    `json:"score"`
			RegDate      string      `json:"registered"`
			GoodCount    int         `json:"goodCount"`
			HasPurchased bool        `json:"isSupporter"`
		} `json:"content"`
	} `json:"data"`
}

// ExtractReviews reads supporter satisfaction reviews. Scores are 0-5.
func (w *Wadiz) ExtractReviews(ctx context.Context, page browser.Page, maxCount int) []domain.Review {
	if maxCount <= 0 {
		return nil
	}
	m := wadizCampaignRe.FindStringSubmatch(page.URL())
	if m == nil {
		return nil
	}
	path := fmt.Sprintf("/web/apip/funding/supporter/satisfaction/%s?page=0&size=%d", m[1], maxCount)
	raw, err := page.Eval(wadizFetchScript(path))
	if err != nil || raw == "" {
		return nil
	}
	var s wadizSatisfaction
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		w.Log.WithError(err).WithField("url", page.URL()).Debug("Malformed review payload, no reviews kept")
		return nil
	}

	var out []domain.Review
	for _, e := range s.Data.Content {
		if len(out) >= maxCount {
			break
		}
		body := strings.TrimSpace(e.Body)
		if body == "" {
			continue
		}
		r := domain.Review{
			Content:            body,
			ReviewerName:       strings.TrimSpace(e.NickName),
			ReviewerCountry:    "KR",
			HelpfulCount:       e.GoodCount,
			IsVerifiedPurchase: e.HasPurchased,
			SourceReviewID:     e.ID.String(),
		}
		if e.Score != nil {
			r.Rating = NormalizeRating(*e.Score, 5)
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006.01.02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(e.RegDate)); err == nil {
				r.ReviewDate = &t
				break
			}
		}
		out = append(out, r)
	}
	return out
}

var wadizOrders = map[domain.CrawlMode]string{
	domain.ModePopular:  "support",
	domain.ModeAmount:   "amount",
	domain.ModeRecent:   "recent",
	domain.ModeClosing:  "closing",
	domain.ModeCategory: "support",
}

func (w *Wadiz) Modes() []domain.CrawlMode {
	return []domain.CrawlMode{
		domain.ModeCategory, domain.ModePopular, domain.ModeAmount, domain.ModeRecent, domain.ModeClosing,
	}
}

func (w *Wadiz) ListingURL(mode domain.CrawlMode, params domain.CrawlParams, pageNo int) (string, error) {
	order, ok := wadizOrders[mode]
	if !ok {
		return "", fmt.Errorf("wadiz does not support crawl mode %q", mode)
	}
	q := url.Values{}
	q.Set("order", order)
	q.Set("page", strconv.Itoa(pageNo))
	if params.Category != "" {
		q.Set("categoryCode", params.Category)
	}
	return w.BaseURL + "/web/wreward/category?" + q.Encode(), nil
}

// ExtractListing collects campaign links. The listing scrolls infinitely, so
// any non-empty page implies another may follow.
func (w *Wadiz) ExtractListing(ctx context.Context, page browser.Page) (Listing, error) {
	seen := map[string]bool{}
	var items []string
	for _, href := range page.Attrs(`a[href*="/web/campaign/detail/"]`, "href") {
		m := wadizCampaignRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		items = append(items, w.BaseURL+"/web/campaign/detail/"+m[1])
	}
	return Listing{ItemURLs: items, HasNext: len(items) > 0}, nil
}
